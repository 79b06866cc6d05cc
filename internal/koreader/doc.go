// Package koreader reads the statistics database KOReader keeps on a synced
// device: where to find it on a remote store, how to fetch it safely and how
// to turn its tables into raw book and page-event records.
//
// Records produced here carry the book ids the device assigned, which are
// renumbered on every export. Only the md5 content hash identifies a book
// across exports; resolving one into the other is the caller's job.
package koreader
