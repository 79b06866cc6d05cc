// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Books, reading sessions and highlights
//	├── syncruns/        # Sync attempt history
//	├── settings/        # Per-user settings
//	└── users/           # User management
//
// WebDAV credentials live in internal/credentials because they are encrypted
// before they reach the database.
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./readstats.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	runsRepo := syncruns.NewRepository(db.DB)
//
//	stats, err := booksRepo.GetLibraryStats(ctx, userID)
//	runs, err := runsRepo.ListForUser(ctx, userID, 10)
//
// # Connection Settings
//
// Every connection runs with foreign keys on, WAL journaling, a busy timeout
// and BEGIN IMMEDIATE transactions, so two library rebuilds never deadlock
// upgrading a read lock. See DSN.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register its entities in Migrate
//  5. Add compile-time interface check in internal/interfaces/checks.go
package database
