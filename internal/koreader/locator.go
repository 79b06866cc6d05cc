package koreader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/mrlokans/readstats/internal/storage"
)

const StatisticsFileName = "statistics.sqlite3"

var ErrLookupFailed = errors.New("could not reach remote store")

// CandidatePaths returns where a statistics file may live, most specific
// first: the configured KOReader directory, then locations used by older
// versions and by devices that sync their whole storage.
func CandidatePaths(basePath string) []string {
	base := path.Clean("/" + basePath)
	raw := []string{
		path.Join(base, StatisticsFileName),
		path.Join(base, "statistics.sqlite"),
		"/koreader/" + StatisticsFileName,
		"/" + StatisticsFileName,
		"/statistics/" + StatisticsFileName,
		"/.adds/koreader/" + StatisticsFileName,
		"/Documents/" + StatisticsFileName,
		path.Join(base, "Documents", StatisticsFileName),
	}

	seen := make(map[string]struct{}, len(raw))
	candidates := make([]string, 0, len(raw))
	for _, p := range raw {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		candidates = append(candidates, p)
	}
	return candidates
}

// Locator finds the statistics file on a remote store.
type Locator struct {
	logger *slog.Logger
}

func NewLocator(logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{logger: logger.With("component", "locator")}
}

// Locate checks candidates in order and returns the first that exists.
// found is false when no candidate exists; that is not an error. A check
// that fails is logged and skipped. err is set only when ctx ends or no
// check got an answer from the store at all.
func (l *Locator) Locate(ctx context.Context, client storage.Client, candidates []string) (p string, found bool, err error) {
	var lastErr error
	answered := 0

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		ok, err := client.Exists(ctx, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", false, ctxErr
			}
			l.logger.Warn("existence check failed", "path", candidate, "error", err)
			lastErr = err
			continue
		}
		answered++

		if ok {
			l.logger.Debug("statistics file located", "path", candidate)
			return candidate, true, nil
		}
	}

	if answered == 0 && lastErr != nil {
		return "", false, fmt.Errorf("%w: %w", ErrLookupFailed, lastErr)
	}
	return "", false, nil
}
