package statsync

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/koreader"
	"github.com/mrlokans/readstats/internal/storage"
)

// TestCredentials checks that creds can list the store root. Nothing is
// persisted.
func (s *Service) TestCredentials(ctx context.Context, creds credentials.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	client := s.pool.Wrap(s.newClient(creds))
	if _, err := client.List(ctx, "/"); err != nil {
		return fmt.Errorf("webdav connection failed: %w", err)
	}
	return nil
}

// TestConnection runs TestCredentials with the user's saved credentials.
func (s *Service) TestConnection(ctx context.Context, userID uint) error {
	creds, err := s.userCredentials(ctx, userID)
	if err != nil {
		return err
	}
	return s.TestCredentials(ctx, *creds)
}

// ListRemote lists a directory on the user's store. An empty dir lists the
// configured base path.
func (s *Service) ListRemote(ctx context.Context, userID uint, dir string) ([]storage.FileInfo, error) {
	creds, err := s.userCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = creds.BasePath
		if dir == "" {
			dir = s.cfg.BasePath
		}
	}

	client := s.pool.Wrap(s.newClient(*creds))
	entries, err := client.List(ctx, path.Clean("/"+dir))
	if err != nil {
		return nil, err
	}
	storage.SortEntries(entries)
	return entries, nil
}

// SnapshotSearch lists the statistics snapshots found below Dir.
type SnapshotSearch struct {
	Dir    string             `json:"dir"`
	Files  []storage.FileInfo `json:"files"`
	Latest *storage.FileInfo  `json:"latest,omitempty"`
}

// FindSnapshots walks dir on the user's store looking for statistics
// databases, for users who do not know where their device uploads them.
// An empty dir searches from the store root.
func (s *Service) FindSnapshots(ctx context.Context, userID uint, dir string) (*SnapshotSearch, error) {
	creds, err := s.userCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	dir = path.Clean("/" + dir)

	client := s.pool.Wrap(s.newClient(*creds))
	files, err := storage.ListRecursive(ctx, client, dir)
	if err != nil {
		return nil, err
	}
	found := storage.FilterFiles(files, func(f storage.FileInfo) bool {
		return f.Name == koreader.StatisticsFileName
	})
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ModifiedAt.After(found[j].ModifiedAt)
	})

	s.logger.Debug("snapshot search finished", "user_id", userID, "dir", dir, "found", len(found))
	return &SnapshotSearch{Dir: dir, Files: found, Latest: storage.FindLatest(found)}, nil
}

func (s *Service) userCredentials(ctx context.Context, userID uint) (*credentials.Credentials, error) {
	creds, err := s.creds.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webdav credentials: %w", err)
	}
	if creds == nil {
		return nil, ErrNoCredentials
	}
	return creds, nil
}
