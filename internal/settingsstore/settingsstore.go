// Package settingsstore exposes typed per-user settings on top of the
// settings table.
package settingsstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/readstats/internal/database/settings"
	"github.com/mrlokans/readstats/internal/entities"
)

// Priority: user setting > global default
type SettingsStore struct {
	repo            *settings.Repository
	defaultSchedule string
}

func New(repo *settings.Repository, defaultSchedule string) *SettingsStore {
	return &SettingsStore{repo: repo, defaultSchedule: defaultSchedule}
}

// ScheduleInfo tells which schedule syncs a user and where it comes from.
type ScheduleInfo struct {
	Schedule string `json:"schedule"`
	Source   string `json:"source"` // "user" or "default"
}

// GetSyncSchedule returns the user's own schedule, or "" when none is set.
func (s *SettingsStore) GetSyncSchedule(ctx context.Context, userID uint) (string, error) {
	setting, err := s.repo.GetSetting(ctx, userID, entities.SettingKeySyncSchedule)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sync schedule: %w", err)
	}
	return setting.Value, nil
}

func (s *SettingsStore) GetSyncScheduleInfo(ctx context.Context, userID uint) (ScheduleInfo, error) {
	schedule, err := s.GetSyncSchedule(ctx, userID)
	if err != nil {
		return ScheduleInfo{}, err
	}
	if schedule != "" {
		return ScheduleInfo{Schedule: schedule, Source: "user"}, nil
	}
	return ScheduleInfo{Schedule: s.defaultSchedule, Source: "default"}, nil
}

func (s *SettingsStore) SetSyncSchedule(ctx context.Context, userID uint, schedule string) error {
	return s.repo.SetSetting(ctx, userID, entities.SettingKeySyncSchedule, schedule)
}

func (s *SettingsStore) ClearSyncSchedule(ctx context.Context, userID uint) error {
	return s.repo.DeleteSetting(ctx, userID, entities.SettingKeySyncSchedule)
}

// SyncSchedules returns every user's own schedule keyed by user ID.
func (s *SettingsStore) SyncSchedules(ctx context.Context) (map[uint]string, error) {
	rows, err := s.repo.ListByKey(ctx, entities.SettingKeySyncSchedule)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync schedules: %w", err)
	}
	schedules := make(map[uint]string, len(rows))
	for _, row := range rows {
		if row.Value != "" {
			schedules[row.UserID] = row.Value
		}
	}
	return schedules, nil
}
