package migration

import (
	"context"
	"fmt"
)

// Manager coordinates two independent Engines — user/auth data and
// application data — running user migrations first (spec.md §4.5
// "Migration Manager").
type Manager struct {
	User *Engine
	App  *Engine
}

// NewManager pairs a user-data Engine and an application-data Engine.
func NewManager(user, app *Engine) *Manager {
	return &Manager{User: user, App: app}
}

// Status is the combined current version of both runners.
type Status struct {
	UserVersion string
	AppVersion  string
}

// Status reads both runners' current schema versions without
// migrating anything.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	userVersion, err := m.User.CurrentVersion(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("migration: reading user version: %w", err)
	}
	appVersion, err := m.App.CurrentVersion(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("migration: reading app version: %w", err)
	}
	return Status{UserVersion: userVersion, AppVersion: appVersion}, nil
}

// MigrateAll migrates user data to userTarget, then application data
// to appTarget, in that order. If the user migration fails, the
// application migration is not attempted.
func (m *Manager) MigrateAll(ctx context.Context, userTarget, appTarget string) (userResult, appResult *Result, err error) {
	userResult, err = m.User.Migrate(ctx, userTarget)
	if err != nil {
		return nil, nil, fmt.Errorf("migration: user data: %w", err)
	}
	appResult, err = m.App.Migrate(ctx, appTarget)
	if err != nil {
		return userResult, nil, fmt.Errorf("migration: application data: %w", err)
	}
	return userResult, appResult, nil
}
