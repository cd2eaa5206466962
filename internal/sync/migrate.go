package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// MigrationPhase is one stage of the one-time bulk upload.
type MigrationPhase string

const (
	MigrationIdle       MigrationPhase = "idle"
	MigrationInProgress MigrationPhase = "in_progress"
	MigrationCompleted  MigrationPhase = "completed"
	MigrationFailed     MigrationPhase = "failed"
)

// MigrationProgress reports the runner's position. Entity and Count are set
// in [MigrationInProgress]; Err is set in [MigrationFailed].
type MigrationProgress struct {
	Phase  MigrationPhase
	Entity string
	Count  int
	Err    error
}

// Migrator performs the one-time bulk upload of a pre-sync local dataset. It
// walks the same dependency-ordered steps as the push pipeline, reporting
// per-entity progress, and flips the persisted migration flag on success so
// the upload never runs twice.
type Migrator struct {
	local      LocalStore
	remote     RemoteWriter
	onProgress func(MigrationProgress)
	log        *slog.Logger
}

// NewMigrator creates a Migrator. onProgress may be nil.
func NewMigrator(local LocalStore, remote RemoteWriter, onProgress func(MigrationProgress), logger *slog.Logger) *Migrator {
	return &Migrator{local: local, remote: remote, onProgress: onProgress, log: logger}
}

// Run uploads account's full dataset. A second call after success is a no-op;
// a call after failure restarts the upload from the beginning, which is safe
// because every step is idempotent.
func (m *Migrator) Run(ctx context.Context, account string) error {
	done, err := m.local.MigrationDone(ctx, account)
	if err != nil {
		return fmt.Errorf("reading migration flag: %w", err)
	}
	if done {
		m.log.Info("migration already completed", "account", account)
		m.report(MigrationProgress{Phase: MigrationCompleted})
		return nil
	}

	snap, err := m.local.Snapshot(ctx, account)
	if err != nil {
		return m.fail(fmt.Errorf("reading snapshot: %w", err))
	}

	for _, step := range pushSteps(m.remote, snap) {
		m.report(MigrationProgress{Phase: MigrationInProgress, Entity: step.Entity, Count: step.Count})
		m.log.Info("migrating", "entity", step.Entity, "rows", step.Count)
		if err := step.Run(ctx); err != nil {
			return m.fail(fmt.Errorf("migrating %s: %w", step.Entity, err))
		}
	}

	if err := m.local.SetMigrationDone(ctx, account); err != nil {
		return m.fail(fmt.Errorf("writing migration flag: %w", err))
	}

	m.log.Info("migration completed", "account", account)
	m.report(MigrationProgress{Phase: MigrationCompleted})
	return nil
}

func (m *Migrator) fail(err error) error {
	m.report(MigrationProgress{Phase: MigrationFailed, Err: err})
	return err
}

func (m *Migrator) report(p MigrationProgress) {
	if m.onProgress != nil {
		m.onProgress(p)
	}
}
