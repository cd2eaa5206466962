package store

import (
	"context"
	"fmt"

	"github.com/tallyapp/tallysync/internal/model"
)

// Snapshot reads the full current state of owner's dataset, tombstoned rows
// included, in the dependency order the push pipeline uploads it. Rows owned
// by other accounts (materialized share replicas) are excluded: a device
// never pushes back data it only has read visibility into.
func (s *Store) Snapshot(ctx context.Context, owner string) (*model.Snapshot, error) {
	var snap model.Snapshot
	var err error

	if snap.Profiles, err = listProfiles(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot profiles: %w", err)
	}
	if snap.Persons, err = listPersons(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot persons: %w", err)
	}
	if snap.Groups, err = listGroups(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot groups: %w", err)
	}
	if snap.Subscriptions, err = listSubscriptions(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot subscriptions: %w", err)
	}
	if snap.Transactions, err = listTransactions(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot transactions: %w", err)
	}
	if snap.Settlements, err = listSettlements(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot settlements: %w", err)
	}
	if snap.Reminders, err = listReminders(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot reminders: %w", err)
	}
	if snap.Messages, err = listMessages(ctx, s.db, owner); err != nil {
		return nil, fmt.Errorf("snapshot messages: %w", err)
	}

	return &snap, nil
}
