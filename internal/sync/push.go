package sync

import (
	"context"
	"fmt"

	"github.com/tallyapp/tallysync/internal/model"
)

// pushOutcome summarizes one snapshot upload: how many rows went up, and the
// ids of live shareable records the broker should process afterwards.
type pushOutcome struct {
	Uploaded int

	TransactionIDs  []string
	SettlementIDs   []string
	SubscriptionIDs []string
	ReminderIDs     []string
}

// pushStep is one dependency-ordered stage of the snapshot upload. The
// migration runner walks the same steps to report per-entity progress.
type pushStep struct {
	Entity string
	Count  int
	Run    func(ctx context.Context) error
}

// pushSteps builds the upload stages for snap in strict dependency order:
// referenced entities before referencing ones, parents before their child
// collections. Tombstoned rows are uploaded like any other row (the tombstone
// is the payload); their child collections are not touched.
func pushSteps(rw RemoteWriter, snap *model.Snapshot) []pushStep {
	steps := []pushStep{
		{
			Entity: "profiles",
			Count:  len(snap.Profiles),
			Run:    func(ctx context.Context) error { return rw.UpsertProfiles(ctx, snap.Profiles) },
		},
		{
			Entity: "persons",
			Count:  len(snap.Persons),
			Run:    func(ctx context.Context) error { return rw.UpsertPersons(ctx, snap.Persons) },
		},
		{
			Entity: "groups",
			Count:  len(snap.Groups),
			Run:    func(ctx context.Context) error { return rw.UpsertGroups(ctx, snap.Groups) },
		},
		{
			Entity: "group members",
			Count:  liveCount(snap.Groups, func(g model.Group) bool { return g.DeletedAt == nil }),
			Run: func(ctx context.Context) error {
				for _, g := range snap.Groups {
					if g.DeletedAt != nil {
						continue
					}
					if err := rw.ReplaceGroupMembers(ctx, g.ID, g.MemberIDs); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Entity: "subscriptions",
			Count:  len(snap.Subscriptions),
			Run:    func(ctx context.Context) error { return rw.UpsertSubscriptions(ctx, snap.Subscriptions) },
		},
		{
			Entity: "subscription children",
			Count:  liveCount(snap.Subscriptions, func(s model.Subscription) bool { return s.DeletedAt == nil }),
			Run: func(ctx context.Context) error {
				for i := range snap.Subscriptions {
					sub := &snap.Subscriptions[i]
					if sub.DeletedAt != nil {
						continue
					}
					if err := rw.ReplaceSubscriptionChildren(ctx, sub); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Entity: "transactions",
			Count:  len(snap.Transactions),
			Run:    func(ctx context.Context) error { return rw.UpsertTransactions(ctx, snap.Transactions) },
		},
		{
			Entity: "splits and payers",
			Count:  liveCount(snap.Transactions, func(t model.Transaction) bool { return t.DeletedAt == nil }),
			Run: func(ctx context.Context) error {
				for _, t := range snap.Transactions {
					if t.DeletedAt != nil {
						continue
					}
					if err := rw.ReplaceSplits(ctx, t.ID, t.Splits); err != nil {
						return err
					}
					if err := rw.ReplacePayers(ctx, t.ID, t.Payers); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Entity: "settlements",
			Count:  len(snap.Settlements),
			Run:    func(ctx context.Context) error { return rw.UpsertSettlements(ctx, snap.Settlements) },
		},
		{
			Entity: "reminders",
			Count:  len(snap.Reminders),
			Run:    func(ctx context.Context) error { return rw.UpsertReminders(ctx, snap.Reminders) },
		},
		{
			Entity: "messages",
			Count:  len(snap.Messages),
			Run:    func(ctx context.Context) error { return rw.UpsertMessages(ctx, snap.Messages) },
		},
	}
	return steps
}

// pushSnapshot uploads snap, aborting on the first failure. Re-running after
// a partial failure is safe: every stage is an idempotent upsert or a full
// set replacement.
func pushSnapshot(ctx context.Context, rw RemoteWriter, snap *model.Snapshot) (pushOutcome, error) {
	var out pushOutcome
	for _, step := range pushSteps(rw, snap) {
		if err := step.Run(ctx); err != nil {
			return out, fmt.Errorf("pushing %s: %w", step.Entity, err)
		}
		out.Uploaded += step.Count
	}

	for _, t := range snap.Transactions {
		if t.DeletedAt == nil {
			out.TransactionIDs = append(out.TransactionIDs, t.ID)
		}
	}
	for _, s := range snap.Settlements {
		if s.DeletedAt == nil {
			out.SettlementIDs = append(out.SettlementIDs, s.ID)
		}
	}
	for _, s := range snap.Subscriptions {
		if s.DeletedAt == nil {
			out.SubscriptionIDs = append(out.SubscriptionIDs, s.ID)
		}
	}
	for _, r := range snap.Reminders {
		if r.DeletedAt == nil {
			out.ReminderIDs = append(out.ReminderIDs, r.ID)
		}
	}
	return out, nil
}

func liveCount[T any](rows []T, live func(T) bool) int {
	n := 0
	for _, r := range rows {
		if live(r) {
			n++
		}
	}
	return n
}
