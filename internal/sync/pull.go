package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tallyapp/tallysync/internal/model"
)

// puller downloads remote changes since the cursor and applies them in one
// local transaction. Remote rows overwrite local ones unconditionally; a
// tombstoned row is propagated as a cascade delete.
type puller struct {
	local  LocalStore
	remote RemoteReader
	broker *Broker
	log    *slog.Logger

	// applying is raised for the duration of the local transaction so the
	// orchestrator can ignore events produced while remote data is written.
	applying *atomic.Bool
}

// pulledSet is everything one pull cycle fetched: changed parent rows plus
// the child collections of the changed live parents.
type pulledSet struct {
	profiles      []model.Profile
	persons       []model.Person
	groups        []model.Group
	subscriptions []model.Subscription
	transactions  []model.Transaction
	settlements   []model.Settlement
	reminders     []model.Reminder
	messages      []model.Message

	groupMembers map[string][]string
	splits       map[string][]model.Split
	payers       map[string][]model.Payer
	subChildren  *model.SubscriptionChildren
}

func (s *pulledSet) parentCount() int {
	return len(s.profiles) + len(s.persons) + len(s.groups) +
		len(s.subscriptions) + len(s.transactions) + len(s.settlements) +
		len(s.reminders) + len(s.messages)
}

// run executes one pull: fetch changed rows and share bundles, apply
// everything in one transaction, then confirm newly materialized shares.
func (p *puller) run(ctx context.Context, account string, since time.Time) (int, error) {
	set, err := p.fetch(ctx, account, since)
	if err != nil {
		return 0, err
	}

	shared, err := p.broker.fetchShared(ctx, since)
	if err != nil {
		return 0, err
	}

	applied := 0
	var pending []string
	err = p.local.Apply(ctx, func(tx LocalTx) error {
		p.applying.Store(true)
		defer p.applying.Store(false)

		n, err := p.apply(ctx, tx, set)
		if err != nil {
			return err
		}
		applied += n

		m, accepted, err := p.broker.materialize(ctx, tx, account, shared)
		if err != nil {
			return err
		}
		applied += m
		pending = accepted
		return nil
	})
	if err != nil {
		return 0, err
	}

	p.broker.acceptAsync(pending)
	return applied, nil
}

// fetch downloads changed parent rows in parallel, then the child
// collections of exactly the changed live parents.
func (p *puller) fetch(ctx context.Context, account string, since time.Time) (*pulledSet, error) {
	set := &pulledSet{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		set.profiles, err = p.remote.ProfilesSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.persons, err = p.remote.PersonsSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.groups, err = p.remote.GroupsSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.subscriptions, err = p.remote.SubscriptionsSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.transactions, err = p.remote.TransactionsSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.settlements, err = p.remote.SettlementsSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.reminders, err = p.remote.RemindersSince(gctx, account, since)
		return err
	})
	g.Go(func() (err error) {
		set.messages, err = p.remote.MessagesSince(gctx, account, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching changed rows: %w", err)
	}

	groupIDs := liveIDs(set.groups, func(g model.Group) (string, bool) { return g.ID, g.DeletedAt == nil })
	txnIDs := liveIDs(set.transactions, func(t model.Transaction) (string, bool) { return t.ID, t.DeletedAt == nil })
	subIDs := liveIDs(set.subscriptions, func(s model.Subscription) (string, bool) { return s.ID, s.DeletedAt == nil })

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		set.groupMembers, err = p.remote.GroupMembersFor(gctx, groupIDs)
		return err
	})
	g.Go(func() (err error) {
		set.splits, err = p.remote.SplitsFor(gctx, txnIDs)
		return err
	})
	g.Go(func() (err error) {
		set.payers, err = p.remote.PayersFor(gctx, txnIDs)
		return err
	})
	g.Go(func() (err error) {
		set.subChildren, err = p.remote.SubscriptionChildrenFor(gctx, subIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching child collections: %w", err)
	}

	return set, nil
}

// apply writes the fetched rows locally in dependency order. References to
// persons that have not arrived yet are set to nil and heal on a later cycle
// once the person exists.
func (p *puller) apply(ctx context.Context, tx LocalTx, set *pulledSet) (int, error) {
	applied := 0

	for i := range set.profiles {
		if err := tx.UpsertProfile(ctx, &set.profiles[i]); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.persons {
		person := &set.persons[i]
		if person.DeletedAt != nil {
			if err := tx.DeletePerson(ctx, person.ID); err != nil {
				return applied, err
			}
		} else if err := tx.UpsertPerson(ctx, person); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.groups {
		group := &set.groups[i]
		if group.DeletedAt != nil {
			if err := tx.DeleteGroup(ctx, group.ID); err != nil {
				return applied, err
			}
			applied++
			continue
		}
		if err := tx.UpsertGroup(ctx, group); err != nil {
			return applied, err
		}
		if err := tx.ReplaceGroupMembers(ctx, group.ID, set.groupMembers[group.ID]); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.subscriptions {
		sub := &set.subscriptions[i]
		if sub.DeletedAt != nil {
			if err := tx.DeleteSubscription(ctx, sub.ID); err != nil {
				return applied, err
			}
			applied++
			continue
		}
		sub.SubscriberIDs = set.subChildren.Subscribers[sub.ID]
		sub.Payments = set.subChildren.Payments[sub.ID]
		sub.Settlements = set.subChildren.Settlements[sub.ID]
		sub.Reminders = set.subChildren.Reminders[sub.ID]
		if err := resolveSubscriptionRefs(ctx, tx, sub); err != nil {
			return applied, err
		}
		if err := tx.UpsertSubscription(ctx, sub); err != nil {
			return applied, err
		}
		if err := tx.ReplaceSubscriptionChildren(ctx, sub); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.transactions {
		txn := &set.transactions[i]
		if txn.DeletedAt != nil {
			if err := tx.DeleteTransaction(ctx, txn.ID); err != nil {
				return applied, err
			}
			applied++
			continue
		}
		txn.Splits = set.splits[txn.ID]
		txn.Payers = set.payers[txn.ID]
		if err := resolveTransactionRefs(ctx, tx, txn); err != nil {
			return applied, err
		}
		if err := tx.UpsertTransaction(ctx, txn); err != nil {
			return applied, err
		}
		if err := tx.ReplaceSplits(ctx, txn.ID, txn.Splits); err != nil {
			return applied, err
		}
		if err := tx.ReplacePayers(ctx, txn.ID, txn.Payers); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.settlements {
		st := &set.settlements[i]
		if st.DeletedAt != nil {
			if err := tx.DeleteSettlement(ctx, st.ID); err != nil {
				return applied, err
			}
			applied++
			continue
		}
		var err error
		if st.FromPersonID, err = tx.ResolvePerson(ctx, st.FromPersonID); err != nil {
			return applied, err
		}
		if st.ToPersonID, err = tx.ResolvePerson(ctx, st.ToPersonID); err != nil {
			return applied, err
		}
		if err := tx.UpsertSettlement(ctx, st); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.reminders {
		rem := &set.reminders[i]
		if rem.DeletedAt != nil {
			// Reminders are owner-local: a remote tombstone never deletes
			// the local row.
			continue
		}
		var err error
		if rem.ToPersonID, err = tx.ResolvePerson(ctx, rem.ToPersonID); err != nil {
			return applied, err
		}
		if err := tx.UpsertReminder(ctx, rem); err != nil {
			return applied, err
		}
		applied++
	}

	for i := range set.messages {
		msg := &set.messages[i]
		if msg.DeletedAt != nil {
			if err := tx.DeleteMessage(ctx, msg.ID); err != nil {
				return applied, err
			}
		} else if err := tx.UpsertMessage(ctx, msg); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

func resolveTransactionRefs(ctx context.Context, tx LocalTx, txn *model.Transaction) error {
	var err error
	for i := range txn.Splits {
		if txn.Splits[i].PersonID, err = tx.ResolvePerson(ctx, txn.Splits[i].PersonID); err != nil {
			return err
		}
	}
	for i := range txn.Payers {
		if txn.Payers[i].PersonID, err = tx.ResolvePerson(ctx, txn.Payers[i].PersonID); err != nil {
			return err
		}
	}
	return nil
}

func resolveSubscriptionRefs(ctx context.Context, tx LocalTx, sub *model.Subscription) error {
	var err error
	for i := range sub.Payments {
		if sub.Payments[i].PersonID, err = tx.ResolvePerson(ctx, sub.Payments[i].PersonID); err != nil {
			return err
		}
	}
	for i := range sub.Settlements {
		s := &sub.Settlements[i]
		if s.FromPersonID, err = tx.ResolvePerson(ctx, s.FromPersonID); err != nil {
			return err
		}
		if s.ToPersonID, err = tx.ResolvePerson(ctx, s.ToPersonID); err != nil {
			return err
		}
	}
	for i := range sub.Reminders {
		if sub.Reminders[i].ToPersonID, err = tx.ResolvePerson(ctx, sub.Reminders[i].ToPersonID); err != nil {
			return err
		}
	}
	return nil
}

func liveIDs[T any](rows []T, id func(T) (string, bool)) []string {
	var ids []string
	for _, r := range rows {
		if v, ok := id(r); ok {
			ids = append(ids, v)
		}
	}
	return ids
}
