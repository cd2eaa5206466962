package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tallyapp/tallysync/internal/model"
)

// Broker handles cross-account sharing through the server's phantom
// participant model. The device never talks to other devices: it asks the
// server to create participant rows for records it pushed, claims phantoms
// addressed to its own phone hash, and materializes share bundles fetched
// during pull into local read replicas.
type Broker struct {
	api  ShareAPI
	auth Auth
	log  *slog.Logger

	// wg tracks fire-and-forget calls (share processing, status updates) so
	// tests can wait for them.
	wg stdsync.WaitGroup
}

// NewBroker creates a Broker.
func NewBroker(api ShareAPI, auth Auth, logger *slog.Logger) *Broker {
	return &Broker{api: api, auth: auth, log: logger}
}

// processOutgoing asks the server to create participants for the records
// pushed this cycle. Best effort and asynchronous: failures are logged and
// repaired by the next cycle's call, never failing the cycle itself.
func (b *Broker) processOutgoing(ctx context.Context, out pushOutcome) {
	kinds := []struct {
		kind model.ShareKind
		ids  []string
	}{
		{model.ShareTransaction, out.TransactionIDs},
		{model.ShareSettlement, out.SettlementIDs},
		{model.ShareSubscription, out.SubscriptionIDs},
		{model.ShareReminder, out.ReminderIDs},
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, k := range kinds {
			if len(k.ids) == 0 {
				continue
			}
			res, err := b.api.ProcessShares(ctx, k.kind, k.ids)
			if err != nil {
				b.log.Warn("share processing failed", "kind", k.kind, "error", err)
				continue
			}
			if res.ParticipantsCreated > 0 {
				b.log.Info("participants created",
					"kind", k.kind, "processed", res.Processed, "created", res.ParticipantsCreated)
			}
		}
	}()
}

// claim attaches the account to every phantom participant matching its phone
// hash. Called once per (re)authentication; shares created before the account
// existed become visible retroactively.
func (b *Broker) claim(ctx context.Context) (model.ClaimResult, error) {
	if b.auth.PhoneHash() == "" {
		return model.ClaimResult{}, nil
	}
	res, err := b.api.ClaimPendingShares(ctx)
	if err != nil {
		return model.ClaimResult{}, fmt.Errorf("claiming shares: %w", err)
	}
	if res.Total() > 0 {
		b.log.Info("claimed pending shares",
			"transactions", res.Transactions, "settlements", res.Settlements,
			"subscriptions", res.Subscriptions, "reminders", res.Reminders)
	}
	return res, nil
}

// sharedBatch holds one pull cycle's share bundles.
type sharedBatch struct {
	transactions  []model.SharedTransaction
	settlements   []model.SharedSettlement
	subscriptions []model.SharedSubscription
	reminders     []model.SharedReminder
}

// fetchShared downloads all bundle kinds in parallel.
func (b *Broker) fetchShared(ctx context.Context, since time.Time) (*sharedBatch, error) {
	batch := &sharedBatch{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		batch.transactions, err = b.api.SharedTransactions(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		batch.settlements, err = b.api.SharedSettlements(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		batch.subscriptions, err = b.api.SharedSubscriptions(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		batch.reminders, err = b.api.SharedReminders(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching share bundles: %w", err)
	}
	return batch, nil
}

// materialize converts the fetched bundles into local rows inside the pull
// transaction. The shared records keep the sharer's owner id, which keeps
// them out of this account's push snapshot: visibility is granted, ownership
// is not transferred. It returns the participant ids of freshly materialized
// pending shares, to be confirmed after commit.
func (b *Broker) materialize(ctx context.Context, tx LocalTx, account string, batch *sharedBatch) (int, []string, error) {
	applied := 0
	var pending []string

	track := func(p model.Participant) {
		if p.Status == model.ParticipantPending {
			pending = append(pending, p.ID)
		}
	}

	for _, bundle := range batch.transactions {
		txn := bundle.Transaction
		if txn.DeletedAt != nil {
			if err := tx.DeleteTransaction(ctx, txn.ID); err != nil {
				return applied, pending, err
			}
			applied++
			continue
		}
		persons, err := b.resolvePersons(ctx, tx, account, bundle.Persons)
		if err != nil {
			return applied, pending, err
		}
		for i := range txn.Splits {
			txn.Splits[i].PersonID = remap(persons, txn.Splits[i].PersonID)
		}
		for i := range txn.Payers {
			txn.Payers[i].PersonID = remap(persons, txn.Payers[i].PersonID)
		}
		txn.ShareStatus = bundle.Participant.Status
		if err := tx.UpsertTransaction(ctx, &txn); err != nil {
			return applied, pending, err
		}
		if err := tx.ReplaceSplits(ctx, txn.ID, txn.Splits); err != nil {
			return applied, pending, err
		}
		if err := tx.ReplacePayers(ctx, txn.ID, txn.Payers); err != nil {
			return applied, pending, err
		}
		track(bundle.Participant)
		applied++
	}

	for _, bundle := range batch.settlements {
		st := bundle.Settlement
		if st.DeletedAt != nil {
			if err := tx.DeleteSettlement(ctx, st.ID); err != nil {
				return applied, pending, err
			}
			applied++
			continue
		}
		persons, err := b.resolvePersons(ctx, tx, account, bundle.Persons)
		if err != nil {
			return applied, pending, err
		}
		st.FromPersonID = remap(persons, st.FromPersonID)
		st.ToPersonID = remap(persons, st.ToPersonID)
		st.ShareStatus = bundle.Participant.Status
		if err := tx.UpsertSettlement(ctx, &st); err != nil {
			return applied, pending, err
		}
		track(bundle.Participant)
		applied++
	}

	for _, bundle := range batch.subscriptions {
		sub := bundle.Subscription
		if sub.DeletedAt != nil {
			if err := tx.DeleteSubscription(ctx, sub.ID); err != nil {
				return applied, pending, err
			}
			applied++
			continue
		}
		persons, err := b.resolvePersons(ctx, tx, account, bundle.Persons)
		if err != nil {
			return applied, pending, err
		}
		for i, id := range sub.SubscriberIDs {
			if mapped, ok := persons[id]; ok {
				sub.SubscriberIDs[i] = mapped
			}
		}
		for i := range sub.Payments {
			sub.Payments[i].PersonID = remap(persons, sub.Payments[i].PersonID)
		}
		for i := range sub.Settlements {
			sub.Settlements[i].FromPersonID = remap(persons, sub.Settlements[i].FromPersonID)
			sub.Settlements[i].ToPersonID = remap(persons, sub.Settlements[i].ToPersonID)
		}
		for i := range sub.Reminders {
			sub.Reminders[i].ToPersonID = remap(persons, sub.Reminders[i].ToPersonID)
		}
		sub.ShareStatus = bundle.Participant.Status
		if err := tx.UpsertSubscription(ctx, &sub); err != nil {
			return applied, pending, err
		}
		if err := tx.ReplaceSubscriptionChildren(ctx, &sub); err != nil {
			return applied, pending, err
		}
		track(bundle.Participant)
		applied++
	}

	for _, bundle := range batch.reminders {
		rem := bundle.Reminder
		if rem.DeletedAt != nil {
			if err := tx.DeleteReminder(ctx, rem.ID); err != nil {
				return applied, pending, err
			}
			applied++
			continue
		}
		persons, err := b.resolvePersons(ctx, tx, account, bundle.Persons)
		if err != nil {
			return applied, pending, err
		}
		rem.ToPersonID = remap(persons, rem.ToPersonID)
		rem.ShareStatus = bundle.Participant.Status
		if err := tx.UpsertReminder(ctx, &rem); err != nil {
			return applied, pending, err
		}
		track(bundle.Participant)
		applied++
	}

	return applied, pending, nil
}

// resolvePersons maps the sharer's Person rows to this account's contacts:
// the receiving user maps to their own self record, a contact with the same
// phone hash maps to that contact, anyone else gets a local shadow copy.
func (b *Broker) resolvePersons(ctx context.Context, tx LocalTx, account string, persons []model.Person) (map[string]string, error) {
	mapped := make(map[string]string, len(persons))
	for _, p := range persons {
		if p.ProfileID != nil && *p.ProfileID == account {
			self, err := tx.SelfPerson(ctx, account)
			if err != nil {
				return nil, err
			}
			if self != nil {
				mapped[p.ID] = self.ID
				continue
			}
		}

		match, err := tx.PersonByPhoneHash(ctx, account, p.PhoneHash)
		if err != nil {
			return nil, err
		}
		if match != nil {
			mapped[p.ID] = match.ID
			continue
		}

		shadow, err := tx.CreateShadowPerson(ctx, account, p)
		if err != nil {
			return nil, err
		}
		mapped[p.ID] = shadow.ID
	}
	return mapped, nil
}

// acceptAsync confirms freshly materialized shares, moving their participant
// rows pending → accepted. Fire and forget: a failed update stays pending and
// is retried when the bundle is fetched again.
func (b *Broker) acceptAsync(participantIDs []string) {
	if len(participantIDs) == 0 {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, id := range participantIDs {
			if err := b.api.SetParticipantStatus(ctx, id, model.ParticipantAccepted); err != nil {
				b.log.Warn("participant status update failed", "participant", id, "error", err)
			}
		}
	}()
}

// remap replaces a bundle-local person reference with the resolved local id,
// leaving references outside the bundle untouched.
func remap(persons map[string]string, id *string) *string {
	if id == nil {
		return nil
	}
	if mapped, ok := persons[*id]; ok {
		return &mapped
	}
	return id
}
