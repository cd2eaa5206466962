package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyapp/tallysync/internal/model"
)

// Share processing lives server-side: the device only invokes functions. The
// functions inspect the referenced Person rows, create Participant rows keyed
// by phone hash (idempotent, unique on record + hash), and assemble share
// bundles for receiving devices.

// processFn maps each shared record kind to its server-side function.
var processFn = map[model.ShareKind]string{
	model.ShareTransaction:  "process_transaction_shares",
	model.ShareSettlement:   "process_settlement_shares",
	model.ShareSubscription: "process_subscription_shares",
	model.ShareReminder:     "process_reminder_shares",
}

type processArgs struct {
	IDs []string `json:"ids"`
}

type processReply struct {
	Processed           int `json:"processed"`
	ParticipantsCreated int `json:"participants_created"`
}

// ProcessShares asks the server to create phantom participants for the given
// records of one kind. Safe to re-invoke with the same ids.
func (c *Client) ProcessShares(ctx context.Context, kind model.ShareKind, ids []string) (model.ShareProcessResult, error) {
	fn, ok := processFn[kind]
	if !ok {
		return model.ShareProcessResult{}, fmt.Errorf("unknown share kind %q", kind)
	}
	if len(ids) == 0 {
		return model.ShareProcessResult{}, nil
	}

	var reply processReply
	err := Retry(ctx, defaultMaxAttempts, func() error {
		reply = processReply{}
		return c.rpc(ctx, fn, processArgs{IDs: ids}, &reply)
	})
	if err != nil {
		return model.ShareProcessResult{}, fmt.Errorf("processing %s shares: %w", kind, err)
	}
	return model.ShareProcessResult{
		Processed:           reply.Processed,
		ParticipantsCreated: reply.ParticipantsCreated,
	}, nil
}

type claimReply struct {
	Transactions  int `json:"claimed_transactions"`
	Settlements   int `json:"claimed_settlements"`
	Subscriptions int `json:"claimed_subscriptions"`
	Reminders     int `json:"claimed_reminders"`
}

// ClaimPendingShares attaches the calling account to every phantom
// participant matching its phone hash, across all owners. The hash is taken
// from the bearer token server-side.
func (c *Client) ClaimPendingShares(ctx context.Context) (model.ClaimResult, error) {
	var reply claimReply
	err := Retry(ctx, defaultMaxAttempts, func() error {
		reply = claimReply{}
		return c.rpc(ctx, "claim_pending_shares", struct{}{}, &reply)
	})
	if err != nil {
		return model.ClaimResult{}, fmt.Errorf("claiming pending shares: %w", err)
	}
	return model.ClaimResult{
		Transactions:  reply.Transactions,
		Settlements:   reply.Settlements,
		Subscriptions: reply.Subscriptions,
		Reminders:     reply.Reminders,
	}, nil
}

type sharedSinceArgs struct {
	Since *time.Time `json:"since"`
}

func sinceArg(since time.Time) sharedSinceArgs {
	if since.IsZero() {
		return sharedSinceArgs{}
	}
	t := since.UTC()
	return sharedSinceArgs{Since: &t}
}

type sharedTransactionBundle struct {
	Participation participantRow `json:"participation"`
	Record        transactionRow `json:"record"`
	Splits        []splitRow     `json:"splits"`
	Payers        []payerRow     `json:"payers"`
	Persons       []personRow    `json:"persons"`
}

// SharedTransactions fetches transaction share bundles addressed to the
// calling account and touched at or after since.
func (c *Client) SharedTransactions(ctx context.Context, since time.Time) ([]model.SharedTransaction, error) {
	var bundles []sharedTransactionBundle
	err := Retry(ctx, defaultMaxAttempts, func() error {
		bundles = nil
		return c.rpc(ctx, "fetch_shared_transactions", sinceArg(since), &bundles)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching shared transactions: %w", err)
	}

	out := make([]model.SharedTransaction, len(bundles))
	for i, b := range bundles {
		txn := rowToTransaction(b.Record)
		for _, s := range b.Splits {
			txn.Splits = append(txn.Splits, rowToSplit(s))
		}
		for _, p := range b.Payers {
			txn.Payers = append(txn.Payers, rowToPayer(p))
		}
		out[i] = model.SharedTransaction{
			Participant: rowToParticipant(b.Participation),
			Transaction: txn,
			Persons:     personsFromRows(b.Persons),
		}
	}
	return out, nil
}

type sharedSettlementBundle struct {
	Participation participantRow `json:"participation"`
	Record        settlementRow  `json:"record"`
	Persons       []personRow    `json:"persons"`
}

// SharedSettlements fetches settlement share bundles.
func (c *Client) SharedSettlements(ctx context.Context, since time.Time) ([]model.SharedSettlement, error) {
	var bundles []sharedSettlementBundle
	err := Retry(ctx, defaultMaxAttempts, func() error {
		bundles = nil
		return c.rpc(ctx, "fetch_shared_settlements", sinceArg(since), &bundles)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching shared settlements: %w", err)
	}

	out := make([]model.SharedSettlement, len(bundles))
	for i, b := range bundles {
		out[i] = model.SharedSettlement{
			Participant: rowToParticipant(b.Participation),
			Settlement:  rowToSettlement(b.Record),
			Persons:     personsFromRows(b.Persons),
		}
	}
	return out, nil
}

type sharedSubscriptionBundle struct {
	Participation participantRow     `json:"participation"`
	Record        subscriptionRow    `json:"record"`
	Subscribers   []subscriberRow    `json:"subscribers"`
	Payments      []subPaymentRow    `json:"payments"`
	Settlements   []subSettlementRow `json:"settlements"`
	Reminders     []subReminderRow   `json:"reminders"`
	Persons       []personRow        `json:"persons"`
}

// SharedSubscriptions fetches subscription share bundles.
func (c *Client) SharedSubscriptions(ctx context.Context, since time.Time) ([]model.SharedSubscription, error) {
	var bundles []sharedSubscriptionBundle
	err := Retry(ctx, defaultMaxAttempts, func() error {
		bundles = nil
		return c.rpc(ctx, "fetch_shared_subscriptions", sinceArg(since), &bundles)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching shared subscriptions: %w", err)
	}

	out := make([]model.SharedSubscription, len(bundles))
	for i, b := range bundles {
		sub := rowToSubscription(b.Record)
		for _, s := range b.Subscribers {
			sub.SubscriberIDs = append(sub.SubscriberIDs, s.PersonID)
		}
		for _, p := range b.Payments {
			sub.Payments = append(sub.Payments, rowToSubPayment(p))
		}
		for _, s := range b.Settlements {
			sub.Settlements = append(sub.Settlements, rowToSubSettlement(s))
		}
		for _, r := range b.Reminders {
			sub.Reminders = append(sub.Reminders, rowToSubReminder(r))
		}
		out[i] = model.SharedSubscription{
			Participant:  rowToParticipant(b.Participation),
			Subscription: sub,
			Persons:      personsFromRows(b.Persons),
		}
	}
	return out, nil
}

type sharedReminderBundle struct {
	Participation participantRow `json:"participation"`
	Record        reminderRow    `json:"record"`
	Persons       []personRow    `json:"persons"`
}

// SharedReminders fetches reminder share bundles.
func (c *Client) SharedReminders(ctx context.Context, since time.Time) ([]model.SharedReminder, error) {
	var bundles []sharedReminderBundle
	err := Retry(ctx, defaultMaxAttempts, func() error {
		bundles = nil
		return c.rpc(ctx, "fetch_shared_reminders", sinceArg(since), &bundles)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching shared reminders: %w", err)
	}

	out := make([]model.SharedReminder, len(bundles))
	for i, b := range bundles {
		out[i] = model.SharedReminder{
			Participant: rowToParticipant(b.Participation),
			Reminder:    rowToReminder(b.Record),
			Persons:     personsFromRows(b.Persons),
		}
	}
	return out, nil
}

// SetParticipantStatus updates one participant row, marking a share accepted
// on the receiving side.
func (c *Client) SetParticipantStatus(ctx context.Context, participantID string, status model.ParticipantStatus) error {
	fields := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.updateRows(ctx, "participants", where().eq("id", participantID).values(), fields)
	})
	if err != nil {
		return fmt.Errorf("updating participant %s: %w", participantID, err)
	}
	return nil
}

func personsFromRows(rows []personRow) []model.Person {
	persons := make([]model.Person, len(rows))
	for i, r := range rows {
		persons[i] = rowToPerson(r)
	}
	return persons
}
