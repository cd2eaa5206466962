package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tallysync/internal/model"
)

const subscriptionCols = `id, owner_id, name, amount, currency, cycle, next_due, group_id, share_status, updated_at, deleted_at`

func scanSubscription(sc scanner) (model.Subscription, error) {
	var sub model.Subscription
	var nextDue, updated, cycle, status string
	var groupID, deleted sql.NullString
	if err := sc.Scan(&sub.ID, &sub.OwnerID, &sub.Name, &sub.Amount, &sub.Currency,
		&cycle, &nextDue, &groupID, &status, &updated, &deleted); err != nil {
		return sub, err
	}
	sub.Cycle = model.BillingCycle(cycle)
	sub.NextDue, _ = parseTime(nextDue)
	sub.GroupID = strPtr(groupID)
	sub.ShareStatus = model.ParticipantStatus(status)
	sub.UpdatedAt, _ = parseTime(updated)
	sub.DeletedAt = parseTimePtr(deleted)
	return sub, nil
}

func upsertSubscription(ctx context.Context, q querier, sub *model.Subscription) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO subscriptions (id, owner_id, name, amount, currency, cycle, next_due, group_id, share_status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id     = excluded.owner_id,
		    name         = excluded.name,
		    amount       = excluded.amount,
		    currency     = excluded.currency,
		    cycle        = excluded.cycle,
		    next_due     = excluded.next_due,
		    group_id     = excluded.group_id,
		    share_status = excluded.share_status,
		    updated_at   = excluded.updated_at,
		    deleted_at   = excluded.deleted_at`,
		sub.ID, sub.OwnerID, sub.Name, sub.Amount, sub.Currency, string(sub.Cycle),
		formatTime(sub.NextDue), nullStr(sub.GroupID), string(sub.ShareStatus),
		formatTime(sub.UpdatedAt), formatTimePtr(sub.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting subscription %s: %w", sub.ID, err)
	}
	return nil
}

func replaceSubscribers(ctx context.Context, q querier, subID string, personIDs []string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM subscription_subscribers WHERE subscription_id = ?`, subID); err != nil {
		return fmt.Errorf("clearing subscribers of %s: %w", subID, err)
	}
	for _, pid := range personIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO subscription_subscribers (subscription_id, person_id) VALUES (?, ?)`,
			subID, pid); err != nil {
			return fmt.Errorf("inserting subscriber of %s: %w", subID, err)
		}
	}
	return nil
}

func subscribersFor(ctx context.Context, q querier, subID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT person_id FROM subscription_subscribers WHERE subscription_id = ? ORDER BY person_id`, subID)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers of %s: %w", subID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		out = append(out, pid)
	}
	return out, rows.Err()
}

func replaceSubscriptionPayments(ctx context.Context, q querier, subID string, payments []model.SubscriptionPayment) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM subscription_payments WHERE subscription_id = ?`, subID); err != nil {
		return fmt.Errorf("clearing payments of %s: %w", subID, err)
	}
	for i := range payments {
		p := &payments[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.SubscriptionID = subID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO subscription_payments (id, subscription_id, person_id, amount, paid_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, subID, nullStr(p.PersonID), p.Amount, formatTime(p.PaidAt)); err != nil {
			return fmt.Errorf("inserting payment of %s: %w", subID, err)
		}
	}
	return nil
}

func replaceSubscriptionSettlements(ctx context.Context, q querier, subID string, settlements []model.SubscriptionSettlement) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM subscription_settlements WHERE subscription_id = ?`, subID); err != nil {
		return fmt.Errorf("clearing settlements of %s: %w", subID, err)
	}
	for i := range settlements {
		st := &settlements[i]
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		st.SubscriptionID = subID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO subscription_settlements (id, subscription_id, from_person_id, to_person_id, amount, date) VALUES (?, ?, ?, ?, ?, ?)`,
			st.ID, subID, nullStr(st.FromPersonID), nullStr(st.ToPersonID), st.Amount, formatTime(st.Date)); err != nil {
			return fmt.Errorf("inserting settlement of %s: %w", subID, err)
		}
	}
	return nil
}

func replaceSubscriptionReminders(ctx context.Context, q querier, subID string, reminders []model.SubscriptionReminder) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM subscription_reminders WHERE subscription_id = ?`, subID); err != nil {
		return fmt.Errorf("clearing reminders of %s: %w", subID, err)
	}
	for i := range reminders {
		r := &reminders[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.SubscriptionID = subID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO subscription_reminders (id, subscription_id, to_person_id, message, remind_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, subID, nullStr(r.ToPersonID), r.Message, formatTime(r.RemindAt)); err != nil {
			return fmt.Errorf("inserting reminder of %s: %w", subID, err)
		}
	}
	return nil
}

func loadSubscriptionChildren(ctx context.Context, q querier, sub *model.Subscription) error {
	var err error
	if sub.SubscriberIDs, err = subscribersFor(ctx, q, sub.ID); err != nil {
		return err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, subscription_id, person_id, amount, paid_at FROM subscription_payments WHERE subscription_id = ? ORDER BY id`, sub.ID)
	if err != nil {
		return fmt.Errorf("querying payments of %s: %w", sub.ID, err)
	}
	for rows.Next() {
		var p model.SubscriptionPayment
		var personID sql.NullString
		var paidAt string
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &personID, &p.Amount, &paidAt); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning payment: %w", err)
		}
		p.PersonID = strPtr(personID)
		p.PaidAt, _ = parseTime(paidAt)
		sub.Payments = append(sub.Payments, p)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT id, subscription_id, from_person_id, to_person_id, amount, date FROM subscription_settlements WHERE subscription_id = ? ORDER BY id`, sub.ID)
	if err != nil {
		return fmt.Errorf("querying settlements of %s: %w", sub.ID, err)
	}
	for rows.Next() {
		var st model.SubscriptionSettlement
		var from, to sql.NullString
		var date string
		if err := rows.Scan(&st.ID, &st.SubscriptionID, &from, &to, &st.Amount, &date); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning settlement: %w", err)
		}
		st.FromPersonID = strPtr(from)
		st.ToPersonID = strPtr(to)
		st.Date, _ = parseTime(date)
		sub.Settlements = append(sub.Settlements, st)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT id, subscription_id, to_person_id, message, remind_at FROM subscription_reminders WHERE subscription_id = ? ORDER BY id`, sub.ID)
	if err != nil {
		return fmt.Errorf("querying reminders of %s: %w", sub.ID, err)
	}
	for rows.Next() {
		var r model.SubscriptionReminder
		var to sql.NullString
		var remindAt string
		if err := rows.Scan(&r.ID, &r.SubscriptionID, &to, &r.Message, &remindAt); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning reminder: %w", err)
		}
		r.ToPersonID = strPtr(to)
		r.RemindAt, _ = parseTime(remindAt)
		sub.Reminders = append(sub.Reminders, r)
	}
	_ = rows.Close()
	return rows.Err()
}

func writeSubscriptionChildren(ctx context.Context, q querier, sub *model.Subscription) error {
	if err := replaceSubscribers(ctx, q, sub.ID, sub.SubscriberIDs); err != nil {
		return err
	}
	if err := replaceSubscriptionPayments(ctx, q, sub.ID, sub.Payments); err != nil {
		return err
	}
	if err := replaceSubscriptionSettlements(ctx, q, sub.ID, sub.Settlements); err != nil {
		return err
	}
	return replaceSubscriptionReminders(ctx, q, sub.ID, sub.Reminders)
}

// SaveSubscription creates or updates a recurring cost and fully replaces its
// subscriber list and all three child collections.
func (s *Store) SaveSubscription(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.Cycle == "" {
		sub.Cycle = model.CycleMonthly
	}
	sub.UpdatedAt = time.Now().UTC()
	err := s.Apply(ctx, func(tx *Tx) error {
		if err := upsertSubscription(ctx, tx.tx, sub); err != nil {
			return err
		}
		return writeSubscriptionChildren(ctx, tx.tx, sub)
	})
	if err != nil {
		return err
	}
	s.notify("subscriptions", "upsert")
	return nil
}

// DeleteSubscription tombstones a recurring cost.
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "subscriptions", id); err != nil {
		return err
	}
	s.notify("subscriptions", "delete")
	return nil
}

// SubscriptionByID returns the subscription with all children, or (nil, nil)
// if absent.
func (s *Store) SubscriptionByID(ctx context.Context, id string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning subscription row: %w", err)
	}
	if err := loadSubscriptionChildren(ctx, s.db, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func listSubscriptions(ctx context.Context, q querier, owner string) ([]model.Subscription, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := loadSubscriptionChildren(ctx, q, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
