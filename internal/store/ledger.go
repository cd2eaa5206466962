package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tallysync/internal/model"
)

// --- Transactions ------------------------------------------------------------

const transactionCols = `id, owner_id, title, amount, currency, date, notes, group_id, share_status, updated_at, deleted_at`

func scanTransaction(sc scanner) (model.Transaction, error) {
	var t model.Transaction
	var date, updated string
	var groupID, deleted sql.NullString
	var status string
	if err := sc.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Amount, &t.Currency,
		&date, &t.Notes, &groupID, &status, &updated, &deleted); err != nil {
		return t, err
	}
	t.Date, _ = parseTime(date)
	t.GroupID = strPtr(groupID)
	t.ShareStatus = model.ParticipantStatus(status)
	t.UpdatedAt, _ = parseTime(updated)
	t.DeletedAt = parseTimePtr(deleted)
	return t, nil
}

func upsertTransaction(ctx context.Context, q querier, t *model.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, title, amount, currency, date, notes, group_id, share_status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id     = excluded.owner_id,
		    title        = excluded.title,
		    amount       = excluded.amount,
		    currency     = excluded.currency,
		    date         = excluded.date,
		    notes        = excluded.notes,
		    group_id     = excluded.group_id,
		    share_status = excluded.share_status,
		    updated_at   = excluded.updated_at,
		    deleted_at   = excluded.deleted_at`,
		t.ID, t.OwnerID, t.Title, t.Amount, t.Currency, formatTime(t.Date), t.Notes,
		nullStr(t.GroupID), string(t.ShareStatus), formatTime(t.UpdatedAt), formatTimePtr(t.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting transaction %s: %w", t.ID, err)
	}
	return nil
}

func replaceSplits(ctx context.Context, q querier, txnID string, splits []model.Split) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM splits WHERE transaction_id = ?`, txnID); err != nil {
		return fmt.Errorf("clearing splits of %s: %w", txnID, err)
	}
	for i := range splits {
		sp := &splits[i]
		if sp.ID == "" {
			sp.ID = uuid.New().String()
		}
		sp.TransactionID = txnID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO splits (id, transaction_id, person_id, amount) VALUES (?, ?, ?, ?)`,
			sp.ID, txnID, nullStr(sp.PersonID), sp.Amount); err != nil {
			return fmt.Errorf("inserting split of %s: %w", txnID, err)
		}
	}
	return nil
}

func replacePayers(ctx context.Context, q querier, txnID string, payers []model.Payer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM payers WHERE transaction_id = ?`, txnID); err != nil {
		return fmt.Errorf("clearing payers of %s: %w", txnID, err)
	}
	for i := range payers {
		p := &payers[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.TransactionID = txnID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO payers (id, transaction_id, person_id, amount) VALUES (?, ?, ?, ?)`,
			p.ID, txnID, nullStr(p.PersonID), p.Amount); err != nil {
			return fmt.Errorf("inserting payer of %s: %w", txnID, err)
		}
	}
	return nil
}

func splitsFor(ctx context.Context, q querier, txnID string) ([]model.Split, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, transaction_id, person_id, amount FROM splits WHERE transaction_id = ? ORDER BY id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("querying splits of %s: %w", txnID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Split
	for rows.Next() {
		var sp model.Split
		var personID sql.NullString
		if err := rows.Scan(&sp.ID, &sp.TransactionID, &personID, &sp.Amount); err != nil {
			return nil, fmt.Errorf("scanning split: %w", err)
		}
		sp.PersonID = strPtr(personID)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func payersFor(ctx context.Context, q querier, txnID string) ([]model.Payer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, transaction_id, person_id, amount FROM payers WHERE transaction_id = ? ORDER BY id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("querying payers of %s: %w", txnID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Payer
	for rows.Next() {
		var p model.Payer
		var personID sql.NullString
		if err := rows.Scan(&p.ID, &p.TransactionID, &personID, &p.Amount); err != nil {
			return nil, fmt.Errorf("scanning payer: %w", err)
		}
		p.PersonID = strPtr(personID)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveTransaction creates or updates an expense and fully replaces its splits
// and payers.
func (s *Store) SaveTransaction(ctx context.Context, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.UpdatedAt = time.Now().UTC()
	err := s.Apply(ctx, func(tx *Tx) error {
		if err := upsertTransaction(ctx, tx.tx, t); err != nil {
			return err
		}
		if err := replaceSplits(ctx, tx.tx, t.ID, t.Splits); err != nil {
			return err
		}
		return replacePayers(ctx, tx.tx, t.ID, t.Payers)
	})
	if err != nil {
		return err
	}
	s.notify("transactions", "upsert")
	return nil
}

// DeleteTransaction tombstones an expense. Its splits and payers stay in
// place until the tombstone round-trips; the pull apply removes them.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "transactions", id); err != nil {
		return err
	}
	s.notify("transactions", "delete")
	return nil
}

func getTransaction(ctx context.Context, q querier, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning transaction row: %w", err)
	}
	if t.Splits, err = splitsFor(ctx, q, t.ID); err != nil {
		return nil, err
	}
	if t.Payers, err = payersFor(ctx, q, t.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

// TransactionByID returns the expense with its splits and payers, or
// (nil, nil) if absent.
func (s *Store) TransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

func listTransactions(ctx context.Context, q querier, owner string) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Splits, err = splitsFor(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
		if out[i].Payers, err = payersFor(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListTransactions returns all of owner's expenses with children, tombstoned
// rows included.
func (s *Store) ListTransactions(ctx context.Context, owner string) ([]model.Transaction, error) {
	return listTransactions(ctx, s.db, owner)
}

// --- Settlements -------------------------------------------------------------

const settlementCols = `id, owner_id, from_person_id, to_person_id, amount, currency, date, notes, share_status, updated_at, deleted_at`

func scanSettlement(sc scanner) (model.Settlement, error) {
	var st model.Settlement
	var from, to, deleted sql.NullString
	var date, updated, status string
	if err := sc.Scan(&st.ID, &st.OwnerID, &from, &to, &st.Amount, &st.Currency,
		&date, &st.Notes, &status, &updated, &deleted); err != nil {
		return st, err
	}
	st.FromPersonID = strPtr(from)
	st.ToPersonID = strPtr(to)
	st.Date, _ = parseTime(date)
	st.ShareStatus = model.ParticipantStatus(status)
	st.UpdatedAt, _ = parseTime(updated)
	st.DeletedAt = parseTimePtr(deleted)
	return st, nil
}

func upsertSettlement(ctx context.Context, q querier, st *model.Settlement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settlements (id, owner_id, from_person_id, to_person_id, amount, currency, date, notes, share_status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id       = excluded.owner_id,
		    from_person_id = excluded.from_person_id,
		    to_person_id   = excluded.to_person_id,
		    amount         = excluded.amount,
		    currency       = excluded.currency,
		    date           = excluded.date,
		    notes          = excluded.notes,
		    share_status   = excluded.share_status,
		    updated_at     = excluded.updated_at,
		    deleted_at     = excluded.deleted_at`,
		st.ID, st.OwnerID, nullStr(st.FromPersonID), nullStr(st.ToPersonID), st.Amount, st.Currency,
		formatTime(st.Date), st.Notes, string(st.ShareStatus), formatTime(st.UpdatedAt), formatTimePtr(st.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting settlement %s: %w", st.ID, err)
	}
	return nil
}

// SaveSettlement creates or updates a settlement. Amount must be positive;
// direction encodes payer and payee.
func (s *Store) SaveSettlement(ctx context.Context, st *model.Settlement) error {
	if st.Amount <= 0 {
		return fmt.Errorf("settlement amount must be positive, got %v", st.Amount)
	}
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	st.UpdatedAt = time.Now().UTC()
	if err := upsertSettlement(ctx, s.db, st); err != nil {
		return err
	}
	s.notify("settlements", "upsert")
	return nil
}

// DeleteSettlement tombstones a settlement.
func (s *Store) DeleteSettlement(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "settlements", id); err != nil {
		return err
	}
	s.notify("settlements", "delete")
	return nil
}

func listSettlements(ctx context.Context, q querier, owner string) ([]model.Settlement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+settlementCols+` FROM settlements WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying settlements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning settlement row: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// --- Reminders ---------------------------------------------------------------

const reminderCols = `id, owner_id, to_person_id, amount, currency, message, remind_at, share_status, updated_at, deleted_at`

func scanReminder(sc scanner) (model.Reminder, error) {
	var r model.Reminder
	var to, deleted sql.NullString
	var remindAt, updated, status string
	if err := sc.Scan(&r.ID, &r.OwnerID, &to, &r.Amount, &r.Currency,
		&r.Message, &remindAt, &status, &updated, &deleted); err != nil {
		return r, err
	}
	r.ToPersonID = strPtr(to)
	r.RemindAt, _ = parseTime(remindAt)
	r.ShareStatus = model.ParticipantStatus(status)
	r.UpdatedAt, _ = parseTime(updated)
	r.DeletedAt = parseTimePtr(deleted)
	return r, nil
}

func upsertReminder(ctx context.Context, q querier, r *model.Reminder) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reminders (id, owner_id, to_person_id, amount, currency, message, remind_at, share_status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id     = excluded.owner_id,
		    to_person_id = excluded.to_person_id,
		    amount       = excluded.amount,
		    currency     = excluded.currency,
		    message      = excluded.message,
		    remind_at    = excluded.remind_at,
		    share_status = excluded.share_status,
		    updated_at   = excluded.updated_at,
		    deleted_at   = excluded.deleted_at`,
		r.ID, r.OwnerID, nullStr(r.ToPersonID), r.Amount, r.Currency, r.Message,
		formatTime(r.RemindAt), string(r.ShareStatus), formatTime(r.UpdatedAt), formatTimePtr(r.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting reminder %s: %w", r.ID, err)
	}
	return nil
}

// SaveReminder creates or updates a reminder.
func (s *Store) SaveReminder(ctx context.Context, r *model.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.UpdatedAt = time.Now().UTC()
	if err := upsertReminder(ctx, s.db, r); err != nil {
		return err
	}
	s.notify("reminders", "upsert")
	return nil
}

// DeleteReminder tombstones a reminder.
func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "reminders", id); err != nil {
		return err
	}
	s.notify("reminders", "delete")
	return nil
}

func listReminders(ctx context.Context, q querier, owner string) ([]model.Reminder, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reminder row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Messages ----------------------------------------------------------------

const messageCols = `id, owner_id, body, person_id, group_id, subscription_id, transaction_id, updated_at, deleted_at`

func scanMessage(sc scanner) (model.Message, error) {
	var m model.Message
	var person, group, sub, txn, deleted sql.NullString
	var updated string
	if err := sc.Scan(&m.ID, &m.OwnerID, &m.Body, &person, &group, &sub, &txn, &updated, &deleted); err != nil {
		return m, err
	}
	m.PersonID = strPtr(person)
	m.GroupID = strPtr(group)
	m.SubscriptionID = strPtr(sub)
	m.TransactionID = strPtr(txn)
	m.UpdatedAt, _ = parseTime(updated)
	m.DeletedAt = parseTimePtr(deleted)
	return m, nil
}

func upsertMessage(ctx context.Context, q querier, m *model.Message) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO messages (id, owner_id, body, person_id, group_id, subscription_id, transaction_id, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id        = excluded.owner_id,
		    body            = excluded.body,
		    person_id       = excluded.person_id,
		    group_id        = excluded.group_id,
		    subscription_id = excluded.subscription_id,
		    transaction_id  = excluded.transaction_id,
		    updated_at      = excluded.updated_at,
		    deleted_at      = excluded.deleted_at`,
		m.ID, m.OwnerID, m.Body, nullStr(m.PersonID), nullStr(m.GroupID),
		nullStr(m.SubscriptionID), nullStr(m.TransactionID), formatTime(m.UpdatedAt), formatTimePtr(m.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting message %s: %w", m.ID, err)
	}
	return nil
}

// SaveMessage creates or updates a note. At most one of the four reference
// fields may be set.
func (s *Store) SaveMessage(ctx context.Context, m *model.Message) error {
	refs := 0
	for _, p := range []*string{m.PersonID, m.GroupID, m.SubscriptionID, m.TransactionID} {
		if p != nil {
			refs++
		}
	}
	if refs > 1 {
		return fmt.Errorf("message %s references %d records, at most one allowed", m.ID, refs)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.UpdatedAt = time.Now().UTC()
	if err := upsertMessage(ctx, s.db, m); err != nil {
		return err
	}
	s.notify("messages", "upsert")
	return nil
}

// DeleteMessage tombstones a note.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "messages", id); err != nil {
		return err
	}
	s.notify("messages", "delete")
	return nil
}

func listMessages(ctx context.Context, q querier, owner string) ([]model.Message, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
