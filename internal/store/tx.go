package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tallyapp/tallysync/internal/model"
)

// Tx is the write surface handed to the pull pipeline's apply phase. All
// methods operate inside the single transaction opened by [Store.Apply];
// remote payloads are written unconditionally (remote wins) and deletions
// cascade through explicit routines rather than SQL constraints.
type Tx struct {
	tx *sql.Tx
}

// --- Unconditional upserts (remote wins) ------------------------------------

// UpsertProfile overwrites the local profile row with the remote payload.
func (t *Tx) UpsertProfile(ctx context.Context, p *model.Profile) error {
	return upsertProfile(ctx, t.tx, p)
}

// UpsertPerson overwrites the local person row with the remote payload.
func (t *Tx) UpsertPerson(ctx context.Context, p *model.Person) error {
	return upsertPerson(ctx, t.tx, p)
}

// UpsertGroup overwrites the group row; membership is written separately via
// [Tx.ReplaceGroupMembers].
func (t *Tx) UpsertGroup(ctx context.Context, g *model.Group) error {
	return upsertGroup(ctx, t.tx, g)
}

// UpsertTransaction overwrites the transaction row; splits and payers are
// written separately via [Tx.ReplaceSplits] and [Tx.ReplacePayers].
func (t *Tx) UpsertTransaction(ctx context.Context, txn *model.Transaction) error {
	return upsertTransaction(ctx, t.tx, txn)
}

// UpsertSettlement overwrites the settlement row.
func (t *Tx) UpsertSettlement(ctx context.Context, st *model.Settlement) error {
	return upsertSettlement(ctx, t.tx, st)
}

// UpsertReminder overwrites the reminder row.
func (t *Tx) UpsertReminder(ctx context.Context, r *model.Reminder) error {
	return upsertReminder(ctx, t.tx, r)
}

// UpsertSubscription overwrites the subscription row; children are written
// separately via [Tx.ReplaceSubscriptionChildren].
func (t *Tx) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	return upsertSubscription(ctx, t.tx, sub)
}

// UpsertMessage overwrites the message row.
func (t *Tx) UpsertMessage(ctx context.Context, m *model.Message) error {
	return upsertMessage(ctx, t.tx, m)
}

// --- Replace-as-set child writes ---------------------------------------------

// ReplaceGroupMembers deletes all membership rows of the group and re-inserts
// from the payload.
func (t *Tx) ReplaceGroupMembers(ctx context.Context, groupID string, memberIDs []string) error {
	return replaceGroupMembers(ctx, t.tx, groupID, memberIDs)
}

// ReplaceSplits deletes all splits of the transaction and re-inserts from the
// payload.
func (t *Tx) ReplaceSplits(ctx context.Context, txnID string, splits []model.Split) error {
	return replaceSplits(ctx, t.tx, txnID, splits)
}

// ReplacePayers deletes all payers of the transaction and re-inserts from the
// payload.
func (t *Tx) ReplacePayers(ctx context.Context, txnID string, payers []model.Payer) error {
	return replacePayers(ctx, t.tx, txnID, payers)
}

// ReplaceSubscriptionChildren replaces the subscriber list and all three
// child collections together with their parent.
func (t *Tx) ReplaceSubscriptionChildren(ctx context.Context, sub *model.Subscription) error {
	return writeSubscriptionChildren(ctx, t.tx, sub)
}

// --- Cascade deletes ---------------------------------------------------------

// DeletePerson removes a person and its group memberships. References from
// splits, payers, settlements, and reminders are left dangling on purpose:
// they resolve to nil at read time and heal if the person ever reappears.
func (t *Tx) DeletePerson(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM group_members WHERE person_id = ?`, id); err != nil {
		return fmt.Errorf("deleting memberships of person %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting person %s: %w", id, err)
	}
	return nil
}

// DeleteGroup removes a group and its membership rows, and detaches
// transactions and subscriptions that referenced it.
func (t *Tx) DeleteGroup(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("deleting members of group %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE transactions SET group_id = NULL WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("detaching transactions from group %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE subscriptions SET group_id = NULL WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("detaching subscriptions from group %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting group %s: %w", id, err)
	}
	return nil
}

// DeleteTransaction removes a transaction with its splits, payers, and
// attached messages.
func (t *Tx) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM splits WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("deleting splits of %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM payers WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("deleting payers of %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM messages WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages of %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	return nil
}

// DeleteSettlement removes a settlement.
func (t *Tx) DeleteSettlement(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM settlements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting settlement %s: %w", id, err)
	}
	return nil
}

// DeleteReminder removes a reminder.
func (t *Tx) DeleteReminder(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting reminder %s: %w", id, err)
	}
	return nil
}

// DeleteSubscription removes a subscription with its subscriber list, all
// three child collections, and attached messages.
func (t *Tx) DeleteSubscription(ctx context.Context, id string) error {
	for _, table := range []string{
		"subscription_subscribers",
		"subscription_payments",
		"subscription_settlements",
		"subscription_reminders",
	} {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE subscription_id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s of %s: %w", table, id, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM messages WHERE subscription_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages of %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting subscription %s: %w", id, err)
	}
	return nil
}

// DeleteMessage removes a message.
func (t *Tx) DeleteMessage(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return nil
}

// --- Lookups for relationship resolution and share materialization -----------

// ResolvePerson returns id unchanged if the referenced person exists locally,
// and nil otherwise. The nil heals on a later cycle once the person arrives.
func (t *Tx) ResolvePerson(ctx context.Context, id *string) (*string, error) {
	if id == nil {
		return nil, nil
	}
	p, err := getPerson(ctx, t.tx, *id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return id, nil
}

// PersonByID returns the person with the given ID, or (nil, nil) if absent.
func (t *Tx) PersonByID(ctx context.Context, id string) (*model.Person, error) {
	return getPerson(ctx, t.tx, id)
}

// SelfPerson returns owner's own mirror record, or (nil, nil) if it has not
// been created yet.
func (t *Tx) SelfPerson(ctx context.Context, owner string) (*model.Person, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+personCols+` FROM persons WHERE owner_id = ? AND self = 1`, owner)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning self person row: %w", err)
	}
	return &p, nil
}

// PersonByPhoneHash returns one of owner's contacts matching the phone hash,
// or (nil, nil) if none matches.
func (t *Tx) PersonByPhoneHash(ctx context.Context, owner, phoneHash string) (*model.Person, error) {
	if phoneHash == "" {
		return nil, nil //nolint:nilnil // unhashed contacts never match
	}
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+personCols+` FROM persons WHERE owner_id = ? AND phone_hash = ? AND deleted_at IS NULL LIMIT 1`,
		owner, phoneHash)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning person row: %w", err)
	}
	return &p, nil
}

// CreateShadowPerson synthesizes a local copy of another account's Person so
// that a materialized shared record can reference it. The shadow is owned by
// the receiving account.
func (t *Tx) CreateShadowPerson(ctx context.Context, owner string, src model.Person) (*model.Person, error) {
	shadow := model.Person{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Name:      src.Name,
		Phone:     src.Phone,
		PhoneHash: src.PhoneHash,
		ProfileID: src.ProfileID,
		UpdatedAt: src.UpdatedAt,
	}
	if err := upsertPerson(ctx, t.tx, &shadow); err != nil {
		return nil, err
	}
	return &shadow, nil
}
