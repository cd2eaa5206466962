package remote

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tallyapp/tallysync/internal/model"
)

// fetch retrieves all rows of table matching q, with retry.
func fetch[T any](ctx context.Context, c *Client, table string, q url.Values) ([]T, error) {
	var out []T
	err := Retry(ctx, defaultMaxAttempts, func() error {
		out = nil
		return c.selectRows(ctx, table, q, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}
	return out, nil
}

// push upserts rows into table, with retry. A nil or empty slice is a no-op,
// so callers never issue requests for entity types with nothing to upload.
func (c *Client) push(ctx context.Context, table string, rows any, n int) error {
	if n == 0 {
		return nil
	}
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.upsertRows(ctx, table, rows)
	})
	if err != nil {
		return fmt.Errorf("pushing %s: %w", table, err)
	}
	return nil
}

// replaceChildren deletes all child rows matching q and re-inserts rows.
// The delete and insert are two requests; a failure between them is repaired
// by the next push, which replays the full set.
func (c *Client) replaceChildren(ctx context.Context, table string, q url.Values, rows any, n int) error {
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.deleteRows(ctx, table, q)
	})
	if err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	return c.push(ctx, table, rows, n)
}

// --- Push ---------------------------------------------------------------------

func (c *Client) UpsertProfiles(ctx context.Context, profiles []model.Profile) error {
	rows := make([]profileRow, len(profiles))
	for i, p := range profiles {
		rows[i] = profileToRow(p)
	}
	return c.push(ctx, "profiles", rows, len(rows))
}

func (c *Client) UpsertPersons(ctx context.Context, persons []model.Person) error {
	rows := make([]personRow, len(persons))
	for i, p := range persons {
		rows[i] = personToRow(p)
	}
	return c.push(ctx, "persons", rows, len(rows))
}

func (c *Client) UpsertGroups(ctx context.Context, groups []model.Group) error {
	rows := make([]groupRow, len(groups))
	for i, g := range groups {
		rows[i] = groupToRow(g)
	}
	return c.push(ctx, "groups", rows, len(rows))
}

// ReplaceGroupMembers replaces the membership junction rows of one group.
func (c *Client) ReplaceGroupMembers(ctx context.Context, groupID string, memberIDs []string) error {
	rows := make([]groupMemberRow, len(memberIDs))
	for i, id := range memberIDs {
		rows[i] = groupMemberRow{GroupID: groupID, PersonID: id}
	}
	q := where().eq("group_id", groupID).values()
	return c.replaceChildren(ctx, "group_members", q, rows, len(rows))
}

func (c *Client) UpsertTransactions(ctx context.Context, txns []model.Transaction) error {
	rows := make([]transactionRow, len(txns))
	for i, t := range txns {
		rows[i] = transactionToRow(t)
	}
	return c.push(ctx, "transactions", rows, len(rows))
}

// ReplaceSplits replaces the split set of one transaction.
func (c *Client) ReplaceSplits(ctx context.Context, txnID string, splits []model.Split) error {
	rows := make([]splitRow, len(splits))
	for i, s := range splits {
		rows[i] = splitToRow(s)
	}
	q := where().eq("transaction_id", txnID).values()
	return c.replaceChildren(ctx, "splits", q, rows, len(rows))
}

// ReplacePayers replaces the payer set of one transaction.
func (c *Client) ReplacePayers(ctx context.Context, txnID string, payers []model.Payer) error {
	rows := make([]payerRow, len(payers))
	for i, p := range payers {
		rows[i] = payerToRow(p)
	}
	q := where().eq("transaction_id", txnID).values()
	return c.replaceChildren(ctx, "payers", q, rows, len(rows))
}

func (c *Client) UpsertSettlements(ctx context.Context, sts []model.Settlement) error {
	rows := make([]settlementRow, len(sts))
	for i, s := range sts {
		rows[i] = settlementToRow(s)
	}
	return c.push(ctx, "settlements", rows, len(rows))
}

func (c *Client) UpsertReminders(ctx context.Context, rems []model.Reminder) error {
	rows := make([]reminderRow, len(rems))
	for i, r := range rems {
		rows[i] = reminderToRow(r)
	}
	return c.push(ctx, "reminders", rows, len(rows))
}

func (c *Client) UpsertSubscriptions(ctx context.Context, subs []model.Subscription) error {
	rows := make([]subscriptionRow, len(subs))
	for i, s := range subs {
		rows[i] = subscriptionToRow(s)
	}
	return c.push(ctx, "subscriptions", rows, len(rows))
}

// ReplaceSubscriptionChildren replaces the subscriber list and all three
// child collections of one subscription.
func (c *Client) ReplaceSubscriptionChildren(ctx context.Context, sub *model.Subscription) error {
	q := where().eq("subscription_id", sub.ID).values()

	subscribers := make([]subscriberRow, len(sub.SubscriberIDs))
	for i, id := range sub.SubscriberIDs {
		subscribers[i] = subscriberRow{SubscriptionID: sub.ID, PersonID: id}
	}
	if err := c.replaceChildren(ctx, "subscription_subscribers", q, subscribers, len(subscribers)); err != nil {
		return err
	}

	payments := make([]subPaymentRow, len(sub.Payments))
	for i, p := range sub.Payments {
		payments[i] = subPaymentToRow(p)
	}
	if err := c.replaceChildren(ctx, "subscription_payments", q, payments, len(payments)); err != nil {
		return err
	}

	settlements := make([]subSettlementRow, len(sub.Settlements))
	for i, s := range sub.Settlements {
		settlements[i] = subSettlementToRow(s)
	}
	if err := c.replaceChildren(ctx, "subscription_settlements", q, settlements, len(settlements)); err != nil {
		return err
	}

	reminders := make([]subReminderRow, len(sub.Reminders))
	for i, r := range sub.Reminders {
		reminders[i] = subReminderToRow(r)
	}
	return c.replaceChildren(ctx, "subscription_reminders", q, reminders, len(reminders))
}

func (c *Client) UpsertMessages(ctx context.Context, msgs []model.Message) error {
	rows := make([]messageRow, len(msgs))
	for i, m := range msgs {
		rows[i] = messageToRow(m)
	}
	return c.push(ctx, "messages", rows, len(rows))
}

// --- Pull ---------------------------------------------------------------------
//
// The XxxSince methods return parent rows touched at or after since (all rows
// when since is zero), scoped to one account. Children are fetched separately
// for exactly the parents that changed.

func (c *Client) ProfilesSince(ctx context.Context, userID string, since time.Time) ([]model.Profile, error) {
	rows, err := fetch[profileRow](ctx, c, "profiles",
		where().eq("user_id", userID).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Profile, len(rows))
	for i, r := range rows {
		out[i] = rowToProfile(r)
	}
	return out, nil
}

func (c *Client) PersonsSince(ctx context.Context, owner string, since time.Time) ([]model.Person, error) {
	rows, err := fetch[personRow](ctx, c, "persons",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Person, len(rows))
	for i, r := range rows {
		out[i] = rowToPerson(r)
	}
	return out, nil
}

func (c *Client) GroupsSince(ctx context.Context, owner string, since time.Time) ([]model.Group, error) {
	rows, err := fetch[groupRow](ctx, c, "groups",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Group, len(rows))
	for i, r := range rows {
		out[i] = rowToGroup(r)
	}
	return out, nil
}

// GroupMembersFor fetches the membership lists of the given groups, keyed by
// group ID. Groups with no members are absent from the map.
func (c *Client) GroupMembersFor(ctx context.Context, groupIDs []string) (map[string][]string, error) {
	if len(groupIDs) == 0 {
		return map[string][]string{}, nil
	}
	rows, err := fetch[groupMemberRow](ctx, c, "group_members",
		where().in("group_id", groupIDs).values())
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(groupIDs))
	for _, r := range rows {
		out[r.GroupID] = append(out[r.GroupID], r.PersonID)
	}
	return out, nil
}

func (c *Client) TransactionsSince(ctx context.Context, owner string, since time.Time) ([]model.Transaction, error) {
	rows, err := fetch[transactionRow](ctx, c, "transactions",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Transaction, len(rows))
	for i, r := range rows {
		out[i] = rowToTransaction(r)
	}
	return out, nil
}

// SplitsFor fetches the split sets of the given transactions, keyed by
// transaction ID.
func (c *Client) SplitsFor(ctx context.Context, txnIDs []string) (map[string][]model.Split, error) {
	if len(txnIDs) == 0 {
		return map[string][]model.Split{}, nil
	}
	rows, err := fetch[splitRow](ctx, c, "splits",
		where().in("transaction_id", txnIDs).values())
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Split, len(txnIDs))
	for _, r := range rows {
		out[r.TransactionID] = append(out[r.TransactionID], rowToSplit(r))
	}
	return out, nil
}

// PayersFor fetches the payer sets of the given transactions, keyed by
// transaction ID.
func (c *Client) PayersFor(ctx context.Context, txnIDs []string) (map[string][]model.Payer, error) {
	if len(txnIDs) == 0 {
		return map[string][]model.Payer{}, nil
	}
	rows, err := fetch[payerRow](ctx, c, "payers",
		where().in("transaction_id", txnIDs).values())
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Payer, len(txnIDs))
	for _, r := range rows {
		out[r.TransactionID] = append(out[r.TransactionID], rowToPayer(r))
	}
	return out, nil
}

func (c *Client) SettlementsSince(ctx context.Context, owner string, since time.Time) ([]model.Settlement, error) {
	rows, err := fetch[settlementRow](ctx, c, "settlements",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Settlement, len(rows))
	for i, r := range rows {
		out[i] = rowToSettlement(r)
	}
	return out, nil
}

func (c *Client) RemindersSince(ctx context.Context, owner string, since time.Time) ([]model.Reminder, error) {
	rows, err := fetch[reminderRow](ctx, c, "reminders",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Reminder, len(rows))
	for i, r := range rows {
		out[i] = rowToReminder(r)
	}
	return out, nil
}

func (c *Client) SubscriptionsSince(ctx context.Context, owner string, since time.Time) ([]model.Subscription, error) {
	rows, err := fetch[subscriptionRow](ctx, c, "subscriptions",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Subscription, len(rows))
	for i, r := range rows {
		out[i] = rowToSubscription(r)
	}
	return out, nil
}

// SubscriptionChildrenFor fetches all four child collections of the given
// subscriptions.
func (c *Client) SubscriptionChildrenFor(ctx context.Context, subIDs []string) (*model.SubscriptionChildren, error) {
	out := &model.SubscriptionChildren{
		Subscribers: map[string][]string{},
		Payments:    map[string][]model.SubscriptionPayment{},
		Settlements: map[string][]model.SubscriptionSettlement{},
		Reminders:   map[string][]model.SubscriptionReminder{},
	}
	if len(subIDs) == 0 {
		return out, nil
	}
	q := where().in("subscription_id", subIDs).values()

	subscribers, err := fetch[subscriberRow](ctx, c, "subscription_subscribers", q)
	if err != nil {
		return nil, err
	}
	for _, r := range subscribers {
		out.Subscribers[r.SubscriptionID] = append(out.Subscribers[r.SubscriptionID], r.PersonID)
	}

	payments, err := fetch[subPaymentRow](ctx, c, "subscription_payments", q)
	if err != nil {
		return nil, err
	}
	for _, r := range payments {
		out.Payments[r.SubscriptionID] = append(out.Payments[r.SubscriptionID], rowToSubPayment(r))
	}

	settlements, err := fetch[subSettlementRow](ctx, c, "subscription_settlements", q)
	if err != nil {
		return nil, err
	}
	for _, r := range settlements {
		out.Settlements[r.SubscriptionID] = append(out.Settlements[r.SubscriptionID], rowToSubSettlement(r))
	}

	reminders, err := fetch[subReminderRow](ctx, c, "subscription_reminders", q)
	if err != nil {
		return nil, err
	}
	for _, r := range reminders {
		out.Reminders[r.SubscriptionID] = append(out.Reminders[r.SubscriptionID], rowToSubReminder(r))
	}

	return out, nil
}

func (c *Client) MessagesSince(ctx context.Context, owner string, since time.Time) ([]model.Message, error) {
	rows, err := fetch[messageRow](ctx, c, "messages",
		where().eq("owner_id", owner).gte("updated_at", since).values())
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, len(rows))
	for i, r := range rows {
		out[i] = rowToMessage(r)
	}
	return out, nil
}
