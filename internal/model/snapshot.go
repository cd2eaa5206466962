package model

// Snapshot is the full current state of one account's local dataset, read in
// one pass and uploaded in dependency order by the push pipeline and the
// migration runner. Children and junction collections are embedded in their
// parents.
type Snapshot struct {
	Profiles      []Profile
	Persons       []Person
	Groups        []Group
	Subscriptions []Subscription
	Transactions  []Transaction
	Settlements   []Settlement
	Reminders     []Reminder
	Messages      []Message
}

// SubscriptionChildren bundles the per-subscription child collections fetched
// for a set of changed subscriptions, each keyed by subscription ID.
type SubscriptionChildren struct {
	Subscribers map[string][]string
	Payments    map[string][]SubscriptionPayment
	Settlements map[string][]SubscriptionSettlement
	Reminders   map[string][]SubscriptionReminder
}

// Empty reports whether the snapshot contains no rows at all.
func (s *Snapshot) Empty() bool {
	return len(s.Profiles) == 0 &&
		len(s.Persons) == 0 &&
		len(s.Groups) == 0 &&
		len(s.Subscriptions) == 0 &&
		len(s.Transactions) == 0 &&
		len(s.Settlements) == 0 &&
		len(s.Reminders) == 0 &&
		len(s.Messages) == 0
}
