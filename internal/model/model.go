package model

import "time"

// Profile is the account owner's public identity. Exactly one exists per
// account; it is created on first authentication.
type Profile struct {
	// ID is the profile's UUID. Distinct from the account's user ID.
	ID string

	// UserID is the authentication subsystem's account identifier.
	UserID string

	Name      string
	Phone     string
	PhoneHash string

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Person is a contact known to an owner. A Person may or may not be a
// registered user; the link is established lazily via ProfileID once the
// contact's account is known. The owner's own Person record mirrors their
// Profile and has Self set.
type Person struct {
	ID      string
	OwnerID string

	Name      string
	Phone     string
	PhoneHash string

	// ProfileID links this contact to a registered account's user ID.
	// Nil until a matching account is known.
	ProfileID *string

	// Self marks the owner's own mirror record.
	Self bool

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Group is a named collection of Persons. Membership is a junction
// collection that is fully replaced on each sync, never merged.
type Group struct {
	ID      string
	OwnerID string
	Name    string

	// MemberIDs are the Person IDs in this group.
	MemberIDs []string

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Transaction is a shared expense. It always carries at least one Payer and
// one Split; the Split amounts need not sum to Amount (partial splits are
// allowed).
type Transaction struct {
	ID      string
	OwnerID string

	Title    string
	Amount   float64
	Currency string
	Date     time.Time
	Notes    string

	// GroupID optionally scopes the expense to a Group.
	GroupID *string

	Splits []Split
	Payers []Payer

	// ShareStatus is set on materialized read replicas of another account's
	// transaction. Empty for the owner's own rows.
	ShareStatus ParticipantStatus

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Split is a portion of a Transaction owed by a Person. Splits are replaced
// as a set on every sync of their parent.
type Split struct {
	ID            string
	TransactionID string

	// PersonID is nil while the referenced Person has not been pulled yet.
	PersonID *string

	Amount float64
}

// Payer is a portion of a Transaction paid by a Person. Same replace-as-set
// rule as Split.
type Payer struct {
	ID            string
	TransactionID string
	PersonID      *string
	Amount        float64
}

// Settlement is a payment between two Persons. Direction encodes payer and
// payee; Amount is always positive.
type Settlement struct {
	ID      string
	OwnerID string

	FromPersonID *string
	ToPersonID   *string

	Amount   float64
	Currency string
	Date     time.Time
	Notes    string

	ShareStatus ParticipantStatus

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Reminder is a nudge about an outstanding balance. Reminders are owner-local:
// a remote tombstone is ignored on pull rather than propagated as a deletion.
type Reminder struct {
	ID      string
	OwnerID string

	ToPersonID *string

	Amount   float64
	Currency string
	Message  string
	RemindAt time.Time

	ShareStatus ParticipantStatus

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// BillingCycle is the recurrence period of a Subscription.
type BillingCycle string

const (
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Subscription is a recurring shared cost. Its subscriber list and its three
// child collections are always fully replaced together with the parent.
type Subscription struct {
	ID      string
	OwnerID string

	Name     string
	Amount   float64
	Currency string
	Cycle    BillingCycle
	NextDue  time.Time

	GroupID *string

	// SubscriberIDs are the Person IDs sharing this subscription.
	SubscriberIDs []string

	Payments    []SubscriptionPayment
	Settlements []SubscriptionSettlement
	Reminders   []SubscriptionReminder

	ShareStatus ParticipantStatus

	UpdatedAt time.Time
	DeletedAt *time.Time
}

// SubscriptionPayment records one billing-cycle payment of a Subscription.
type SubscriptionPayment struct {
	ID             string
	SubscriptionID string
	PersonID       *string
	Amount         float64
	PaidAt         time.Time
}

// SubscriptionSettlement is a settlement scoped to a Subscription.
type SubscriptionSettlement struct {
	ID             string
	SubscriptionID string
	FromPersonID   *string
	ToPersonID     *string
	Amount         float64
	Date           time.Time
}

// SubscriptionReminder is a reminder scoped to a Subscription.
type SubscriptionReminder struct {
	ID             string
	SubscriptionID string
	ToPersonID     *string
	Message        string
	RemindAt       time.Time
}

// Message is a note attached to at most one of a Person, Group, Subscription,
// or Transaction.
type Message struct {
	ID      string
	OwnerID string

	Body string

	PersonID       *string
	GroupID        *string
	SubscriptionID *string
	TransactionID  *string

	UpdatedAt time.Time
	DeletedAt *time.Time
}
