package model

import "time"

// ParticipantStatus is the lifecycle state of a share participant.
// Transitions are pending → accepted; there is no rejection state, a share
// simply remains pending until the receiving device accepts it.
type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
)

// ShareKind identifies which shared record type a Participant belongs to.
type ShareKind string

const (
	ShareTransaction  ShareKind = "transaction"
	ShareSettlement   ShareKind = "settlement"
	ShareSubscription ShareKind = "subscription"
	ShareReminder     ShareKind = "reminder"
)

// Participant links a shared record to a phone-number hash, optionally
// resolved to a registered account. A Participant with a nil ProfileID is a
// phantom: the share exists server-side, addressed only by phone hash,
// waiting for someone with that number to claim it.
//
// Participants are created server-side and are unique on (record, phone hash),
// which makes share processing idempotent.
type Participant struct {
	ID string

	RecordKind ShareKind
	RecordID   string

	PhoneHash string

	// ProfileID is the claiming account's user ID. Nil until a matching
	// account exists.
	ProfileID *string

	Status ParticipantStatus

	UpdatedAt time.Time
}

// ShareProcessResult is returned by the server-side share-processing
// functions.
type ShareProcessResult struct {
	Processed           int
	ParticipantsCreated int
}

// ClaimResult reports how many phantom participants were attached to the
// calling account, per shared record type.
type ClaimResult struct {
	Transactions  int
	Settlements   int
	Subscriptions int
	Reminders     int
}

// Total returns the number of claimed participants across all record types.
func (c ClaimResult) Total() int {
	return c.Transactions + c.Settlements + c.Subscriptions + c.Reminders
}

// SharedTransaction is a share bundle: the participation row, the shared
// record with its children, and the minimal set of the sharer's Person rows
// needed to render it on the receiving device.
type SharedTransaction struct {
	Participant Participant
	Transaction Transaction
	Persons     []Person
}

// SharedSettlement is the share bundle for a Settlement.
type SharedSettlement struct {
	Participant Participant
	Settlement  Settlement
	Persons     []Person
}

// SharedSubscription is the share bundle for a Subscription.
type SharedSubscription struct {
	Participant  Participant
	Subscription Subscription
	Persons      []Person
}

// SharedReminder is the share bundle for a Reminder.
type SharedReminder struct {
	Participant Participant
	Reminder    Reminder
	Persons     []Person
}
