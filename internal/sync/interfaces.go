package sync

import (
	"context"
	"time"

	"github.com/tallyapp/tallysync/internal/model"
)

// The interfaces below are consumer-side views of the datastore and the
// remote client. They exist so the pipelines can be tested against in-memory
// fakes; production wiring passes *store.Store (via a small adapter for the
// transaction callback) and *remote.Client.

// LocalTx is the write scope of one pull-apply transaction.
type LocalTx interface {
	UpsertProfile(ctx context.Context, p *model.Profile) error
	UpsertPerson(ctx context.Context, p *model.Person) error
	UpsertGroup(ctx context.Context, g *model.Group) error
	UpsertTransaction(ctx context.Context, t *model.Transaction) error
	UpsertSettlement(ctx context.Context, s *model.Settlement) error
	UpsertReminder(ctx context.Context, r *model.Reminder) error
	UpsertSubscription(ctx context.Context, s *model.Subscription) error
	UpsertMessage(ctx context.Context, m *model.Message) error

	ReplaceGroupMembers(ctx context.Context, groupID string, memberIDs []string) error
	ReplaceSplits(ctx context.Context, txnID string, splits []model.Split) error
	ReplacePayers(ctx context.Context, txnID string, payers []model.Payer) error
	ReplaceSubscriptionChildren(ctx context.Context, sub *model.Subscription) error

	DeletePerson(ctx context.Context, id string) error
	DeleteGroup(ctx context.Context, id string) error
	DeleteTransaction(ctx context.Context, id string) error
	DeleteSettlement(ctx context.Context, id string) error
	DeleteReminder(ctx context.Context, id string) error
	DeleteSubscription(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error

	ResolvePerson(ctx context.Context, id *string) (*string, error)
	SelfPerson(ctx context.Context, owner string) (*model.Person, error)
	PersonByPhoneHash(ctx context.Context, owner, phoneHash string) (*model.Person, error)
	CreateShadowPerson(ctx context.Context, owner string, src model.Person) (*model.Person, error)
}

// LocalStore is the datastore surface the sync engine needs.
type LocalStore interface {
	Snapshot(ctx context.Context, owner string) (*model.Snapshot, error)
	Apply(ctx context.Context, fn func(tx LocalTx) error) error

	Cursor(ctx context.Context, account string) (time.Time, error)
	SetCursor(ctx context.Context, account string, t time.Time) error
	MigrationDone(ctx context.Context, account string) (bool, error)
	SetMigrationDone(ctx context.Context, account string) error
}

// RemoteWriter is the upload surface of the remote store.
type RemoteWriter interface {
	UpsertProfiles(ctx context.Context, profiles []model.Profile) error
	UpsertPersons(ctx context.Context, persons []model.Person) error
	UpsertGroups(ctx context.Context, groups []model.Group) error
	UpsertTransactions(ctx context.Context, txns []model.Transaction) error
	UpsertSettlements(ctx context.Context, sts []model.Settlement) error
	UpsertReminders(ctx context.Context, rems []model.Reminder) error
	UpsertSubscriptions(ctx context.Context, subs []model.Subscription) error
	UpsertMessages(ctx context.Context, msgs []model.Message) error

	ReplaceGroupMembers(ctx context.Context, groupID string, memberIDs []string) error
	ReplaceSplits(ctx context.Context, txnID string, splits []model.Split) error
	ReplacePayers(ctx context.Context, txnID string, payers []model.Payer) error
	ReplaceSubscriptionChildren(ctx context.Context, sub *model.Subscription) error
}

// RemoteReader is the download surface of the remote store. Since methods
// return rows touched at or after the given time; a zero time returns
// everything.
type RemoteReader interface {
	ProfilesSince(ctx context.Context, userID string, since time.Time) ([]model.Profile, error)
	PersonsSince(ctx context.Context, owner string, since time.Time) ([]model.Person, error)
	GroupsSince(ctx context.Context, owner string, since time.Time) ([]model.Group, error)
	TransactionsSince(ctx context.Context, owner string, since time.Time) ([]model.Transaction, error)
	SettlementsSince(ctx context.Context, owner string, since time.Time) ([]model.Settlement, error)
	RemindersSince(ctx context.Context, owner string, since time.Time) ([]model.Reminder, error)
	SubscriptionsSince(ctx context.Context, owner string, since time.Time) ([]model.Subscription, error)
	MessagesSince(ctx context.Context, owner string, since time.Time) ([]model.Message, error)

	GroupMembersFor(ctx context.Context, groupIDs []string) (map[string][]string, error)
	SplitsFor(ctx context.Context, txnIDs []string) (map[string][]model.Split, error)
	PayersFor(ctx context.Context, txnIDs []string) (map[string][]model.Payer, error)
	SubscriptionChildrenFor(ctx context.Context, subIDs []string) (*model.SubscriptionChildren, error)
}

// ShareAPI is the server-side sharing surface: participant creation,
// claiming, bundle fetches, and status updates.
type ShareAPI interface {
	ProcessShares(ctx context.Context, kind model.ShareKind, ids []string) (model.ShareProcessResult, error)
	ClaimPendingShares(ctx context.Context) (model.ClaimResult, error)
	SharedTransactions(ctx context.Context, since time.Time) ([]model.SharedTransaction, error)
	SharedSettlements(ctx context.Context, since time.Time) ([]model.SharedSettlement, error)
	SharedSubscriptions(ctx context.Context, since time.Time) ([]model.SharedSubscription, error)
	SharedReminders(ctx context.Context, since time.Time) ([]model.SharedReminder, error)
	SetParticipantStatus(ctx context.Context, participantID string, status model.ParticipantStatus) error
}

// Auth reports the authenticated account. Authentication itself is handled
// outside this process; the engine only reads the result.
type Auth interface {
	// CurrentUser returns the signed-in account's user ID, or ok=false when
	// no account is signed in.
	CurrentUser() (userID string, ok bool)

	// PhoneHash returns the hash of the account's verified phone number, or
	// "" when unknown.
	PhoneHash() string
}

// Connectivity answers whether the device currently has a usable network
// path to the backend.
type Connectivity interface {
	Online(ctx context.Context) bool
}
