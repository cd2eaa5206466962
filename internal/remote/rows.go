package remote

import (
	"time"

	"github.com/tallyapp/tallysync/internal/model"
)

// Wire representations of the remote tables. Kept separate from the model
// structs so the JSON schema can evolve without touching the rest of the
// engine.

type profileRow struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	PhoneHash string     `json:"phone_hash"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

func profileToRow(p model.Profile) profileRow {
	return profileRow{
		ID: p.ID, UserID: p.UserID, Name: p.Name, Phone: p.Phone,
		PhoneHash: p.PhoneHash, UpdatedAt: p.UpdatedAt, DeletedAt: p.DeletedAt,
	}
}

func rowToProfile(r profileRow) model.Profile {
	return model.Profile{
		ID: r.ID, UserID: r.UserID, Name: r.Name, Phone: r.Phone,
		PhoneHash: r.PhoneHash, UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type personRow struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	PhoneHash string     `json:"phone_hash"`
	ProfileID *string    `json:"profile_id"`
	Self      bool       `json:"self"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

func personToRow(p model.Person) personRow {
	return personRow{
		ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Phone: p.Phone,
		PhoneHash: p.PhoneHash, ProfileID: p.ProfileID, Self: p.Self,
		UpdatedAt: p.UpdatedAt, DeletedAt: p.DeletedAt,
	}
}

func rowToPerson(r personRow) model.Person {
	return model.Person{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Phone: r.Phone,
		PhoneHash: r.PhoneHash, ProfileID: r.ProfileID, Self: r.Self,
		UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type groupRow struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

func groupToRow(g model.Group) groupRow {
	return groupRow{ID: g.ID, OwnerID: g.OwnerID, Name: g.Name, UpdatedAt: g.UpdatedAt, DeletedAt: g.DeletedAt}
}

func rowToGroup(r groupRow) model.Group {
	return model.Group{ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt}
}

type groupMemberRow struct {
	GroupID  string `json:"group_id"`
	PersonID string `json:"person_id"`
}

type transactionRow struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Date        time.Time  `json:"date"`
	Notes       string     `json:"notes"`
	GroupID     *string    `json:"group_id"`
	ShareStatus string     `json:"share_status,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func transactionToRow(t model.Transaction) transactionRow {
	return transactionRow{
		ID: t.ID, OwnerID: t.OwnerID, Title: t.Title, Amount: t.Amount,
		Currency: t.Currency, Date: t.Date, Notes: t.Notes, GroupID: t.GroupID,
		UpdatedAt: t.UpdatedAt, DeletedAt: t.DeletedAt,
	}
}

func rowToTransaction(r transactionRow) model.Transaction {
	return model.Transaction{
		ID: r.ID, OwnerID: r.OwnerID, Title: r.Title, Amount: r.Amount,
		Currency: r.Currency, Date: r.Date, Notes: r.Notes, GroupID: r.GroupID,
		ShareStatus: model.ParticipantStatus(r.ShareStatus),
		UpdatedAt:   r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type splitRow struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	PersonID      *string `json:"person_id"`
	Amount        float64 `json:"amount"`
}

func splitToRow(s model.Split) splitRow {
	return splitRow{ID: s.ID, TransactionID: s.TransactionID, PersonID: s.PersonID, Amount: s.Amount}
}

func rowToSplit(r splitRow) model.Split {
	return model.Split{ID: r.ID, TransactionID: r.TransactionID, PersonID: r.PersonID, Amount: r.Amount}
}

type payerRow struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	PersonID      *string `json:"person_id"`
	Amount        float64 `json:"amount"`
}

func payerToRow(p model.Payer) payerRow {
	return payerRow{ID: p.ID, TransactionID: p.TransactionID, PersonID: p.PersonID, Amount: p.Amount}
}

func rowToPayer(r payerRow) model.Payer {
	return model.Payer{ID: r.ID, TransactionID: r.TransactionID, PersonID: r.PersonID, Amount: r.Amount}
}

type settlementRow struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	FromPersonID *string    `json:"from_person_id"`
	ToPersonID   *string    `json:"to_person_id"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency"`
	Date         time.Time  `json:"date"`
	Notes        string     `json:"notes"`
	ShareStatus  string     `json:"share_status,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at"`
}

func settlementToRow(s model.Settlement) settlementRow {
	return settlementRow{
		ID: s.ID, OwnerID: s.OwnerID, FromPersonID: s.FromPersonID, ToPersonID: s.ToPersonID,
		Amount: s.Amount, Currency: s.Currency, Date: s.Date, Notes: s.Notes,
		UpdatedAt: s.UpdatedAt, DeletedAt: s.DeletedAt,
	}
}

func rowToSettlement(r settlementRow) model.Settlement {
	return model.Settlement{
		ID: r.ID, OwnerID: r.OwnerID, FromPersonID: r.FromPersonID, ToPersonID: r.ToPersonID,
		Amount: r.Amount, Currency: r.Currency, Date: r.Date, Notes: r.Notes,
		ShareStatus: model.ParticipantStatus(r.ShareStatus),
		UpdatedAt:   r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type reminderRow struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	ToPersonID  *string    `json:"to_person_id"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Message     string     `json:"message"`
	RemindAt    time.Time  `json:"remind_at"`
	ShareStatus string     `json:"share_status,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func reminderToRow(r model.Reminder) reminderRow {
	return reminderRow{
		ID: r.ID, OwnerID: r.OwnerID, ToPersonID: r.ToPersonID, Amount: r.Amount,
		Currency: r.Currency, Message: r.Message, RemindAt: r.RemindAt,
		UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

func rowToReminder(r reminderRow) model.Reminder {
	return model.Reminder{
		ID: r.ID, OwnerID: r.OwnerID, ToPersonID: r.ToPersonID, Amount: r.Amount,
		Currency: r.Currency, Message: r.Message, RemindAt: r.RemindAt,
		ShareStatus: model.ParticipantStatus(r.ShareStatus),
		UpdatedAt:   r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type subscriptionRow struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Cycle       string     `json:"cycle"`
	NextDue     time.Time  `json:"next_due"`
	GroupID     *string    `json:"group_id"`
	ShareStatus string     `json:"share_status,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func subscriptionToRow(s model.Subscription) subscriptionRow {
	return subscriptionRow{
		ID: s.ID, OwnerID: s.OwnerID, Name: s.Name, Amount: s.Amount,
		Currency: s.Currency, Cycle: string(s.Cycle), NextDue: s.NextDue,
		GroupID: s.GroupID, UpdatedAt: s.UpdatedAt, DeletedAt: s.DeletedAt,
	}
}

func rowToSubscription(r subscriptionRow) model.Subscription {
	return model.Subscription{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Amount: r.Amount,
		Currency: r.Currency, Cycle: model.BillingCycle(r.Cycle), NextDue: r.NextDue,
		GroupID: r.GroupID, ShareStatus: model.ParticipantStatus(r.ShareStatus),
		UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type subscriberRow struct {
	SubscriptionID string `json:"subscription_id"`
	PersonID       string `json:"person_id"`
}

type subPaymentRow struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	PersonID       *string   `json:"person_id"`
	Amount         float64   `json:"amount"`
	PaidAt         time.Time `json:"paid_at"`
}

func subPaymentToRow(p model.SubscriptionPayment) subPaymentRow {
	return subPaymentRow{ID: p.ID, SubscriptionID: p.SubscriptionID, PersonID: p.PersonID, Amount: p.Amount, PaidAt: p.PaidAt}
}

func rowToSubPayment(r subPaymentRow) model.SubscriptionPayment {
	return model.SubscriptionPayment{ID: r.ID, SubscriptionID: r.SubscriptionID, PersonID: r.PersonID, Amount: r.Amount, PaidAt: r.PaidAt}
}

type subSettlementRow struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	FromPersonID   *string   `json:"from_person_id"`
	ToPersonID     *string   `json:"to_person_id"`
	Amount         float64   `json:"amount"`
	Date           time.Time `json:"date"`
}

func subSettlementToRow(s model.SubscriptionSettlement) subSettlementRow {
	return subSettlementRow{ID: s.ID, SubscriptionID: s.SubscriptionID, FromPersonID: s.FromPersonID, ToPersonID: s.ToPersonID, Amount: s.Amount, Date: s.Date}
}

func rowToSubSettlement(r subSettlementRow) model.SubscriptionSettlement {
	return model.SubscriptionSettlement{ID: r.ID, SubscriptionID: r.SubscriptionID, FromPersonID: r.FromPersonID, ToPersonID: r.ToPersonID, Amount: r.Amount, Date: r.Date}
}

type subReminderRow struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	ToPersonID     *string   `json:"to_person_id"`
	Message        string    `json:"message"`
	RemindAt       time.Time `json:"remind_at"`
}

func subReminderToRow(r model.SubscriptionReminder) subReminderRow {
	return subReminderRow{ID: r.ID, SubscriptionID: r.SubscriptionID, ToPersonID: r.ToPersonID, Message: r.Message, RemindAt: r.RemindAt}
}

func rowToSubReminder(r subReminderRow) model.SubscriptionReminder {
	return model.SubscriptionReminder{ID: r.ID, SubscriptionID: r.SubscriptionID, ToPersonID: r.ToPersonID, Message: r.Message, RemindAt: r.RemindAt}
}

type messageRow struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Body           string     `json:"body"`
	PersonID       *string    `json:"person_id"`
	GroupID        *string    `json:"group_id"`
	SubscriptionID *string    `json:"subscription_id"`
	TransactionID  *string    `json:"transaction_id"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

func messageToRow(m model.Message) messageRow {
	return messageRow{
		ID: m.ID, OwnerID: m.OwnerID, Body: m.Body, PersonID: m.PersonID,
		GroupID: m.GroupID, SubscriptionID: m.SubscriptionID, TransactionID: m.TransactionID,
		UpdatedAt: m.UpdatedAt, DeletedAt: m.DeletedAt,
	}
}

func rowToMessage(r messageRow) model.Message {
	return model.Message{
		ID: r.ID, OwnerID: r.OwnerID, Body: r.Body, PersonID: r.PersonID,
		GroupID: r.GroupID, SubscriptionID: r.SubscriptionID, TransactionID: r.TransactionID,
		UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

type participantRow struct {
	ID         string    `json:"id"`
	RecordKind string    `json:"record_kind"`
	RecordID   string    `json:"record_id"`
	PhoneHash  string    `json:"phone_hash"`
	ProfileID  *string   `json:"profile_id"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func rowToParticipant(r participantRow) model.Participant {
	return model.Participant{
		ID: r.ID, RecordKind: model.ShareKind(r.RecordKind), RecordID: r.RecordID,
		PhoneHash: r.PhoneHash, ProfileID: r.ProfileID,
		Status: model.ParticipantStatus(r.Status), UpdatedAt: r.UpdatedAt,
	}
}
