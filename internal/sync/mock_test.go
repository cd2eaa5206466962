package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/tallyapp/tallysync/internal/model"
)

// --- Mock local datastore ----------------------------------------------------

type mockLocal struct {
	mu stdsync.Mutex

	profiles      map[string]model.Profile
	persons       map[string]model.Person
	groups        map[string]model.Group
	subscriptions map[string]model.Subscription
	transactions  map[string]model.Transaction
	settlements   map[string]model.Settlement
	reminders     map[string]model.Reminder
	messages      map[string]model.Message

	cursors  map[string]time.Time
	migrated map[string]bool

	snapshotCalls int
	shadowSeq     int
	applyErr      error
}

func newMockLocal() *mockLocal {
	return &mockLocal{
		profiles:      map[string]model.Profile{},
		persons:       map[string]model.Person{},
		groups:        map[string]model.Group{},
		subscriptions: map[string]model.Subscription{},
		transactions:  map[string]model.Transaction{},
		settlements:   map[string]model.Settlement{},
		reminders:     map[string]model.Reminder{},
		messages:      map[string]model.Message{},
		cursors:       map[string]time.Time{},
		migrated:      map[string]bool{},
	}
}

func (m *mockLocal) Snapshot(_ context.Context, owner string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshotCalls++
	snap := &model.Snapshot{}
	for _, p := range m.profiles {
		if p.UserID == owner {
			snap.Profiles = append(snap.Profiles, p)
		}
	}
	for _, p := range m.persons {
		if p.OwnerID == owner {
			snap.Persons = append(snap.Persons, p)
		}
	}
	for _, g := range m.groups {
		if g.OwnerID == owner {
			snap.Groups = append(snap.Groups, g)
		}
	}
	for _, s := range m.subscriptions {
		if s.OwnerID == owner {
			snap.Subscriptions = append(snap.Subscriptions, s)
		}
	}
	for _, t := range m.transactions {
		if t.OwnerID == owner {
			snap.Transactions = append(snap.Transactions, t)
		}
	}
	for _, s := range m.settlements {
		if s.OwnerID == owner {
			snap.Settlements = append(snap.Settlements, s)
		}
	}
	for _, r := range m.reminders {
		if r.OwnerID == owner {
			snap.Reminders = append(snap.Reminders, r)
		}
	}
	for _, msg := range m.messages {
		if msg.OwnerID == owner {
			snap.Messages = append(snap.Messages, msg)
		}
	}
	return snap, nil
}

func (m *mockLocal) Apply(ctx context.Context, fn func(tx LocalTx) error) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	return fn(&mockTx{local: m})
}

func (m *mockLocal) Cursor(_ context.Context, account string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[account], nil
}

func (m *mockLocal) SetCursor(_ context.Context, account string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[account] = t
	return nil
}

func (m *mockLocal) MigrationDone(_ context.Context, account string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.migrated[account], nil
}

func (m *mockLocal) SetMigrationDone(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrated[account] = true
	return nil
}

// mockTx writes straight into the mockLocal maps; the tests do not exercise
// rollback.
type mockTx struct {
	local *mockLocal
}

func (t *mockTx) UpsertProfile(_ context.Context, p *model.Profile) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	t.local.profiles[p.ID] = *p
	return nil
}

func (t *mockTx) UpsertPerson(_ context.Context, p *model.Person) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	t.local.persons[p.ID] = *p
	return nil
}

func (t *mockTx) UpsertGroup(_ context.Context, g *model.Group) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	existing, ok := t.local.groups[g.ID]
	cp := *g
	if ok {
		cp.MemberIDs = existing.MemberIDs
	}
	t.local.groups[g.ID] = cp
	return nil
}

func (t *mockTx) UpsertTransaction(_ context.Context, txn *model.Transaction) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	existing, ok := t.local.transactions[txn.ID]
	cp := *txn
	if ok {
		cp.Splits, cp.Payers = existing.Splits, existing.Payers
	} else {
		cp.Splits, cp.Payers = nil, nil
	}
	t.local.transactions[txn.ID] = cp
	return nil
}

func (t *mockTx) UpsertSettlement(_ context.Context, s *model.Settlement) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	t.local.settlements[s.ID] = *s
	return nil
}

func (t *mockTx) UpsertReminder(_ context.Context, r *model.Reminder) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	t.local.reminders[r.ID] = *r
	return nil
}

func (t *mockTx) UpsertSubscription(_ context.Context, s *model.Subscription) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	existing, ok := t.local.subscriptions[s.ID]
	cp := *s
	if ok {
		cp.SubscriberIDs = existing.SubscriberIDs
		cp.Payments = existing.Payments
		cp.Settlements = existing.Settlements
		cp.Reminders = existing.Reminders
	}
	t.local.subscriptions[s.ID] = cp
	return nil
}

func (t *mockTx) UpsertMessage(_ context.Context, m *model.Message) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	t.local.messages[m.ID] = *m
	return nil
}

func (t *mockTx) ReplaceGroupMembers(_ context.Context, groupID string, memberIDs []string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	g, ok := t.local.groups[groupID]
	if !ok {
		return fmt.Errorf("group %q not found", groupID)
	}
	g.MemberIDs = append([]string(nil), memberIDs...)
	t.local.groups[groupID] = g
	return nil
}

func (t *mockTx) ReplaceSplits(_ context.Context, txnID string, splits []model.Split) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	txn, ok := t.local.transactions[txnID]
	if !ok {
		return fmt.Errorf("transaction %q not found", txnID)
	}
	txn.Splits = append([]model.Split(nil), splits...)
	t.local.transactions[txnID] = txn
	return nil
}

func (t *mockTx) ReplacePayers(_ context.Context, txnID string, payers []model.Payer) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	txn, ok := t.local.transactions[txnID]
	if !ok {
		return fmt.Errorf("transaction %q not found", txnID)
	}
	txn.Payers = append([]model.Payer(nil), payers...)
	t.local.transactions[txnID] = txn
	return nil
}

func (t *mockTx) ReplaceSubscriptionChildren(_ context.Context, sub *model.Subscription) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	s, ok := t.local.subscriptions[sub.ID]
	if !ok {
		return fmt.Errorf("subscription %q not found", sub.ID)
	}
	s.SubscriberIDs = append([]string(nil), sub.SubscriberIDs...)
	s.Payments = append([]model.SubscriptionPayment(nil), sub.Payments...)
	s.Settlements = append([]model.SubscriptionSettlement(nil), sub.Settlements...)
	s.Reminders = append([]model.SubscriptionReminder(nil), sub.Reminders...)
	t.local.subscriptions[sub.ID] = s
	return nil
}

func (t *mockTx) DeletePerson(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.persons, id)
	return nil
}

func (t *mockTx) DeleteGroup(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.groups, id)
	return nil
}

func (t *mockTx) DeleteTransaction(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.transactions, id)
	return nil
}

func (t *mockTx) DeleteSettlement(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.settlements, id)
	return nil
}

func (t *mockTx) DeleteReminder(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.reminders, id)
	return nil
}

func (t *mockTx) DeleteSubscription(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.subscriptions, id)
	return nil
}

func (t *mockTx) DeleteMessage(_ context.Context, id string) error {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	delete(t.local.messages, id)
	return nil
}

func (t *mockTx) ResolvePerson(_ context.Context, id *string) (*string, error) {
	if id == nil {
		return nil, nil
	}
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	if _, ok := t.local.persons[*id]; !ok {
		return nil, nil
	}
	return id, nil
}

func (t *mockTx) SelfPerson(_ context.Context, owner string) (*model.Person, error) {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	for _, p := range t.local.persons {
		if p.OwnerID == owner && p.Self {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil //nolint:nilnil // intentional: "not found" sentinel
}

func (t *mockTx) PersonByPhoneHash(_ context.Context, owner, phoneHash string) (*model.Person, error) {
	if phoneHash == "" {
		return nil, nil //nolint:nilnil // unhashed contacts never match
	}
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	for _, p := range t.local.persons {
		if p.OwnerID == owner && p.PhoneHash == phoneHash && p.DeletedAt == nil {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil //nolint:nilnil // intentional: "not found" sentinel
}

func (t *mockTx) CreateShadowPerson(_ context.Context, owner string, src model.Person) (*model.Person, error) {
	t.local.mu.Lock()
	defer t.local.mu.Unlock()
	t.local.shadowSeq++
	shadow := model.Person{
		ID:        fmt.Sprintf("shadow-%d", t.local.shadowSeq),
		OwnerID:   owner,
		Name:      src.Name,
		Phone:     src.Phone,
		PhoneHash: src.PhoneHash,
		ProfileID: src.ProfileID,
		UpdatedAt: src.UpdatedAt,
	}
	t.local.persons[shadow.ID] = shadow
	return &shadow, nil
}

// --- Mock remote store -------------------------------------------------------

type mockRemote struct {
	mu stdsync.Mutex

	profiles      map[string]model.Profile
	persons       map[string]model.Person
	groups        map[string]model.Group
	groupMembers  map[string][]string
	subscriptions map[string]model.Subscription
	subChildren   model.SubscriptionChildren
	transactions  map[string]model.Transaction
	splits        map[string][]model.Split
	payers        map[string][]model.Payer
	settlements   map[string]model.Settlement
	reminders     map[string]model.Reminder
	messages      map[string]model.Message

	sharedTransactions  []model.SharedTransaction
	sharedSettlements   []model.SharedSettlement
	sharedSubscriptions []model.SharedSubscription
	sharedReminders     []model.SharedReminder

	processed     map[model.ShareKind][][]string
	claimResult   model.ClaimResult
	claimCalls    int
	statusUpdates map[string]model.ParticipantStatus

	failOn map[string]error // method name → injected failure
}

func newMockRemote() *mockRemote {
	return &mockRemote{
		profiles:      map[string]model.Profile{},
		persons:       map[string]model.Person{},
		groups:        map[string]model.Group{},
		groupMembers:  map[string][]string{},
		subscriptions: map[string]model.Subscription{},
		subChildren: model.SubscriptionChildren{
			Subscribers: map[string][]string{},
			Payments:    map[string][]model.SubscriptionPayment{},
			Settlements: map[string][]model.SubscriptionSettlement{},
			Reminders:   map[string][]model.SubscriptionReminder{},
		},
		transactions:  map[string]model.Transaction{},
		splits:        map[string][]model.Split{},
		payers:        map[string][]model.Payer{},
		settlements:   map[string]model.Settlement{},
		reminders:     map[string]model.Reminder{},
		messages:      map[string]model.Message{},
		processed:     map[model.ShareKind][][]string{},
		statusUpdates: map[string]model.ParticipantStatus{},
		failOn:        map[string]error{},
	}
}

func (m *mockRemote) fail(method string) error {
	return m.failOn[method]
}

// --- RemoteWriter ---
//
// The backend keeps the newer row when an upsert conflicts (guarded by
// updated_at server-side); the mock mirrors that, which is what stops a
// device holding a stale live copy from resurrecting a fresher tombstone.

func (m *mockRemote) UpsertProfiles(_ context.Context, profiles []model.Profile) error {
	if err := m.fail("UpsertProfiles"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		if ex, ok := m.profiles[p.ID]; ok && ex.UpdatedAt.After(p.UpdatedAt) {
			continue
		}
		m.profiles[p.ID] = p
	}
	return nil
}

func (m *mockRemote) UpsertPersons(_ context.Context, persons []model.Person) error {
	if err := m.fail("UpsertPersons"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range persons {
		if ex, ok := m.persons[p.ID]; ok && ex.UpdatedAt.After(p.UpdatedAt) {
			continue
		}
		m.persons[p.ID] = p
	}
	return nil
}

func (m *mockRemote) UpsertGroups(_ context.Context, groups []model.Group) error {
	if err := m.fail("UpsertGroups"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range groups {
		if ex, ok := m.groups[g.ID]; ok && ex.UpdatedAt.After(g.UpdatedAt) {
			continue
		}
		g.MemberIDs = nil // membership travels through the junction table
		m.groups[g.ID] = g
	}
	return nil
}

func (m *mockRemote) UpsertTransactions(_ context.Context, txns []model.Transaction) error {
	if err := m.fail("UpsertTransactions"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txns {
		if ex, ok := m.transactions[t.ID]; ok && ex.UpdatedAt.After(t.UpdatedAt) {
			continue
		}
		t.Splits, t.Payers = nil, nil // children travel separately
		m.transactions[t.ID] = t
	}
	return nil
}

func (m *mockRemote) UpsertSettlements(_ context.Context, sts []model.Settlement) error {
	if err := m.fail("UpsertSettlements"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sts {
		if ex, ok := m.settlements[s.ID]; ok && ex.UpdatedAt.After(s.UpdatedAt) {
			continue
		}
		m.settlements[s.ID] = s
	}
	return nil
}

func (m *mockRemote) UpsertReminders(_ context.Context, rems []model.Reminder) error {
	if err := m.fail("UpsertReminders"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rems {
		if ex, ok := m.reminders[r.ID]; ok && ex.UpdatedAt.After(r.UpdatedAt) {
			continue
		}
		m.reminders[r.ID] = r
	}
	return nil
}

func (m *mockRemote) UpsertSubscriptions(_ context.Context, subs []model.Subscription) error {
	if err := m.fail("UpsertSubscriptions"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range subs {
		if ex, ok := m.subscriptions[s.ID]; ok && ex.UpdatedAt.After(s.UpdatedAt) {
			continue
		}
		s.SubscriberIDs, s.Payments, s.Settlements, s.Reminders = nil, nil, nil, nil
		m.subscriptions[s.ID] = s
	}
	return nil
}

func (m *mockRemote) UpsertMessages(_ context.Context, msgs []model.Message) error {
	if err := m.fail("UpsertMessages"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if ex, ok := m.messages[msg.ID]; ok && ex.UpdatedAt.After(msg.UpdatedAt) {
			continue
		}
		m.messages[msg.ID] = msg
	}
	return nil
}

func (m *mockRemote) ReplaceGroupMembers(_ context.Context, groupID string, memberIDs []string) error {
	if err := m.fail("ReplaceGroupMembers"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupMembers[groupID] = append([]string(nil), memberIDs...)
	return nil
}

func (m *mockRemote) ReplaceSplits(_ context.Context, txnID string, splits []model.Split) error {
	if err := m.fail("ReplaceSplits"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.splits[txnID] = append([]model.Split(nil), splits...)
	return nil
}

func (m *mockRemote) ReplacePayers(_ context.Context, txnID string, payers []model.Payer) error {
	if err := m.fail("ReplacePayers"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers[txnID] = append([]model.Payer(nil), payers...)
	return nil
}

func (m *mockRemote) ReplaceSubscriptionChildren(_ context.Context, sub *model.Subscription) error {
	if err := m.fail("ReplaceSubscriptionChildren"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subChildren.Subscribers[sub.ID] = append([]string(nil), sub.SubscriberIDs...)
	m.subChildren.Payments[sub.ID] = append([]model.SubscriptionPayment(nil), sub.Payments...)
	m.subChildren.Settlements[sub.ID] = append([]model.SubscriptionSettlement(nil), sub.Settlements...)
	m.subChildren.Reminders[sub.ID] = append([]model.SubscriptionReminder(nil), sub.Reminders...)
	return nil
}

// --- RemoteReader ---

func since(t, bound time.Time) bool {
	return bound.IsZero() || !t.Before(bound)
}

func (m *mockRemote) ProfilesSince(_ context.Context, userID string, bound time.Time) ([]model.Profile, error) {
	if err := m.fail("ProfilesSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Profile
	for _, p := range m.profiles {
		if p.UserID == userID && since(p.UpdatedAt, bound) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRemote) PersonsSince(_ context.Context, owner string, bound time.Time) ([]model.Person, error) {
	if err := m.fail("PersonsSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Person
	for _, p := range m.persons {
		if p.OwnerID == owner && since(p.UpdatedAt, bound) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRemote) GroupsSince(_ context.Context, owner string, bound time.Time) ([]model.Group, error) {
	if err := m.fail("GroupsSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Group
	for _, g := range m.groups {
		if g.OwnerID == owner && since(g.UpdatedAt, bound) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockRemote) TransactionsSince(_ context.Context, owner string, bound time.Time) ([]model.Transaction, error) {
	if err := m.fail("TransactionsSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Transaction
	for _, t := range m.transactions {
		if t.OwnerID == owner && since(t.UpdatedAt, bound) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockRemote) SettlementsSince(_ context.Context, owner string, bound time.Time) ([]model.Settlement, error) {
	if err := m.fail("SettlementsSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Settlement
	for _, s := range m.settlements {
		if s.OwnerID == owner && since(s.UpdatedAt, bound) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRemote) RemindersSince(_ context.Context, owner string, bound time.Time) ([]model.Reminder, error) {
	if err := m.fail("RemindersSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.reminders {
		if r.OwnerID == owner && since(r.UpdatedAt, bound) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRemote) SubscriptionsSince(_ context.Context, owner string, bound time.Time) ([]model.Subscription, error) {
	if err := m.fail("SubscriptionsSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subscriptions {
		if s.OwnerID == owner && since(s.UpdatedAt, bound) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRemote) MessagesSince(_ context.Context, owner string, bound time.Time) ([]model.Message, error) {
	if err := m.fail("MessagesSince"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.messages {
		if msg.OwnerID == owner && since(msg.UpdatedAt, bound) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockRemote) GroupMembersFor(_ context.Context, groupIDs []string) (map[string][]string, error) {
	if err := m.fail("GroupMembersFor"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]string{}
	for _, id := range groupIDs {
		if members, ok := m.groupMembers[id]; ok {
			out[id] = append([]string(nil), members...)
		}
	}
	return out, nil
}

func (m *mockRemote) SplitsFor(_ context.Context, txnIDs []string) (map[string][]model.Split, error) {
	if err := m.fail("SplitsFor"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]model.Split{}
	for _, id := range txnIDs {
		if splits, ok := m.splits[id]; ok {
			out[id] = append([]model.Split(nil), splits...)
		}
	}
	return out, nil
}

func (m *mockRemote) PayersFor(_ context.Context, txnIDs []string) (map[string][]model.Payer, error) {
	if err := m.fail("PayersFor"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]model.Payer{}
	for _, id := range txnIDs {
		if payers, ok := m.payers[id]; ok {
			out[id] = append([]model.Payer(nil), payers...)
		}
	}
	return out, nil
}

func (m *mockRemote) SubscriptionChildrenFor(_ context.Context, subIDs []string) (*model.SubscriptionChildren, error) {
	if err := m.fail("SubscriptionChildrenFor"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &model.SubscriptionChildren{
		Subscribers: map[string][]string{},
		Payments:    map[string][]model.SubscriptionPayment{},
		Settlements: map[string][]model.SubscriptionSettlement{},
		Reminders:   map[string][]model.SubscriptionReminder{},
	}
	for _, id := range subIDs {
		if v, ok := m.subChildren.Subscribers[id]; ok {
			out.Subscribers[id] = append([]string(nil), v...)
		}
		if v, ok := m.subChildren.Payments[id]; ok {
			out.Payments[id] = append([]model.SubscriptionPayment(nil), v...)
		}
		if v, ok := m.subChildren.Settlements[id]; ok {
			out.Settlements[id] = append([]model.SubscriptionSettlement(nil), v...)
		}
		if v, ok := m.subChildren.Reminders[id]; ok {
			out.Reminders[id] = append([]model.SubscriptionReminder(nil), v...)
		}
	}
	return out, nil
}

// --- ShareAPI ---

func (m *mockRemote) ProcessShares(_ context.Context, kind model.ShareKind, ids []string) (model.ShareProcessResult, error) {
	if err := m.fail("ProcessShares"); err != nil {
		return model.ShareProcessResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[kind] = append(m.processed[kind], append([]string(nil), ids...))
	return model.ShareProcessResult{Processed: len(ids)}, nil
}

func (m *mockRemote) ClaimPendingShares(_ context.Context) (model.ClaimResult, error) {
	if err := m.fail("ClaimPendingShares"); err != nil {
		return model.ClaimResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimCalls++
	return m.claimResult, nil
}

func (m *mockRemote) SharedTransactions(_ context.Context, _ time.Time) ([]model.SharedTransaction, error) {
	if err := m.fail("SharedTransactions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SharedTransaction(nil), m.sharedTransactions...), nil
}

func (m *mockRemote) SharedSettlements(_ context.Context, _ time.Time) ([]model.SharedSettlement, error) {
	if err := m.fail("SharedSettlements"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SharedSettlement(nil), m.sharedSettlements...), nil
}

func (m *mockRemote) SharedSubscriptions(_ context.Context, _ time.Time) ([]model.SharedSubscription, error) {
	if err := m.fail("SharedSubscriptions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SharedSubscription(nil), m.sharedSubscriptions...), nil
}

func (m *mockRemote) SharedReminders(_ context.Context, _ time.Time) ([]model.SharedReminder, error) {
	if err := m.fail("SharedReminders"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SharedReminder(nil), m.sharedReminders...), nil
}

func (m *mockRemote) SetParticipantStatus(_ context.Context, participantID string, status model.ParticipantStatus) error {
	if err := m.fail("SetParticipantStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusUpdates[participantID] = status
	return nil
}

// --- Auth and connectivity ---------------------------------------------------

type mockAuth struct {
	user     string
	signedIn bool
	hash     string
}

func (a *mockAuth) CurrentUser() (string, bool) { return a.user, a.signedIn }
func (a *mockAuth) PhoneHash() string           { return a.hash }

type mockNet struct {
	online bool
}

func (n *mockNet) Online(context.Context) bool { return n.online }
