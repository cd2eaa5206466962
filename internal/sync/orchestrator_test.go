package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tallyapp/tallysync/internal/bus"
	"github.com/tallyapp/tallysync/internal/model"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestEngine(local *mockLocal, rem *mockRemote, auth *mockAuth, net *mockNet, events *bus.Bus) *Orchestrator {
	return New(Options{
		Local:        local,
		Writer:       rem,
		Reader:       rem,
		Shares:       rem,
		Auth:         auth,
		Net:          net,
		Events:       events,
		Debounce:     20 * time.Millisecond,
		PollInterval: time.Hour,
		Logger:       testLogger,
	})
}

func onlineAuth() (*mockAuth, *mockNet) {
	return &mockAuth{user: "acct-1", signedIn: true}, &mockNet{online: true}
}

func seedLocal(l *mockLocal, snap *model.Snapshot) {
	for _, p := range snap.Profiles {
		l.profiles[p.ID] = p
	}
	for _, p := range snap.Persons {
		l.persons[p.ID] = p
	}
	for _, g := range snap.Groups {
		l.groups[g.ID] = g
	}
	for _, s := range snap.Subscriptions {
		l.subscriptions[s.ID] = s
	}
	for _, t := range snap.Transactions {
		l.transactions[t.ID] = t
	}
	for _, s := range snap.Settlements {
		l.settlements[s.ID] = s
	}
	for _, r := range snap.Reminders {
		l.reminders[r.ID] = r
	}
	for _, m := range snap.Messages {
		l.messages[m.ID] = m
	}
}

// ---------------------------------------------------------------------------
// Scenario: no account or no network → the cycle is skipped silently.
// ---------------------------------------------------------------------------

func TestCycleSkipsWhenSignedOut(t *testing.T) {
	local := newMockLocal()
	auth, net := onlineAuth()
	auth.signedIn = false

	o := newTestEngine(local, newMockRemote(), auth, net, nil)
	if err := o.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() error = %v, want silent skip", err)
	}
	if local.snapshotCalls != 0 {
		t.Errorf("snapshot calls = %d, want 0", local.snapshotCalls)
	}
	if got := o.Status().State; got != StateIdle {
		t.Errorf("state = %q, want idle", got)
	}
}

func TestCycleSkipsWhenOffline(t *testing.T) {
	local := newMockLocal()
	auth, net := onlineAuth()
	net.online = false

	o := newTestEngine(local, newMockRemote(), auth, net, nil)
	if err := o.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() error = %v, want silent skip", err)
	}
	if local.snapshotCalls != 0 {
		t.Errorf("snapshot calls = %d, want 0", local.snapshotCalls)
	}
}

// ---------------------------------------------------------------------------
// Scenario: device A uploads its dataset, fresh device B downloads it, and
// both ends hold the same rows afterwards.
// ---------------------------------------------------------------------------

func TestRoundTripConvergence(t *testing.T) {
	now := time.Now().UTC()
	rem := newMockRemote()

	localA := newMockLocal()
	seedLocal(localA, testSnapshot(now))
	authA, netA := onlineAuth()
	if err := newTestEngine(localA, rem, authA, netA, nil).RunNow(context.Background()); err != nil {
		t.Fatalf("device A sync error = %v", err)
	}

	localB := newMockLocal()
	authB, netB := onlineAuth()
	if err := newTestEngine(localB, rem, authB, netB, nil).RunNow(context.Background()); err != nil {
		t.Fatalf("device B sync error = %v", err)
	}

	if len(localB.persons) != 2 {
		t.Errorf("B persons = %d, want 2", len(localB.persons))
	}
	txn, ok := localB.transactions["t1"]
	if !ok {
		t.Fatal("B is missing transaction t1")
	}
	if len(txn.Splits) != 1 || len(txn.Payers) != 1 {
		t.Errorf("B t1 children = %d splits / %d payers, want 1/1", len(txn.Splits), len(txn.Payers))
	}
	if g := localB.groups["g1"]; len(g.MemberIDs) != 2 {
		t.Errorf("B group members = %v, want 2", g.MemberIDs)
	}
	if _, ok := localB.settlements["st1"]; !ok {
		t.Error("B is missing settlement st1")
	}
	if localB.cursors["acct-1"].IsZero() {
		t.Error("B cursor not advanced after successful cycle")
	}
}

// ---------------------------------------------------------------------------
// Scenario (two devices): A records a dinner split with B's contact; B edits
// the split amounts; A sees B's amounts after its next cycle.
// ---------------------------------------------------------------------------

func TestTwoDeviceSplitEdit(t *testing.T) {
	now := time.Now().UTC()
	rem := newMockRemote()

	localA := newMockLocal()
	seedLocal(localA, testSnapshot(now))
	authA, netA := onlineAuth()
	engineA := newTestEngine(localA, rem, authA, netA, nil)
	if err := engineA.RunNow(context.Background()); err != nil {
		t.Fatalf("A initial sync error = %v", err)
	}

	localB := newMockLocal()
	authB, netB := onlineAuth()
	engineB := newTestEngine(localB, rem, authB, netB, nil)
	if err := engineB.RunNow(context.Background()); err != nil {
		t.Fatalf("B initial sync error = %v", err)
	}

	// B reworks the split set.
	txn := localB.transactions["t1"]
	txn.Splits = []model.Split{
		{ID: "s2", TransactionID: "t1", PersonID: strp("p1"), Amount: 10},
		{ID: "s3", TransactionID: "t1", PersonID: strp("p2"), Amount: 20},
	}
	txn.UpdatedAt = now.Add(time.Minute)
	localB.transactions["t1"] = txn
	if err := engineB.RunNow(context.Background()); err != nil {
		t.Fatalf("B edit sync error = %v", err)
	}

	if err := engineA.RunNow(context.Background()); err != nil {
		t.Fatalf("A final sync error = %v", err)
	}

	got := localA.transactions["t1"]
	if len(got.Splits) != 2 {
		t.Fatalf("A t1 splits = %d, want 2 (set fully replaced)", len(got.Splits))
	}
	amounts := map[string]float64{}
	for _, s := range got.Splits {
		amounts[s.ID] = s.Amount
	}
	if amounts["s2"] != 10 || amounts["s3"] != 20 {
		t.Errorf("A t1 split amounts = %v, want s2=10 s3=20", amounts)
	}
}

// ---------------------------------------------------------------------------
// Scenario: A deletes a transaction. The tombstone reaches the backend, the
// deletion lands on A itself (hard delete), and B's stale live copy neither
// resurrects the record nor survives B's next pull.
// ---------------------------------------------------------------------------

func TestTombstonePropagation(t *testing.T) {
	now := time.Now().UTC()
	rem := newMockRemote()

	localA := newMockLocal()
	seedLocal(localA, testSnapshot(now))
	authA, netA := onlineAuth()
	engineA := newTestEngine(localA, rem, authA, netA, nil)
	if err := engineA.RunNow(context.Background()); err != nil {
		t.Fatalf("A initial sync error = %v", err)
	}

	localB := newMockLocal()
	authB, netB := onlineAuth()
	engineB := newTestEngine(localB, rem, authB, netB, nil)
	if err := engineB.RunNow(context.Background()); err != nil {
		t.Fatalf("B initial sync error = %v", err)
	}

	// A soft-deletes t1.
	deletedAt := now.Add(time.Minute)
	txn := localA.transactions["t1"]
	txn.DeletedAt = &deletedAt
	txn.UpdatedAt = deletedAt
	localA.transactions["t1"] = txn

	if err := engineA.RunNow(context.Background()); err != nil {
		t.Fatalf("A delete sync error = %v", err)
	}
	if rem.transactions["t1"].DeletedAt == nil {
		t.Fatal("remote t1 not tombstoned after A's push")
	}
	if _, ok := localA.transactions["t1"]; ok {
		t.Error("A still holds t1 after applying its own tombstone")
	}

	if err := engineB.RunNow(context.Background()); err != nil {
		t.Fatalf("B final sync error = %v", err)
	}
	if rem.transactions["t1"].DeletedAt == nil {
		t.Error("B's stale copy resurrected the tombstoned record")
	}
	if _, ok := localB.transactions["t1"]; ok {
		t.Error("B still holds t1 after pulling the tombstone")
	}
}

// ---------------------------------------------------------------------------
// Scenario: remote child sets replace local ones wholesale on pull.
// ---------------------------------------------------------------------------

func TestReplaceAsSetOnPull(t *testing.T) {
	now := time.Now().UTC()
	rem := newMockRemote()
	rem.transactions["t1"] = model.Transaction{ID: "t1", OwnerID: "acct-1", Title: "Trip", UpdatedAt: now}
	rem.splits["t1"] = []model.Split{
		{ID: "a", TransactionID: "t1", Amount: 1},
		{ID: "b", TransactionID: "t1", Amount: 2},
		{ID: "c", TransactionID: "t1", Amount: 3},
	}

	local := newMockLocal()
	auth, net := onlineAuth()
	engine := newTestEngine(local, rem, auth, net, nil)
	if err := engine.RunNow(context.Background()); err != nil {
		t.Fatalf("first sync error = %v", err)
	}
	if got := len(local.transactions["t1"].Splits); got != 3 {
		t.Fatalf("splits after first pull = %d, want 3", got)
	}

	rem.mu.Lock()
	txn := rem.transactions["t1"]
	txn.UpdatedAt = now.Add(time.Minute)
	rem.transactions["t1"] = txn
	rem.splits["t1"] = []model.Split{{ID: "d", TransactionID: "t1", Amount: 6}}
	rem.mu.Unlock()

	if err := engine.RunNow(context.Background()); err != nil {
		t.Fatalf("second sync error = %v", err)
	}
	splits := local.transactions["t1"].Splits
	if len(splits) != 1 || splits[0].ID != "d" {
		t.Errorf("splits after second pull = %v, want exactly [d]", splits)
	}
}

// ---------------------------------------------------------------------------
// Scenario: reminders are owner-local — a remote tombstone is ignored.
// ---------------------------------------------------------------------------

func TestReminderTombstoneIgnoredOnPull(t *testing.T) {
	now := time.Now().UTC()
	deletedAt := now.Add(time.Minute)

	rem := newMockRemote()
	rem.reminders["r1"] = model.Reminder{
		ID: "r1", OwnerID: "acct-1", Message: "pay up",
		UpdatedAt: deletedAt, DeletedAt: &deletedAt,
	}

	local := newMockLocal()
	local.reminders["r1"] = model.Reminder{ID: "r1", OwnerID: "acct-1", Message: "pay up", UpdatedAt: now}

	auth, net := onlineAuth()
	if err := newTestEngine(local, rem, auth, net, nil).RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if _, ok := local.reminders["r1"]; !ok {
		t.Error("local reminder deleted by remote tombstone, want kept")
	}
}

// ---------------------------------------------------------------------------
// Scenario: a failed pull leaves the cursor untouched; the next successful
// cycle advances it.
// ---------------------------------------------------------------------------

func TestCursorHeldOnFailure(t *testing.T) {
	rem := newMockRemote()
	rem.failOn["PersonsSince"] = errors.New("backend down")

	local := newMockLocal()
	auth, net := onlineAuth()
	engine := newTestEngine(local, rem, auth, net, nil)

	if err := engine.RunNow(context.Background()); err == nil {
		t.Fatal("RunNow() error = nil, want pull failure")
	}
	if !local.cursors["acct-1"].IsZero() {
		t.Errorf("cursor = %v after failed cycle, want zero", local.cursors["acct-1"])
	}
	if st := engine.Status(); st.State != StateError || st.Err == nil {
		t.Errorf("status = %+v, want error state with cause", st)
	}

	delete(rem.failOn, "PersonsSince")
	if err := engine.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() after recovery error = %v", err)
	}
	if local.cursors["acct-1"].IsZero() {
		t.Error("cursor not advanced after recovery")
	}
	if st := engine.Status(); st.State != StateIdle || st.LastSync.IsZero() {
		t.Errorf("status = %+v, want idle with LastSync set", st)
	}
}

// ---------------------------------------------------------------------------
// Scenario: the claim runs once per signed-in account, not once per cycle.
// ---------------------------------------------------------------------------

func TestClaimOncePerAccount(t *testing.T) {
	rem := newMockRemote()
	local := newMockLocal()
	auth, net := onlineAuth()
	auth.hash = "hash-1"

	engine := newTestEngine(local, rem, auth, net, nil)
	for range 3 {
		if err := engine.RunNow(context.Background()); err != nil {
			t.Fatalf("RunNow() error = %v", err)
		}
	}
	if rem.claimCalls != 1 {
		t.Errorf("claim calls = %d, want 1", rem.claimCalls)
	}
}

// ---------------------------------------------------------------------------
// Scenario: a burst of write events collapses into a single cycle.
// ---------------------------------------------------------------------------

func TestDebounceCollapsesBursts(t *testing.T) {
	rem := newMockRemote()
	local := newMockLocal()
	auth, net := onlineAuth()
	events := bus.New()

	engine := newTestEngine(local, rem, auth, net, events)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	waitFor(t, func() bool {
		local.mu.Lock()
		defer local.mu.Unlock()
		return local.snapshotCalls == 1
	}, "initial cycle")

	for range 5 {
		events.Publish(bus.Event{Origin: bus.OriginLocal, Table: "transactions", Action: "update"})
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, func() bool {
		local.mu.Lock()
		defer local.mu.Unlock()
		return local.snapshotCalls == 2
	}, "debounced cycle")

	// Give a stray extra cycle time to show up.
	time.Sleep(100 * time.Millisecond)
	local.mu.Lock()
	calls := local.snapshotCalls
	local.mu.Unlock()
	if calls != 2 {
		t.Errorf("cycles = %d, want 2 (initial + one debounced)", calls)
	}
}

// ---------------------------------------------------------------------------
// Scenario: events observed during the apply phase are the engine's own
// writes and never re-trigger a cycle.
// ---------------------------------------------------------------------------

func TestEventsIgnoredWhileApplying(t *testing.T) {
	rem := newMockRemote()
	local := newMockLocal()
	auth, net := onlineAuth()
	events := bus.New()

	engine := newTestEngine(local, rem, auth, net, events)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	waitFor(t, func() bool {
		local.mu.Lock()
		defer local.mu.Unlock()
		return local.snapshotCalls == 1
	}, "initial cycle")

	engine.applying.Store(true)
	for range 3 {
		events.Publish(bus.Event{Origin: bus.OriginLocal, Table: "persons", Action: "update"})
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	local.mu.Lock()
	calls := local.snapshotCalls
	local.mu.Unlock()
	if calls != 1 {
		t.Fatalf("cycles = %d while applying, want 1", calls)
	}

	engine.applying.Store(false)
	events.Publish(bus.Event{Origin: bus.OriginRemote, Table: "persons", Action: "update"})
	waitFor(t, func() bool {
		local.mu.Lock()
		defer local.mu.Unlock()
		return local.snapshotCalls == 2
	}, "post-apply cycle")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
