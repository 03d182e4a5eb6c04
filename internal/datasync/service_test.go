package datasync

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
	"github.com/MansurAzad/cashbook/internal/localstore"
	"github.com/MansurAzad/cashbook/internal/logger"
)

// mockRemote is a hand-rolled gateway.Remote with overridable behavior and
// call counters.
type mockRemote struct {
	mu          sync.Mutex
	CreateFunc  func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error)
	UpdateFunc  func(ctx context.Context, kind domain.Kind, id string, data map[string]any) (gateway.Object, error)
	DeleteFunc  func(ctx context.Context, kind domain.Kind, id string) error
	ListFunc    func(ctx context.Context, kind domain.Kind, limit int) ([]gateway.Object, error)
	createCalls int
	updateCalls int
	deleteCalls int
}

func (m *mockRemote) Create(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, kind, data)
	}
	return gateway.Object{ID: uuid.New().String(), Data: data}, nil
}

func (m *mockRemote) Update(ctx context.Context, kind domain.Kind, id string, data map[string]any) (gateway.Object, error) {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, kind, id, data)
	}
	return gateway.Object{ID: id, Data: data}, nil
}

func (m *mockRemote) Delete(ctx context.Context, kind domain.Kind, id string) error {
	m.mu.Lock()
	m.deleteCalls++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, kind, id)
	}
	return nil
}

func (m *mockRemote) List(ctx context.Context, kind domain.Kind, limit int) ([]gateway.Object, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, kind, limit)
	}
	return nil, nil
}

var _ gateway.Remote = (*mockRemote)(nil)

var errNetwork = errors.New("dial tcp: i/o timeout")

func failingList(ctx context.Context, kind domain.Kind, limit int) ([]gateway.Object, error) {
	return nil, errNetwork
}

func newTestService(remote gateway.Remote) *Service {
	return New(localstore.NewMemory(logger.Nop()), remote, logger.Nop())
}

// newOfflineService has no remote at all: every mutation stays local and
// queues.
func newOfflineService() *Service {
	return newTestService(nil)
}

func TestAddOptimisticVisibility(t *testing.T) {
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			return gateway.Object{}, errNetwork
		},
		ListFunc: failingList,
	}
	s := newTestService(remote)

	snap, err := s.Add(context.Background(), domain.KindGoal, domain.Goal{Name: "Emergency fund", TargetAmount: 5000})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if len(snap.Goals) != 1 {
		t.Fatalf("goals = %d, want 1 despite remote failure", len(snap.Goals))
	}
	if snap.Goals[0].Name != "Emergency fund" || snap.Goals[0].ID == "" {
		t.Errorf("unexpected goal: %+v", snap.Goals[0])
	}
}

func TestAddTransientFailureQueues(t *testing.T) {
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			return gateway.Object{}, errNetwork
		},
		ListFunc: failingList,
	}
	s := newTestService(remote)

	if _, err := s.Add(context.Background(), domain.KindBill, domain.Bill{Name: "Rent", Amount: 900}); err != nil {
		t.Fatal(err)
	}

	ops := s.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("pending ops = %d, want 1", len(ops))
	}
	if ops[0].Type != "ADD_BILL" {
		t.Errorf("op type = %q, want ADD_BILL", ops[0].Type)
	}
	if _, hasID := ops[0].Payload["id"]; hasID {
		t.Error("queued ADD payload must not carry the local id")
	}
}

func TestAddPermanentFailureDropsWithoutQueueing(t *testing.T) {
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			return gateway.Object{}, errors.New("NoPermission: bucket is read-only")
		},
		ListFunc: failingList,
	}
	s := newTestService(remote)

	snap, err := s.Add(context.Background(), domain.KindLoan, domain.Loan{Name: "Karim", Amount: 50, Type: "given"})
	if err != nil {
		t.Fatal(err)
	}

	if len(s.PendingOperations()) != 0 {
		t.Error("permanent failure must not be queued")
	}
	// The optimistic local write still stands.
	if len(snap.Loans) != 1 {
		t.Errorf("loans = %d, want 1", len(snap.Loans))
	}
}

func TestDrainDropsPermanentFailures(t *testing.T) {
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			return gateway.Object{}, errors.New("NoPermission: denied")
		},
	}
	s := newTestService(remote)
	s.enqueue(Operation{Type: "ADD_GOAL", Payload: map[string]any{"name": "x"}})

	s.Drain(context.Background())

	if got := len(s.PendingOperations()); got != 0 {
		t.Errorf("pending ops after drain = %d, want 0", got)
	}
}

func TestDrainRetainsTransientFailures(t *testing.T) {
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			return gateway.Object{}, errNetwork
		},
	}
	s := newTestService(remote)
	s.enqueue(Operation{Type: "ADD_GOAL", Payload: map[string]any{"name": "x"}})

	s.Drain(context.Background())

	ops := s.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("pending ops after drain = %d, want exactly 1 (kept, not duplicated)", len(ops))
	}
	if ops[0].Type != "ADD_GOAL" {
		t.Errorf("op type = %q, want ADD_GOAL", ops[0].Type)
	}
}

func TestDrainDropsSucceededOps(t *testing.T) {
	remote := &mockRemote{}
	s := newTestService(remote)
	s.enqueue(Operation{Type: "ADD_GOAL", Payload: map[string]any{"name": "x"}})
	s.enqueue(Operation{Type: "DELETE_BILL", TargetID: "b1"})

	s.Drain(context.Background())

	if got := len(s.PendingOperations()); got != 0 {
		t.Errorf("pending ops after drain = %d, want 0", got)
	}
	if remote.createCalls != 1 || remote.deleteCalls != 1 {
		t.Errorf("calls = create %d / delete %d, want 1 / 1", remote.createCalls, remote.deleteCalls)
	}
}

func TestDrainKeepsOpsEnqueuedMidReplay(t *testing.T) {
	// An op enqueued while a drain is replaying must survive the queue
	// rewrite at the end of that drain.
	replayStarted := make(chan struct{})
	releaseReplay := make(chan struct{})
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			close(replayStarted)
			<-releaseReplay
			return gateway.Object{ID: "ok"}, nil
		},
	}
	s := newTestService(remote)
	s.enqueue(Operation{Type: "ADD_GOAL", Payload: map[string]any{"name": "first"}})

	done := make(chan struct{})
	go func() {
		s.Drain(context.Background())
		close(done)
	}()

	<-replayStarted
	s.enqueue(Operation{Type: "ADD_BILL", Payload: map[string]any{"name": "second"}})
	close(releaseReplay)
	<-done

	ops := s.PendingOperations()
	if len(ops) != 1 || ops[0].Type != "ADD_BILL" {
		t.Fatalf("op enqueued during drain was lost; queue after drain = %+v", ops)
	}
}

func TestConcurrentDrainsReplayOnce(t *testing.T) {
	firstReplay := make(chan struct{})
	releaseReplay := make(chan struct{})
	var once sync.Once
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			once.Do(func() { close(firstReplay) })
			<-releaseReplay
			return gateway.Object{ID: "ok"}, nil
		},
	}
	s := newTestService(remote)
	s.enqueue(Operation{Type: "ADD_GOAL", Payload: map[string]any{"name": "x"}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Drain(context.Background()) }()
	go func() {
		defer wg.Done()
		<-firstReplay // the first drain is mid-replay before the second starts
		s.Drain(context.Background())
	}()

	<-firstReplay
	close(releaseReplay)
	wg.Wait()

	if remote.createCalls != 1 {
		t.Errorf("op replayed %d times across concurrent drains, want 1", remote.createCalls)
	}
	if got := len(s.PendingOperations()); got != 0 {
		t.Errorf("pending ops = %d after drains, want 0", got)
	}
}

func TestAddQueuedPayloadImmuneToRemoteMutation(t *testing.T) {
	// A gateway that annotates its argument must not be able to pollute the
	// payload that ends up in the queue.
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			data["id"] = "remote-assigned"
			return gateway.Object{}, errNetwork
		},
		ListFunc: failingList,
	}
	s := newTestService(remote)

	if _, err := s.Add(context.Background(), domain.KindBill, domain.Bill{Name: "Rent", Amount: 900}); err != nil {
		t.Fatal(err)
	}

	ops := s.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("pending ops = %d, want 1", len(ops))
	}
	if _, hasID := ops[0].Payload["id"]; hasID {
		t.Error("remote-side mutation leaked into the queued payload")
	}
}

func TestDrainDropsMalformedOps(t *testing.T) {
	s := newTestService(&mockRemote{})
	s.enqueue(Operation{Type: "GARBAGE"})

	s.Drain(context.Background())

	if got := len(s.PendingOperations()); got != 0 {
		t.Errorf("pending ops after drain = %d, want 0", got)
	}
}

func TestDefaultCategoriesOnEmptyStore(t *testing.T) {
	s := newOfflineService()

	snap := s.FetchData(context.Background())

	if len(snap.Categories.All) != 8 {
		t.Fatalf("categories = %d, want 8", len(snap.Categories.All))
	}
	if len(snap.Categories.Income) != 2 {
		t.Errorf("income categories = %d, want 2", len(snap.Categories.Income))
	}
	if len(snap.Categories.Expense) != 6 {
		t.Errorf("expense categories = %d, want 6", len(snap.Categories.Expense))
	}
	for _, c := range snap.Categories.All {
		if len(c.ID) < 8 || c.ID[:8] != "default-" {
			t.Errorf("category id %q not prefixed default-", c.ID)
		}
	}
}

func TestSnapshotIdempotentOffline(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()

	if _, err := s.Add(ctx, domain.KindAccount, domain.Account{Name: "Wallet", Type: "cash", Balance: 100}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, domain.KindGoal, domain.Goal{Name: "Bike", TargetAmount: 800}); err != nil {
		t.Fatal(err)
	}

	first := s.FetchData(ctx)
	second := s.FetchData(ctx)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ across idempotent fetches:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()

	snap, err := s.Add(ctx, domain.KindBill, domain.Bill{Name: "Internet", Amount: 40, Recurring: "monthly"})
	if err != nil {
		t.Fatal(err)
	}
	id := snap.Bills[0].ID

	snap, err = s.Update(ctx, domain.KindBill, id, map[string]any{"is_paid": true})
	if err != nil {
		t.Fatal(err)
	}

	if len(snap.Bills) != 1 {
		t.Fatalf("bills = %d, want 1", len(snap.Bills))
	}
	b := snap.Bills[0]
	if !b.IsPaid {
		t.Error("is_paid not merged")
	}
	if b.Name != "Internet" || b.Amount != 40 || b.Recurring != "monthly" {
		t.Errorf("merge clobbered untouched fields: %+v", b)
	}
}

func TestDeleteRemovesLocally(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()

	snap, err := s.Add(ctx, domain.KindGoal, domain.Goal{Name: "Trip", TargetAmount: 300})
	if err != nil {
		t.Fatal(err)
	}
	id := snap.Goals[0].ID

	snap = s.Delete(ctx, domain.KindGoal, id)
	if len(snap.Goals) != 0 {
		t.Errorf("goals = %d after delete, want 0", len(snap.Goals))
	}
}

func TestUnsyncedRecordsSkipRemoteCalls(t *testing.T) {
	// Create fails transiently, so the records stay local-only; updates and
	// deletes on them must never reach the remote gateway.
	remote := &mockRemote{
		CreateFunc: func(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
			return gateway.Object{}, errNetwork
		},
		ListFunc: failingList,
	}
	s := newTestService(remote)
	ctx := context.Background()

	snap, err := s.Add(ctx, domain.KindGoal, domain.Goal{Name: "A", TargetAmount: 10})
	if err != nil {
		t.Fatal(err)
	}
	id := snap.Goals[0].ID

	if _, err := s.Update(ctx, domain.KindGoal, id, map[string]any{"name": "B"}); err != nil {
		t.Fatal(err)
	}
	if remote.updateCalls != 0 {
		t.Errorf("remote update called %d times for unsynced record, want 0", remote.updateCalls)
	}

	queuedBefore := len(s.PendingOperations())
	s.Delete(ctx, domain.KindGoal, id)
	if remote.deleteCalls != 0 {
		t.Errorf("remote delete called %d times for unsynced record, want 0", remote.deleteCalls)
	}
	if got := len(s.PendingOperations()); got != queuedBefore {
		t.Errorf("pending ops changed from %d to %d; deleting a local-only record must not queue", queuedBefore, got)
	}
}

func TestFetchDataRemoteReplaces(t *testing.T) {
	remoteGoal := gateway.Object{ID: "r1", Data: map[string]any{"name": "Remote goal", "target_amount": 100.0}}
	remote := &mockRemote{
		ListFunc: func(ctx context.Context, kind domain.Kind, limit int) ([]gateway.Object, error) {
			if kind == domain.KindGoal {
				return []gateway.Object{remoteGoal}, nil
			}
			return nil, nil
		},
	}
	s := newTestService(remote)
	ctx := context.Background()

	// Seed a stale local copy.
	s.saveCollection(domain.KindGoal, []record{{"id": "stale", "name": "Old goal"}})

	snap := s.FetchData(ctx)

	if len(snap.Goals) != 1 || snap.Goals[0].ID != "r1" {
		t.Fatalf("goals = %+v, want single remote goal r1", snap.Goals)
	}
	// The replacement must also have been written through to the local store.
	var stored []record
	if !s.store.Get(string(domain.KindGoal), &stored) || len(stored) != 1 || recordID(stored[0]) != "r1" {
		t.Errorf("local store not replaced: %+v", stored)
	}
}

func TestFetchDataBatchFailureKeepsBaseline(t *testing.T) {
	remote := &mockRemote{
		ListFunc: func(ctx context.Context, kind domain.Kind, limit int) ([]gateway.Object, error) {
			if kind == domain.KindBudget {
				return nil, errNetwork
			}
			// Every other kind would succeed with fresh data.
			return []gateway.Object{{ID: "fresh", Data: map[string]any{"name": "fresh"}}}, nil
		},
	}
	s := newTestService(remote)
	ctx := context.Background()

	s.saveCollection(domain.KindGoal, []record{{"id": "local", "name": "Local goal"}})

	snap := s.FetchData(ctx)

	// One failing kind discards the whole batch: local data stands.
	if len(snap.Goals) != 1 || snap.Goals[0].ID != "local" {
		t.Errorf("goals = %+v, want untouched local baseline", snap.Goals)
	}
}

func TestSetOnlineTransitionDrainsQueue(t *testing.T) {
	remote := &mockRemote{ListFunc: failingList}
	s := newTestService(remote)
	ctx := context.Background()

	s.SetOnline(ctx, false)
	if _, err := s.Add(ctx, domain.KindGoal, domain.Goal{Name: "Offline goal", TargetAmount: 1}); err != nil {
		t.Fatal(err)
	}
	if remote.createCalls != 0 {
		t.Fatalf("remote called while offline")
	}
	if len(s.PendingOperations()) != 1 {
		t.Fatalf("pending ops = %d, want 1", len(s.PendingOperations()))
	}

	s.SetOnline(ctx, true)

	if remote.createCalls == 0 {
		t.Error("offline→online transition did not drain the queue")
	}
	if got := len(s.PendingOperations()); got != 0 {
		t.Errorf("pending ops = %d after drain, want 0", got)
	}
}

func TestOpTypeRoundTrip(t *testing.T) {
	tests := []struct {
		action string
		kind   domain.Kind
		tag    string
	}{
		{"ADD", domain.KindTransaction, "ADD_TRANSACTION"},
		{"UPDATE", domain.KindAccount, "UPDATE_ACCOUNT"},
		{"DELETE", domain.KindBill, "DELETE_BILL"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := opType(tt.action, tt.kind); got != tt.tag {
				t.Fatalf("opType = %q, want %q", got, tt.tag)
			}
			action, kind, ok := parseOpType(tt.tag)
			if !ok || action != tt.action || kind != tt.kind {
				t.Errorf("parseOpType(%q) = %q, %q, %v", tt.tag, action, kind, ok)
			}
		})
	}

	if _, _, ok := parseOpType("NOUNDERSCORE"); ok {
		t.Error("parseOpType accepted a malformed tag")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newOfflineService()

	got := s.Settings()
	if got.Currency != "USD" {
		t.Errorf("default currency = %q, want USD", got.Currency)
	}

	got.DarkMode = true
	got.Currency = "BDT"
	s.SaveSettings(got)

	again := s.Settings()
	if !again.DarkMode || again.Currency != "BDT" {
		t.Errorf("settings did not persist: %+v", again)
	}
}

func TestShoppingListRoundTrip(t *testing.T) {
	s := newOfflineService()

	if got := s.ShoppingList(); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
	s.SaveShoppingList([]domain.ShoppingItem{{ID: domain.NewID(), Name: "Rice", Qty: 2}})

	got := s.ShoppingList()
	if len(got) != 1 || got[0].Name != "Rice" {
		t.Errorf("shopping list = %+v", got)
	}
}
