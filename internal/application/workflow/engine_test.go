package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/leave-approval/internal/application/dispatcher"
	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/domain/event"
	domainwf "github.com/garyjia/leave-approval/internal/domain/workflow"
)

// Mock implementations

// memStore implements both LeaveRequestRepository and HistoryRepository
type memStore struct {
	mu        sync.Mutex
	requests  map[string]*entity.LeaveRequest
	history   map[string][]entity.HistoryEntry
	updateErr error
	appendErr error
	updates   atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*entity.LeaveRequest),
		history:  make(map[string][]entity.HistoryEntry),
	}
}

func (m *memStore) Create(ctx context.Context, req *entity.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("duplicate id %s", req.ID)
	}
	row := req.Clone()
	row.History = nil
	m.requests[req.ID] = row
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*entity.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, exists := m.requests[id]
	if !exists {
		return nil, &entity.NotFoundError{ID: id}
	}
	req := row.Clone()
	req.History = append([]entity.HistoryEntry(nil), m.history[id]...)
	return req, nil
}

func (m *memStore) Update(ctx context.Context, req *entity.LeaveRequest, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	row, exists := m.requests[req.ID]
	if !exists {
		return &entity.NotFoundError{ID: req.ID}
	}
	if row.Version != expectedVersion {
		return port.ErrConcurrentUpdate
	}
	row.Status = req.Status
	row.CurrentStage = req.CurrentStage
	row.UpdatedAt = req.UpdatedAt
	row.Version = req.Version
	m.updates.Add(1)
	return nil
}

func (m *memStore) List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.LeaveRequest
	for _, row := range m.requests {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) Append(ctx context.Context, requestID string, entry entity.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	if entry.Sequence != len(m.history[requestID]) {
		return fmt.Errorf("sequence gap: got %d, have %d", entry.Sequence, len(m.history[requestID]))
	}
	m.history[requestID] = append(m.history[requestID], entry)
	return nil
}

func (m *memStore) ListByRequestID(ctx context.Context, requestID string) ([]entity.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.HistoryEntry(nil), m.history[requestID]...), nil
}

// snapshot and restore let mockTxManager roll back on error
func (m *memStore) snapshot() (map[string]entity.LeaveRequest, map[string][]entity.HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make(map[string]entity.LeaveRequest, len(m.requests))
	for id, r := range m.requests {
		reqs[id] = *r
	}
	hist := make(map[string][]entity.HistoryEntry, len(m.history))
	for id, h := range m.history {
		hist[id] = append([]entity.HistoryEntry(nil), h...)
	}
	return reqs, hist
}

func (m *memStore) restore(reqs map[string]entity.LeaveRequest, hist map[string][]entity.HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]*entity.LeaveRequest, len(reqs))
	for id, r := range reqs {
		r := r
		m.requests[id] = &r
	}
	m.history = hist
}

type mockTxManager struct {
	store     *memStore
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	reqs, hist := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(reqs, hist)
		return err
	}
	return nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, evt := range m.events {
		out[i] = evt.Type
	}
	return out
}

var engineNow = time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

func engineDraft() entity.LeaveDraft {
	return entity.LeaveDraft{
		EmployeeName:  "Employee",
		EmployeeEmail: "e@corp.io",
		ManagerEmail:  "m@corp.io",
		DirectorEmail: "d@corp.io",
		StartDate:     entity.NewDate(2026, time.October, 20),
		EndDate:       entity.NewDate(2026, time.October, 24),
		Reason:        "holiday",
	}
}

type fixture struct {
	store  *memStore
	tx     *mockTxManager
	disp   *mockDispatcher
	engine WorkflowEngine
}

func newFixture(opts ...EngineOption) *fixture {
	store := newMemStore()
	tx := &mockTxManager{store: store}
	disp := &mockDispatcher{}

	var seq atomic.Int32
	base := []EngineOption{
		WithDispatcher(disp),
		WithClock(func() time.Time { return engineNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("req-%d", seq.Add(1)) }),
	}

	return &fixture{
		store:  store,
		tx:     tx,
		disp:   disp,
		engine: NewEngine(store, store, tx, append(base, opts...)...),
	}
}

func (f *fixture) submit(t *testing.T) *entity.LeaveRequest {
	t.Helper()
	res, err := f.engine.Submit(context.Background(), engineDraft())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	return res.Request
}

func (f *fixture) act(t *testing.T, id string, stage entity.Stage, action entity.Action) *Result {
	t.Helper()
	res, err := f.engine.Act(context.Background(), id, stage, action)
	if err != nil {
		t.Fatalf("Act(%s, %s) error: %v", stage, action, err)
	}
	return res
}

func TestNewEngine(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, store, &mockTxManager{store: store})

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if len(engine.Machine().Transitions()) != 4 {
		t.Errorf("expected default leave table with 4 transitions, got %d", len(engine.Machine().Transitions()))
	}
}

func TestEngineSubmit(t *testing.T) {
	f := newFixture()

	res, err := f.engine.Submit(context.Background(), engineDraft())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	req := res.Request
	if req.ID != "req-1" {
		t.Errorf("ID = %s, want req-1", req.ID)
	}
	if req.Status != entity.StatusPending || req.CurrentStage != entity.StageManager {
		t.Errorf("state = %s/%s, want pending/manager", req.Status, req.CurrentStage)
	}
	if len(req.History) != 1 || req.History[0].Stage != entity.StageSubmitted {
		t.Errorf("expected a single submission entry, got %+v", req.History)
	}
	if res.Intent.Kind != entity.KindInitialRequest || res.Intent.RecipientEmail != "m@corp.io" {
		t.Errorf("intent = %+v", res.Intent)
	}

	stored, err := f.engine.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.Version != 1 || len(stored.History) != 1 {
		t.Errorf("stored version=%d history=%d", stored.Version, len(stored.History))
	}

	if got := f.disp.types(); len(got) != 1 || got[0] != event.TypeLeaveSubmitted {
		t.Errorf("events = %v, want [%s]", got, event.TypeLeaveSubmitted)
	}
}

func TestEngineSubmitValidation(t *testing.T) {
	f := newFixture()
	draft := engineDraft()
	draft.ManagerEmail = "not-an-email"

	_, err := f.engine.Submit(context.Background(), draft)

	var verr *entity.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(f.store.requests) != 0 {
		t.Error("invalid draft must not be stored")
	}
	if len(f.disp.types()) != 0 {
		t.Error("invalid draft must not emit events")
	}
}

func TestEngineSubmitStoreFailure(t *testing.T) {
	f := newFixture()
	f.store.appendErr = errors.New("disk full")

	_, err := f.engine.Submit(context.Background(), engineDraft())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.requests) != 0 {
		t.Error("failed submission should be rolled back")
	}
}

func TestEngineScenarios(t *testing.T) {
	type step struct {
		stage  entity.Stage
		action entity.Action
	}

	tests := []struct {
		name       string
		steps      []step
		wantStatus entity.Status
		wantStage  entity.Stage
		wantKinds  []entity.NotificationKind
		wantTo     []string
	}{
		{
			name:       "manager and director approve",
			steps:      []step{{entity.StageManager, entity.ActionApprove}, {entity.StageDirector, entity.ActionApprove}},
			wantStatus: entity.StatusApproved,
			wantStage:  entity.StageCompleted,
			wantKinds:  []entity.NotificationKind{entity.KindApprovalForwarded, entity.KindFinalApproved},
			wantTo:     []string{"d@corp.io", "e@corp.io"},
		},
		{
			name:       "manager rejects",
			steps:      []step{{entity.StageManager, entity.ActionReject}},
			wantStatus: entity.StatusRejected,
			wantStage:  entity.StageRejected,
			wantKinds:  []entity.NotificationKind{entity.KindFinalRejected},
			wantTo:     []string{"e@corp.io"},
		},
		{
			name: "director bounces then manager approves twice",
			steps: []step{
				{entity.StageManager, entity.ActionApprove},
				{entity.StageDirector, entity.ActionReject},
				{entity.StageManager, entity.ActionApprove},
				{entity.StageDirector, entity.ActionApprove},
			},
			wantStatus: entity.StatusApproved,
			wantStage:  entity.StageCompleted,
			wantKinds: []entity.NotificationKind{
				entity.KindApprovalForwarded,
				entity.KindReturnedToManager,
				entity.KindApprovalForwarded,
				entity.KindFinalApproved,
			},
			wantTo: []string{"d@corp.io", "m@corp.io", "d@corp.io", "e@corp.io"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.submit(t)

			var last *Result
			for i, s := range tt.steps {
				last = f.act(t, req.ID, s.stage, s.action)
				if last.Intent.Kind != tt.wantKinds[i] {
					t.Errorf("step %d kind = %s, want %s", i, last.Intent.Kind, tt.wantKinds[i])
				}
				if last.Intent.RecipientEmail != tt.wantTo[i] {
					t.Errorf("step %d recipient = %s, want %s", i, last.Intent.RecipientEmail, tt.wantTo[i])
				}
			}

			if last.Request.Status != tt.wantStatus || last.Request.CurrentStage != tt.wantStage {
				t.Errorf("final state = %s/%s, want %s/%s",
					last.Request.Status, last.Request.CurrentStage, tt.wantStatus, tt.wantStage)
			}

			stored, err := f.engine.Get(context.Background(), req.ID)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if len(stored.History) != len(tt.steps)+1 {
				t.Errorf("history length = %d, want %d", len(stored.History), len(tt.steps)+1)
			}
			for i, h := range stored.History {
				if h.Sequence != i {
					t.Errorf("history[%d].Sequence = %d", i, h.Sequence)
				}
			}
			if stored.Version != len(tt.steps)+1 {
				t.Errorf("version = %d, want %d", stored.Version, len(tt.steps)+1)
			}
		})
	}
}

func TestEngineActNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.engine.Act(context.Background(), "missing", entity.StageManager, entity.ActionApprove)
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngineActInvalidTransition(t *testing.T) {
	tests := []struct {
		name   string
		setup  []entity.Stage
		stage  entity.Stage
		action entity.Action
	}{
		{"director acts while pending manager", nil, entity.StageDirector, entity.ActionApprove},
		{"manager acts while pending director", []entity.Stage{entity.StageManager}, entity.StageManager, entity.ActionApprove},
		{"unknown action", nil, entity.StageManager, entity.Action("escalate")},
		{"non actor stage", nil, entity.StageCompleted, entity.ActionApprove},
		{"action on terminal request", []entity.Stage{entity.StageManager, entity.StageDirector}, entity.StageDirector, entity.ActionReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.submit(t)
			for _, s := range tt.setup {
				f.act(t, req.ID, s, entity.ActionApprove)
			}

			before, _ := f.engine.Get(context.Background(), req.ID)
			eventsBefore := len(f.disp.types())

			_, err := f.engine.Act(context.Background(), req.ID, tt.stage, tt.action)

			if !errors.Is(err, domainwf.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			var ite *domainwf.InvalidTransitionError
			if !errors.As(err, &ite) || ite.CurrentState != domainwf.StateOf(before) {
				t.Errorf("error should report current state %s, got %v", domainwf.StateOf(before), err)
			}

			after, _ := f.engine.Get(context.Background(), req.ID)
			if after.Version != before.Version || len(after.History) != len(before.History) {
				t.Error("rejected action must not change the request")
			}
			if len(f.disp.types()) != eventsBefore {
				t.Error("rejected action must not emit events")
			}
		})
	}
}

func TestEngineActUpdateFailure(t *testing.T) {
	f := newFixture()
	req := f.submit(t)
	f.store.updateErr = errors.New("database is locked")

	_, err := f.engine.Act(context.Background(), req.ID, entity.StageManager, entity.ActionApprove)
	if err == nil || !errors.Is(err, f.store.updateErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}

	f.store.updateErr = nil
	after, _ := f.engine.Get(context.Background(), req.ID)
	if after.CurrentStage != entity.StageManager || len(after.History) != 1 {
		t.Error("failed update should leave the request unchanged")
	}
}

func TestEngineActConcurrentUpdateIsBusy(t *testing.T) {
	f := newFixture()
	req := f.submit(t)
	f.store.updateErr = fmt.Errorf("%w: id=%s version=1", port.ErrConcurrentUpdate, req.ID)

	_, err := f.engine.Act(context.Background(), req.ID, entity.StageManager, entity.ActionApprove)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if !errors.Is(err, port.ErrConcurrentUpdate) {
		t.Errorf("expected the store error to stay wrapped, got %v", err)
	}
	if errors.Is(err, domainwf.ErrInvalidTransition) {
		t.Error("a lost update is not an invalid transition")
	}
}

func TestEngineActTransactionFailure(t *testing.T) {
	f := newFixture()
	req := f.submit(t)
	f.tx.commitErr = errors.New("begin failed")

	if _, err := f.engine.Act(context.Background(), req.ID, entity.StageManager, entity.ActionApprove); err == nil {
		t.Fatal("expected transaction error")
	}
}

func TestEngineActConcurrentSameRequest(t *testing.T) {
	f := newFixture()
	req := f.submit(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		invalid   atomic.Int32
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Act(context.Background(), req.ID, entity.StageManager, entity.ActionApprove)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domainwf.ErrInvalidTransition):
				invalid.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 1 || invalid.Load() != workers-1 {
		t.Errorf("succeeded=%d invalid=%d, want 1 and %d", succeeded.Load(), invalid.Load(), workers-1)
	}
	if f.store.updates.Load() != 1 {
		t.Errorf("store updated %d times, want 1", f.store.updates.Load())
	}

	stored, _ := f.engine.Get(context.Background(), req.ID)
	if len(stored.History) != 2 {
		t.Errorf("history length = %d, want 2", len(stored.History))
	}
	if impl := f.engine.(*engineImpl); impl.locks.size() != 0 {
		t.Errorf("lock entries leaked: %d", impl.locks.size())
	}
}

func TestEngineActLockTimeout(t *testing.T) {
	f := newFixture(WithLockTimeout(10 * time.Millisecond))
	req := f.submit(t)

	impl := f.engine.(*engineImpl)
	release, err := impl.locks.Acquire(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	_, err = f.engine.Act(context.Background(), req.ID, entity.StageManager, entity.ActionApprove)
	if !errors.Is(err, ErrBusy) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected busy deadline error while locked, got %v", err)
	}

	release()
	f.act(t, req.ID, entity.StageManager, entity.ActionApprove)
}

func TestEngineActEmitsTransition(t *testing.T) {
	f := newFixture()
	req := f.submit(t)
	f.act(t, req.ID, entity.StageManager, entity.ActionApprove)

	f.disp.mu.Lock()
	evt := f.disp.events[len(f.disp.events)-1]
	f.disp.mu.Unlock()

	if evt.Type != event.TypeLeaveTransitioned {
		t.Fatalf("type = %s", evt.Type)
	}
	if evt.GetPayloadString(event.KeyFrom) != "pending/manager" || evt.GetPayloadString(event.KeyTo) != "pending/director" {
		t.Errorf("payload = %v", evt.Payload)
	}
}

func TestEngineList(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.submit(t)
	}
	f.act(t, "req-1", entity.StageManager, entity.ActionReject)

	pending, err := f.engine.List(context.Background(), entity.ListFilter{Status: entity.StatusPending})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}

	limited, _ := f.engine.List(context.Background(), entity.ListFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}
