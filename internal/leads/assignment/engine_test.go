package assignment

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

type dirUser struct {
	id     uuid.UUID
	teamID *uuid.UUID
	role   string
	active bool
	load   int
}

type fakeDirectory struct {
	users       []dirUser
	territories map[string]uuid.UUID
}

func (d *fakeDirectory) LeastLoadedCandidates(_ context.Context, roles []string, teamID *uuid.UUID) ([]Candidate, error) {
	matched := make([]dirUser, 0)
	for _, user := range d.users {
		if !user.active || !containsRole(roles, user.role) {
			continue
		}
		if teamID != nil && (user.teamID == nil || *user.teamID != *teamID) {
			continue
		}
		matched = append(matched, user)
	}

	// Mirrors the repository ordering: assigned count, then id.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].load != matched[j].load {
			return matched[i].load < matched[j].load
		}
		return bytes.Compare(matched[i].id[:], matched[j].id[:]) < 0
	})

	candidates := make([]Candidate, 0, len(matched))
	for _, user := range matched {
		candidates = append(candidates, Candidate{ID: user.id, TeamID: user.teamID})
	}
	return candidates, nil
}

func (d *fakeDirectory) TeamByTerritory(_ context.Context, code string) (uuid.UUID, bool, error) {
	teamID, ok := d.territories[code]
	return teamID, ok, nil
}

func (d *fakeDirectory) ActiveUser(_ context.Context, id uuid.UUID) (Candidate, bool, error) {
	for _, user := range d.users {
		if user.id == id && user.active {
			return Candidate{ID: user.id, TeamID: user.teamID}, true, nil
		}
	}
	return Candidate{}, false, nil
}

func containsRole(roles []string, role string) bool {
	for _, item := range roles {
		if item == role {
			return true
		}
	}
	return false
}

type fakeStore struct {
	mu          sync.Mutex
	owners      map[uuid.UUID]*uuid.UUID
	assignCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{owners: map[uuid.UUID]*uuid.UUID{}}
}

func (s *fakeStore) OwnerOf(_ context.Context, leadID uuid.UUID) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners[leadID], nil
}

func (s *fakeStore) AssignOwner(_ context.Context, leadID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignCalls++
	if s.owners[leadID] != nil {
		return false, nil
	}
	owner := userID
	s.owners[leadID] = &owner
	return true, nil
}

func (s *fakeStore) ReassignOwner(_ context.Context, leadID, from, to uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignCalls++
	current := s.owners[leadID]
	if current == nil || *current != from {
		return false, nil
	}
	owner := to
	s.owners[leadID] = &owner
	return true, nil
}

func (s *fakeStore) Snapshot(_ context.Context, leadID uuid.UUID) (events.LeadSnapshot, error) {
	return events.LeadSnapshot{ID: leadID}, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, event := range b.events {
		names = append(names, event.EventName())
	}
	return names
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func newEngine(store Store, directory Directory, bus events.Bus) *Engine {
	return NewEngine(store, directory, []Strategy{
		NewTerritoryStrategy(directory),
		NewRoundRobinStrategy(directory),
	}, bus, logger.New("test"))
}

func TestAssignIsIdempotentForOwnedLeads(t *testing.T) {
	store := newFakeStore()
	leadID := uuid.New()
	existing := uuid.New()
	store.owners[leadID] = &existing

	bus := &recordingBus{}
	engine := newEngine(store, &fakeDirectory{}, bus)

	owner, err := engine.Assign(context.Background(), Lead{ID: leadID}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != existing {
		t.Fatalf("expected existing owner %s, got %v", existing, owner)
	}
	if store.assignCalls != 0 {
		t.Errorf("expected no write for an owned lead, got %d writes", store.assignCalls)
	}
	if len(bus.names()) != 0 {
		t.Errorf("expected no events for an owned lead, got %v", bus.names())
	}
}

func TestAssignTerritoryStrategyWinsOverRoundRobin(t *testing.T) {
	teamNorth := uuid.New()
	repNorth := uuid.New()
	repElsewhere := uuid.New()

	directory := &fakeDirectory{
		users: []dirUser{
			{id: repNorth, teamID: uuidPtr(teamNorth), role: "sales_rep", active: true, load: 10},
			{id: repElsewhere, role: "sales_rep", active: true, load: 0},
		},
		territories: map[string]uuid.UUID{"NL-N": teamNorth},
	}

	store := newFakeStore()
	engine := newEngine(store, directory, &recordingBus{})

	code := "NL-N"
	owner, err := engine.Assign(context.Background(), Lead{ID: uuid.New(), TerritoryCode: &code}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	// The territory match wins even though another rep has less load.
	if owner == nil || *owner != repNorth {
		t.Fatalf("expected territory rep %s, got %v", repNorth, owner)
	}
}

func TestAssignFallsThroughToRoundRobinWithoutTerritory(t *testing.T) {
	rep := uuid.New()
	directory := &fakeDirectory{
		users: []dirUser{{id: rep, role: "manager", active: true}},
	}

	engine := newEngine(newFakeStore(), directory, &recordingBus{})

	owner, err := engine.Assign(context.Background(), Lead{ID: uuid.New()}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != rep {
		t.Fatalf("expected round robin pick %s, got %v", rep, owner)
	}
}

func TestAssignTieBreaksOnLowestID(t *testing.T) {
	lower := uuid.MustParse("00000000-0000-0000-0000-000000000005")
	higher := uuid.MustParse("00000000-0000-0000-0000-000000000007")

	directory := &fakeDirectory{
		users: []dirUser{
			{id: higher, role: "sales_rep", active: true, load: 3},
			{id: lower, role: "sales_rep", active: true, load: 3},
		},
	}

	engine := newEngine(newFakeStore(), directory, &recordingBus{})

	owner, err := engine.Assign(context.Background(), Lead{ID: uuid.New()}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != lower {
		t.Fatalf("expected deterministic tie-break on lowest id %s, got %v", lower, owner)
	}
}

func TestAssignPreferredUserBypassesStrategies(t *testing.T) {
	preferred := uuid.New()
	teamNorth := uuid.New()
	territoryRep := uuid.New()

	directory := &fakeDirectory{
		users: []dirUser{
			{id: preferred, role: "manager", active: true, load: 50},
			{id: territoryRep, teamID: uuidPtr(teamNorth), role: "sales_rep", active: true, load: 0},
		},
		territories: map[string]uuid.UUID{"NL-N": teamNorth},
	}

	engine := newEngine(newFakeStore(), directory, &recordingBus{})

	code := "NL-N"
	owner, err := engine.Assign(context.Background(), Lead{ID: uuid.New(), TerritoryCode: &code}, &preferred)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != preferred {
		t.Fatalf("expected preferred user %s, got %v", preferred, owner)
	}
}

func TestAssignInactivePreferredFallsThroughToStrategies(t *testing.T) {
	inactive := uuid.New()
	rep := uuid.New()
	directory := &fakeDirectory{
		users: []dirUser{
			{id: inactive, role: "sales_rep", active: false},
			{id: rep, role: "sales_rep", active: true},
		},
	}

	engine := newEngine(newFakeStore(), directory, &recordingBus{})

	owner, err := engine.Assign(context.Background(), Lead{ID: uuid.New()}, &inactive)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != rep {
		t.Fatalf("expected strategy pick %s after inactive preference, got %v", rep, owner)
	}
}

func TestAssignPreferredReassignsOwnedLead(t *testing.T) {
	leadID := uuid.New()
	existing := uuid.New()
	requested := uuid.New()

	store := newFakeStore()
	store.owners[leadID] = &existing
	directory := &fakeDirectory{
		users: []dirUser{{id: requested, role: "sales_rep", active: true}},
	}

	bus := &recordingBus{}
	engine := newEngine(store, directory, bus)

	owner, err := engine.Assign(context.Background(), Lead{ID: leadID}, &requested)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != requested {
		t.Fatalf("expected new owner %s, got %v", requested, owner)
	}
	if committed := store.owners[leadID]; committed == nil || *committed != requested {
		t.Errorf("expected persisted owner %s, got %v", requested, committed)
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "leads.assigned" {
		t.Errorf("expected a single leads.assigned event, got %v", names)
	}
}

func TestAssignPreferredMatchingOwnerIsNoop(t *testing.T) {
	leadID := uuid.New()
	existing := uuid.New()

	store := newFakeStore()
	store.owners[leadID] = &existing

	bus := &recordingBus{}
	engine := newEngine(store, &fakeDirectory{}, bus)

	owner, err := engine.Assign(context.Background(), Lead{ID: leadID}, &existing)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != existing {
		t.Fatalf("expected existing owner %s, got %v", existing, owner)
	}
	if store.assignCalls != 0 {
		t.Errorf("expected no write when the owner already matches, got %d writes", store.assignCalls)
	}
	if len(bus.names()) != 0 {
		t.Errorf("expected no events, got %v", bus.names())
	}
}

func TestAssignRejectsInactiveRequestedOwnerOnReassign(t *testing.T) {
	leadID := uuid.New()
	existing := uuid.New()
	inactive := uuid.New()

	store := newFakeStore()
	store.owners[leadID] = &existing
	directory := &fakeDirectory{
		users: []dirUser{{id: inactive, role: "sales_rep", active: false}},
	}

	engine := newEngine(store, directory, &recordingBus{})

	if _, err := engine.Assign(context.Background(), Lead{ID: leadID}, &inactive); err == nil {
		t.Fatal("expected error when reassigning to an inactive user")
	}
	if committed := store.owners[leadID]; committed == nil || *committed != existing {
		t.Errorf("expected unchanged owner %s, got %v", existing, committed)
	}
}

func TestAssignNoCandidateLeavesLeadUnassigned(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	engine := newEngine(store, &fakeDirectory{}, bus)

	leadID := uuid.New()
	owner, err := engine.Assign(context.Background(), Lead{ID: leadID}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner != nil {
		t.Fatalf("expected nil owner, got %v", owner)
	}
	if store.owners[leadID] != nil {
		t.Error("expected no owner persisted")
	}
	if len(bus.names()) != 0 {
		t.Errorf("expected no events, got %v", bus.names())
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }
func (failingStrategy) Pick(context.Context, Lead) (*Candidate, error) {
	return nil, errors.New("directory unavailable")
}

func TestAssignSkipsFailingStrategy(t *testing.T) {
	rep := uuid.New()
	directory := &fakeDirectory{
		users: []dirUser{{id: rep, role: "sales_rep", active: true}},
	}

	engine := NewEngine(newFakeStore(), directory, []Strategy{
		failingStrategy{},
		NewRoundRobinStrategy(directory),
	}, &recordingBus{}, logger.New("test"))

	owner, err := engine.Assign(context.Background(), Lead{ID: uuid.New()}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != rep {
		t.Fatalf("expected fallback pick %s after strategy failure, got %v", rep, owner)
	}
}

// racingStore reports no owner on the first read, then lets a concurrent
// winner land before the engine's compare-and-set write.
type racingStore struct {
	*fakeStore
	leadID uuid.UUID
	winner uuid.UUID
	reads  int
}

func (s *racingStore) OwnerOf(ctx context.Context, leadID uuid.UUID) (*uuid.UUID, error) {
	s.reads++
	if s.reads == 1 {
		return nil, nil
	}
	return s.fakeStore.OwnerOf(ctx, leadID)
}

func (s *racingStore) AssignOwner(ctx context.Context, leadID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	winner := s.winner
	s.owners[s.leadID] = &winner
	s.mu.Unlock()
	return false, nil
}

func TestAssignLostRaceReportsCommittedOwner(t *testing.T) {
	leadID := uuid.New()
	winner := uuid.New()
	candidate := uuid.New()

	store := &racingStore{fakeStore: newFakeStore(), leadID: leadID, winner: winner}
	directory := &fakeDirectory{
		users: []dirUser{{id: candidate, role: "sales_rep", active: true}},
	}

	bus := &recordingBus{}
	engine := newEngine(store, directory, bus)

	owner, err := engine.Assign(context.Background(), Lead{ID: leadID}, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if owner == nil || *owner != winner {
		t.Fatalf("expected committed owner %s, got %v", winner, owner)
	}
	for _, name := range bus.names() {
		if name == "leads.assigned" {
			t.Fatal("no event may be published for a lost race")
		}
	}
}

func TestAssignPublishesEventOnWrite(t *testing.T) {
	rep := uuid.New()
	directory := &fakeDirectory{
		users: []dirUser{{id: rep, role: "sales_rep", active: true}},
	}

	bus := &recordingBus{}
	engine := newEngine(newFakeStore(), directory, bus)

	leadID := uuid.New()
	if _, err := engine.Assign(context.Background(), Lead{ID: leadID}, nil); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "leads.assigned" {
		t.Fatalf("expected a single leads.assigned event, got %v", names)
	}

	assigned, ok := bus.events[0].(events.LeadAssigned)
	if !ok {
		t.Fatalf("unexpected event type %T", bus.events[0])
	}
	if assigned.OwnerID != rep || assigned.Lead.ID != leadID {
		t.Errorf("event payload mismatch: %+v", assigned)
	}
}
