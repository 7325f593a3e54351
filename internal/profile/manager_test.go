package profile

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	data map[string]string

	getAllCalls int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) SetProfileKey(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockStore) GetProfileKey(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", nil
	}
	return v, nil
}

func (m *mockStore) GetAllProfileKeys() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getAllCalls++
	cp := make(map[string]string, len(m.data))
	for k, v := range m.data {
		cp[k] = v
	}
	return cp, nil
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

func TestGetProfile_Empty(t *testing.T) {
	mgr := NewManager(newMockStore())

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cognitive != nil || p.Knowledge != nil {
		t.Errorf("expected nil aspects for empty store, got %+v", p)
	}
	if !p.Empty() {
		t.Error("Empty() = false for empty profile")
	}
}

func TestSetAndGetField(t *testing.T) {
	mgr := NewManager(newMockStore())

	if err := mgr.SetField(KeyThinkingMode, "analytical"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}
	if err := mgr.SetField(KeyCrossDomainAbility, "0.8"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if p.Cognitive == nil || p.Cognitive.ThinkingMode != ThinkingAnalytical {
		t.Errorf("ThinkingMode not persisted: %+v", p.Cognitive)
	}
	if p.Knowledge == nil || p.Knowledge.CrossDomainAbility != 0.8 {
		t.Errorf("CrossDomainAbility not persisted: %+v", p.Knowledge)
	}
}

func TestSetField_Validation(t *testing.T) {
	mgr := NewManager(newMockStore())

	tests := []struct {
		key   string
		value string
	}{
		{KeyThinkingMode, "wishful"},
		{KeyCognitiveComplexity, "high"},
		{KeyCognitiveComplexity, "1.5"},
		{KeyCrossDomainAbility, "-0.1"},
		{KeyCoreDomains, ""},
		{"identity.role", "engineer"},
	}
	for _, tt := range tests {
		if err := mgr.SetField(tt.key, tt.value); err == nil {
			t.Errorf("SetField(%q, %q): expected error", tt.key, tt.value)
		}
	}
}

func TestSetField_CoreDomainsForms(t *testing.T) {
	mgr := NewManager(newMockStore())

	if err := mgr.SetField(KeyCoreDomains, `["physics","art"]`); err != nil {
		t.Fatalf("JSON form rejected: %v", err)
	}
	p, _ := mgr.GetProfile()
	if !reflect.DeepEqual(p.Knowledge.CoreDomains, []string{"physics", "art"}) {
		t.Errorf("CoreDomains = %v", p.Knowledge.CoreDomains)
	}

	if err := mgr.SetField(KeyCoreDomains, "biology, music"); err != nil {
		t.Fatalf("comma form rejected: %v", err)
	}
	p, _ = mgr.GetProfile()
	if !reflect.DeepEqual(p.Knowledge.CoreDomains, []string{"biology", "music"}) {
		t.Errorf("CoreDomains = %v", p.Knowledge.CoreDomains)
	}
}

func TestAddCoreDomains(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	if err := mgr.SetField(KeyCoreDomains, `["physics"]`); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := mgr.AddCoreDomains([]string{"physics", "art", "art"}); err != nil {
		t.Fatalf("AddCoreDomains: %v", err)
	}

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	want := []string{"physics", "art"}
	if !reflect.DeepEqual(p.Knowledge.CoreDomains, want) {
		t.Errorf("CoreDomains = %v, want %v", p.Knowledge.CoreDomains, want)
	}

	// No-op merge does not touch the store.
	before := store.data[KeyCoreDomains]
	if err := mgr.AddCoreDomains([]string{"physics"}); err != nil {
		t.Fatalf("AddCoreDomains: %v", err)
	}
	if store.data[KeyCoreDomains] != before {
		t.Error("no-op merge rewrote the stored value")
	}
}

func TestGetProfile_CacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mgr := NewManagerWithClock(store, clock, time.Minute)

	if _, err := mgr.GetProfile(); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if _, err := mgr.GetProfile(); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if store.getAllCalls != 1 {
		t.Errorf("getAllCalls = %d, want 1 (second read from cache)", store.getAllCalls)
	}

	clock.Advance(2 * time.Minute)
	if _, err := mgr.GetProfile(); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if store.getAllCalls != 2 {
		t.Errorf("getAllCalls = %d, want 2 after TTL expiry", store.getAllCalls)
	}
}

func TestGetProfile_CopyIsolation(t *testing.T) {
	mgr := NewManager(newMockStore())
	if err := mgr.SetField(KeyCoreDomains, `["physics"]`); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	p1, _ := mgr.GetProfile()
	p1.Knowledge.CoreDomains[0] = "mutated"

	p2, _ := mgr.GetProfile()
	if p2.Knowledge.CoreDomains[0] != "physics" {
		t.Error("caller mutation leaked into the cached profile")
	}
}

func TestGetSummary(t *testing.T) {
	mgr := NewManager(newMockStore())

	summary, err := mgr.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary == "" {
		t.Error("expected non-empty summary for empty profile")
	}

	mgr.SetField(KeyThinkingMode, "creative")
	mgr.SetField(KeyCoreDomains, `["music"]`)
	summary, err = mgr.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary == "User profile: not yet configured." {
		t.Error("summary did not reflect configured fields")
	}
}

func TestBuildProfile_MalformedValuesSkipped(t *testing.T) {
	store := newMockStore()
	store.data[KeyCognitiveComplexity] = "not-a-number"
	store.data[KeyCoreDomains] = "{broken"
	store.data[KeyThinkingMode] = "analytical"
	mgr := NewManager(store)

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Cognitive == nil || p.Cognitive.ThinkingMode != ThinkingAnalytical {
		t.Errorf("valid key lost: %+v", p.Cognitive)
	}
	if p.Cognitive.CognitiveComplexity != 0 {
		t.Errorf("malformed float was not skipped: %g", p.Cognitive.CognitiveComplexity)
	}
	if p.Knowledge != nil && len(p.Knowledge.CoreDomains) != 0 {
		t.Errorf("malformed domains were not skipped: %+v", p.Knowledge)
	}
}
