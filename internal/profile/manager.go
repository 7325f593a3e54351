package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetProfileKey(key string) (string, error)
	GetAllProfileKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Profile keys, dot-notation. Scalar values are stored verbatim,
// core_domains is stored as a JSON array.
const (
	KeyThinkingMode        = "cognitive.thinking_mode"
	KeyCognitiveComplexity = "cognitive.cognitive_complexity"
	KeyAbstractionLevel    = "cognitive.abstraction_level"
	KeyCreativityTendency  = "cognitive.creativity_tendency"
	KeyCoreDomains         = "knowledge.core_domains"
	KeyCrossDomainAbility  = "knowledge.cross_domain_ability"
)

// ValidKeys returns all settable profile keys in sorted order.
func ValidKeys() []string {
	return []string{
		KeyAbstractionLevel,
		KeyCognitiveComplexity,
		KeyCoreDomains,
		KeyCreativityTendency,
		KeyCrossDomainAbility,
		KeyThinkingMode,
	}
}

// Manager provides cached, structured access to the user profile stored in SQLite.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *UserProfile
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// GetProfile reads all profile keys from storage (or cache) and assembles
// a structured UserProfile. An empty store yields a profile with both
// aspects nil, which downstream code treats as "no profile signal".
func (m *Manager) GetProfile() (UserProfile, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := deepCopyProfile(m.cached)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	// Slow path: write lock for cache miss.
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return deepCopyProfile(m.cached), nil
	}

	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return UserProfile{}, fmt.Errorf("loading profile keys: %w", err)
	}

	p := buildProfile(keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return deepCopyProfile(&p), nil
}

// SetField validates and persists a profile key, then invalidates the cache.
func (m *Manager) SetField(key, value string) error {
	normalized, err := validateField(key, value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKey(key, normalized); err != nil {
		return fmt.Errorf("setting profile key %q: %w", key, err)
	}

	m.cached = nil
	return nil
}

// AddCoreDomains merges tags into the stored core domain list, preserving
// order of first appearance. Used by evidence ingestion.
func (m *Manager) AddCoreDomains(tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var existing []string
	if v, err := m.store.GetProfileKey(KeyCoreDomains); err == nil {
		if err := json.Unmarshal([]byte(v), &existing); err != nil {
			slog.Warn("malformed core domains, replacing", "error", err)
			existing = nil
		}
	}

	present := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		present[d] = struct{}{}
	}
	merged := existing
	for _, tag := range tags {
		if _, ok := present[tag]; ok {
			continue
		}
		merged = append(merged, tag)
		present[tag] = struct{}{}
	}
	if len(merged) == len(existing) {
		return nil
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshalling core domains: %w", err)
	}
	if err := m.store.SetProfileKey(KeyCoreDomains, string(b)); err != nil {
		return fmt.Errorf("setting core domains: %w", err)
	}

	m.cached = nil
	return nil
}

// GetSummary returns a compact single-line description of the profile,
// suitable for CLI output and the MCP profile resource.
func (m *Manager) GetSummary() (string, error) {
	p, err := m.GetProfile()
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return summarize(p), nil
}

func summarize(p UserProfile) string {
	var parts []string

	if c := p.Cognitive; c != nil {
		if c.ThinkingMode != "" {
			parts = append(parts, fmt.Sprintf("Thinking mode: %s.", c.ThinkingMode))
		}
		parts = append(parts, fmt.Sprintf(
			"Cognition: complexity %.2f, abstraction %.2f, creativity %.2f.",
			c.CognitiveComplexity, c.AbstractionLevel, c.CreativityTendency))
	}
	if k := p.Knowledge; k != nil {
		if len(k.CoreDomains) > 0 {
			parts = append(parts, fmt.Sprintf("Core domains: %s.", strings.Join(k.CoreDomains, ", ")))
		}
		parts = append(parts, fmt.Sprintf("Cross-domain ability: %.2f.", k.CrossDomainAbility))
	}

	if len(parts) == 0 {
		return "User profile: not yet configured."
	}
	return strings.Join(parts, " ")
}

func deepCopyProfile(p *UserProfile) UserProfile {
	if p == nil {
		return UserProfile{}
	}
	var cp UserProfile
	if p.Cognitive != nil {
		c := *p.Cognitive
		cp.Cognitive = &c
	}
	if p.Knowledge != nil {
		k := *p.Knowledge
		cp.Knowledge = &k
		if k.CoreDomains != nil {
			cp.Knowledge.CoreDomains = make([]string, len(k.CoreDomains))
			copy(cp.Knowledge.CoreDomains, k.CoreDomains)
		}
	}
	return cp
}

// buildProfile assembles a UserProfile from flat key-value pairs. An
// aspect struct is allocated only when at least one of its keys exists,
// so a missing aspect stays distinguishable from an all-zero one.
func buildProfile(keys map[string]string) UserProfile {
	var p UserProfile

	cognitive := func() *CognitiveAspect {
		if p.Cognitive == nil {
			p.Cognitive = &CognitiveAspect{}
		}
		return p.Cognitive
	}
	knowledge := func() *KnowledgeAspect {
		if p.Knowledge == nil {
			p.Knowledge = &KnowledgeAspect{}
		}
		return p.Knowledge
	}

	if v, ok := keys[KeyThinkingMode]; ok {
		cognitive().ThinkingMode = ThinkingMode(v)
	}
	if f, ok := profileFloat(keys, KeyCognitiveComplexity); ok {
		cognitive().CognitiveComplexity = f
	}
	if f, ok := profileFloat(keys, KeyAbstractionLevel); ok {
		cognitive().AbstractionLevel = f
	}
	if f, ok := profileFloat(keys, KeyCreativityTendency); ok {
		cognitive().CreativityTendency = f
	}

	if v, ok := keys[KeyCoreDomains]; ok {
		var domains []string
		if err := json.Unmarshal([]byte(v), &domains); err != nil {
			slog.Warn("malformed profile key, skipping", "key", KeyCoreDomains, "error", err)
		} else {
			knowledge().CoreDomains = domains
		}
	}
	if f, ok := profileFloat(keys, KeyCrossDomainAbility); ok {
		knowledge().CrossDomainAbility = f
	}

	return p
}

func profileFloat(keys map[string]string, key string) (float64, bool) {
	v, ok := keys[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("malformed profile key, skipping", "key", key, "error", err)
		return 0, false
	}
	return f, true
}

// validateField checks a key-value pair and returns the normalised value
// to store.
func validateField(key, value string) (string, error) {
	switch key {
	case KeyThinkingMode:
		switch ThinkingMode(value) {
		case ThinkingAnalytical, ThinkingIntuitive, ThinkingCreative:
			return value, nil
		}
		return "", fmt.Errorf("invalid thinking mode %q (want analytical, intuitive, or creative)", value)

	case KeyCognitiveComplexity, KeyAbstractionLevel, KeyCreativityTendency, KeyCrossDomainAbility:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if f < 0 || f > 1 {
			return "", fmt.Errorf("value for %s must be in [0,1], got %g", key, f)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil

	case KeyCoreDomains:
		var domains []string
		if err := json.Unmarshal([]byte(value), &domains); err != nil {
			// Accept a comma-separated list as a convenience.
			for _, d := range strings.Split(value, ",") {
				if d = strings.TrimSpace(d); d != "" {
					domains = append(domains, d)
				}
			}
		}
		if len(domains) == 0 {
			return "", fmt.Errorf("core domains must be a JSON array or comma-separated list")
		}
		b, err := json.Marshal(domains)
		if err != nil {
			return "", fmt.Errorf("marshalling core domains: %w", err)
		}
		return string(b), nil

	default:
		return "", fmt.Errorf("unknown profile key %q (valid: %s)", key, strings.Join(ValidKeys(), ", "))
	}
}
