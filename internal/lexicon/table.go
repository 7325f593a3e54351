package lexicon

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed rules.json
var defaultRulesFS embed.FS

// LabelRule maps a keyword set to a classification label. Rules are
// evaluated in declaration order; the first match wins.
type LabelRule struct {
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
}

// DeltaRule maps a keyword set to a score increment.
type DeltaRule struct {
	Keywords []string `json:"keywords"`
	Delta    float64  `json:"delta"`
}

// TraitRule scores a continuous trait: a fixed baseline plus deltas from
// matching rules. When Stack is false only the first matching rule
// contributes, so cue variants of the same signal are not double counted.
type TraitRule struct {
	Baseline float64     `json:"baseline"`
	Stack    bool        `json:"stack"`
	Rules    []DeltaRule `json:"rules"`
}

// DomainRule maps a keyword group to a domain tag.
type DomainRule struct {
	Tag      string   `json:"tag"`
	Keywords []string `json:"keywords"`
}

// ComplexityRule parameterises the query-complexity estimate: a baseline,
// a length-proportional term (runes divided by RuneDivisor, capped at
// LengthCap), a flat bump when technical terms appear, and a bump for
// high-cognitive-complexity users.
type ComplexityRule struct {
	Baseline       float64 `json:"baseline"`
	RuneDivisor    float64 `json:"rune_divisor"`
	LengthCap      float64 `json:"length_cap"`
	TechnicalDelta float64 `json:"technical_delta"`
	ProfileDelta   float64 `json:"profile_delta"`
}

// ProfileWeights holds the additive nudges contributed by user-profile
// signals during classification and extraction.
type ProfileWeights struct {
	OpennessComplexityDelta  float64 `json:"openness_complexity_delta"`
	StructureAnalyticalDelta float64 `json:"structure_analytical_delta"`
	CreativityTendencyWeight float64 `json:"creativity_tendency_weight"`
	CrossDomainWeight        float64 `json:"cross_domain_weight"`
	HighComplexityThreshold  float64 `json:"high_complexity_threshold"`
	MetaPromotionThreshold   float64 `json:"meta_promotion_threshold"`
}

// Table is the full rule table: keyword lexicons and score deltas for
// every categorical and continuous decision the profiling engine makes.
// It is loaded once at startup and treated as read-only afterwards.
type Table struct {
	TaskTypes         []LabelRule          `json:"task_types"`
	TimeDimensions    []LabelRule          `json:"time_dimensions"`
	AbstractionLevels []LabelRule          `json:"abstraction_levels"`
	PurposeTypes      []LabelRule          `json:"purpose_types"`
	Traits            map[string]TraitRule `json:"traits"`
	Domains           []DomainRule         `json:"domains"`
	TechnicalTerms    []string             `json:"technical_terms"`
	Complexity        ComplexityRule       `json:"complexity"`
	Weights           ProfileWeights       `json:"profile_weights"`
}

// Trait names used as keys in Table.Traits.
const (
	TraitOpenness    = "openness"
	TraitStructure   = "structure"
	TraitCreativity  = "creativity"
	TraitCrossDomain = "cross_domain"
	TraitUrgency     = "urgency"
)

// Default returns the built-in rule table.
func Default() (*Table, error) {
	data, err := defaultRulesFS.ReadFile("rules.json")
	if err != nil {
		return nil, fmt.Errorf("reading embedded rules: %w", err)
	}
	return parse(data)
}

// Load reads a rule table from path. An empty path returns the built-in
// defaults.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table %s: %w", path, err)
	}
	t, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rule table %s: %w", path, err)
	}
	return t, nil
}

func parse(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshalling rule table: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	for _, name := range []string{TraitOpenness, TraitStructure, TraitCreativity, TraitCrossDomain, TraitUrgency} {
		tr, ok := t.Traits[name]
		if !ok {
			return fmt.Errorf("rule table missing trait %q", name)
		}
		if tr.Baseline < 0 || tr.Baseline > 1 {
			return fmt.Errorf("trait %q baseline %g out of [0,1]", name, tr.Baseline)
		}
		for _, r := range tr.Rules {
			if r.Delta < 0 {
				return fmt.Errorf("trait %q has negative delta %g", name, r.Delta)
			}
		}
	}
	if len(t.TaskTypes) == 0 {
		return fmt.Errorf("rule table has no task type rules")
	}
	if t.Complexity.RuneDivisor <= 0 {
		return fmt.Errorf("complexity rune_divisor must be positive, got %g", t.Complexity.RuneDivisor)
	}
	return nil
}

// MatchAny reports whether query contains any of the keywords. Matching
// is case-insensitive. English keywords match on word boundaries so that
// short cues like "AI" or "art" cannot fire inside unrelated words
// ("explain", "start"); CJK keywords have no word boundaries and match as
// substrings.
func MatchAny(query string, keywords []string) bool {
	q := strings.ToLower(query)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		k := strings.ToLower(kw)
		if asciiWords(k) {
			if containsWord(q, k) {
				return true
			}
			continue
		}
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// asciiWords reports whether a lowercased keyword is plain English text:
// letters and digits, possibly joined by spaces, hyphens, or apostrophes.
func asciiWords(kw string) bool {
	hasLetter := false
	for i := 0; i < len(kw); i++ {
		switch c := kw[i]; {
		case c >= 'a' && c <= 'z':
			hasLetter = true
		case c >= '0' && c <= '9', c == ' ', c == '-', c == '\'':
		default:
			return false
		}
	}
	return hasLetter
}

// containsWord reports whether kw occurs in q with a non-word byte (or
// the string edge) on both sides. Multi-byte runes never count as word
// bytes, so a cue adjacent to CJK text still matches.
func containsWord(q, kw string) bool {
	for from := 0; from+len(kw) <= len(q); {
		i := strings.Index(q[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(kw)
		if (i == 0 || !isWordByte(q[i-1])) && (end == len(q) || !isWordByte(q[end])) {
			return true
		}
		from = i + 1
	}
	return false
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// MatchLabel returns the label of the first rule whose keyword set matches
// the query, or fallback if none does.
func MatchLabel(query string, rules []LabelRule, fallback string) string {
	for _, r := range rules {
		if MatchAny(query, r.Keywords) {
			return r.Label
		}
	}
	return fallback
}

// Score evaluates a trait rule against the query: baseline plus the first
// matching delta (or every matching delta when the trait stacks).
func (tr TraitRule) Score(query string) float64 {
	score := tr.Baseline
	for _, r := range tr.Rules {
		if !MatchAny(query, r.Keywords) {
			continue
		}
		score += r.Delta
		if !tr.Stack {
			break
		}
	}
	return score
}
