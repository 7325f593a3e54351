package profiling

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"percept/internal/lexicon"
	"percept/internal/profile"
)

// ErrMalformedQuery is returned when the query is not valid UTF-8 text.
var ErrMalformedQuery = errors.New("query is not valid UTF-8")

// Request carries the optional caller context for one profiling call.
type Request struct {
	// Profile is the user profile, or nil when none is known. Absence
	// never fails; every component falls back to profile-free defaults.
	Profile *profile.UserProfile
	// Metadata is opaque caller metadata; the engine does not interpret
	// it.
	Metadata map[string]string
}

// Analyzer runs the profiling steps in fixed order (task classification,
// element extraction, needs prediction, confidence estimation) and
// assembles the ContextProfile. It is stateless apart from the read-only
// rule table its strategies share, so concurrent calls are safe.
type Analyzer struct {
	classifier TaskClassifier
	extractor  ElementExtractor
	predictor  NeedsPredictor
}

// NewAnalyzer wires the rule-backed strategies over a shared rule table.
func NewAnalyzer(rules *lexicon.Table) *Analyzer {
	return &Analyzer{
		classifier: NewRuleClassifier(rules),
		extractor:  NewRuleExtractor(rules),
		predictor:  NewRulePredictor(),
	}
}

// NewAnalyzerWithStrategies wires explicit strategy implementations, so
// a single stage can be replaced without touching the others.
func NewAnalyzerWithStrategies(c TaskClassifier, e ElementExtractor, p NeedsPredictor) *Analyzer {
	return &Analyzer{classifier: c, extractor: e, predictor: p}
}

// Analyze profiles a single query. It always returns a fully populated
// profile for well-formed input; the only error class is malformed input.
func (a *Analyzer) Analyze(query string, req Request) (ContextProfile, error) {
	if !utf8.ValidString(query) {
		return ContextProfile{}, fmt.Errorf("analyzing query: %w", ErrMalformedQuery)
	}

	user := req.Profile
	task := a.classifier.ClassifyTask(query, user)
	elements := a.extractor.ExtractElements(query, user)
	needs := a.predictor.PredictNeeds(task, elements)
	confidence := EstimateConfidence(task, elements, !user.Empty())

	return ContextProfile{
		TaskCharacteristics: task,
		ContextualElements:  elements,
		CognitiveNeeds:      needs,
		ConfidenceScore:     confidence,
	}, nil
}
