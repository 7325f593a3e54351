package profiling

import (
	"math"
	"unicode/utf8"

	"percept/internal/lexicon"
	"percept/internal/profile"
)

// ElementExtractor labels the temporal, domain, abstraction, and purpose
// framing of a task and scores its urgency and complexity.
type ElementExtractor interface {
	ExtractElements(query string, user *profile.UserProfile) ContextualElements
}

// RuleExtractor resolves each categorical field by an ordered lexicon
// check with an explicit default, so every field always carries exactly
// one label.
type RuleExtractor struct {
	rules *lexicon.Table
}

// NewRuleExtractor creates an extractor over the given rule table.
func NewRuleExtractor(rules *lexicon.Table) *RuleExtractor {
	return &RuleExtractor{rules: rules}
}

func (e *RuleExtractor) ExtractElements(query string, user *profile.UserProfile) ContextualElements {
	return ContextualElements{
		TimeDimension:    TimeDimension(lexicon.MatchLabel(query, e.rules.TimeDimensions, string(TimeCurrent))),
		DomainScope:      e.domainScope(query, user),
		AbstractionLevel: e.abstractionLevel(query, user),
		PurposeType:      PurposeType(lexicon.MatchLabel(query, e.rules.PurposeTypes, string(PurposeUnderstanding))),
		UrgencyLevel:     clamp1(e.rules.Traits[lexicon.TraitUrgency].Score(query)),
		ComplexityLevel:  e.complexity(query, user),
	}
}

// abstractionLevel defaults to CONCEPTUAL. When no lexical cue applies, a
// user with high abstraction capability promotes the default to META.
func (e *RuleExtractor) abstractionLevel(query string, user *profile.UserProfile) AbstractionLevel {
	for _, r := range e.rules.AbstractionLevels {
		if lexicon.MatchAny(query, r.Keywords) {
			return AbstractionLevel(r.Label)
		}
	}
	if user != nil && user.Cognitive != nil &&
		user.Cognitive.AbstractionLevel > e.rules.Weights.MetaPromotionThreshold {
		return AbstractionMeta
	}
	return AbstractionConceptual
}

// domainScope starts from the user's declared core domains (or the
// sentinel default) and extends it with domain tags inferred from
// technical keyword groups in the query. Tags already present are not
// appended again; the declared domains are never replaced.
func (e *RuleExtractor) domainScope(query string, user *profile.UserProfile) []string {
	var scope []string
	if user != nil && user.Knowledge != nil && len(user.Knowledge.CoreDomains) > 0 {
		scope = append(scope, user.Knowledge.CoreDomains...)
	} else {
		scope = append(scope, DefaultDomain)
	}

	present := make(map[string]struct{}, len(scope))
	for _, d := range scope {
		present[d] = struct{}{}
	}
	for _, r := range e.rules.Domains {
		if _, ok := present[r.Tag]; ok {
			continue
		}
		if lexicon.MatchAny(query, r.Keywords) {
			scope = append(scope, r.Tag)
			present[r.Tag] = struct{}{}
		}
	}
	return scope
}

// complexity derives primarily from query length, with a flat bump for
// technical terminology and a small bump for high-cognitive-complexity
// users.
func (e *RuleExtractor) complexity(query string, user *profile.UserProfile) float64 {
	c := e.rules.Complexity
	length := math.Min(c.LengthCap, float64(utf8.RuneCountInString(query))/c.RuneDivisor)
	score := c.Baseline + length
	if lexicon.MatchAny(query, e.rules.TechnicalTerms) {
		score += c.TechnicalDelta
	}
	if user != nil && user.Cognitive != nil &&
		user.Cognitive.CognitiveComplexity > e.rules.Weights.HighComplexityThreshold {
		score += c.ProfileDelta
	}
	return clamp1(score)
}
