// Package profiling derives a structured description of a query's
// cognitive shape: what kind of task it is, which situational dimensions
// it spans, and what cognitive support it likely requires. Scoring is
// deterministic and rule-driven (lexicon membership plus fixed deltas)
// with no semantic language understanding.
package profiling

// TaskType labels the cognitive type of a task.
type TaskType string

const (
	TaskExploratory TaskType = "exploratory"
	TaskAnalytical  TaskType = "analytical"
	TaskCreative    TaskType = "creative"
	TaskRetrieval   TaskType = "retrieval"
)

// TimeDimension labels the temporal framing of a task.
type TimeDimension string

const (
	TimeHistorical TimeDimension = "historical"
	TimeCurrent    TimeDimension = "current"
	TimeFuture     TimeDimension = "future"
)

// AbstractionLevel labels whether a task sits at the operational,
// conceptual, or meta level.
type AbstractionLevel string

const (
	AbstractionOperational AbstractionLevel = "operational"
	AbstractionConceptual  AbstractionLevel = "conceptual"
	AbstractionMeta        AbstractionLevel = "meta"
)

// PurposeType labels what the user is trying to get out of the task.
type PurposeType string

const (
	PurposeUnderstanding PurposeType = "understanding"
	PurposeApplication   PurposeType = "application"
	PurposeVerification  PurposeType = "verification"
	PurposeExploration   PurposeType = "exploration"
)

// TaskCharacteristics is the cognitive shape of the task itself: its type
// plus four graded traits, each in [0,1].
type TaskCharacteristics struct {
	TaskType              TaskType `json:"task_type"`
	OpennessLevel         float64  `json:"openness_level"`
	StructureRequirement  float64  `json:"structure_requirement"`
	CreativityRequirement float64  `json:"creativity_requirement"`
	CrossDomainLevel      float64  `json:"cross_domain_level"`
}

// ContextualElements is the situational framing of the task. DomainScope
// is an ordered set and is never empty.
type ContextualElements struct {
	TimeDimension    TimeDimension    `json:"time_dimension"`
	DomainScope      []string         `json:"domain_scope"`
	AbstractionLevel AbstractionLevel `json:"abstraction_level"`
	PurposeType      PurposeType      `json:"purpose_type"`
	UrgencyLevel     float64          `json:"urgency_level"`
	ComplexityLevel  float64          `json:"complexity_level"`
}

// CognitiveNeeds lists recommended support interventions. The three tag
// lists are deduplicated; their order is not significant.
type CognitiveNeeds struct {
	KnowledgeSupplement   []string `json:"knowledge_supplement"`
	ThinkingFramework     []string `json:"thinking_framework"`
	CreativityStimulation []string `json:"creativity_stimulation"`
	SupportPriority       float64  `json:"support_priority"`
}

// ContextProfile is the full profiling result handed to downstream
// retrieval and response-shaping components. Every field maps to a
// primitive, string, list, or nested record, so it serializes losslessly.
type ContextProfile struct {
	TaskCharacteristics TaskCharacteristics `json:"task_characteristics"`
	ContextualElements  ContextualElements  `json:"contextual_elements"`
	CognitiveNeeds      CognitiveNeeds      `json:"cognitive_needs"`
	ConfidenceScore     float64             `json:"confidence_score"`
}

// DefaultDomain is the sentinel domain tag used when neither the user
// profile nor the query yields a domain.
const DefaultDomain = "general"

// clamp1 caps a score at 1.0. Baselines and deltas are non-negative, so
// no floor clamp is needed, but keep one anyway so a mistuned rule table
// cannot push a score below zero.
func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// dedupe removes duplicate tags preserving first-seen order.
func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
