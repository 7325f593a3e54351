package profiling

// NeedsPredictor derives concrete support interventions from the task
// characteristics and contextual elements.
type NeedsPredictor interface {
	PredictNeeds(task TaskCharacteristics, elements ContextualElements) CognitiveNeeds
}

// Recommendation tags appended by the threshold rules below.
const (
	TagCrossDomainBackground     = "cross_domain_background"
	TagCrossDomainConceptMapping = "cross_domain_concept_mapping"
	TagTheoreticalFramework      = "theoretical_framework"
	TagMetacognitivePrimer       = "metacognitive_primer"
	TagPracticeMethods           = "practice_methods"
	TagStepByStepGuide           = "step_by_step_guide"
	TagAnalysisFramework         = "analysis_framework"
	TagLogicalStructure          = "logical_structure"
	TagDivergentThinking         = "divergent_thinking"
	TagDesignThinking            = "design_thinking"
	TagStructuredThinkingTools   = "structured_thinking_tools"
	TagMetacognitiveStrategies   = "metacognitive_strategies"
	TagAnalogyCases              = "analogy_cases"
	TagCrossDomainAssociation    = "cross_domain_association"
	TagUnconventionalThinking    = "unconventional_thinking"
	TagKnowledgeActivation       = "knowledge_activation"
	TagDivergentPractice         = "divergent_practice"
)

// Threshold values for the needs rules.
const (
	crossDomainKnowledgeMin  = 0.7
	crossDomainActivationMin = 0.6
	structureToolsMin        = 0.7
	creativityAnalogyMin     = 0.5
	creativityStretchMin     = 0.7
	opennessPracticeMin      = 0.7
	priorityBaseline         = 0.5
	priorityCreativityDelta  = 0.2
	priorityCrossDomainDelta = 0.2
	priorityStructureDelta   = 0.1
	priorityStructureMin     = 0.8
)

// RulePredictor is a pure derivation over its two input records: each
// output list is built by appending fixed tags whenever a threshold
// condition holds, then deduplicated.
type RulePredictor struct{}

// NewRulePredictor creates a predictor.
func NewRulePredictor() *RulePredictor {
	return &RulePredictor{}
}

func (p *RulePredictor) PredictNeeds(task TaskCharacteristics, elements ContextualElements) CognitiveNeeds {
	var knowledge, thinking, creativity []string

	if task.CrossDomainLevel > crossDomainKnowledgeMin {
		knowledge = append(knowledge, TagCrossDomainBackground, TagCrossDomainConceptMapping)
	}
	// Mutually exclusive by construction: abstraction level is a single
	// enum value.
	switch elements.AbstractionLevel {
	case AbstractionMeta:
		knowledge = append(knowledge, TagTheoreticalFramework, TagMetacognitivePrimer)
	case AbstractionOperational:
		knowledge = append(knowledge, TagPracticeMethods, TagStepByStepGuide)
	}

	switch task.TaskType {
	case TaskAnalytical:
		thinking = append(thinking, TagAnalysisFramework, TagLogicalStructure)
	case TaskExploratory:
		thinking = append(thinking, TagDivergentThinking)
	case TaskCreative:
		thinking = append(thinking, TagDesignThinking)
	}
	if task.StructureRequirement > structureToolsMin {
		thinking = append(thinking, TagStructuredThinkingTools)
	}
	if elements.AbstractionLevel == AbstractionMeta {
		thinking = append(thinking, TagMetacognitiveStrategies)
	}

	if task.CreativityRequirement > creativityAnalogyMin {
		creativity = append(creativity, TagAnalogyCases, TagCrossDomainAssociation)
	}
	if task.CreativityRequirement > creativityStretchMin {
		creativity = append(creativity, TagUnconventionalThinking)
	}
	if task.CrossDomainLevel > crossDomainActivationMin {
		creativity = append(creativity, TagKnowledgeActivation)
	}
	if task.OpennessLevel > opennessPracticeMin {
		creativity = append(creativity, TagDivergentPractice)
	}

	priority := priorityBaseline
	if task.CreativityRequirement > creativityStretchMin {
		priority += priorityCreativityDelta
	}
	if task.CrossDomainLevel > crossDomainKnowledgeMin {
		priority += priorityCrossDomainDelta
	}
	if task.StructureRequirement > priorityStructureMin {
		priority += priorityStructureDelta
	}

	return CognitiveNeeds{
		KnowledgeSupplement:   dedupe(knowledge),
		ThinkingFramework:     dedupe(thinking),
		CreativityStimulation: dedupe(creativity),
		SupportPriority:       clamp1(priority),
	}
}
