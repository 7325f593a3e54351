package profiling

import (
	"percept/internal/lexicon"
	"percept/internal/profile"
)

// TaskClassifier labels the task's cognitive type and scores its traits.
type TaskClassifier interface {
	ClassifyTask(query string, user *profile.UserProfile) TaskCharacteristics
}

// RuleClassifier classifies tasks by ordered lexicon membership: the
// exploratory, analytical, and creative keyword sets are tested in that
// order and the first match wins. A query with no cue words defaults to
// RETRIEVAL, since absence of cues implies a narrow, lookup-style request.
type RuleClassifier struct {
	rules *lexicon.Table
}

// NewRuleClassifier creates a classifier over the given rule table.
func NewRuleClassifier(rules *lexicon.Table) *RuleClassifier {
	return &RuleClassifier{rules: rules}
}

func (c *RuleClassifier) ClassifyTask(query string, user *profile.UserProfile) TaskCharacteristics {
	taskType := TaskType(lexicon.MatchLabel(query, c.rules.TaskTypes, string(TaskRetrieval)))

	openness := c.rules.Traits[lexicon.TraitOpenness].Score(query)
	structure := c.rules.Traits[lexicon.TraitStructure].Score(query)
	creativity := c.rules.Traits[lexicon.TraitCreativity].Score(query)
	crossDomain := c.rules.Traits[lexicon.TraitCrossDomain].Score(query)

	w := c.rules.Weights
	if user != nil && user.Cognitive != nil {
		cog := user.Cognitive
		if cog.CognitiveComplexity > w.HighComplexityThreshold {
			openness += w.OpennessComplexityDelta
		}
		if cog.ThinkingMode == profile.ThinkingAnalytical {
			structure += w.StructureAnalyticalDelta
		}
		creativity += cog.CreativityTendency * w.CreativityTendencyWeight
	}
	if user != nil && user.Knowledge != nil {
		crossDomain += user.Knowledge.CrossDomainAbility * w.CrossDomainWeight
	}

	return TaskCharacteristics{
		TaskType:              taskType,
		OpennessLevel:         clamp1(openness),
		StructureRequirement:  clamp1(structure),
		CreativityRequirement: clamp1(creativity),
		CrossDomainLevel:      clamp1(crossDomain),
	}
}
