package profiling

// Confidence weights. The formula is a policy decision, not a contract:
// confidence reflects how decisively the lexicon rules fired versus
// falling through to defaults, plus a bonus for a supplied user profile.
const (
	confidenceBaseline     = 0.5
	confidencePerMatch     = 0.1
	confidenceProfileBonus = 0.1
)

// EstimateConfidence combines classifier certainty into a single scalar
// in [0,1]. A categorical field carrying a non-default label can only
// have been produced by a rule firing (or a profile-driven promotion),
// so the match count is derivable from the two records alone, keeping
// the estimate a pure function of its inputs.
func EstimateConfidence(task TaskCharacteristics, elements ContextualElements, hasProfile bool) float64 {
	matched := 0
	if task.TaskType != TaskRetrieval {
		matched++
	}
	if elements.TimeDimension != TimeCurrent {
		matched++
	}
	if elements.AbstractionLevel != AbstractionConceptual {
		matched++
	}
	if elements.PurposeType != PurposeUnderstanding {
		matched++
	}

	score := confidenceBaseline + confidencePerMatch*float64(matched)
	if hasProfile {
		score += confidenceProfileBonus
	}
	return clamp1(score)
}
