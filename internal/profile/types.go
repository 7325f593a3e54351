package profile

// ThinkingMode labels a user's dominant reasoning style.
type ThinkingMode string

const (
	ThinkingAnalytical ThinkingMode = "analytical"
	ThinkingIntuitive  ThinkingMode = "intuitive"
	ThinkingCreative   ThinkingMode = "creative"
)

// CognitiveAspect describes a user's cognitive traits. All continuous
// traits are in [0,1].
type CognitiveAspect struct {
	ThinkingMode        ThinkingMode `json:"thinking_mode"`
	CognitiveComplexity float64      `json:"cognitive_complexity"`
	AbstractionLevel    float64      `json:"abstraction_level"`
	CreativityTendency  float64      `json:"creativity_tendency"`
}

// KnowledgeAspect describes a user's knowledge-domain background.
// CoreDomains is an ordered set; CrossDomainAbility is in [0,1].
type KnowledgeAspect struct {
	CoreDomains        []string `json:"core_domains"`
	CrossDomainAbility float64  `json:"cross_domain_ability"`
}

// UserProfile is the structured view of a user consumed by the profiling
// engine. Either aspect may be nil; consumers must read it defensively.
type UserProfile struct {
	Cognitive *CognitiveAspect `json:"cognitive,omitempty"`
	Knowledge *KnowledgeAspect `json:"knowledge,omitempty"`
}

// Empty reports whether the profile carries no signal at all.
func (p *UserProfile) Empty() bool {
	return p == nil || (p.Cognitive == nil && p.Knowledge == nil)
}
