package profiling

import (
	"encoding/json"
	"reflect"
	"testing"

	"percept/internal/lexicon"
	"percept/internal/profile"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	rules, err := lexicon.Default()
	if err != nil {
		t.Fatalf("loading default rules: %v", err)
	}
	return NewAnalyzer(rules)
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newTestAnalyzer(t)
	req := Request{Profile: &profile.UserProfile{
		Cognitive: &profile.CognitiveAspect{CognitiveComplexity: 0.8, ThinkingMode: profile.ThinkingAnalytical},
		Knowledge: &profile.KnowledgeAspect{CoreDomains: []string{"physics"}, CrossDomainAbility: 0.6},
	}}

	first, err := a.Analyze("分析人工智能对教育的影响", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.Analyze("分析人工智能对教育的影响", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two calls differ:\n%+v\n%+v", first, second)
	}
}

func TestAnalyze_EmptyQueryDefaults(t *testing.T) {
	a := newTestAnalyzer(t)

	p, err := a.Analyze("", Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.TaskCharacteristics.TaskType != TaskRetrieval {
		t.Errorf("TaskType = %q, want %q", p.TaskCharacteristics.TaskType, TaskRetrieval)
	}
	if p.ContextualElements.TimeDimension != TimeCurrent {
		t.Errorf("TimeDimension = %q, want %q", p.ContextualElements.TimeDimension, TimeCurrent)
	}
	if p.ContextualElements.AbstractionLevel != AbstractionConceptual {
		t.Errorf("AbstractionLevel = %q, want %q", p.ContextualElements.AbstractionLevel, AbstractionConceptual)
	}
	if p.ContextualElements.PurposeType != PurposeUnderstanding {
		t.Errorf("PurposeType = %q, want %q", p.ContextualElements.PurposeType, PurposeUnderstanding)
	}
	if len(p.ContextualElements.DomainScope) == 0 {
		t.Error("DomainScope is empty, want at least one entry")
	}
}

func TestAnalyze_LexiconTriggers(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, p ContextProfile)
	}{
		{
			name:  "exploratory cue",
			query: "如何看待远程办公的普及",
			check: func(t *testing.T, p ContextProfile) {
				if p.TaskCharacteristics.TaskType != TaskExploratory {
					t.Errorf("TaskType = %q, want %q", p.TaskCharacteristics.TaskType, TaskExploratory)
				}
			},
		},
		{
			name:  "analytical cue",
			query: "分析这次故障的原因",
			check: func(t *testing.T, p ContextProfile) {
				if p.TaskCharacteristics.TaskType != TaskAnalytical {
					t.Errorf("TaskType = %q, want %q", p.TaskCharacteristics.TaskType, TaskAnalytical)
				}
			},
		},
		{
			name:  "creative cue raises creativity requirement",
			query: "这个产品怎样创新",
			check: func(t *testing.T, p ContextProfile) {
				if p.TaskCharacteristics.TaskType != TaskCreative {
					t.Errorf("TaskType = %q, want %q", p.TaskCharacteristics.TaskType, TaskCreative)
				}
				if p.TaskCharacteristics.CreativityRequirement < 0.7 {
					t.Errorf("CreativityRequirement = %g, want >= 0.7", p.TaskCharacteristics.CreativityRequirement)
				}
			},
		},
		{
			name:  "historical cue",
			query: "这个行业的历史是什么样的",
			check: func(t *testing.T, p ContextProfile) {
				if p.ContextualElements.TimeDimension != TimeHistorical {
					t.Errorf("TimeDimension = %q, want %q", p.ContextualElements.TimeDimension, TimeHistorical)
				}
			},
		},
		{
			name:  "urgency cue",
			query: "紧急：服务挂了",
			check: func(t *testing.T, p ContextProfile) {
				if p.ContextualElements.UrgencyLevel < 0.9 {
					t.Errorf("UrgencyLevel = %g, want >= 0.9", p.ContextualElements.UrgencyLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := a.Analyze(tt.query, Request{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestAnalyze_Bounds(t *testing.T) {
	a := newTestAnalyzer(t)
	queries := []string{
		"",
		"紧急 紧急 马上 尽快 立刻处理这个问题！",
		"如何看待将神经网络的机制创新地应用于教育，结合跨领域的算法与架构设计一个全新的系统?",
		"plain lookup",
	}
	hot := &profile.UserProfile{
		Cognitive: &profile.CognitiveAspect{
			ThinkingMode:        profile.ThinkingAnalytical,
			CognitiveComplexity: 1.0,
			AbstractionLevel:    1.0,
			CreativityTendency:  1.0,
		},
		Knowledge: &profile.KnowledgeAspect{
			CoreDomains:        []string{"math", "art"},
			CrossDomainAbility: 1.0,
		},
	}

	for _, q := range queries {
		for _, up := range []*profile.UserProfile{nil, hot} {
			p, err := a.Analyze(q, Request{Profile: up})
			if err != nil {
				t.Fatalf("Analyze(%q) error: %v", q, err)
			}
			scores := map[string]float64{
				"openness":   p.TaskCharacteristics.OpennessLevel,
				"structure":  p.TaskCharacteristics.StructureRequirement,
				"creativity": p.TaskCharacteristics.CreativityRequirement,
				"crossdom":   p.TaskCharacteristics.CrossDomainLevel,
				"urgency":    p.ContextualElements.UrgencyLevel,
				"complexity": p.ContextualElements.ComplexityLevel,
				"priority":   p.CognitiveNeeds.SupportPriority,
				"confidence": p.ConfidenceScore,
			}
			for name, v := range scores {
				if v < 0 || v > 1 {
					t.Errorf("Analyze(%q): %s = %g out of [0,1]", q, name, v)
				}
			}
			if len(p.ContextualElements.DomainScope) == 0 {
				t.Errorf("Analyze(%q): empty domain scope", q)
			}
		}
	}
}

func TestAnalyze_ProfileFreeRobustness(t *testing.T) {
	a := newTestAnalyzer(t)

	noProfile, err := a.Analyze("查一下首都是哪里", Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emptyProfile, err := a.Analyze("查一下首都是哪里", Request{Profile: &profile.UserProfile{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if noProfile.TaskCharacteristics.TaskType != emptyProfile.TaskCharacteristics.TaskType {
		t.Errorf("task type differs: %q vs %q", noProfile.TaskCharacteristics.TaskType, emptyProfile.TaskCharacteristics.TaskType)
	}
	if noProfile.ContextualElements.TimeDimension != emptyProfile.ContextualElements.TimeDimension ||
		noProfile.ContextualElements.AbstractionLevel != emptyProfile.ContextualElements.AbstractionLevel ||
		noProfile.ContextualElements.PurposeType != emptyProfile.ContextualElements.PurposeType {
		t.Error("categorical defaults differ between missing and empty profile")
	}
}

func TestAnalyze_NeedsConsistency(t *testing.T) {
	a := newTestAnalyzer(t)

	// Creative query with cross-domain cue and a strong profile pushes
	// cross-domain and creativity over their thresholds.
	req := Request{Profile: &profile.UserProfile{
		Knowledge: &profile.KnowledgeAspect{CrossDomainAbility: 1.0},
	}}
	p, err := a.Analyze("能否将生物学的机制创新地应用于建筑设计", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.TaskCharacteristics.CrossDomainLevel > 0.7 {
		found := false
		for _, tag := range p.CognitiveNeeds.KnowledgeSupplement {
			if tag == TagCrossDomainBackground {
				found = true
			}
		}
		if !found {
			t.Errorf("cross_domain_level = %g but knowledge supplement %v lacks %q",
				p.TaskCharacteristics.CrossDomainLevel, p.CognitiveNeeds.KnowledgeSupplement, TagCrossDomainBackground)
		}
	}
	if p.TaskCharacteristics.CreativityRequirement > 0.7 && p.CognitiveNeeds.SupportPriority < 0.7 {
		t.Errorf("creativity %g > 0.7 but support priority = %g, want >= 0.7",
			p.TaskCharacteristics.CreativityRequirement, p.CognitiveNeeds.SupportPriority)
	}
}

func TestAnalyze_MalformedQuery(t *testing.T) {
	a := newTestAnalyzer(t)

	_, err := a.Analyze(string([]byte{0xff, 0xfe, 0xfd}), Request{})
	if err == nil {
		t.Fatal("expected error for invalid UTF-8 query")
	}
}

func TestContextProfile_SerializationRoundTrip(t *testing.T) {
	a := newTestAnalyzer(t)

	p, err := a.Analyze("分析一下数据库架构的历史演进?", Request{Profile: &profile.UserProfile{
		Knowledge: &profile.KnowledgeAspect{CoreDomains: []string{"databases"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshalling profile: %v", err)
	}
	var decoded ContextProfile
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshalling profile: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", p, decoded)
	}
}

type fixedClassifier struct{ task TaskCharacteristics }

func (c fixedClassifier) ClassifyTask(string, *profile.UserProfile) TaskCharacteristics {
	return c.task
}

type fixedExtractor struct{ elements ContextualElements }

func (e fixedExtractor) ExtractElements(string, *profile.UserProfile) ContextualElements {
	return e.elements
}

type recordingPredictor struct {
	gotTask     TaskCharacteristics
	gotElements ContextualElements
	needs       CognitiveNeeds
}

func (p *recordingPredictor) PredictNeeds(task TaskCharacteristics, elements ContextualElements) CognitiveNeeds {
	p.gotTask = task
	p.gotElements = elements
	return p.needs
}

func TestAnalyzerWithStrategies_SwapsStages(t *testing.T) {
	task := TaskCharacteristics{
		TaskType:              TaskCreative,
		OpennessLevel:         0.9,
		StructureRequirement:  0.5,
		CreativityRequirement: 0.8,
		CrossDomainLevel:      0.4,
	}
	elements := ContextualElements{
		TimeDimension:    TimeFuture,
		DomainScope:      []string{"music"},
		AbstractionLevel: AbstractionMeta,
		PurposeType:      PurposeExploration,
		UrgencyLevel:     0.2,
		ComplexityLevel:  0.7,
	}
	pred := &recordingPredictor{needs: CognitiveNeeds{
		ThinkingFramework: []string{"improvisation"},
		SupportPriority:   0.4,
	}}

	a := NewAnalyzerWithStrategies(fixedClassifier{task}, fixedExtractor{elements}, pred)

	got, err := a.Analyze("anything at all", Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(got.TaskCharacteristics, task) {
		t.Errorf("TaskCharacteristics = %+v, want the classifier's output", got.TaskCharacteristics)
	}
	if !reflect.DeepEqual(got.ContextualElements, elements) {
		t.Errorf("ContextualElements = %+v, want the extractor's output", got.ContextualElements)
	}
	if !reflect.DeepEqual(got.CognitiveNeeds, pred.needs) {
		t.Errorf("CognitiveNeeds = %+v, want the predictor's output", got.CognitiveNeeds)
	}
	if !reflect.DeepEqual(pred.gotTask, task) || !reflect.DeepEqual(pred.gotElements, elements) {
		t.Error("predictor did not receive the upstream stage outputs")
	}
	// All four categoricals are non-default, no profile supplied.
	if got.ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore = %g, want 0.9", got.ConfidenceScore)
	}
}
