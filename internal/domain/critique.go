package domain

type Dimension string

const (
	DimRelevance    Dimension = "relevance"
	DimCompleteness Dimension = "completeness"
	DimDataAccuracy Dimension = "dataAccuracy"
	DimFollowUp     Dimension = "followUp"
	DimPresentation Dimension = "presentationQuality"
)

// Dimensions returns the rubric dimensions in their fixed order.
// Tie-breaks on lowest score resolve to the first dimension in this slice.
func Dimensions() []Dimension {
	return []Dimension{
		DimRelevance,
		DimCompleteness,
		DimDataAccuracy,
		DimFollowUp,
		DimPresentation,
	}
}

type Scores map[Dimension]int

type DimensionScore struct {
	Dimension Dimension
	Score     int
}

func ZeroScores() Scores {
	s := make(Scores, len(Dimensions()))
	for _, d := range Dimensions() {
		s[d] = 0
	}
	return s
}

// Normalize fills in any dimension the grader omitted with 0.
func (s Scores) Normalize() {
	for _, d := range Dimensions() {
		if _, ok := s[d]; !ok {
			s[d] = 0
		}
	}
}

func (s Scores) Sum() int {
	total := 0
	for _, d := range Dimensions() {
		total += s[d]
	}
	return total
}

func (s Scores) Average() float64 {
	if len(Dimensions()) == 0 {
		return 0
	}
	return float64(s.Sum()) / float64(len(Dimensions()))
}

// Lowest returns the minimum-scoring dimension, first-in-order on ties.
func (s Scores) Lowest() DimensionScore {
	dims := Dimensions()
	lowest := DimensionScore{Dimension: dims[0], Score: s[dims[0]]}
	for _, d := range dims[1:] {
		if s[d] < lowest.Score {
			lowest = DimensionScore{Dimension: d, Score: s[d]}
		}
	}
	return lowest
}

func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for d, v := range s {
		out[d] = v
	}
	return out
}

type Action string

const (
	ActionApprove          Action = "approve"
	ActionRegenerate       Action = "regenerate"
	ActionAskClarification Action = "ask_clarification"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionRegenerate, ActionAskClarification:
		return true
	}
	return false
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

type Issue struct {
	Type        string
	Description string
	Severity    Severity
	Example     string
}

// CritiqueResult is the outcome of one quality assessment of a candidate
// answer. Scores always carries exactly the five rubric dimensions.
type CritiqueResult struct {
	Scores                 Scores
	Lowest                 DimensionScore
	Passed                 bool
	Action                 Action
	Issues                 []Issue
	ClarificationQuestions []string
	RegenerationHints      []string
	ImprovedResponse       string
}

// Finalize recomputes Lowest and Passed after scores were adjusted.
// Must be called after any override mutates Scores.
func (c *CritiqueResult) Finalize(passThreshold int) {
	c.Scores.Normalize()
	c.Lowest = c.Scores.Lowest()
	c.Passed = true
	for _, d := range Dimensions() {
		if c.Scores[d] < passThreshold {
			c.Passed = false
			break
		}
	}
}

func (c *CritiqueResult) HasCriticalIssues() bool {
	for _, issue := range c.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
