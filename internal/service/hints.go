package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/grantseeker/subsidy-bot/internal/domain"
)

const belowParScore = 70

// responseTemplate is the full answer skeleton handed out at hint level 3,
// when two rounds of softer correction have already failed.
const responseTemplate = `Here are the subsidies that match your request:

1. 「<official subsidy name>」 — up to <catalog amount>
   <one-sentence summary of what it covers and who qualifies>
2. 「<official subsidy name>」 — up to <catalog amount>
   <one-sentence summary>
(continue for every matching subsidy, each mentioned exactly once)

Next step: <one concrete follow-up action, e.g. which filter to refine or which application window to check>.`

var levelOneHints = []string{
	"Answer the question directly before adding background.",
	"Cover every part of the user's request, not just the easiest one.",
	"Only recommend subsidies that exist in the official catalog, with their exact amounts.",
	"Never mention the same subsidy more than once.",
}

var sourceFidelityHints = []string{
	"Copy subsidy names and amounts verbatim from the catalog; do not paraphrase or estimate.",
	"Drop any program you cannot verify against the catalog.",
}

var framingExamples = []string{
	"Here are the subsidies that match your criteria:\n1. 「IT Adoption Subsidy」 — up to ¥4,500,000 for software licensing and setup.",
	"Next step: tell me your company size and I can narrow these down further.",
}

// HintService derives regeneration instructions of escalating specificity:
// level 1 directives, level 2 literal examples, level 3 a full template.
type HintService struct {
	logger             *zap.Logger
	progressiveEnabled bool
	failureAnalysis    bool
}

func NewHintService(cfg domain.ValidationConfig, logger *zap.Logger) *HintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HintService{
		logger:             logger,
		progressiveEnabled: cfg.EnableProgressiveHints,
		failureAnalysis:    cfg.EnableFailureAnalysis,
	}
}

func (s *HintService) BuildHints(loopNumber int, critique *domain.CritiqueResult, history []domain.ValidationLoop) *domain.ProgressiveHint {
	level := domain.HintLevelFor(loopNumber)
	if !s.progressiveEnabled {
		level = 1
	}

	hint := &domain.ProgressiveHint{Level: level}
	hint.Hints = append(hint.Hints, levelOneHints...)
	hint.Hints = append(hint.Hints, critique.RegenerationHints...)
	if critique.Lowest.Dimension == domain.DimDataAccuracy {
		hint.Hints = append(hint.Hints, sourceFidelityHints...)
	}

	if level >= 2 {
		hint.Examples = append(hint.Examples, framingExamples...)
		if s.failureAnalysis {
			hint.Hints = append(hint.Hints, s.failureDirectives(history)...)
		}
	}

	if level >= 3 {
		hint.Template = responseTemplate
		if s.failureAnalysis {
			hint.Hints = append(hint.Hints, s.repeatedFailureHints(history)...)
		}
		hint.Hints = append(hint.Hints, reinforcementHints(critique)...)
	}

	s.logger.Debug("progressive hint built",
		zap.Int("loop", loopNumber),
		zap.Int("level", hint.Level),
		zap.Int("hints", len(hint.Hints)),
	)

	return hint
}

// failureDirectives keys extra directives to the kind of failures seen so
// far, tallied per dimension rather than scanned out of log strings.
func (s *HintService) failureDirectives(history []domain.ValidationLoop) []string {
	tally := failureTally(history)

	var directives []string
	if tally[domain.DimDataAccuracy] > 0 {
		directives = append(directives,
			"Broaden the catalog search: include adjacent keywords and related program families before concluding nothing matches.")
	}
	if tally[domain.DimCompleteness] > 0 {
		directives = append(directives,
			"Return at least 5 matching subsidies when the catalog has them; partial lists keep failing review.")
	}
	if tally[domain.DimRelevance] > 0 {
		directives = append(directives,
			"Re-read the question and answer exactly what was asked before adding anything else.")
	}
	return directives
}

func (s *HintService) repeatedFailureHints(history []domain.ValidationLoop) []string {
	tally := failureTally(history)

	var hints []string
	for _, d := range domain.Dimensions() {
		if tally[d] >= 2 {
			hints = append(hints, fmt.Sprintf(
				"%s has now failed %d times in a row - treat fixing it as the single priority of this attempt.",
				d, tally[d]))
		}
	}
	return hints
}

func reinforcementHints(critique *domain.CritiqueResult) []string {
	var hints []string
	for _, d := range domain.Dimensions() {
		if critique.Scores[d] >= domain.DefaultPassThreshold {
			hints = append(hints, fmt.Sprintf("Keep the current approach to %s - it is already scoring well.", d))
		}
	}
	return hints
}

// failureTally counts, per dimension, the loops whose lowest score fell on
// that dimension and stayed below par.
func failureTally(history []domain.ValidationLoop) map[domain.Dimension]int {
	tally := make(map[domain.Dimension]int)
	for _, loop := range history {
		lowest := loop.Critique.Lowest
		if lowest.Score < belowParScore {
			tally[lowest.Dimension]++
		}
	}
	return tally
}

// BuildInstructions renders the hint payload into the correction text sent to
// the answer generator. Pure formatting, no side effects.
func (s *HintService) BuildInstructions(critique *domain.CritiqueResult, hint *domain.ProgressiveHint, history []domain.ValidationLoop) string {
	var sb strings.Builder

	sb.WriteString("=== WHY REGENERATION IS NEEDED ===\n")
	fmt.Fprintf(&sb, "Weakest dimension: %s (%d/100)\n", critique.Lowest.Dimension, critique.Lowest.Score)

	var failing []string
	for _, d := range domain.Dimensions() {
		if critique.Scores[d] < belowParScore {
			failing = append(failing, fmt.Sprintf("%s (%d)", d, critique.Scores[d]))
		}
	}
	if len(failing) > 0 {
		fmt.Fprintf(&sb, "Dimensions below %d: %s\n", belowParScore, strings.Join(failing, ", "))
	}
	sb.WriteString("\n")

	sb.WriteString("=== CORRECTION DIRECTIVES ===\n")
	for i, h := range hint.Hints {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, h)
	}
	sb.WriteString("\n")

	if len(hint.Examples) > 0 {
		sb.WriteString("=== EXPECTED FRAMING EXAMPLES ===\n")
		for _, ex := range hint.Examples {
			fmt.Fprintf(&sb, "- %s\n", ex)
		}
		sb.WriteString("\n")
	}

	if hint.Template != "" {
		sb.WriteString("=== RESPONSE TEMPLATE (follow this shape) ===\n")
		sb.WriteString(hint.Template)
		sb.WriteString("\n\n")
	}

	if len(history) > 0 {
		sb.WriteString("=== PRIOR ATTEMPTS ===\n")
		for _, loop := range history {
			if loop.Critique.Passed {
				continue
			}
			fmt.Fprintf(&sb, "Attempt %d failed on %s (%d/100)\n",
				loop.LoopNumber, loop.Critique.Lowest.Dimension, loop.Critique.Lowest.Score)
		}
	}

	return sb.String()
}
