package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantseeker/subsidy-bot/internal/cache"
	"github.com/grantseeker/subsidy-bot/internal/dataset"
	"github.com/grantseeker/subsidy-bot/internal/domain"
	"github.com/grantseeker/subsidy-bot/internal/extract"
	"github.com/grantseeker/subsidy-bot/internal/llm"
	"github.com/grantseeker/subsidy-bot/internal/metrics"
)

const GraderSystemPrompt = `You are a strict quality reviewer for a government-subsidy search assistant.

Score the candidate answer on five dimensions, each 0-100:
1. relevance: does it address what the user actually asked?
2. completeness: does it cover every part of the request?
3. dataAccuracy: are subsidy names, amounts and conditions correct?
4. followUp: does it guide the user toward a useful next step?
5. presentationQuality: is it clearly structured and readable?

Automated findings about the answer are included in the payload. Treat them as
ground truth: they were verified against the official subsidy catalog.

Response format (JSON only):
{
  "scores": {"relevance": 0, "completeness": 0, "dataAccuracy": 0, "followUp": 0, "presentationQuality": 0},
  "action": "approve" | "regenerate" | "ask_clarification",
  "issues": [{"type": "...", "description": "...", "severity": "critical|warning|info", "example": "..."}],
  "clarification_questions": ["..."],
  "regeneration_hints": ["..."],
  "improved_response": ""
}

Use "ask_clarification" only when the question cannot be answered without more
information from the user. Use "improved_response" only for minor fixes that do
not need a full regeneration.`

// Exhaustive-request entity floors. An answer to a "list all" question with
// fewer distinct subsidies than the floor cannot score well on data accuracy.
const (
	exhaustiveEntityFloor   = 20
	itExhaustiveEntityFloor = 8
	itEntityFloor           = 5
)

type CritiqueConfig struct {
	PassThreshold int
	CacheTTL      time.Duration
}

type CritiqueServiceDeps struct {
	Grader    llm.Client
	Extractor extract.Extractor
	Index     *dataset.Index
	Cache     cache.Cache
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Config    CritiqueConfig
}

// CritiqueService runs one quality assessment: deterministic entity checks
// against the reference catalog, then the LLM grader, then rule overrides
// that cap dataAccuracy regardless of what the grader said.
type CritiqueService struct {
	grader    llm.Client
	extractor extract.Extractor
	index     *dataset.Index
	cache     cache.Cache
	logger    *zap.Logger
	metrics   *metrics.Metrics
	config    CritiqueConfig
}

func NewCritiqueService(deps CritiqueServiceDeps) *CritiqueService {
	if deps.Config.PassThreshold == 0 {
		deps.Config.PassThreshold = domain.DefaultPassThreshold
	}
	if deps.Config.CacheTTL == 0 {
		deps.Config.CacheTTL = 10 * time.Minute
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewPatternExtractor()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &CritiqueService{
		grader:    deps.Grader,
		extractor: deps.Extractor,
		index:     deps.Index,
		cache:     deps.Cache,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		config:    deps.Config,
	}
}

// answerFindings is the deterministic validation snapshot computed before the
// grader is consulted. Later override rules key off it.
type answerFindings struct {
	Entities        []string
	Invalid         []string
	DetailIncorrect []string
	Duplicates      []string
	Exhaustive      bool
	ITSector        bool
}

func (s *CritiqueService) Review(ctx context.Context, question, answer string, rctx domain.ReviewContext) (*domain.CritiqueResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	findings := s.inspect(question, answer)

	s.logger.Debug("answer inspected",
		zap.Int("entities", len(findings.Entities)),
		zap.Int("invalid", len(findings.Invalid)),
		zap.Int("amount_mismatches", len(findings.DetailIncorrect)),
		zap.Int("duplicates", len(findings.Duplicates)),
		zap.Bool("exhaustive_request", findings.Exhaustive),
	)

	verdict, err := s.grade(ctx, question, answer, rctx, findings)
	if err != nil {
		return nil, err
	}

	s.applyOverrides(verdict, findings)
	verdict.Finalize(s.config.PassThreshold)
	if !verdict.Action.IsValid() {
		if verdict.Passed {
			verdict.Action = domain.ActionApprove
		} else {
			verdict.Action = domain.ActionRegenerate
		}
	}

	s.logger.Info("critique completed",
		zap.Bool("passed", verdict.Passed),
		zap.String("action", string(verdict.Action)),
		zap.String("lowest_dimension", string(verdict.Lowest.Dimension)),
		zap.Int("lowest_score", verdict.Lowest.Score),
	)

	return verdict, nil
}

func (s *CritiqueService) inspect(question, answer string) answerFindings {
	f := answerFindings{
		Entities:   s.extractor.Extract(answer),
		Duplicates: extract.Duplicates(answer),
		Exhaustive: isExhaustiveRequest(question),
		ITSector:   isITRequest(question),
	}

	if s.index == nil {
		return f
	}

	for _, name := range f.Entities {
		record, ok := s.index.Lookup(name)
		if !ok {
			f.Invalid = append(f.Invalid, name)
			continue
		}
		if claimed, ok := claimedAmount(answer, name); ok {
			if !dataset.AmountWithin(claimed, record.ReferenceAmount) {
				f.DetailIncorrect = append(f.DetailIncorrect, name)
			}
		}
	}

	return f
}

func (s *CritiqueService) grade(ctx context.Context, question, answer string, rctx domain.ReviewContext, f answerFindings) (*domain.CritiqueResult, error) {
	key := graderCacheKey(question, answer)

	raw, cached := "", false
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if text, ok := v.(string); ok {
				raw, cached = text, true
				if s.metrics != nil {
					s.metrics.RecordCacheHit()
				}
			}
		}
	}

	if !cached {
		if s.cache != nil && s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}

		start := time.Now()
		response, err := s.grader.CompleteWithSystem(ctx, GraderSystemPrompt, s.buildPrompt(question, answer, rctx, f))
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordGraderRequest("error", time.Since(start))
			}
			s.logger.Error("grader request failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrGradingUnavailable, err)
		}
		if s.metrics != nil {
			s.metrics.RecordGraderRequest("success", time.Since(start))
		}
		raw = response
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		s.logger.Warn("grader verdict unparsable",
			zap.Error(err),
			zap.String("response", raw),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrGradingUnavailable, err)
	}

	if s.cache != nil && !cached {
		s.cache.Set(key, raw, s.config.CacheTTL)
	}

	return verdict, nil
}

func (s *CritiqueService) buildPrompt(question, answer string, rctx domain.ReviewContext, f answerFindings) string {
	var sb strings.Builder

	sb.WriteString("=== USER QUESTION ===\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("=== CONVERSATION CONTEXT ===\n")
	fmt.Fprintf(&sb, "Search filters applied: %v\n", rctx.HasFilters)
	if len(rctx.MentionedEntities) > 0 {
		fmt.Fprintf(&sb, "Subsidies already recommended in earlier turns (avoid repeating them): %s\n",
			strings.Join(rctx.MentionedEntities, ", "))
	}
	if n := len(rctx.PriorMessages); n > 0 {
		fmt.Fprintf(&sb, "Prior messages in this conversation: %d\n", n)
	}
	sb.WriteString("\n")

	sb.WriteString("=== AUTOMATED FINDINGS (catalog-verified) ===\n")
	fmt.Fprintf(&sb, "Subsidies presented: %d\n", len(f.Entities))
	if len(f.Invalid) > 0 {
		fmt.Fprintf(&sb, "Not found in the official catalog: %s\n", strings.Join(f.Invalid, ", "))
	}
	if len(f.DetailIncorrect) > 0 {
		fmt.Fprintf(&sb, "Amounts deviating from the catalog: %s\n", strings.Join(f.DetailIncorrect, ", "))
	}
	if len(f.Duplicates) > 0 {
		fmt.Fprintf(&sb, "Mentioned more than once: %s\n", strings.Join(f.Duplicates, ", "))
	}
	fmt.Fprintf(&sb, "Exhaustive (\"list all\") request: %v\n\n", f.Exhaustive)

	sb.WriteString("=== ANSWER TO REVIEW ===\n")
	sb.WriteString(answer)
	sb.WriteString("\n\n")

	sb.WriteString("=== INSTRUCTIONS ===\n")
	sb.WriteString("Evaluate the answer above against the five dimensions. ")
	sb.WriteString("Respond with JSON only.")

	return sb.String()
}

// overrideRule caps dataAccuracy when a deterministic defect is present.
// Rules compose via min: the lowest applicable cap wins.
type overrideRule struct {
	name     string
	applies  func(f answerFindings) bool
	cap      int
	severity domain.Severity
	describe func(f answerFindings) string
	hint     string
}

var overrideRules = []overrideRule{
	{
		name:     "exhaustive_undercount",
		applies:  func(f answerFindings) bool { return f.Exhaustive && len(f.Entities) < exhaustiveEntityFloor },
		cap:      25,
		severity: domain.SeverityCritical,
		describe: func(f answerFindings) string {
			return fmt.Sprintf("the user asked for a complete list but only %d subsidies were presented", len(f.Entities))
		},
		hint: "The user asked for a complete list: present at least 20 distinct subsidies from the catalog.",
	},
	{
		name: "it_exhaustive_undercount",
		applies: func(f answerFindings) bool {
			return f.ITSector && f.Exhaustive && len(f.Entities) < itExhaustiveEntityFloor
		},
		cap:      60,
		severity: domain.SeverityWarning,
		describe: func(f answerFindings) string {
			return fmt.Sprintf("an exhaustive IT-sector request should surface at least 8 programs, got %d", len(f.Entities))
		},
		hint: "Cover the IT sector broadly: digitalization, software adoption, security and infrastructure programs all qualify.",
	},
	{
		name: "it_undercount",
		applies: func(f answerFindings) bool {
			return f.ITSector && !f.Exhaustive && len(f.Entities) <= itEntityFloor
		},
		cap:      35,
		severity: domain.SeverityWarning,
		describe: func(f answerFindings) string {
			return fmt.Sprintf("IT-sector questions have rich catalog coverage; %d subsidies is too few", len(f.Entities))
		},
		hint: "Search the catalog with broader IT keywords and present more matching programs.",
	},
	{
		name:     "unknown_entities",
		applies:  func(f answerFindings) bool { return len(f.Invalid) > 0 },
		cap:      40,
		severity: domain.SeverityCritical,
		describe: func(f answerFindings) string {
			return "subsidies not found in the official catalog: " + strings.Join(f.Invalid, ", ")
		},
		hint: "Only recommend subsidies that exist in the official catalog; drop any you cannot verify.",
	},
	{
		name:     "amount_mismatch",
		applies:  func(f answerFindings) bool { return len(f.DetailIncorrect) > 0 },
		cap:      60,
		severity: domain.SeverityWarning,
		describe: func(f answerFindings) string {
			return "claimed amounts deviate more than 10% from the catalog for: " + strings.Join(f.DetailIncorrect, ", ")
		},
		hint: "Copy grant amounts verbatim from the catalog instead of estimating them.",
	},
	{
		name:     "duplicate_entities",
		applies:  func(f answerFindings) bool { return len(f.Duplicates) > 0 },
		cap:      30,
		severity: domain.SeverityCritical,
		describe: func(f answerFindings) string {
			return "subsidies mentioned more than once in the same answer: " + strings.Join(f.Duplicates, ", ")
		},
		hint: "Never mention the same subsidy more than once in an answer.",
	},
}

func (s *CritiqueService) applyOverrides(verdict *domain.CritiqueResult, f answerFindings) {
	for _, rule := range overrideRules {
		if !rule.applies(f) {
			continue
		}

		if verdict.Scores[domain.DimDataAccuracy] > rule.cap {
			verdict.Scores[domain.DimDataAccuracy] = rule.cap
		}
		verdict.Action = domain.ActionRegenerate
		verdict.Issues = append(verdict.Issues, domain.Issue{
			Type:        rule.name,
			Description: rule.describe(f),
			Severity:    rule.severity,
		})
		verdict.RegenerationHints = append(verdict.RegenerationHints, rule.hint)

		s.logger.Debug("override rule applied",
			zap.String("rule", rule.name),
			zap.Int("cap", rule.cap),
		)
	}
}

type graderVerdict struct {
	Scores                 map[string]int `json:"scores"`
	Action                 string         `json:"action"`
	Issues                 []graderIssue  `json:"issues"`
	ClarificationQuestions []string       `json:"clarification_questions"`
	RegenerationHints      []string       `json:"regeneration_hints"`
	ImprovedResponse       string         `json:"improved_response"`
}

type graderIssue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Example     string `json:"example"`
}

func parseVerdict(raw string) (*domain.CritiqueResult, error) {
	jsonStr := extractJSON(raw)

	var v graderVerdict
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}

	scores := domain.ZeroScores()
	for _, d := range domain.Dimensions() {
		if value, ok := v.Scores[string(d)]; ok {
			scores[d] = clampScore(value)
		}
	}

	result := &domain.CritiqueResult{
		Scores:                 scores,
		Action:                 domain.Action(v.Action),
		ClarificationQuestions: v.ClarificationQuestions,
		RegenerationHints:      v.RegenerationHints,
		ImprovedResponse:       v.ImprovedResponse,
	}

	for _, issue := range v.Issues {
		severity := domain.Severity(issue.Severity)
		switch severity {
		case domain.SeverityCritical, domain.SeverityWarning, domain.SeverityInfo:
		default:
			severity = domain.SeverityInfo
		}
		result.Issues = append(result.Issues, domain.Issue{
			Type:        issue.Type,
			Description: issue.Description,
			Severity:    severity,
			Example:     issue.Example,
		})
	}

	return result, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// extractJSON digs the first balanced JSON object out of a response that may
// contain prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return s
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}

func graderCacheKey(question, answer string) string {
	hash := sha256.Sum256([]byte(question + "\x00" + answer))
	return fmt.Sprintf("critique:%x", hash[:8])
}

var exhaustiveMarkers = []string{
	"list all",
	"all subsidies",
	"all grants",
	"all available",
	"every subsidy",
	"every grant",
	"complete list",
	"full list",
	"exhaustive",
}

func isExhaustiveRequest(question string) bool {
	q := strings.ToLower(question)
	for _, marker := range exhaustiveMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

var (
	itWordRe  = regexp.MustCompile(`\bIT\b`)
	itMarkers = []string{"software", "digital", "saas", "cloud", "cybersecurity", "system integration", "technology adoption"}
)

func isITRequest(question string) bool {
	if itWordRe.MatchString(question) {
		return true
	}
	q := strings.ToLower(question)
	for _, marker := range itMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

// claimedAmount looks for a money figure in the text window right after the
// entity mention. Plain numbers without a currency cue are ignored.
var amountRe = regexp.MustCompile(`(?:[¥$€]\s?([0-9][0-9,]*))|(?:([0-9][0-9,]*)\s*(?:yen|円))`)

const amountWindow = 160

func claimedAmount(text, entity string) (int64, bool) {
	idx := strings.Index(text, entity)
	if idx == -1 {
		return 0, false
	}

	end := idx + len(entity) + amountWindow
	if end > len(text) {
		end = len(text)
	}
	window := text[idx:end]

	m := amountRe.FindStringSubmatch(window)
	if m == nil {
		return 0, false
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}

	value, err := strconv.ParseInt(strings.ReplaceAll(digits, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
