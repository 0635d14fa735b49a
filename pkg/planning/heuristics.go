package planning

import (
	"regexp"
	"strings"
)

// HeuristicVocabularies are the configurable word/phrase lists driving the
// triggering heuristic and approval classifier (spec §6: "Heuristic
// vocabularies; shipped as defaults"). Deployments may override any of
// these via config without touching the ordering logic in heuristics.go.
type HeuristicVocabularies struct {
	PlanningKeywords            []string
	ExplorationPatterns         []string
	ComplexImplementationPhrases []string
	MultiStepSequenceRegexes    []string
	MultiStepIndicators         []string
	ActionVerbs                 []string
	DeliverableNouns            []string
	UnrelatedDomainNouns        []string
	ModificationLanguage        []string
	PlanFeedbackWords           []string
}

// DefaultVocabularies mirrors the literal examples named in spec §4.3.
func DefaultVocabularies() HeuristicVocabularies {
	return HeuristicVocabularies{
		PlanningKeywords: []string{
			"plan this", "create a plan", "draft a plan", "make a plan",
		},
		ExplorationPatterns: []string{
			"read ", "show ", "list ", "find ", "search ", "explain ",
			"what is", "how does", "check status", "view log",
		},
		ComplexImplementationPhrases: []string{
			"implement and", "create and deploy", "refactor entire", "migrate from",
		},
		MultiStepSequenceRegexes: []string{
			`(?i)(add|create|implement).*then.*(test|deploy|document)`,
		},
		MultiStepIndicators: []string{
			"start by", "then", "first", "second", "finally", "step 1", "step 2", "step 3",
		},
		ActionVerbs: []string{
			"implement", "create", "build", "design", "refactor", "deploy", "configure", "setup", "migrate", "convert",
		},
		DeliverableNouns: []string{
			"report", "analysis", "implementation", "documentation", "enhancement", "system", "application", "service",
		},
		UnrelatedDomainNouns: []string{
			"k8s", "kubernetes", "database", "weather",
		},
		ModificationLanguage: []string{
			"make it", "could you", "please", "rather than",
		},
		PlanFeedbackWords: []string{
			"plan", "step", "phase", "approach", "methodology", "strategy",
			"add", "remove", "change", "modify", "revise", "shorter", "longer", "before", "after", "instead",
		},
	}
}

func (v HeuristicVocabularies) compileMultiStep() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(v.MultiStepSequenceRegexes))
	for _, pat := range v.MultiStepSequenceRegexes {
		if re, err := regexp.Compile(pat); err == nil {
			out = append(out, re)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func countDistinct(haystack string, needles []string) int {
	count := 0
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			count++
		}
	}
	return count
}

// shouldTrigger implements the literal 7-step ordered heuristic from §4.3.
// Step ordering is significant: step 2 (exploration) short-circuits before
// steps 3-6 even when a message also matches a complex-implementation
// signal — this is the literal, intentionally ambiguous behavior spec's
// Open Questions section calls out; it is reimplemented as-is rather than
// "fixed".
func shouldTrigger(message string, v HeuristicVocabularies) bool {
	lower := strings.ToLower(message)

	// 1. explicit planning keyword
	if containsAny(lower, v.PlanningKeywords) {
		return true
	}
	// 2. simple-exploration pattern short-circuits
	if containsAny(lower, v.ExplorationPatterns) {
		return false
	}
	// 3. complex-implementation phrase
	if containsAny(lower, v.ComplexImplementationPhrases) {
		return true
	}
	// 4. multi-step sequence regex
	for _, re := range v.compileMultiStep() {
		if re.MatchString(lower) {
			return true
		}
	}
	// 5. multi-step indicator AND action verb
	if containsAny(lower, v.MultiStepIndicators) && containsAny(lower, v.ActionVerbs) {
		return true
	}
	// 6. at least 2 distinct deliverable nouns
	if countDistinct(lower, v.DeliverableNouns) >= 2 {
		return true
	}
	// 7. otherwise
	return false
}

// shortInterrogative reports whether message is a short question (≤8
// words, starting with an interrogative), which is classified as an
// unrelated request by rule during approval classification.
func shortInterrogative(message string) bool {
	words := strings.Fields(message)
	if len(words) == 0 || len(words) > 8 {
		return false
	}
	first := strings.ToLower(words[0])
	switch first {
	case "what", "how", "where", "when", "who", "why":
		return true
	}
	return false
}

// classifyApproval classifies a user message received while awaiting plan
// approval, per §4.3's approval-classification rules.
func classifyApproval(message string, v HeuristicVocabularies) approvalClass {
	trimmed := strings.TrimSpace(strings.ToLower(message))

	if trimmed == "approve" {
		return approvalApprove
	}
	if shortInterrogative(message) {
		return approvalUnrelated
	}

	if containsAny(trimmed, v.PlanFeedbackWords) {
		return approvalFeedback
	}
	if containsAny(trimmed, v.ModificationLanguage) && !containsAny(trimmed, v.UnrelatedDomainNouns) {
		return approvalFeedback
	}
	return approvalUnrelated
}

type approvalClass int

const (
	approvalApprove approvalClass = iota
	approvalFeedback
	approvalUnrelated
)
