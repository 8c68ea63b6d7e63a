package planner

import (
	"regexp"
	"strings"
)

// IntentKind identifies a detected work intent in task text.
type IntentKind string

const (
	IntentResearch IntentKind = "research"
	IntentWriting  IntentKind = "writing"
	IntentImage    IntentKind = "image"
	IntentCode     IntentKind = "code"
)

// Intent is one detected intent with the agent role that serves it.
type Intent struct {
	Kind IntentKind
	Role string
}

// IntentClassifier decides whether task text describes multi-step work and
// which intents it carries. Keyword matching is the default strategy; a
// model-based classifier can be swapped in without touching the executor.
type IntentClassifier interface {
	// MultiStep reports whether the text describes more than one action.
	MultiStep(text string) bool
	// Intents returns detected intents in canonical order
	// (research, writing, image, code).
	Intents(text string) []Intent
}

// actionVerbs are the multi-action verbs whose co-occurrence marks a task
// as multi-step.
var actionVerbs = []string{"create", "write", "generate", "build", "post", "research", "analyze"}

// connectives are multi-step connective phrases.
var connectives = []string{"and then", "after that", "followed by", "once that", "next,"}

// intentPatterns map each intent to its detector. Detection order is the
// canonical intent order.
var intentPatterns = []struct {
	kind IntentKind
	role string
	re   *regexp.Regexp
}{
	{IntentResearch, "researcher", regexp.MustCompile(`(?i)\b(research|investigate|analy[sz]e|find out|compare|gather)\b`)},
	{IntentWriting, "content-writer", regexp.MustCompile(`(?i)\b(write|draft|blog|article|post|copy|newsletter)\b`)},
	{IntentImage, "designer", regexp.MustCompile(`(?i)\b(image|logo|illustration|graphic|banner|thumbnail)\b`)},
	{IntentCode, "forge", regexp.MustCompile(`(?i)\b(code|implement|script|deploy|refactor|endpoint)\b`)},
}

// roleEntry pairs a role with its weighted keyword table.
type roleEntry struct {
	role     string
	keywords map[string]int
}

// roleKeywords weight task words toward agent roles for the single-step
// shortcut. Higher total weight wins; ties resolve to table order.
var roleKeywords = []roleEntry{
	{"researcher", map[string]int{
		"research": 3, "investigate": 3, "analyze": 3, "analyse": 3,
		"find": 2, "summarize": 2, "compare": 2, "review": 1,
	}},
	{"content-writer", map[string]int{
		"write": 3, "blog": 3, "article": 3, "draft": 2,
		"post": 2, "copy": 2, "content": 2, "newsletter": 2,
	}},
	{"designer", map[string]int{
		"image": 3, "logo": 3, "illustration": 3, "graphic": 2,
		"design": 2, "banner": 2, "thumbnail": 2,
	}},
	{"forge", map[string]int{
		"code": 3, "implement": 3, "build": 3, "script": 2,
		"deploy": 2, "fix": 2, "endpoint": 2,
	}},
}

// KeywordClassifier is the keyword/regex intent strategy.
type KeywordClassifier struct {
	verbs       []string
	connectives []string
	roles       []roleEntry
}

// NewKeywordClassifier creates a classifier with the default keyword tables.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		verbs:       actionVerbs,
		connectives: connectives,
		roles:       append([]roleEntry(nil), roleKeywords...),
	}
}

// extraKeywordWeight is the weight given to project-configured keywords.
const extraKeywordWeight = 2

// AddRoleKeywords extends the role keyword table with project-configured
// words. Keywords for an unknown role create a new entry at the end of the
// table, keeping the built-in tie-break order.
func (c *KeywordClassifier) AddRoleKeywords(role string, keywords []string) {
	for i := range c.roles {
		if c.roles[i].role != role {
			continue
		}
		merged := make(map[string]int, len(c.roles[i].keywords)+len(keywords))
		for k, w := range c.roles[i].keywords {
			merged[k] = w
		}
		for _, kw := range keywords {
			if _, ok := merged[kw]; !ok {
				merged[kw] = extraKeywordWeight
			}
		}
		c.roles[i] = roleEntry{role: role, keywords: merged}
		return
	}

	table := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		table[kw] = extraKeywordWeight
	}
	c.roles = append(c.roles, roleEntry{role: role, keywords: table})
}

// BestRole scores the text against the classifier's role keyword table and
// returns the highest-weighted role, or "" when nothing matches.
func (c *KeywordClassifier) BestRole(text string) string {
	return bestRole(text, c.roles)
}

// MultiStep reports true when at least two distinct action verbs co-occur,
// or any connective phrase is present.
func (c *KeywordClassifier) MultiStep(text string) bool {
	lower := strings.ToLower(text)

	matched := 0
	for _, verb := range c.verbs {
		if containsWord(lower, verb) {
			matched++
			if matched >= 2 {
				return true
			}
		}
	}

	for _, phrase := range c.connectives {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Intents returns the detected intents in canonical order.
func (c *KeywordClassifier) Intents(text string) []Intent {
	var out []Intent
	for _, p := range intentPatterns {
		if p.re.MatchString(text) {
			out = append(out, Intent{Kind: p.kind, Role: p.role})
		}
	}
	return out
}

// BestRole scores the text against the default role keyword table and
// returns the highest-weighted role, or "" when nothing matches.
func BestRole(text string) string {
	return bestRole(text, roleKeywords)
}

func bestRole(text string, roles []roleEntry) string {
	lower := strings.ToLower(text)

	best := ""
	bestScore := 0
	for _, entry := range roles {
		score := 0
		for kw, weight := range entry.keywords {
			if containsWord(lower, kw) {
				score += weight
			}
		}
		if score > bestScore {
			bestScore = score
			best = entry.role
		}
	}
	return best
}

var wordBoundary = regexp.MustCompile(`[a-z0-9]+`)

// containsWord reports whether lower contains kw as a whole word.
func containsWord(lower, kw string) bool {
	for _, w := range wordBoundary.FindAllString(lower, -1) {
		if w == kw {
			return true
		}
	}
	return false
}

var _ IntentClassifier = (*KeywordClassifier)(nil)
