// Package prioritize implements the SmartPrioritizer and CrossTurnCorrelator
// scoring passes ContextManager runs over code snippets and tool results
// before packing (spec §4.5). Neither pass touches packing policy itself;
// they only attach scores. Prioritize returns items reordered by score;
// Correlate keeps the input order.
package prioritize

import (
	"sort"
	"strings"
)

// Item is anything SmartPrioritizer/CrossTurnCorrelator can score: a code
// snippet or a tool result. ContextManager's own types satisfy this without
// prioritize importing them back.
type Item interface {
	Text() string
	TurnNumber() int
	IsError() bool
	FilePath() string // "" if the item isn't file-scoped
	ToolName() string // "" if the item didn't come from a tool call
}

// recencyAlpha is tuned so an item 5 turns old scores ~0.5:
// 1/(1+5*alpha) = 0.5 => alpha = 0.2.
const recencyAlpha = 0.2

// Score weight mass: error_priority > content_relevance > recency, per §4.5.
const (
	weightErrorPriority    = 0.5
	weightContentRelevance = 0.35
	weightRecency          = 0.15
)

// Score is the scored-ness SmartPrioritizer attaches to one item.
type Score struct {
	ContentRelevance float64
	RecencyScore     float64
	ErrorPriority    float64
	FinalScore       float64
}

// Scored pairs an Item with the Score SmartPrioritizer computed for it.
type Scored[T Item] struct {
	Item  T
	Score Score
}

// Prioritize scores and sorts items by final_score descending, breaking ties
// by recency (more recent wins). currentContext is the textual context the
// content-relevance component is measured against (e.g. the current user
// message plus recent conversation).
func Prioritize[T Item](items []T, currentContext string, currentTurn int) []Scored[T] {
	contextTokens := tokenize(currentContext)

	out := make([]Scored[T], 0, len(items))
	for _, it := range items {
		score := scoreItem(it, contextTokens, currentTurn)
		out = append(out, Scored[T]{Item: it, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score.FinalScore != out[j].Score.FinalScore {
			return out[i].Score.FinalScore > out[j].Score.FinalScore
		}
		return out[i].Score.RecencyScore > out[j].Score.RecencyScore
	})
	return out
}

func scoreItem(it Item, contextTokens map[string]int, currentTurn int) Score {
	content := contentRelevance(tokenize(it.Text()), contextTokens)
	recency := recencyScore(currentTurn, it.TurnNumber())
	errPriority := 0.0
	if it.IsError() {
		errPriority = 1.0
	}

	final := weightErrorPriority*errPriority +
		weightContentRelevance*content +
		weightRecency*recency

	return Score{
		ContentRelevance: content,
		RecencyScore:     recency,
		ErrorPriority:    errPriority,
		FinalScore:       final,
	}
}

func recencyScore(currentTurn, itemTurn int) float64 {
	delta := currentTurn - itemTurn
	if delta < 0 {
		delta = 0
	}
	return 1.0 / (1.0 + recencyAlpha*float64(delta))
}

// tokenize case-folds and splits into words, counting bigrams too so
// multi-word phrase overlap carries extra weight in contentRelevance.
func tokenize(text string) map[string]int {
	words := strings.Fields(strings.ToLower(text))
	counts := make(map[string]int, len(words)*2)
	for i, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'`")
		if w == "" {
			continue
		}
		counts[w]++
		if i+1 < len(words) {
			next := strings.Trim(strings.ToLower(words[i+1]), ".,;:!?()[]{}\"'`")
			if next != "" {
				counts[w+" "+next] += 2 // phrase match weighs double a single word
			}
		}
	}
	return counts
}

// contentRelevance is a weighted Jaccard-like overlap between an item's
// tokens and the current-context tokens, in [0,1].
func contentRelevance(itemTokens, contextTokens map[string]int) float64 {
	if len(itemTokens) == 0 || len(contextTokens) == 0 {
		return 0
	}
	var overlap, itemMass float64
	for tok, n := range itemTokens {
		itemMass += float64(n)
		if cn, ok := contextTokens[tok]; ok {
			m := n
			if cn < m {
				m = cn
			}
			overlap += float64(m)
		}
	}
	if itemMass == 0 {
		return 0
	}
	rel := overlap / itemMass
	if rel > 1 {
		rel = 1
	}
	return rel
}
