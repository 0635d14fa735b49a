package prioritize

import (
	"path/filepath"
	"strings"
)

// canonicalSequences are tool-name pairs recognized as a meaningful
// workflow step when they appear in adjacent turns (spec §4.5).
var canonicalSequences = [][2]string{
	{"read_file", "edit_file"},
	{"edit_file", "shell"},
	{"grep", "read_file"},
	{"write_file", "shell"},
}

// Correlation is the cross-turn correlation score CrossTurnCorrelator
// attaches to an item, used as a secondary ranking after SmartPrioritizer.
type Correlation struct {
	FileSimilarity    float64
	ToolSequence      float64
	TemporalProximity float64
	Combined          float64
}

// Correlated pairs an Item with its Correlation score.
type Correlated[T Item] struct {
	Item        T
	Correlation Correlation
}

// Correlate scores each item's reinforcement with every other item in the
// same candidate set: shared or related files, canonical tool sequences,
// and turn adjacency. It does not reorder by SmartPrioritizer's
// final_score; callers apply it as a tie-breaking/boosting pass over an
// already-prioritized list.
func Correlate[T Item](items []T) []Correlated[T] {
	out := make([]Correlated[T], len(items))
	for i, it := range items {
		var fileSim, toolSeq, temporal float64
		for j, other := range items {
			if i == j {
				continue
			}
			fileSim = maxF(fileSim, fileSimilarity(it.FilePath(), other.FilePath()))
			toolSeq = maxF(toolSeq, toolSequenceScore(it, other))
			temporal = maxF(temporal, temporalProximity(it.TurnNumber(), other.TurnNumber()))
		}
		combined := (fileSim + toolSeq + temporal) / 3
		out[i] = Correlated[T]{
			Item: it,
			Correlation: Correlation{
				FileSimilarity:    fileSim,
				ToolSequence:      toolSeq,
				TemporalProximity: temporal,
				Combined:          combined,
			},
		}
	}
	return out
}

func fileSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if filepath.Dir(a) == filepath.Dir(b) {
		return 0.6
	}
	if filepath.Ext(a) != "" && filepath.Ext(a) == filepath.Ext(b) {
		return 0.3
	}
	return 0
}

func toolSequenceScore(a, b Item) float64 {
	an, bn := a.ToolName(), b.ToolName()
	if an == "" || bn == "" {
		return 0
	}
	delta := a.TurnNumber() - b.TurnNumber()
	if delta < 0 {
		delta = -delta
	}
	if delta > 1 {
		return 0
	}
	for _, pair := range canonicalSequences {
		if (strings.EqualFold(an, pair[0]) && strings.EqualFold(bn, pair[1])) ||
			(strings.EqualFold(bn, pair[0]) && strings.EqualFold(an, pair[1])) {
			return 1.0
		}
	}
	return 0
}

func temporalProximity(a, b int) float64 {
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta == 0:
		return 1.0
	case delta == 1:
		return 0.7
	case delta <= 3:
		return 0.3
	default:
		return 0
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
