package prioritize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	text    string
	turn    int
	isError bool
	path    string
	tool    string
}

func (t testItem) Text() string      { return t.text }
func (t testItem) TurnNumber() int    { return t.turn }
func (t testItem) IsError() bool      { return t.isError }
func (t testItem) FilePath() string   { return t.path }
func (t testItem) ToolName() string   { return t.tool }

func TestErrorItemsOutrankNonErrorRegardlessOfRecency(t *testing.T) {
	items := []testItem{
		{text: "irrelevant old note", turn: 1, isError: false},
		{text: "panic: nil pointer dereference", turn: 1, isError: true},
	}
	scored := Prioritize(items, "we are debugging a panic: nil pointer dereference", 10)
	require.Len(t, scored, 2)
	assert.True(t, scored[0].Item.isError)
}

func TestRecencyScoreAtFiveTurnsIsAboutHalf(t *testing.T) {
	s := recencyScore(10, 5) // delta = 5
	assert.InDelta(t, 0.5, s, 0.01)
}

func TestRecencyScoreDecreasesWithAge(t *testing.T) {
	recent := recencyScore(10, 9)
	old := recencyScore(10, 1)
	assert.Greater(t, recent, old)
}

func TestContentRelevanceRewardsPhraseOverlap(t *testing.T) {
	items := []testItem{
		{text: "the build is green today", turn: 5},
		{text: "connection refused while dialing the database", turn: 5},
	}
	scored := Prioritize(items, "getting connection refused while dialing the database", 5)
	require.Len(t, scored, 2)
	assert.Greater(t, scored[0].Score.ContentRelevance, scored[1].Score.ContentRelevance)
}

func TestTiesBrokenByRecency(t *testing.T) {
	items := []testItem{
		{text: "", turn: 1},
		{text: "", turn: 9},
	}
	scored := Prioritize(items, "", 10)
	require.Len(t, scored, 2)
	assert.Equal(t, 9, scored[0].Item.turn)
}

func TestFileSimilarityExactPathScoresHighest(t *testing.T) {
	items := []testItem{
		{path: "pkg/foo/bar.go", turn: 1},
		{path: "pkg/foo/bar.go", turn: 2},
		{path: "pkg/other/unrelated.go", turn: 3},
	}
	correlated := Correlate(items)
	require.Len(t, correlated, 3)
	assert.Equal(t, 1.0, correlated[0].Correlation.FileSimilarity)
	assert.Equal(t, 1.0, correlated[1].Correlation.FileSimilarity)
}

func TestToolSequenceRecognizesCanonicalPair(t *testing.T) {
	items := []testItem{
		{tool: "read_file", turn: 1},
		{tool: "edit_file", turn: 2},
		{tool: "unrelated_tool", turn: 10},
	}
	correlated := Correlate(items)
	assert.Equal(t, 1.0, correlated[0].Correlation.ToolSequence)
	assert.Equal(t, 1.0, correlated[1].Correlation.ToolSequence)
	assert.Equal(t, 0.0, correlated[2].Correlation.ToolSequence)
}

func TestTemporalProximityDecaysWithDistance(t *testing.T) {
	same := temporalProximity(5, 5)
	adjacent := temporalProximity(5, 4)
	far := temporalProximity(5, 100)
	assert.Greater(t, same, adjacent)
	assert.Greater(t, adjacent, far)
	assert.Equal(t, 0.0, far)
}
