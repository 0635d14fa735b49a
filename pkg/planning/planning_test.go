package planning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldTriggerClassifierTable(t *testing.T) {
	v := DefaultVocabularies()

	cases := []struct {
		message string
		want    bool
	}{
		{"plan this migration for me", true},
		{"list files in src/", false},
		{"implement and deploy the new service", true},
		{"add logging then test it and deploy", true},
		{"first implement the retry logic, then test it", true},
		{"write a report and an analysis of the outage", true},
		{"what time is it", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, shouldTrigger(c.message, v), "message: %q", c.message)
	}
}

func TestExplorationShortCircuitsBeforeComplexImplementation(t *testing.T) {
	// Open Question: rule 2 (exploration) wins over rule 3 even though
	// the message also reads as a complex-implementation request.
	v := DefaultVocabularies()
	assert.False(t, shouldTrigger("read file and then refactor entire module", v))
}

func TestClassifyApprovalExactMatch(t *testing.T) {
	v := DefaultVocabularies()
	assert.Equal(t, approvalApprove, classifyApproval("  Approve  ", v))
}

func TestClassifyApprovalFeedback(t *testing.T) {
	v := DefaultVocabularies()
	assert.Equal(t, approvalFeedback, classifyApproval("can you make the plan shorter", v))
}

func TestClassifyApprovalUnrelatedK8s(t *testing.T) {
	v := DefaultVocabularies()
	assert.Equal(t, approvalUnrelated, classifyApproval("what is the status of the k8s cluster", v))
}

func TestShortInterrogativeIsUnrelated(t *testing.T) {
	assert.True(t, shortInterrogative("what is the weather today"))
	assert.False(t, shortInterrogative("what is the status of the currently running background migration job"))
}

func TestPlainExplorationQueryPassesThrough(t *testing.T) {
	pm := New(true, DefaultVocabularies())
	d := pm.HandleUserMessage("list files in src/", "")
	assert.Equal(t, PassThrough, d.Kind)
	assert.Equal(t, Idle, pm.State())
}

func TestPlanningHappyPath(t *testing.T) {
	pm := New(true, DefaultVocabularies())

	d1 := pm.HandleUserMessage("implement user authentication and then write tests and deploy", "")
	require.Equal(t, RewriteRequest, d1.Kind)
	assert.True(t, d1.ClearTools)
	assert.True(t, pm.IsPlanGenerationTurn())

	modelPlan := "1. Add auth middleware\n2. Write tests\n3. Deploy"
	d2 := pm.HandleModelResponse(modelPlan)
	require.Equal(t, SynthesizeResponse, d2.Kind)
	assert.True(t, strings.Contains(d2.Text, "approve"))
	assert.Equal(t, AwaitingApproval, pm.State())

	d3 := pm.HandleUserMessage("approve", "")
	require.Equal(t, RewriteRequest, d3.Kind)
	assert.Equal(t, modelPlan, d3.ApprovedPlan)
	assert.Equal(t, Idle, pm.State())
}

func TestPlanningInterruptedByUnrelatedRequest(t *testing.T) {
	pm := New(true, DefaultVocabularies())
	pm.HandleUserMessage("implement and deploy a new billing system", "")
	pm.HandleModelResponse("1. Do it")
	require.Equal(t, AwaitingApproval, pm.State())

	d := pm.HandleUserMessage("what is the status of the k8s cluster", "")
	assert.Equal(t, PassThrough, d.Kind)
	assert.Equal(t, Idle, pm.State())
}

func TestEmptyModelResponseResetsToIdle(t *testing.T) {
	pm := New(true, DefaultVocabularies())
	pm.HandleUserMessage("plan this migration", "")
	d := pm.HandleModelResponse("")
	assert.Equal(t, SynthesizeResponse, d.Kind)
	assert.Equal(t, Idle, pm.State())
}

func TestDisabledPlanningAlwaysPassesThrough(t *testing.T) {
	pm := New(false, DefaultVocabularies())
	d := pm.HandleUserMessage("plan this migration", "")
	assert.Equal(t, PassThrough, d.Kind)
}
