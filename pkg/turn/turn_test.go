package turn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

func TestStartTurnNumbersSequentially(t *testing.T) {
	sm := NewStateManager()

	msg1 := agentcore.NewUserMessage("first")
	t1, err := sm.StartTurn(&msg1)
	require.NoError(t, err)
	assert.Equal(t, 1, t1.Number)
	require.NoError(t, sm.CompleteCurrentTurn())

	msg2 := agentcore.NewUserMessage("second")
	t2, err := sm.StartTurn(&msg2)
	require.NoError(t, err)
	assert.Equal(t, 2, t2.Number)
}

func TestTurnNumberEqualsHistoryIndexPlusOne(t *testing.T) {
	sm := NewStateManager()
	for i := 0; i < 3; i++ {
		msg := agentcore.NewUserMessage("hi")
		_, err := sm.StartTurn(&msg)
		require.NoError(t, err)
		require.NoError(t, sm.CompleteCurrentTurn())
	}
	for i, turn := range sm.History() {
		assert.Equal(t, i+1, turn.Number)
	}
}

func TestCompleteSetsCompletedAt(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)
	require.NoError(t, sm.CompleteCurrentTurn())

	history := sm.History()
	require.Len(t, history, 1)
	assert.Equal(t, Completed, history[0].Phase)
	require.NotNil(t, history[0].CompletedAt)
}

func TestStartTurnForceCompletesInProgressTurn(t *testing.T) {
	sm := NewStateManager()
	msg1 := agentcore.NewUserMessage("first")
	_, err := sm.StartTurn(&msg1)
	require.NoError(t, err)

	msg2 := agentcore.NewUserMessage("second")
	_, err = sm.StartTurn(&msg2)
	require.NoError(t, err)

	history := sm.History()
	require.Len(t, history, 1)
	assert.Equal(t, Completed, history[0].Phase)
	assert.NotEmpty(t, history[0].Errors)
}

func TestUpdateCurrentTurnRejectsBackwardPhaseMove(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)

	require.NoError(t, sm.UpdateCurrentTurn(map[string]interface{}{"phase": CallingLLM}))
	err = sm.UpdateCurrentTurn(map[string]interface{}{"phase": ProcessingUserInput})
	assert.Error(t, err)
	assert.True(t, agentcore.IsStateValidationError(err))
}

func TestUpdateCurrentTurnIgnoresUnknownField(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)

	err = sm.UpdateCurrentTurn(map[string]interface{}{"not_a_real_field": 42})
	assert.NoError(t, err)
}

func TestConcurrentMutationsRejectedAsHardError(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	err = sm.AddToolCall("shell", map[string]interface{}{"cmd": "ls"})
	assert.Error(t, err)
	assert.True(t, agentcore.IsStateValidationError(err))
}

func TestHistoryReturnsDefensiveCopies(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)
	require.NoError(t, sm.CompleteCurrentTurn())

	h := sm.History()
	h[0].SystemMessages = append(h[0].SystemMessages, "mutated externally")

	h2 := sm.History()
	assert.Empty(t, h2[0].SystemMessages)
}

func TestSnapshotRoundTripsThroughLegacyState(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)
	require.NoError(t, sm.AddToolCall("read_file", map[string]interface{}{"path": "a.go"}))
	require.NoError(t, sm.UpdateCurrentTurn(map[string]interface{}{"system_message": "note one"}))
	require.NoError(t, sm.CompleteCurrentTurn())

	msg2 := agentcore.NewUserMessage("second turn in progress")
	_, err = sm.StartTurn(&msg2)
	require.NoError(t, err)

	external := sm.SnapshotToLegacyState()

	restored := NewStateManager()
	require.NoError(t, restored.SyncFromLegacyState(external))

	origHistory := sm.History()
	restoredHistory := restored.History()
	require.Len(t, restoredHistory, len(origHistory))
	for i := range origHistory {
		assert.Equal(t, origHistory[i].Number, restoredHistory[i].Number)
		assert.Equal(t, origHistory[i].Phase, restoredHistory[i].Phase)
		assert.Equal(t, origHistory[i].SystemMessages, restoredHistory[i].SystemMessages)
	}

	origCurrent := sm.Current()
	restoredCurrent := restored.Current()
	require.NotNil(t, restoredCurrent)
	assert.Equal(t, origCurrent.Number, restoredCurrent.Number)
	assert.Equal(t, origCurrent.UserMessage.Text(), restoredCurrent.UserMessage.Text())
}

func TestSystemNotesNewestFirst(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)
	require.NoError(t, sm.UpdateCurrentTurn(map[string]interface{}{"system_message": "older"}))
	require.NoError(t, sm.UpdateCurrentTurn(map[string]interface{}{"system_message": "newer"}))

	notes := sm.SnapshotForContext().SystemNotes()
	require.Len(t, notes, 2)
	assert.Equal(t, "newer", notes[0])
	assert.Equal(t, "older", notes[1])
}

func TestResetClearsEverything(t *testing.T) {
	sm := NewStateManager()
	msg := agentcore.NewUserMessage("hi")
	_, err := sm.StartTurn(&msg)
	require.NoError(t, err)
	require.NoError(t, sm.CompleteCurrentTurn())

	sm.Reset()
	assert.Empty(t, sm.History())
	assert.Nil(t, sm.Current())
}

func TestConcurrentStartTurnAtLeastOneWins(t *testing.T) {
	sm := NewStateManager()
	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			msg := agentcore.NewUserMessage("concurrent")
			_, errs[i] = sm.StartTurn(&msg)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.GreaterOrEqual(t, successes, 1)
}
