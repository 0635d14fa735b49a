package tokencount

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToTiktokenForUnknownModel(t *testing.T) {
	tc := New("totally-unknown-model-xyz")
	require.Equal(t, "tiktoken", tc.BackendName())
	assert.Greater(t, tc.Count("hello world"), 0)
}

func TestCountIsMonotonicInSubstringExtension(t *testing.T) {
	tc := New("gpt-4")
	short := tc.Count("hello")
	long := tc.Count("hello, this is a much longer sentence with more tokens")
	assert.Greater(t, long, short)
}

type fakeNative struct {
	succeed bool
	calls   int
}

func (f *fakeNative) CountTokens(ctx context.Context, model, text string) (int, error) {
	f.calls++
	if !f.succeed {
		return 0, errors.New("native backend unavailable")
	}
	return len(text) / 3, nil
}

func TestNativeBackendPreferredWhenProbeSucceeds(t *testing.T) {
	native := &fakeNative{succeed: true}
	tc := New("claude-3", WithNativeCounter(context.Background(), native))
	require.Equal(t, "native", tc.BackendName())
	assert.Equal(t, len("abcdef")/3, tc.Count("abcdef"))
}

func TestNativeProbeFailureFallsThroughAtConstruction(t *testing.T) {
	native := &fakeNative{succeed: false}
	tc := New("claude-3", WithNativeCounter(context.Background(), native))
	assert.NotEqual(t, "native", tc.BackendName())
}

func TestCharsPerFourFloorNeverRebindsCounter(t *testing.T) {
	// A counter resolved to tiktoken stays on tiktoken even though
	// chars/4 would also "work" - resolution only happens once.
	tc := New("gpt-4o")
	before := tc.BackendName()
	_ = tc.Count("some text")
	assert.Equal(t, before, tc.BackendName())
}
