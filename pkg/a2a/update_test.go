package a2a

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateShapePredicates(t *testing.T) {
	tests := []struct {
		name     string
		value    map[string]any
		status   bool
		artifact bool
	}{
		{"state only", map[string]any{"state": "working"}, true, false},
		{"state with message", map[string]any{"state": "completed", "message": map[string]any{}}, true, false},
		{"parts only", map[string]any{"parts": []any{}}, false, true},
		{"parts and state", map[string]any{"parts": []any{}, "state": "working"}, false, true},
		{"neither", map[string]any{"name": "x"}, false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, IsStatusUpdate(tt.value))
			assert.Equal(t, tt.artifact, IsArtifactUpdate(tt.value))
			assert.False(t, IsStatusUpdate(tt.value) && IsArtifactUpdate(tt.value))
		})
	}
}

func TestParseUpdate(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		update, err := ParseUpdate([]byte(`{"state":"completed","message":{"role":"agent","parts":[{"type":"text","text":"done"}]}}`))
		require.NoError(t, err)

		status, ok := update.(StatusUpdate)
		require.True(t, ok)
		assert.Equal(t, TaskStateCompleted, status.State)
		assert.Equal(t, "done", status.Message.String())
	})

	t.Run("artifact", func(t *testing.T) {
		update, err := ParseUpdate([]byte(`{"name":"out.txt","mimeType":"text/plain","parts":[{"type":"text","text":"echo: hi"}],"append":true}`))
		require.NoError(t, err)

		artifact, ok := update.(ArtifactUpdate)
		require.True(t, ok)
		assert.Equal(t, "out.txt", artifact.Name)
		assert.Equal(t, 0, artifact.Index)
		assert.True(t, artifact.Append)
	})

	t.Run("neither shape", func(t *testing.T) {
		_, err := ParseUpdate([]byte(`{"name":"x"}`))
		assert.Error(t, err)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := ParseUpdate([]byte(`{"state":"sleeping"}`))
		assert.Error(t, err)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := ParseUpdate([]byte(`[1,2]`))
		assert.Error(t, err)
	})
}

func TestParseEvent(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"id":"t1","status":{"state":"completed","timestamp":"2026-01-01T00:00:00Z"},"final":true}`))
	require.NoError(t, err)
	require.IsType(t, TaskStatusUpdateEvent{}, evt)
	assert.True(t, evt.IsFinal())
	assert.Equal(t, "t1", evt.TaskID())

	evt, err = ParseEvent([]byte(`{"id":"t1","artifact":{"index":0,"parts":[{"type":"text","text":"hi"}]}}`))
	require.NoError(t, err)
	require.IsType(t, TaskArtifactUpdateEvent{}, evt)
	assert.Equal(t, "hi", evt.(TaskArtifactUpdateEvent).Artifact.Parts[0].Text)

	_, err = ParseEvent([]byte(`{"id":"t1"}`))
	assert.Error(t, err)
}
