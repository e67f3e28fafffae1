package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusString(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   string
	}{
		{JobStatusCancelled, "cancelled"},
		{JobStatusFailed, "failed"},
		{JobStatusCreated, "created"},
		{JobStatusRunning, "running"},
		{JobStatusCompleted, "completed"},
		{JobStatus(42), "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.status.String())
	}
}

func TestParseJobStatus(t *testing.T) {
	for _, status := range []JobStatus{
		JobStatusCancelled,
		JobStatusFailed,
		JobStatusCreated,
		JobStatusRunning,
		JobStatusCompleted,
	} {
		parsed, err := ParseJobStatus(status.String())
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}

	_, err := ParseJobStatus("bogus")
	assert.Error(t, err)
}

func TestJobStatusJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(JobStatusRunning)
	require.NoError(t, err)
	assert.Equal(t, `"running"`, string(data))

	var status JobStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, JobStatusRunning, status)

	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &status))
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
	assert.False(t, JobStatusCreated.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
}

func TestFileRefsRoundTrip(t *testing.T) {
	refs := FileRefs{"00001.png", "00002.png"}

	value, err := refs.Value()
	require.NoError(t, err)

	var decoded FileRefs
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, refs, decoded)

	// empty refs serialize to NULL
	value, err = FileRefs{}.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, decoded.Scan(nil))
	assert.Nil(t, []string(decoded))
}

func TestGenerationRequestWithInitImage(t *testing.T) {
	assert.False(t, GenerationRequest{}.WithInitImage())
	assert.True(t, GenerationRequest{InitImageName: "seed.png"}.WithInitImage())
}
