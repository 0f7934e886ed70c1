package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeSummary(t *testing.T) {
	completed := time.Date(2026, 8, 31, 6, 5, 0, 0, time.UTC)
	summary := domain.RunSummary{
		RunID:            "run-123",
		JobName:          "complaints",
		StartedAt:        completed.Add(-5 * time.Minute),
		CompletedAt:      completed,
		Success:          true,
		RecordsScanned:   412,
		ClustersDetected: 3,
		StoriesPublished: 2,
		StoriesSkipped:   1,
		Warnings:         []string{"ingestion degraded: partial result"},
	}

	msg, err := serializeSummary(summary)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-123"), msg.Key)
	assert.Contains(t, string(msg.Value), `"job_name":"complaints"`)
	assert.Contains(t, string(msg.Value), `"records_scanned":412`)
	assert.Contains(t, string(msg.Value), `"ingestion degraded`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "job_name", msg.Headers[0].Key)
	assert.Equal(t, []byte("complaints"), msg.Headers[0].Value)
	assert.Equal(t, "success", msg.Headers[1].Key)
	assert.Equal(t, []byte("true"), msg.Headers[1].Value)
	assert.Equal(t, "completed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(completed.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSerializeSummary_OmitsEmptyErrorLists(t *testing.T) {
	msg, err := serializeSummary(domain.RunSummary{RunID: "run-1", JobName: "permits", Success: true})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), `"errors"`)
	assert.NotContains(t, string(msg.Value), `"warnings"`)
}
