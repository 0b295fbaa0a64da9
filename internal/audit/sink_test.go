package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/securestore"
	"github.com/trustedge/sentinel/internal/signing"
)

func chainEvents(n int) []SecurityEvent {
	events := make([]SecurityEvent, n)
	for i := range events {
		events[i] = SecurityEvent{
			ID:          uuid.New().String(),
			Type:        EventDataAccess,
			Category:    CategoryDataProtection,
			Severity:    models.SeverityInfo,
			Description: "event",
			CreatedAt:   time.Now().UTC(),
		}
	}
	return events
}

func TestChainFileSink_AppendAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	signer := signing.NewEventSigner([]byte("device-secret"), "sentinel-audit")

	sink, err := NewChainFileSink(path, signer)
	require.NoError(t, err)

	require.NoError(t, sink.Append(context.Background(), chainEvents(3)))
	require.NoError(t, sink.Close())

	result := VerifyChain(path)
	assert.True(t, result.Valid, result.Error)
	assert.Equal(t, 3, result.Lines)
}

func TestChainFileSink_ResumesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	signer := signing.NewEventSigner([]byte("device-secret"), "sentinel-audit")

	sink, err := NewChainFileSink(path, signer)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), chainEvents(2)))
	require.NoError(t, sink.Close())

	// Reopen and append: the chain must continue from the recovered tail.
	sink, err = NewChainFileSink(path, signer)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), chainEvents(2)))
	require.NoError(t, sink.Close())

	result := VerifyChain(path)
	assert.True(t, result.Valid, result.Error)
	assert.Equal(t, 4, result.Lines)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	signer := signing.NewEventSigner([]byte("device-secret"), "sentinel-audit")

	sink, err := NewChainFileSink(path, signer)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), chainEvents(3)))
	require.NoError(t, sink.Close())

	// Tamper with the second line.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	lines[1] = strings.Replace(lines[1], `"description":"event"`, `"description":"edited"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))

	result := VerifyChain(path)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.ErrorLine, "the record after the edit breaks the chain")
}

func TestStoreSink_Append(t *testing.T) {
	store := securestore.NewMemoryStore()
	sink := NewStoreSink(store)

	require.NoError(t, sink.Append(context.Background(), chainEvents(2)))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, sink.Append(context.Background(), nil))
	assert.Equal(t, 1, store.Len(), "empty batches are not stored")
}
