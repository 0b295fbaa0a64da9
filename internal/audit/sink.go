package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trustedge/sentinel/internal/securestore"
	"github.com/trustedge/sentinel/internal/signing"
)

// Sink is the durable destination for flushed audit events.
type Sink interface {
	Append(ctx context.Context, events []SecurityEvent) error
	Close() error
}

// GenesisHash is the prev_hash for the first entry in a new chain file.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// chainRecord is one line of the chain file: the event, the hash of the
// previous line, and a signature over the event payload.
type chainRecord struct {
	Event     SecurityEvent `json:"event"`
	PrevHash  string        `json:"prev_hash"`
	Signature string        `json:"signature"`
}

// ChainFileSink appends events to a JSONL file with SHA-256 hash chaining.
// Each record's prev_hash is the hash of the previous line and each event
// is HMAC-signed with the device-held audit key, making the trail
// tamper-evident.
type ChainFileSink struct {
	path     string
	file     *os.File
	prevHash string
	signer   *signing.EventSigner
	mu       sync.Mutex
}

// NewChainFileSink opens (or creates) the chain file for appending. If the
// file exists, the last line is read to recover the chain tail.
func NewChainFileSink(path string, signer *signing.EventSigner) (*ChainFileSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("audit: read existing chain: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("audit: scan existing chain: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open chain file: %w", err)
	}

	return &ChainFileSink{
		path:     path,
		file:     file,
		prevHash: prevHash,
		signer:   signer,
	}, nil
}

// Append writes each event as one chained, signed JSONL record and syncs.
func (s *ChainFileSink) Append(ctx context.Context, events []SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("audit: marshal event: %w", err)
		}

		rec := chainRecord{
			Event:    ev,
			PrevHash: s.prevHash,
		}
		if s.signer != nil {
			rec.Signature = s.signer.Sign(ev.ID, ev.CreatedAt, payload)
		}

		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("audit: marshal record: %w", err)
		}

		if _, err := s.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("audit: write record: %w", err)
		}
		s.prevHash = HashLine(line)
	}

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *ChainFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// VerifyChain reads a chain file and validates the hash chain. It returns
// Valid=true if the chain is intact, or details about the first broken
// link.
func VerifyChain(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	var prevLineBytes []byte

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()

		// Copy: the scanner reuses its buffer.
		line := make([]byte, len(raw))
		copy(line, raw)

		var rec chainRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}

		if lineNum == 1 {
			if rec.PrevHash != GenesisHash {
				return VerifyResult{
					Error:     fmt.Sprintf("first record prev_hash is %q, expected genesis hash", rec.PrevHash),
					ErrorLine: 1,
				}
			}
		} else {
			expected := HashLine(prevLineBytes)
			if rec.PrevHash != expected {
				return VerifyResult{
					Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", expected, rec.PrevHash),
					ErrorLine: lineNum,
				}
			}
		}

		prevLineBytes = line
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Lines: lineNum}
}

// StoreSink writes flushed batches to the secure key-value store, one key
// per batch.
type StoreSink struct {
	store securestore.Store
}

// NewStoreSink creates a sink over the secure store.
func NewStoreSink(store securestore.Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Append(ctx context.Context, events []SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}
	key := fmt.Sprintf("audit:batch:%s:%s", events[0].CreatedAt.UTC().Format(time.RFC3339Nano), events[0].ID)
	return securestore.SetJSON(ctx, s.store, key, events)
}

func (s *StoreSink) Close() error { return nil }
