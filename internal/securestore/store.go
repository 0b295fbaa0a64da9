// Package securestore defines the secure key-value boundary used for
// configuration, cached trust/threat state, behavioral baselines, and
// stored audit reports.
package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("securestore: key not found")

// Store is the secure key-value collaborator. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON retrieves and unmarshals a stored JSON value into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("securestore: unmarshal %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals v to JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("securestore: marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
