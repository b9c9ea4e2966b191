// Package kv is the durable key-value store backing client state that must
// survive restarts, such as the session credential.
package kv

import (
	"context"
)

// Repository is a byte-oriented key-value store. Get of a missing key
// returns (nil, nil).
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
