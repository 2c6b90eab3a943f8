// Package store provides the key-value persistence port used for whole-document
// writes of the timer list and the completion history, together with its Redis
// and in-memory backends and the document codecs.
package store

import (
	"context"
	"errors"
	"fmt"
)

const (
	TimersKey  = "@timers"
	HistoryKey = "@timer_history"
)

var ErrNotFound = errors.New("document not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Documents reads and writes typed documents through a Store using a Codec.
type Documents struct {
	store Store
	codec Codec
}

func NewDocuments(s Store, codec Codec) *Documents {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Documents{store: s, codec: codec}
}

// Load decodes the document at key into v. It reports false without error when
// the document does not exist.
func (d *Documents) Load(ctx context.Context, key string, v any) (bool, error) {
	data, err := d.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := d.codec.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s as %s: %w", key, d.codec.Name(), err)
	}

	return true, nil
}

func (d *Documents) Save(ctx context.Context, key string, v any) error {
	data, err := d.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s as %s: %w", key, d.codec.Name(), err)
	}

	if err := d.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}
