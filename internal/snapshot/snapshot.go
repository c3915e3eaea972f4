// Package snapshot persists JSON documents to an object store and polls for
// documents produced by other processes.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/gijiroku/internal/objectstore"
)

const (
	DefaultPollAttempts = 10
	DefaultPollDelay    = 30 * time.Second

	jsonContentType = "application/json"
)

type PollOptions struct {
	MaxAttempts int
	Delay       time.Duration
}

type Store struct {
	objects objectstore.ObjectStore
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Store)

// WithSleep replaces the wait between poll attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Store) {
		s.sleep = sleep
	}
}

func New(objects objectstore.ObjectStore, opts ...Option) *Store {
	s := &Store{
		objects: objects,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put serializes doc as indented JSON and stores it under key, replacing any
// previous object.
func (s *Store) Put(ctx context.Context, key string, doc any) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}
	if err := s.objects.Put(ctx, key, body, jsonContentType); err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return nil
}

// Get returns the raw document under key. A missing object is reported as
// found=false with a nil error.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	body, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !json.Valid(body) {
		return nil, false, fmt.Errorf("snapshot %s is not valid json", key)
	}
	return json.RawMessage(body), true, nil
}

// PollUntilAvailable reads key up to opts.MaxAttempts times, waiting
// opts.Delay between attempts. It returns the first document found. Errors
// other than not-found abort the poll. Exhausting the attempts or a cancelled
// ctx yields found=false with a nil error.
func (s *Store) PollUntilAvailable(ctx context.Context, key string, opts PollOptions) (json.RawMessage, bool, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultPollAttempts
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, false, nil
		}
		doc, found, err := s.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("poll %s attempt %d: %w", key, attempt, err)
		}
		if found {
			slog.Debug("polled document available", "key", key, "attempt", attempt)
			return doc, true, nil
		}
		if attempt == opts.MaxAttempts {
			break
		}
		slog.Debug("polled document not ready; retrying", "key", key, "attempt", attempt, "max_attempts", opts.MaxAttempts, "delay", opts.Delay)
		if err := s.sleep(ctx, opts.Delay); err != nil {
			return nil, false, nil
		}
	}
	slog.Warn("polled document never became available", "key", key, "attempts", opts.MaxAttempts)
	return nil, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
