// Package storage keeps a ledger of package runs in a NATS KV bucket, one
// record per OSF registration.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// BucketPackages is the KV bucket holding package records.
const BucketPackages = "OSFIPM_PACKAGES"

// Status is the state of a package run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// StatusChange records a status transition.
type StatusChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome is what a finished package run produced.
type Outcome struct {
	Dir                string `json:"dir"`
	Format             string `json:"format"`
	Statements         int    `json:"statements"`
	Files              int    `json:"files"`
	Octets             int64  `json:"octets"`
	ExternalIdentifier string `json:"external_identifier"`
}

// Record is the ledger entry for one registration's latest run.
type Record struct {
	Registration string         `json:"registration"`
	Run          string         `json:"run"`
	Status       Status         `json:"status"`
	Outcome      *Outcome       `json:"outcome,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	StatusChange []StatusChange `json:"status_changes,omitempty"`
}

// bucket is the key-value surface the ledger needs.
type bucket interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, value []byte) error
	keys(ctx context.Context) ([]string, error)
}

// kvBucket adapts a JetStream KeyValue bucket.
type kvBucket struct {
	kv jetstream.KeyValue
}

func (b kvBucket) get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

func (b kvBucket) put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

func (b kvBucket) keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	return keys, err
}

// Store records package runs.
type Store struct {
	b   bucket
	now func() time.Time
}

// NewStore creates a Store over the packages bucket, creating the bucket if
// it doesn't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketPackages)
	if err != nil {
		return nil, fmt.Errorf("create packages bucket: %w", err)
	}
	return newStore(kvBucket{kv: kv}), nil
}

func newStore(b bucket) *Store {
	return &Store{b: b, now: time.Now}
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "osfipm package runs",
		History:     5, // Keep last 5 runs per registration
	})
}

// Begin starts a new run for the registration, replacing any earlier record.
// The record passes through pending to in_progress.
func (s *Store) Begin(ctx context.Context, registration string) (*Record, error) {
	if err := validKey(registration); err != nil {
		return nil, err
	}
	now := s.now()
	r := &Record{
		Registration: registration,
		Run:          uuid.New().String(),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.transition(StatusInProgress, now)
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Complete marks the in-progress run as complete with its outcome.
func (s *Store) Complete(ctx context.Context, registration string, out Outcome) error {
	return s.finish(ctx, registration, StatusComplete, func(r *Record) {
		r.Outcome = &out
	})
}

// Fail marks the in-progress run as failed.
func (s *Store) Fail(ctx context.Context, registration string, cause error) error {
	return s.finish(ctx, registration, StatusFailed, func(r *Record) {
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

func (s *Store) finish(ctx context.Context, registration string, to Status, apply func(*Record)) error {
	r, err := s.Get(ctx, registration)
	if err != nil {
		return err
	}
	if r.Status != StatusInProgress {
		return fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, registration, r.Status, StatusInProgress)
	}
	apply(r)
	r.transition(to, s.now())
	return s.save(ctx, r)
}

// Get retrieves the record for a registration.
func (s *Store) Get(ctx context.Context, registration string) (*Record, error) {
	if err := validKey(registration); err != nil {
		return nil, err
	}
	data, err := s.b.get(ctx, registration)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", registration, ErrNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", registration, err)
	}
	return &r, nil
}

// List returns every record ordered by registration ID. Entries that fail to
// load are skipped.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	keys, err := s.b.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list record keys: %w", err)
	}
	sort.Strings(keys)

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		r, err := s.Get(ctx, key)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.b.put(ctx, r.Registration, data); err != nil {
		return fmt.Errorf("store record %s: %w", r.Registration, err)
	}
	return nil
}

func (r *Record) transition(to Status, now time.Time) {
	r.StatusChange = append(r.StatusChange, StatusChange{From: r.Status, To: to, Timestamp: now})
	r.Status = to
	r.UpdatedAt = now
	if to == StatusInProgress && r.StartedAt == nil {
		r.StartedAt = &now
	}
	if to.Terminal() {
		r.CompletedAt = &now
	}
}

// validKey checks a registration ID against the KV key alphabet.
func validKey(key string) error {
	if key == "" {
		return errors.New("empty registration id")
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("registration id %q: invalid character %q", key, c)
		}
	}
	return nil
}
