// Package archive moves old run history out of the SQLite store into
// gzipped JSON Lines files in a blob store.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/blob"
	"github.com/rmax-ai/pganomaly/pkg/store"
)

const DefaultBatchSize = 1000

// ErrIncompleteDelete is returned when the source removed fewer events than
// were archived.
var ErrIncompleteDelete = errors.New("archived events not removed from history")

// Source is the history being archived.
type Source interface {
	EventsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*store.Event, error)
	DeleteEvents(ctx context.Context, ids []store.EventID) (int64, error)
}

// Result describes one Archive call.
type Result struct {
	Events int64    `json:"events"`
	Keys   []string `json:"keys"`
}

type Archiver struct {
	src       Source
	dst       blob.Store
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Archiver)

func WithBatchSize(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Archiver) { a.logger = l }
}

func New(src Source, dst blob.Store, opts ...Option) *Archiver {
	a := &Archiver{
		src:       src,
		dst:       dst,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive writes every event older than retention to the blob store, one
// object per batch, and deletes each batch from the source once its object
// is stored. A batch whose upload fails stays in the source.
func (a *Archiver) Archive(ctx context.Context, retention time.Duration) (Result, error) {
	var res Result
	cutoff := a.now().UTC().Add(-retention)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		events, err := a.src.EventsBefore(ctx, cutoff, a.batchSize)
		if err != nil {
			return res, fmt.Errorf("failed to read events: %w", err)
		}
		if len(events) == 0 {
			return res, nil
		}

		key, deleted, err := a.archiveBatch(ctx, events)
		if err != nil {
			return res, err
		}
		res.Keys = append(res.Keys, key)
		res.Events += deleted
		// Undeleted rows would be returned again by EventsBefore.
		if deleted < int64(len(events)) {
			return res, fmt.Errorf("%w: archive %s kept %d of %d events in the source",
				ErrIncompleteDelete, key, int64(len(events))-deleted, len(events))
		}

		if len(events) < a.batchSize {
			return res, nil
		}
	}
}

func (a *Archiver) archiveBatch(ctx context.Context, events []*store.Event) (string, int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, evt := range events {
		if err := enc.Encode(evt); err != nil {
			gz.Close()
			return "", 0, fmt.Errorf("failed to encode event %s: %w", evt.EventID, err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to compress batch: %w", err)
	}

	first, last := events[0].TsEvent.UTC(), events[len(events)-1].TsEvent.UTC()
	key := Key(first, last)
	if err := a.dst.Put(ctx, key, &buf); err != nil {
		return "", 0, fmt.Errorf("failed to store archive %s: %w", key, err)
	}

	ids := make([]store.EventID, len(events))
	for i, evt := range events {
		ids[i] = evt.EventID
	}
	deleted, err := a.src.DeleteEvents(ctx, ids)
	if err != nil {
		return "", 0, fmt.Errorf("archive %s stored but events not deleted: %w", key, err)
	}

	a.logger.Info("events_archived",
		zap.String("key", key),
		zap.Int("events", len(events)),
		zap.Int64("deleted", deleted),
		zap.Time("first", first),
		zap.Time("last", last),
	)
	return key, deleted, nil
}

// Key names an archive by the day of its first event and its time span.
func Key(first, last time.Time) string {
	y, m, d := first.Date()
	return fmt.Sprintf("events/%04d/%02d/%02d/%d_%d_%s.jsonl.gz",
		y, m, d, first.Unix(), last.Unix(), uuid.NewString())
}

// Read decodes one archive object.
func Read(ctx context.Context, src blob.Store, key string) ([]*store.Event, error) {
	rc, err := src.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer gz.Close()

	var events []*store.Event
	dec := json.NewDecoder(gz)
	for dec.More() {
		var evt store.Event
		if err := dec.Decode(&evt); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		events = append(events, &evt)
	}
	return events, nil
}
