package submitqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var ErrBusy = errors.New("a submission batch is already running")

// RemovalPolicy decides which drained records leave the source list.
type RemovalPolicy string

const (
	// RemovePrefix drops the first SuccessCount records, whichever of them
	// actually succeeded. A failure followed by successes is dropped too.
	RemovePrefix RemovalPolicy = "prefix"
	// RemoveSucceeded drops exactly the records that succeeded.
	RemoveSucceeded RemovalPolicy = "succeeded"
)

func ParsePolicy(raw string) (RemovalPolicy, error) {
	switch policy := RemovalPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "", RemovePrefix:
		return RemovePrefix, nil
	case RemoveSucceeded:
		return RemoveSucceeded, nil
	default:
		return "", fmt.Errorf("unknown removal policy %q", raw)
	}
}

type Failure struct {
	Index int
	Key   string
	Err   error
}

type Result struct {
	Total     int
	Succeeded []int
	// Skipped lists records that were already mid-submission elsewhere.
	// They are also in Succeeded.
	Skipped []int
	Errors  []Failure
}

func (r Result) SuccessCount() int {
	return len(r.Succeeded)
}

// Removable returns the indices, in ascending order, of the drained records
// to remove from the source list under policy.
func (r Result) Removable(policy RemovalPolicy) []int {
	if policy == RemoveSucceeded {
		out := make([]int, len(r.Succeeded))
		copy(out, r.Succeeded)
		return out
	}
	out := make([]int, r.SuccessCount())
	for i := range out {
		out[i] = i
	}
	return out
}

type SubmitFunc[T any] func(ctx context.Context, record T) error

type KeyFunc[T any] func(record T) string

// Queue pushes records to a sink one at a time. Record N+1 is dispatched
// only after record N has settled.
type Queue[T any] struct {
	key    KeyFunc[T]
	submit SubmitFunc[T]
	log    zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New[T any](key KeyFunc[T], submit SubmitFunc[T], log zerolog.Logger) *Queue[T] {
	return &Queue[T]{
		key:      key,
		submit:   submit,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// Drain submits every record in order. A failing record is recorded and the
// drain moves on; nothing aborts the batch. progress, when set, is called
// after each record settles.
func (q *Queue[T]) Drain(ctx context.Context, records []T, progress func(done, total int)) Result {
	res := Result{Total: len(records)}

	for i, record := range records {
		key := q.key(record)
		if !q.acquire(key) {
			q.log.Warn().Str("key", key).Int("index", i).Msg("record already submitting, skipped")
			res.Succeeded = append(res.Succeeded, i)
			res.Skipped = append(res.Skipped, i)
		} else {
			err := q.submit(ctx, record)
			q.release(key)
			if err != nil {
				q.log.Error().Err(err).Str("key", key).Int("index", i).Msg("record submission failed")
				res.Errors = append(res.Errors, Failure{Index: i, Key: key, Err: err})
			} else {
				res.Succeeded = append(res.Succeeded, i)
			}
		}

		if progress != nil {
			progress(i+1, len(records))
		}
	}

	q.log.Info().
		Int("total", res.Total).
		Int("submitted", res.SuccessCount()).
		Int("failed", len(res.Errors)).
		Msg("submission batch completed")
	return res
}

func (q *Queue[T]) acquire(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inflight[key]; busy {
		return false
	}
	q.inflight[key] = struct{}{}
	return true
}

func (q *Queue[T]) release(key string) {
	q.mu.Lock()
	delete(q.inflight, key)
	q.mu.Unlock()
}

// Gate admits one batch at a time over a given list.
type Gate struct {
	running atomic.Bool
}

func (g *Gate) Enter() error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (g *Gate) Leave() {
	g.running.Store(false)
}
