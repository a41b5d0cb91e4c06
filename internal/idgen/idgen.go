// Package idgen issues CMPT-<n> complaint identifiers.
//
// The next number is one past the highest in use. Two creators can read the
// same maximum; the store's unique constraint rejects the loser, which backs
// off exponentially with jitter and tries again.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/store"
)

const (
	DefaultPrefix      = "CMPT"
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 100 * time.Millisecond
)

// SequenceSource reports the highest sequence number already issued.
type SequenceSource interface {
	MaxSeq(ctx context.Context) (int64, error)
}

// InsertFunc persists a record under the candidate identifier. It must return
// an error wrapping store.ErrDuplicateID when the identifier is taken.
type InsertFunc func(ctx context.Context, id string, seq int64) error

type Config struct {
	Prefix string
	// Floor is the number the sequence starts after when nothing is in use.
	Floor       int64
	MaxAttempts int
	BackoffBase time.Duration
}

type Generator struct {
	source SequenceSource
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
}

func New(source SequenceSource, cfg Config) *Generator {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Floor < 0 {
		cfg.Floor = 0
	}
	return &Generator{
		source: source,
		cfg:    cfg,
		sleep:  sleepContext,
		jitter: rand.Int64N,
	}
}

// Next computes the candidate identifier without reserving it.
func (g *Generator) Next(ctx context.Context) (string, int64, error) {
	highest, err := g.source.MaxSeq(ctx)
	if err != nil {
		return "", 0, err
	}
	if highest < g.cfg.Floor {
		highest = g.cfg.Floor
	}
	n := highest + 1
	return Format(g.cfg.Prefix, n), n, nil
}

// Allocate finds a free identifier and hands it to insert, retrying on
// collisions. Exhausting the attempts yields a ResourceExhaustedError. Errors
// other than a collision are returned as is.
func (g *Generator) Allocate(ctx context.Context, insert InsertFunc) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		id, seq, err := g.Next(ctx)
		if err != nil {
			return "", err
		}

		err = insert(ctx, id, seq)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, store.ErrDuplicateID) {
			return "", err
		}
		lastErr = err

		if attempt == g.cfg.MaxAttempts-1 {
			break
		}
		if err := g.sleep(ctx, g.Backoff(attempt)); err != nil {
			return "", err
		}
	}
	return "", &apperr.ResourceExhaustedError{Attempts: g.cfg.MaxAttempts, Err: lastErr}
}

// Backoff returns base*2^attempt plus a random jitter below the same amount.
func (g *Generator) Backoff(attempt int) time.Duration {
	step := g.cfg.BackoffBase << attempt
	if step <= 0 {
		return g.cfg.BackoffBase
	}
	return step + time.Duration(g.jitter(int64(step)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Format renders n with at least three digits: CMPT-007, CMPT-1234.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// Parse extracts n from an identifier produced by Format.
func Parse(prefix, id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, prefix+"-")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
