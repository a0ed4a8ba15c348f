// Package session is the boundary around one test run: it loads the
// predictor before the run and harvests healed locators into the training
// corpus afterwards.
package session

import (
	"context"
	"sync"
	"time"

	"selfheal/internal/healing"
	"selfheal/internal/locator"
	"selfheal/internal/logging"

	"github.com/google/uuid"
)

// Predictor is the part of predictor.Predictor a session drives.
type Predictor interface {
	locator.Predictor
	Load(ctx context.Context) error
	StoreTrainingData(ctx context.Context, original, healed string) error
}

// Summary reports what End persisted.
type Summary struct {
	SessionID string
	Healed    int
	Persisted int
	Failed    int
	Duration  time.Duration
}

// Session owns one healing log and the resolver that fills it.
type Session struct {
	id        string
	pred      Predictor
	log       *healing.Log
	resolver  *locator.Resolver
	startedAt time.Time

	endOnce sync.Once
	summary Summary
}

// New creates a session over page. The healing log starts empty.
func New(pred Predictor, page locator.Prober, cfg locator.Config) *Session {
	s := &Session{
		id:        uuid.NewString(),
		pred:      pred,
		log:       healing.NewLog(),
		startedAt: time.Now(),
	}
	var lp locator.Predictor
	if pred != nil {
		lp = pred
	}
	s.resolver = locator.NewResolver(page, lp, s.log, cfg)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Resolver returns the session's resolver.
func (s *Session) Resolver() *locator.Resolver { return s.resolver }

// Log returns the session's healing log.
func (s *Session) Log() *healing.Log { return s.log }

// Begin loads the predictor model. Load is idempotent, so every session
// may call it.
func (s *Session) Begin(ctx context.Context) error {
	logging.Session("Session %s starting", s.id)
	if s.pred == nil {
		return nil
	}
	return s.pred.Load(ctx)
}

// End drains the healing log into the training corpus exactly once.
// Persistence failures are logged and counted, never returned: a run that
// passed at the UI level stays passed.
func (s *Session) End(ctx context.Context) Summary {
	s.endOnce.Do(func() {
		records := s.log.Drain()
		sum := Summary{SessionID: s.id, Healed: len(records)}

		for _, rec := range records {
			if s.pred == nil {
				sum.Failed++
				continue
			}
			if err := s.pred.StoreTrainingData(ctx, rec.Original, rec.Healed); err != nil {
				sum.Failed++
				logging.Get(logging.CategorySession).Error("Session %s: failed to persist %q -> %q: %v", s.id, rec.Original, rec.Healed, err)
				continue
			}
			logging.SessionDebug("Session %s: persisted %q -> %q", s.id, rec.Original, rec.Healed)
			sum.Persisted++
		}

		sum.Duration = time.Since(s.startedAt)
		s.summary = sum
		logging.Session("Session %s ended: healed=%d persisted=%d failed=%d (%v)",
			s.id, sum.Healed, sum.Persisted, sum.Failed, sum.Duration)
	})
	return s.summary
}
