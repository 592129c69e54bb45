package reasoning

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/observability"
	"github.com/kadirpekel/graphmind/pkg/scheduler"
)

// ErrEmptyQuestion rejects blank input before any pipeline work starts.
var ErrEmptyQuestion = errors.New("question is empty")

// DefaultBatchWidth bounds concurrent questions in a batch.
const DefaultBatchWidth = 4

// Session is a cancellable question scope. All tasks spawned for its
// questions carry the session id, so Cancel reaches queued and running
// work alike. Safe for concurrent use.
type Session struct {
	id       string
	reasoner *SchemaReasoner
	sched    *scheduler.Scheduler
	metrics  observability.Recorder
	cfg      config.ReasoningConfig

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(reasoner *SchemaReasoner, sched *scheduler.Scheduler, metrics observability.Recorder, cfg config.ReasoningConfig) *Session {
	if metrics == nil {
		metrics = observability.Noop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       uuid.NewString(),
		reasoner: reasoner,
		sched:    sched,
		metrics:  metrics,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID is the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Ask answers one question. Blank questions are an input error; a
// cancelled session returns a result marked Cancelled without touching
// the pipeline. Any other input yields a non-nil result.
func (s *Session) Ask(ctx context.Context, question string) (*ReasoningResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if s.ctx.Err() != nil {
		return &ReasoningResult{
			Question:  question,
			Answer:    "The session was cancelled.",
			Cancelled: true,
		}, nil
	}

	// The run context dies with either the caller or the session.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	result := s.reasoner.Answer(runCtx, s.id, question)
	s.metrics.RecordQuestion(ctx, result.Elapsed, result.Fallback, result.Cancelled)
	return result, nil
}

// AskBatch answers questions concurrently and returns results in input
// order. Slot i always corresponds to questions[i]; a rejected question
// gets an explanatory result in place rather than failing the batch.
func (s *Session) AskBatch(ctx context.Context, questions []string) []*ReasoningResult {
	results := make([]*ReasoningResult, len(questions))

	width := s.cfg.BatchSize
	if width <= 0 {
		width = DefaultBatchWidth
	}

	g := new(errgroup.Group)
	g.SetLimit(width)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			res, err := s.Ask(ctx, q)
			if err != nil {
				res = &ReasoningResult{
					Question: q,
					Answer:   "Unable to answer: " + err.Error() + ".",
					Fallback: true,
				}
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results
}

// Cancel stops the session: in-flight and queued tasks are cancelled and
// later Ask calls return Cancelled results. Idempotent.
func (s *Session) Cancel() {
	s.cancel()
	s.sched.CancelSession(s.id)
}

// Cancelled reports whether the session has been cancelled.
func (s *Session) Cancelled() bool {
	return s.ctx.Err() != nil
}
