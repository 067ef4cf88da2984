package inbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mj-member/mjmember/internal/metrics"
	"github.com/mj-member/mjmember/internal/models"
	"github.com/mj-member/mjmember/internal/store"
)

// maxParallelQueries bounds concurrent target queries when parallel mode is on.
const maxParallelQueries = 4

// Querier is the message-query capability the aggregator reads from.
type Querier interface {
	QueryMessages(ctx context.Context, f store.MessageFilter) ([]models.Message, error)
}

// Viewer is the member on whose behalf messages are gathered.
type Viewer struct {
	ID          int64
	Role        string
	CanModerate bool
}

// ViewerFromMember builds a Viewer from a stored member. A nil member is an
// anonymous viewer.
func ViewerFromMember(m *models.Member) Viewer {
	if m == nil {
		return Viewer{}
	}
	return Viewer{ID: m.ID, Role: m.Role, CanModerate: m.CanModerate}
}

// Targets returns the target queries for v.
func (v Viewer) Targets() []TargetQuery {
	return BuildRecipientTargetQueries(v.ID, v.Role, v.CanModerate)
}

// CanView reports whether msg is addressed to v.
func (v Viewer) CanView(msg *models.Message) bool {
	for _, t := range v.Targets() {
		if t.Matches(msg) {
			return true
		}
	}
	return false
}

// Request describes one aggregated read.
type Request struct {
	Viewer     Viewer
	Limit      int // <= 0 means unbounded
	Status     models.Status
	UnreadOnly bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParallelQueries runs target queries concurrently. Output is identical
// to sequential execution.
func WithParallelQueries(enabled bool) Option {
	return func(a *Aggregator) {
		a.parallel = enabled
	}
}

// Aggregator gathers the messages visible to a viewer from every target
// query and merges them.
type Aggregator struct {
	querier  Querier
	logger   zerolog.Logger
	parallel bool
}

// NewAggregator creates an Aggregator reading from q.
func NewAggregator(q Querier, logger zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		querier: q,
		logger:  logger.With().Str("component", "inbox").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Visible returns the de-duplicated, newest-first messages visible to the
// request's viewer. Failing queries are logged and contribute nothing.
func (a *Aggregator) Visible(ctx context.Context, req Request) []models.Message {
	metrics.InboxRequests.Inc()

	targets := req.Viewer.Targets()
	if len(targets) == 0 {
		return []models.Message{}
	}

	base := store.MessageFilter{
		PerPage: req.Limit,
		Page:    1,
		OrderBy: "created_at",
		Order:   "DESC",
		Status:  req.Status,
	}
	if req.UnreadOnly && req.Viewer.ID > 0 {
		unread := true
		base.ReaderID = req.Viewer.ID
		base.Unread = &unread
	}

	sets := make([][]models.Message, len(targets))
	if a.parallel && len(targets) > 1 {
		var g errgroup.Group
		g.SetLimit(maxParallelQueries)
		for i, t := range targets {
			g.Go(func() error {
				sets[i] = a.fetch(ctx, t, base)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, t := range targets {
			sets[i] = a.fetch(ctx, t, base)
		}
	}

	return MergeMessageSets(sets, req.Limit)
}

// UnreadCount returns how many of the newest window visible messages the
// viewer has not read yet.
func (a *Aggregator) UnreadCount(ctx context.Context, viewer Viewer, window int) int {
	return len(a.Visible(ctx, Request{Viewer: viewer, Limit: window, UnreadOnly: true}))
}

func (a *Aggregator) fetch(ctx context.Context, t TargetQuery, base store.MessageFilter) []models.Message {
	start := time.Now()
	msgs, err := a.querier.QueryMessages(ctx, t.Filter(base))
	metrics.TargetQueryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TargetQueries.WithLabelValues(string(t.Type), "error").Inc()
		a.logger.Warn().
			Err(err).
			Str("target", t.String()).
			Msg("target query failed, treating as empty")
		return nil
	}
	metrics.TargetQueries.WithLabelValues(string(t.Type), "ok").Inc()
	return msgs
}
