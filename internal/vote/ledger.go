package vote

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/lockmap"
	"campus-hub/internal/retry"
)

// Store persists vote state. Load fails with apperr.KindNotFound when the
// target does not exist. Record stores userID's state and refreshes the
// target's score in one atomic step.
type Store interface {
	Load(ctx context.Context, target Target) (Tally, error)
	Record(ctx context.Context, target Target, userID int64, state State) error
	LoadMany(ctx context.Context, kind Kind, ids []int64) (map[int64]Tally, error)
}

type Ledger struct {
	store Store
	locks *lockmap.Map[Target]
	retry retry.Policy
	votes *prometheus.CounterVec
	log   *zap.Logger
}

func NewLedger(store Store, policy retry.Policy, reg prometheus.Registerer, log *zap.Logger) *Ledger {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Ledger{
		store: store,
		locks: lockmap.New[Target](),
		retry: policy,
		votes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "campus_hub_votes_total",
			Help: "Votes applied, by target kind and resulting state.",
		}, []string{"target", "state"}),
		log: log,
	}
}

// Vote applies userID's vote to target. Votes on the same target are
// serialized; different targets proceed independently.
func (l *Ledger) Vote(ctx context.Context, target Target, userID int64, dir Direction) (Tally, error) {
	const op = "vote.cast"
	if !target.Kind.Valid() {
		return Tally{}, apperr.Validation(op, "target", "must be post or comment")
	}
	if dir != Up && dir != Down {
		return Tally{}, apperr.Validation(op, "direction", "must be up or down")
	}

	unlock := l.locks.Lock(target)
	defer unlock()

	current, err := retry.Value(ctx, l.retry, op, func(ctx context.Context) (Tally, error) {
		return l.store.Load(ctx, target)
	})
	if err != nil {
		return Tally{}, err
	}

	next, state := Apply(current, userID, dir)
	if err := l.retry.Do(ctx, op, func(ctx context.Context) error {
		return l.store.Record(ctx, target, userID, state)
	}); err != nil {
		return Tally{}, err
	}

	l.votes.WithLabelValues(string(target.Kind), stateLabel(state)).Inc()
	l.log.Debug("vote_recorded",
		zap.String("target", string(target.Kind)),
		zap.Int64("target_id", target.ID),
		zap.Int64("user_id", userID),
		zap.Int("score", next.Score),
	)
	return next, nil
}

func (l *Ledger) Tally(ctx context.Context, target Target) (Tally, error) {
	return retry.Value(ctx, l.retry, "vote.tally", func(ctx context.Context) (Tally, error) {
		return l.store.Load(ctx, target)
	})
}

// Tallies returns the tally of every id. Targets without votes get an empty
// tally.
func (l *Ledger) Tallies(ctx context.Context, kind Kind, ids []int64) (map[int64]Tally, error) {
	if len(ids) == 0 {
		return map[int64]Tally{}, nil
	}
	return retry.Value(ctx, l.retry, "vote.tallies", func(ctx context.Context) (map[int64]Tally, error) {
		return l.store.LoadMany(ctx, kind, ids)
	})
}

func stateLabel(s State) string {
	switch s {
	case Upvoted:
		return "up"
	case Downvoted:
		return "down"
	}
	return "withdrawn"
}
