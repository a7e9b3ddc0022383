package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/threedibatch/internal/threedi"
)

// defaultPollInterval is the time between two model listings.
const defaultPollInterval = 5 * time.Second

// ModelLister lists processed 3Di models. *threedi.Client implements it.
type ModelLister interface {
	ThreediModels(ctx context.Context, filter threedi.ModelFilter) ([]threedi.ThreediModel, error)
}

// WaitFunc receives the revision being waited for and the time waited so
// far, once before every poll.
type WaitFunc func(slug string, revision int, waited time.Duration)

// Waiter waits until the 3Di service has processed a repository revision.
type Waiter struct {
	api      ModelLister
	interval time.Duration
	logger   *slog.Logger
	onWait   WaitFunc
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithPollInterval sets the time between two listings.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWaiterLogger sets a custom logger.
func WithWaiterLogger(logger *slog.Logger) WaiterOption {
	return func(w *Waiter) {
		w.logger = logger
	}
}

// WithWaitProgress sets a callback called before every poll.
func WithWaitProgress(fn WaitFunc) WaiterOption {
	return func(w *Waiter) {
		w.onWait = fn
	}
}

// NewWaiter creates a Waiter polling api.
func NewWaiter(api ModelLister, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		api:      api,
		interval: defaultPollInterval,
		logger:   slog.Default(),
		onWait:   func(string, int, time.Duration) {},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WaitForModel polls until a model for slug and revision exists and
// returns it. When the accumulated waiting time reaches maxWait without a
// match it returns nil and no error. A match on the first poll returns
// immediately. Listing errors and context cancellation end the wait with
// an error.
func (w *Waiter) WaitForModel(ctx context.Context, slug string, revision int, maxWait time.Duration) (*threedi.ThreediModel, error) {
	filter := threedi.ModelFilter{RepositorySlug: slug, RevisionNumber: revision}

	var waited time.Duration
	for waited < maxWait {
		w.onWait(slug, revision, waited)
		w.logger.Debug("waiting for model",
			"slug", slug,
			"revision", revision,
			"seconds", int(waited.Seconds()),
		)

		models, err := w.api.ThreediModels(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}

		if m := FindRevision(models, slug, revision); m != nil {
			w.logger.Info("model ready", "slug", slug, "revision", revision, "model_id", m.ID)
			return m, nil
		}

		if err := sleepContext(ctx, w.interval); err != nil {
			return nil, err
		}
		waited += w.interval
	}

	w.logger.Warn("model not ready in time", "slug", slug, "revision", revision, "max_wait", maxWait)
	return nil, nil //nolint:nilnil // no model within maxWait
}

// FindRevision returns the model whose repository slug and revision number
// both match, or nil. When several match, the last one wins.
func FindRevision(models []threedi.ThreediModel, slug string, revision int) *threedi.ThreediModel {
	var found *threedi.ThreediModel
	for i := range models {
		if models[i].RepositorySlug == slug && models[i].Revision() == revision {
			m := models[i]
			found = &m
		}
	}
	return found
}
