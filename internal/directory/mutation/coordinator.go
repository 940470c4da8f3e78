// Package mutation executes the optimistic-mutation protocol for reversible
// directory edits: snapshot, apply, remote call, commit or rollback. Only
// operations that are reversible, single-entity and not privilege changes
// may go through here; privilege escalation uses the pessimistic
// impersonation path instead.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atlas-hq/atlas-console/internal/directory/cache"
	"github.com/atlas-hq/atlas-console/internal/observability"
)

// RemoteCall performs the server-side effect of one mutation. It receives
// the mutation's idempotency key so the core API can drop a duplicate
// delivery. The audit entry for the effect is written server-side as part
// of this call, never by the caller afterwards.
type RemoteCall func(ctx context.Context, idempotencyKey string) error

// Notifier surfaces operator feedback.
type Notifier interface {
	Success(actorID, text string)
	Error(actorID, text string)
}

// IdempotencyStore records mutation keys so a duplicate submit of the same
// logical edit cannot apply twice.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Op describes one logical reversible mutation. Name and EntityID identify
// the edit ("user.suspend" on "u1"); together they form the idempotency key.
type Op struct {
	ActorID        string
	Name           string
	EntityID       string
	CollectionKey  string
	Transform      cache.Transform
	Remote         RemoteCall
	SuccessMessage string
	FailureMessage string
}

func (op Op) idempotencyKey() string {
	return op.Name + ":" + op.EntityID
}

const idempotencyModule = "directory"

// Coordinator orchestrates optimistic mutations against the cache.
type Coordinator struct {
	logger   *slog.Logger
	store    *cache.Store
	notifier Notifier
	idem     IdempotencyStore
	metrics  *observability.Metrics
	wg       sync.WaitGroup
}

// NewCoordinator constructs a Coordinator. The idempotency store may be nil
// when retry safety is handled elsewhere.
func NewCoordinator(logger *slog.Logger, store *cache.Store, notifier Notifier, idem IdempotencyStore, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{logger: logger, store: store, notifier: notifier, idem: idem, metrics: metrics}
}

// Execute applies the transform optimistically, reports success to the
// operator immediately, then runs the remote call in the background. On
// remote failure the collection is rolled back to its pre-mutation snapshot
// and the failure message is surfaced with the server's error text. There
// is no automatic retry.
//
// The idempotency key pins the edit from submission to resolution: a second
// Execute of the same Name and EntityID while the first is unresolved is
// refused before anything becomes visible. Resolution releases the key, so
// a confirmed edit can be repeated and a rolled-back one retried manually.
func (c *Coordinator) Execute(ctx context.Context, op Op) error {
	if op.Name == "" || op.EntityID == "" || op.CollectionKey == "" || op.Transform == nil || op.Remote == nil {
		return errors.New("mutation: op requires name, entity, collection key, transform and remote call")
	}

	key := op.idempotencyKey()
	if c.idem != nil {
		if err := c.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return fmt.Errorf("mutation %s: %w", key, err)
		}
	}

	snapshot := c.store.ApplyOptimistic(op.CollectionKey, op.Transform)

	if op.SuccessMessage != "" {
		c.notifier.Success(op.ActorID, op.SuccessMessage)
	}

	// The request context dies with the HTTP response; the remote call must
	// outlive it.
	callCtx := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := op.Remote(callCtx, key)
		if err == nil {
			c.store.Commit(op.CollectionKey)
			c.releaseKey(callCtx, key)
			return
		}
		c.logger.Warn("mutation remote call failed",
			slog.String("mutation", key),
			slog.String("collection", op.CollectionKey),
			slog.Any("error", err))
		c.store.Rollback(op.CollectionKey, snapshot)
		c.metrics.ObserveRollback(op.CollectionKey)
		c.releaseKey(callCtx, key)
		c.notifier.Error(op.ActorID, failureText(op.FailureMessage, err))
	}()
	return nil
}

func (c *Coordinator) releaseKey(ctx context.Context, key string) {
	if c.idem == nil {
		return
	}
	if err := c.idem.Delete(ctx, key); err != nil {
		c.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

// Wait blocks until every in-flight remote call has resolved. Used during
// shutdown and by tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func failureText(message string, err error) string {
	if message == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", message, err.Error())
}
