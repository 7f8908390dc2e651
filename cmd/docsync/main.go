// Command docsync runs an in-process two-session synchronization
// demonstration: both sessions edit the same list document, a simulated
// server confirms operations in a global order, and each client rebases the
// other session's confirmed edits over its own pending ones.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/docsync/docsync/pkg/config"
	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/observability"
	"github.com/docsync/docsync/pkg/otypes"
	"github.com/docsync/docsync/pkg/otypes/counter"
	"github.com/docsync/docsync/pkg/otypes/list"
	"github.com/docsync/docsync/pkg/otypes/text"
	"github.com/docsync/docsync/pkg/storage"
	"github.com/docsync/docsync/pkg/storage/content"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewStandardLogger(cfg.Logging.Prefix)
	if sl, ok := logger.(*observability.StandardLogger); ok {
		logger = sl.WithLevel(observability.LogLevel(cfg.Logging.Level))
	}
	var metrics observability.MetricsClient = observability.NewNoopMetricsClient()
	if cfg.Metrics.Enabled {
		metrics = observability.NewPrometheusMetricsClient(cfg.Metrics.Namespace, "engine")
	}
	defer func() {
		if err := metrics.Close(); err != nil {
			logger.Warnf("closing metrics: %v", err)
		}
	}()

	registry := otypes.NewRegistry(logger)
	for _, t := range []otypes.Type{text.New(), list.New(), counter.New()} {
		if err := registry.Register(t); err != nil {
			log.Fatalf("Failed to register type: %v", err)
		}
	}

	server, err := content.NewStore(cfg.Content.SnapshotCacheSize, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to create content store: %v", err)
	}

	if err := run(context.Background(), cfg, registry, server, logger, metrics); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, registry *otypes.Registry, server *content.Store, logger observability.Logger, metrics observability.MetricsClient) error {
	alice := storage.NewStore(uuid.New(), registry, logger.WithPrefix("alice"), metrics)
	bob := storage.NewStore(uuid.New(), registry, logger.WithPrefix("bob"), metrics)

	elements := make([]interface{}, cfg.Simulation.InitialListSize)
	for i := range elements {
		elements[i] = fmt.Sprintf("item-%d", i)
	}
	base := &models.Snapshot{
		Type:    list.TypeName,
		ID:      cfg.Simulation.DocumentID,
		Version: 0,
		Data:    elements,
	}
	for _, store := range []*storage.Store{alice, bob} {
		if err := store.Init(ctx, base); err != nil {
			return err
		}
	}
	if err := server.StoreSnapshot(ctx, base); err != nil {
		return err
	}

	// Lockstep rounds: one session edits, the server confirms, the other
	// session receives the edit as a foreign operation.
	for i := 0; i < cfg.Simulation.EditsPerSession; i++ {
		if err := editAndBroadcast(ctx, alice, bob, server, base.ID, i*2); err != nil {
			return err
		}
		if err := editAndBroadcast(ctx, bob, alice, server, base.ID, i*2+1); err != nil {
			return err
		}
	}

	// One genuinely concurrent round: both sessions edit before either edit
	// is confirmed, forcing the loser of the confirmation race to rebase.
	if err := concurrentRound(ctx, alice, bob, server, base.ID); err != nil {
		return err
	}

	return report(ctx, registry, alice, bob, base, logger)
}

func nextOp(ctx context.Context, store *storage.Store, id string, index int, value interface{}) (*models.Operation, error) {
	status, err := store.GetStatus(ctx, list.TypeName, id)
	if err != nil {
		return nil, err
	}
	return &models.Operation{
		Type:      list.TypeName,
		ID:        id,
		Version:   status.LastVersion + 1,
		SessionID: store.SessionID(),
		Sequence:  status.LastSequence + 1,
		Data:      list.Payload{Action: list.ActionInsert, Index: index, Value: value},
	}, nil
}

func editAndBroadcast(ctx context.Context, author, peer *storage.Store, server *content.Store, id string, round int) error {
	op, err := nextOp(ctx, author, id, 0, fmt.Sprintf("edit-%d", round))
	if err != nil {
		return err
	}
	if err := author.Store(ctx, op, true); err != nil {
		return err
	}
	if err := server.StoreOperation(ctx, op); err != nil {
		return err
	}
	// The author sees its own confirmation, the peer a foreign operation.
	if err := author.Store(ctx, op, false); err != nil {
		return err
	}
	return peer.Store(ctx, op, false)
}

func concurrentRound(ctx context.Context, alice, bob *storage.Store, server *content.Store, id string) error {
	opA, err := nextOp(ctx, alice, id, 1, "concurrent-alice")
	if err != nil {
		return err
	}
	opB, err := nextOp(ctx, bob, id, 2, "concurrent-bob")
	if err != nil {
		return err
	}
	if err := alice.Store(ctx, opA, true); err != nil {
		return err
	}
	if err := bob.Store(ctx, opB, true); err != nil {
		return err
	}

	// The server confirms alice first; bob rebases her edit over his
	// pending one, then resubmits the rebased form for confirmation.
	if err := server.StoreOperation(ctx, opA); err != nil {
		return err
	}
	if err := alice.Store(ctx, opA, false); err != nil {
		return err
	}
	if err := bob.Store(ctx, opA, false); err != nil {
		return err
	}

	pending, err := bob.Load(ctx, list.TypeName, id, opA.Version+1, opA.Version+1)
	if err != nil {
		return err
	}
	rebased := pending[0]
	if err := server.StoreOperation(ctx, rebased); err != nil {
		return err
	}
	if err := bob.Store(ctx, rebased, false); err != nil {
		return err
	}
	return alice.Store(ctx, rebased, false)
}

func report(ctx context.Context, registry *otypes.Registry, alice, bob *storage.Store, base *models.Snapshot, logger observability.Logger) error {
	for name, store := range map[string]*storage.Store{"alice": alice, "bob": bob} {
		ops, err := store.LoadAll(ctx, base.Type, base.ID)
		if err != nil {
			return err
		}
		snapshot := base
		for _, op := range ops {
			if snapshot, err = registry.Apply(snapshot, op); err != nil {
				return err
			}
		}
		status, err := store.GetStatus(ctx, base.Type, base.ID)
		if err != nil {
			return err
		}
		logger.Info("Session converged", map[string]interface{}{
			"session":             name,
			"operations":          len(ops),
			"last_version":        status.LastVersion,
			"last_remote_version": status.LastRemoteVersion,
			"state":               snapshot.Data,
		})
	}
	return nil
}
