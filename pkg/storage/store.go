package storage

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

	syncerrors "github.com/docsync/docsync/pkg/errors"
	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/observability"
	"github.com/docsync/docsync/pkg/otypes"
)

// docContext is the per (type, id) state. operations[0:localIndex] are
// server-confirmed, operations[localIndex:] are pending local operations.
// Versions across the whole slice are strictly increasing with no gaps.
type docContext struct {
	snapshot          *models.Snapshot
	operations        []*models.Operation
	localIndex        int
	lastRemoteVersion int64
	lastSequence      int64
	lastVersion       int64
}

// Store is the in-memory ClientStore. A single mutex serializes mutating
// calls; the rebase reads indices and then splices, which is not safe under
// interleaving.
type Store struct {
	sessionID uuid.UUID
	registry  *otypes.Registry
	logger    observability.Logger
	metrics   observability.MetricsClient

	mu       sync.Mutex
	contexts map[string]map[string]*docContext
}

// NewStore creates a client store for one session.
func NewStore(sessionID uuid.UUID, registry *otypes.Registry, logger observability.Logger, metrics observability.MetricsClient) *Store {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Store{
		sessionID: sessionID,
		registry:  registry,
		logger:    logger.WithPrefix("clientstore"),
		metrics:   metrics,
		contexts:  make(map[string]map[string]*docContext),
	}
}

// SessionID returns the session this store belongs to.
func (s *Store) SessionID() uuid.UUID {
	return s.sessionID
}

// Init implements ClientStore.Init. It fails when a context already exists
// for the snapshot's (type, id).
func (s *Store) Init(ctx context.Context, snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contexts[snapshot.Type][snapshot.ID] != nil {
		return syncerrors.Newf(syncerrors.CodeAlreadyInitialized,
			"document %s/%s is already initialized", snapshot.Type, snapshot.ID)
	}
	byID, ok := s.contexts[snapshot.Type]
	if !ok {
		byID = make(map[string]*docContext)
		s.contexts[snapshot.Type] = byID
	}
	byID[snapshot.ID] = &docContext{
		snapshot:          snapshot.Clone(),
		lastRemoteVersion: snapshot.Version,
		lastVersion:       snapshot.Version,
	}
	s.logger.Info("Document initialized", map[string]interface{}{
		"type":    snapshot.Type,
		"id":      snapshot.ID,
		"version": snapshot.Version,
	})
	return nil
}

// Clear implements ClientStore.Clear. Clearing an unknown document is not an
// error.
func (s *Store) Clear(ctx context.Context, typeName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.contexts[typeName]
	if !ok {
		return nil
	}
	if _, ok := byID[id]; !ok {
		return nil
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(s.contexts, typeName)
	}
	s.logger.Info("Document cleared", map[string]interface{}{
		"type": typeName,
		"id":   id,
	})
	return nil
}

// GetStatus implements ClientStore.GetStatus.
func (s *Store) GetStatus(ctx context.Context, typeName, id string) (*models.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cx := s.contexts[typeName][id]
	if cx == nil {
		return &models.Status{}, nil
	}
	return &models.Status{
		Initialized:       true,
		LastRemoteVersion: cx.lastRemoteVersion,
		LastSequence:      cx.lastSequence,
		LastVersion:       cx.lastVersion,
		LocalIndex:        cx.localIndex,
	}, nil
}

// Store implements ClientStore.Store. A failed call leaves the context
// exactly as it was before the call.
func (s *Store) Store(ctx context.Context, op *models.Operation, local bool) error {
	if err := op.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cx := s.contexts[op.Type][op.ID]
	if cx == nil {
		return syncerrors.Newf(syncerrors.CodeNotInitialized,
			"document %s/%s is not initialized", op.Type, op.ID)
	}

	origin := s.originOf(op, local)
	var err error
	switch origin {
	case OriginLocal:
		err = s.storeLocal(cx, op)
	case OriginRemoteOwn:
		err = s.confirmOwn(cx, op)
	case OriginRemoteForeign:
		err = s.rebaseForeign(cx, op)
	}
	if err != nil {
		return err
	}

	s.metrics.IncrementCounterWithLabels("operations_stored_total", 1, map[string]string{
		"type":   op.Type,
		"origin": origin.String(),
	})
	s.metrics.RecordGauge("pending_operations", float64(len(cx.operations)-cx.localIndex), map[string]string{
		"type": op.Type,
	})
	s.logger.Debug("Operation stored", map[string]interface{}{
		"type":     op.Type,
		"id":       op.ID,
		"version":  op.Version,
		"sequence": op.Sequence,
		"origin":   origin.String(),
	})
	return nil
}

func (s *Store) originOf(op *models.Operation, local bool) OperationOrigin {
	switch {
	case local:
		return OriginLocal
	case op.SessionID == s.sessionID:
		return OriginRemoteOwn
	default:
		return OriginRemoteForeign
	}
}

// storeLocal appends a new, not yet confirmed edit from this session.
func (s *Store) storeLocal(cx *docContext, op *models.Operation) error {
	switch {
	case op.SessionID != s.sessionID:
		return syncerrors.Newf(syncerrors.CodeUnexpectedSession,
			"local operation carries session %s, store owns session %s", op.SessionID, s.sessionID)
	case op.Sequence != cx.lastSequence+1:
		return syncerrors.Newf(syncerrors.CodeUnexpectedSequence,
			"local operation has sequence %d, expected %d", op.Sequence, cx.lastSequence+1)
	case op.Version != cx.lastVersion+1:
		return syncerrors.Newf(syncerrors.CodeUnexpectedVersion,
			"local operation has version %d, expected %d", op.Version, cx.lastVersion+1)
	}
	cx.operations = append(cx.operations, op.Clone())
	cx.lastVersion++
	cx.lastSequence++
	return nil
}

// confirmOwn acknowledges the oldest pending operation of this session. The
// operation is never transformed: the server confirmed it verbatim.
func (s *Store) confirmOwn(cx *docContext, op *models.Operation) error {
	if op.Version != cx.lastRemoteVersion+1 {
		return syncerrors.Newf(syncerrors.CodeUnexpectedVersion,
			"remote operation has version %d, expected %d", op.Version, cx.lastRemoteVersion+1)
	}
	if cx.localIndex >= len(cx.operations) {
		return syncerrors.Newf(syncerrors.CodeUnexpectedSession,
			"own operation confirmed but no local operation is pending")
	}
	pending := cx.operations[cx.localIndex]
	if pending.Sequence != op.Sequence {
		return syncerrors.Newf(syncerrors.CodeUnexpectedSequence,
			"own operation confirmed with sequence %d, pending operation has sequence %d", op.Sequence, pending.Sequence)
	}
	cx.localIndex++
	cx.lastRemoteVersion++
	return nil
}

// rebaseForeign inserts a confirmed operation from another session ahead of
// the pending tail and transforms every pending operation over it. All
// transforms are computed into a fresh slice before any state is touched, so
// a failing transform leaves the context untouched.
func (s *Store) rebaseForeign(cx *docContext, op *models.Operation) error {
	if op.Version != cx.lastRemoteVersion+1 {
		return syncerrors.Newf(syncerrors.CodeUnexpectedVersion,
			"remote operation has version %d, expected %d", op.Version, cx.lastRemoteVersion+1)
	}

	remote := op.Clone()
	pending := cx.operations[cx.localIndex:]
	transformed := make([]*models.Operation, 0, len(pending))
	steps := 0
	for _, localOp := range pending {
		remotePrime, localPrime, err := s.registry.TransformX(remote, localOp)
		if err != nil {
			s.logger.Warn("Rebase aborted, context unchanged", map[string]interface{}{
				"type":    op.Type,
				"id":      op.ID,
				"version": op.Version,
				"error":   err.Error(),
			})
			return err
		}
		remote = remotePrime
		transformed = append(transformed, localPrime.Clone())
		steps++
	}

	// The foreign operation takes the next confirmed slot; every pending
	// operation moves up one version to stay gapless.
	remote = remote.Clone()
	remote.Version = cx.lastRemoteVersion + 1
	for i, localPrime := range transformed {
		localPrime.Version = pending[i].Version + 1
	}

	rebuilt := make([]*models.Operation, 0, len(cx.operations)+1)
	rebuilt = append(rebuilt, cx.operations[:cx.localIndex]...)
	rebuilt = append(rebuilt, remote)
	rebuilt = append(rebuilt, transformed...)

	cx.operations = rebuilt
	cx.localIndex++
	cx.lastRemoteVersion++
	cx.lastVersion++

	s.metrics.IncrementCounter("rebases_total", 1)
	s.metrics.IncrementCounter("rebase_transforms_total", float64(steps))
	return nil
}

// Load implements ClientStore.Load. Bounds are inclusive; an inverted or
// out-of-range interval yields an empty result.
func (s *Store) Load(ctx context.Context, typeName, id string, minVersion, maxVersion int64) ([]*models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cx := s.contexts[typeName][id]
	if cx == nil {
		return nil, syncerrors.Newf(syncerrors.CodeNotInitialized,
			"document %s/%s is not initialized", typeName, id)
	}

	result := make([]*models.Operation, 0, len(cx.operations))
	for _, op := range cx.operations {
		if op.Version >= minVersion && op.Version <= maxVersion {
			result = append(result, op.Clone())
		}
	}
	return result, nil
}

// LoadAll returns every stored operation for a document.
func (s *Store) LoadAll(ctx context.Context, typeName, id string) ([]*models.Operation, error) {
	return s.Load(ctx, typeName, id, 1, math.MaxInt64)
}

var _ ClientStore = (*Store)(nil)
