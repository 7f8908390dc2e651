// Package storage implements the client-side operation store: the state
// machine that keeps server-confirmed history and locally pending operations
// for each document, and rebases the pending tail whenever a foreign
// confirmed operation arrives.
package storage

import (
	"context"

	"github.com/docsync/docsync/pkg/models"
)

// ClientStore is the interface exposed to editor bindings and sync
// controllers. All methods take a context for uniformity with network or
// disk backed implementations; the in-memory store completes synchronously.
type ClientStore interface {
	// Init creates the tracking context for (snapshot.Type, snapshot.ID).
	Init(ctx context.Context, snapshot *models.Snapshot) error
	// Clear removes the tracking context. It is idempotent.
	Clear(ctx context.Context, typeName, id string) error
	// GetStatus reports the context counters; Initialized is false and the
	// counters are zero when no context exists.
	GetStatus(ctx context.Context, typeName, id string) (*models.Status, error)
	// Store records an operation. local is true for operations generated by
	// this session that the server has not confirmed yet.
	Store(ctx context.Context, op *models.Operation, local bool) error
	// Load returns the stored operations with minVersion <= version <=
	// maxVersion, in increasing version order.
	Load(ctx context.Context, typeName, id string, minVersion, maxVersion int64) ([]*models.Operation, error)
}

// OperationOrigin classifies a Store call once, at the top of the call,
// instead of re-deriving it while mutating state.
type OperationOrigin int

// Operation origins
const (
	// OriginLocal is a new edit generated by this session, not yet confirmed.
	OriginLocal OperationOrigin = iota
	// OriginRemoteOwn is this session's own operation, now confirmed by the
	// server. It is never transformed: confirmation means this exact
	// operation is canonical.
	OriginRemoteOwn
	// OriginRemoteForeign is a confirmed operation from another session. It
	// is inserted ahead of the pending tail, which is rebased over it.
	OriginRemoteForeign
)

func (o OperationOrigin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemoteOwn:
		return "remote_own"
	case OriginRemoteForeign:
		return "remote_foreign"
	default:
		return "unknown"
	}
}
