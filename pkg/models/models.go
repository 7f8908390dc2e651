// Package models defines the wire-level data model shared by the client and
// server storage engines: operations, snapshots, and per-document status.
package models

import (
	"github.com/google/uuid"

	syncerrors "github.com/docsync/docsync/pkg/errors"
)

// Operation represents one atomic, invertible edit to a document, expressed
// in the algebra of its declared document type.
type Operation struct {
	// Type is the registered document type name this operation belongs to.
	Type string `json:"type"`
	// ID is the document identifier.
	ID string `json:"id"`
	// Version is the position this operation occupies in the authoritative
	// history once confirmed by the server.
	Version int64 `json:"version"`
	// SessionID identifies the originating client session.
	SessionID uuid.UUID `json:"session_id"`
	// Sequence is a per (session, document) monotonically increasing counter
	// assigned by the originating client. Used to detect duplicate or
	// out-of-order delivery of a client's own operations.
	Sequence int64 `json:"sequence"`
	// Schema optionally references a registered schema by content hash.
	Schema string `json:"schema,omitempty"`
	// Data is the type-specific payload. Payloads are treated as immutable
	// values once stored.
	Data interface{} `json:"data"`
	// Meta carries optional caller metadata.
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// Snapshot is the materialized document state at a given version.
type Snapshot struct {
	Type    string                 `json:"type"`
	ID      string                 `json:"id"`
	Version int64                  `json:"version"`
	Data    interface{}            `json:"data"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Status reports the counters of a client storage context.
type Status struct {
	Initialized       bool  `json:"initialized"`
	LastRemoteVersion int64 `json:"last_remote_version"`
	LastSequence      int64 `json:"last_sequence"`
	LastVersion       int64 `json:"last_version"`
	LocalIndex        int   `json:"local_index"`
}

// Validate checks the structural invariants of an operation.
func (o *Operation) Validate() error {
	switch {
	case o == nil:
		return syncerrors.NewInvalidEntity("operation", "", "operation is nil")
	case o.Type == "":
		return syncerrors.NewInvalidEntity("operation", "type", "type name must not be empty")
	case o.ID == "":
		return syncerrors.NewInvalidEntity("operation", "id", "document id must not be empty")
	case o.Version < 1:
		return syncerrors.NewInvalidEntity("operation", "version", "version must be positive")
	case o.SessionID == uuid.Nil:
		return syncerrors.NewInvalidEntity("operation", "session_id", "session id must be set")
	case o.Sequence < 1:
		return syncerrors.NewInvalidEntity("operation", "sequence", "sequence must be positive")
	}
	return nil
}

// Validate checks the structural invariants of a snapshot.
func (s *Snapshot) Validate() error {
	switch {
	case s == nil:
		return syncerrors.NewInvalidEntity("snapshot", "", "snapshot is nil")
	case s.Type == "":
		return syncerrors.NewInvalidEntity("snapshot", "type", "type name must not be empty")
	case s.ID == "":
		return syncerrors.NewInvalidEntity("snapshot", "id", "document id must not be empty")
	case s.Version < 0:
		return syncerrors.NewInvalidEntity("snapshot", "version", "version must not be negative")
	}
	return nil
}

// Clone returns a copy of the operation with its metadata map duplicated.
// The payload is shared; payloads are immutable by contract.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Meta = cloneMeta(o.Meta)
	return &cp
}

// Clone returns a copy of the snapshot with its metadata map duplicated.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Meta = cloneMeta(s.Meta)
	return &cp
}

func cloneMeta(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return cp
}
