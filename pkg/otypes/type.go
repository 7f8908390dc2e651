// Package otypes defines the document type contract and the registry that
// dispatches operational-transformation primitives by type name. The storage
// engines are type-agnostic; everything specific to a document format lives
// behind the Type interface.
package otypes

import (
	"github.com/docsync/docsync/pkg/models"
)

// Type is the minimal contract every document type must implement.
type Type interface {
	// Name returns the unique type name operations declare in their Type field.
	Name() string
	// Create returns the empty snapshot for a new document at version 0.
	Create(id string) *models.Snapshot
	// Apply produces the snapshot resulting from applying op to snapshot.
	// Implementations must not mutate their inputs.
	Apply(snapshot *models.Snapshot, op *models.Operation) (*models.Snapshot, error)
}

// Transformer is implemented by types supporting directed transformation.
//
// Transform produces the form of op that can be applied after other. When
// both operations affect the same position, priority true means op wins the
// tie and keeps its effect unshifted; priority false means op yields.
type Transformer interface {
	Transform(op, other *models.Operation, priority bool) (*models.Operation, error)
}

// TransformerX is implemented by types supporting simultaneous bidirectional
// transformation of two concurrent operations.
type TransformerX interface {
	TransformX(op1, op2 *models.Operation) (*models.Operation, *models.Operation, error)
}

// Composer is implemented by types that can merge two sequential operations
// into one.
type Composer interface {
	Compose(op1, op2 *models.Operation) (*models.Operation, error)
}

// Inverter is implemented by types whose operations can be undone.
type Inverter interface {
	Invert(op *models.Operation) (*models.Operation, error)
}

// Differ is implemented by types that can derive an operation transforming
// one snapshot into another.
type Differ interface {
	Diff(from, to *models.Snapshot) (*models.Operation, error)
}

// DifferX is implemented by types that derive both directions of a diff at
// once.
type DifferX interface {
	DiffX(from, to *models.Snapshot) (*models.Operation, *models.Operation, error)
}

// NoopChecker is implemented by types that can recognize operations without
// effect.
type NoopChecker interface {
	IsNoop(op *models.Operation) bool
}

// SimilarityChecker is implemented by types that can recognize equivalent
// operations.
type SimilarityChecker interface {
	AreOperationsSimilar(a, b *models.Operation) bool
}

// Capability is a bitmask of the optional primitives a registered type
// supports. It is computed once at registration so dispatch never probes for
// interface satisfaction on the hot path.
type Capability uint8

// Capability flags
const (
	CapTransform Capability = 1 << iota
	CapTransformX
	CapCompose
	CapInvert
	CapDiff
	CapDiffX
	CapNoop
	CapSimilar
)

// Has reports whether all flags in mask are present.
func (c Capability) Has(mask Capability) bool {
	return c&mask == mask
}

func capabilitiesOf(t Type) Capability {
	var caps Capability
	if _, ok := t.(Transformer); ok {
		caps |= CapTransform
	}
	if _, ok := t.(TransformerX); ok {
		caps |= CapTransformX
	}
	if _, ok := t.(Composer); ok {
		caps |= CapCompose
	}
	if _, ok := t.(Inverter); ok {
		caps |= CapInvert
	}
	if _, ok := t.(Differ); ok {
		caps |= CapDiff
	}
	if _, ok := t.(DifferX); ok {
		caps |= CapDiffX
	}
	if _, ok := t.(NoopChecker); ok {
		caps |= CapNoop
	}
	if _, ok := t.(SimilarityChecker); ok {
		caps |= CapSimilar
	}
	return caps
}
