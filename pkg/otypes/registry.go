package otypes

import (
	"sync"

	syncerrors "github.com/docsync/docsync/pkg/errors"
	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/observability"
)

// Registry maps type names to document types and dispatches the OT
// primitives by the type name an operation or snapshot declares. A Registry
// is explicitly constructed and passed around; there is no package-level
// instance, so independent engines can carry independent type sets.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	logger  observability.Logger
}

type registration struct {
	typ  Type
	caps Capability
}

// NewRegistry creates an empty type registry.
func NewRegistry(logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Registry{
		entries: make(map[string]registration),
		logger:  logger.WithPrefix("otypes"),
	}
}

// Register adds a document type. It fails with a duplicate-type error when
// the name is already taken.
func (r *Registry) Register(t Type) error {
	name := t.Name()
	if name == "" {
		return syncerrors.NewInvalidEntity("type", "name", "type name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return syncerrors.Newf(syncerrors.CodeDuplicateType, "type %q is already registered", name)
	}
	caps := capabilitiesOf(t)
	r.entries[name] = registration{typ: t, caps: caps}
	r.logger.Info("Type registered", map[string]interface{}{
		"type":         name,
		"capabilities": caps,
	})
	return nil
}

// Get retrieves a registered type by name.
func (r *Registry) Get(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return entry.typ, true
}

// Capabilities returns the capability set computed for a registered type.
func (r *Registry) Capabilities(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry.caps, ok
}

// ListTypes returns all registered type names.
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

func (r *Registry) lookup(name string) (registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return registration{}, syncerrors.Newf(syncerrors.CodeTypeNotFound, "type %q is not registered", name)
	}
	return entry, nil
}

// Create returns the empty snapshot of the named type for a new document.
func (r *Registry) Create(typeName, id string) (*models.Snapshot, error) {
	entry, err := r.lookup(typeName)
	if err != nil {
		return nil, err
	}
	return entry.typ.Create(id), nil
}

// Apply applies an operation to a snapshot via the operation's declared type.
func (r *Registry) Apply(snapshot *models.Snapshot, op *models.Operation) (*models.Snapshot, error) {
	entry, err := r.lookup(op.Type)
	if err != nil {
		return nil, err
	}
	result, err := entry.typ.Apply(snapshot, op)
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "apply failed")
	}
	return result, nil
}

// Transform produces the form of op applicable after other. Types without any
// transform capability are treated as CRDT-like: the result is a clone of op
// with its version advanced past other, never an error.
func (r *Registry) Transform(op, other *models.Operation, priority bool) (*models.Operation, error) {
	entry, err := r.lookup(op.Type)
	if err != nil {
		return nil, err
	}
	return r.transform(entry, op, other, priority)
}

func (r *Registry) transform(entry registration, op, other *models.Operation, priority bool) (*models.Operation, error) {
	switch {
	case entry.caps.Has(CapTransform):
		result, err := entry.typ.(Transformer).Transform(op, other, priority)
		if err != nil {
			return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "transform failed")
		}
		return result, nil
	case entry.caps.Has(CapTransformX):
		// transform(a, b, true) is the first result of transformX(a, b);
		// transform(a, b, false) is the second result of transformX(b, a).
		x := entry.typ.(TransformerX)
		if priority {
			result, _, err := x.TransformX(op, other)
			if err != nil {
				return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "transform failed")
			}
			return result, nil
		}
		_, result, err := x.TransformX(other, op)
		if err != nil {
			return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "transform failed")
		}
		return result, nil
	default:
		return bumpVersion(op), nil
	}
}

// TransformX transforms two concurrent operations against each other. When
// only the directed Transform is available the pair is derived as
// (Transform(op1, op2, true), Transform(op2, op1, false)).
func (r *Registry) TransformX(op1, op2 *models.Operation) (*models.Operation, *models.Operation, error) {
	entry, err := r.lookup(op1.Type)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case entry.caps.Has(CapTransformX):
		left, right, err := entry.typ.(TransformerX).TransformX(op1, op2)
		if err != nil {
			return nil, nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "transform failed")
		}
		return left, right, nil
	case entry.caps.Has(CapTransform):
		left, err := r.transform(entry, op1, op2, true)
		if err != nil {
			return nil, nil, err
		}
		right, err := r.transform(entry, op2, op1, false)
		if err != nil {
			return nil, nil, err
		}
		return left, right, nil
	default:
		return bumpVersion(op1), bumpVersion(op2), nil
	}
}

// Compose merges two sequential operations into one.
func (r *Registry) Compose(op1, op2 *models.Operation) (*models.Operation, error) {
	entry, err := r.lookup(op1.Type)
	if err != nil {
		return nil, err
	}
	if !entry.caps.Has(CapCompose) {
		return nil, syncerrors.Newf(syncerrors.CodeNotSupported, "type %q does not support compose", op1.Type)
	}
	result, err := entry.typ.(Composer).Compose(op1, op2)
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "compose failed")
	}
	return result, nil
}

// Invert produces the operation undoing op.
func (r *Registry) Invert(op *models.Operation) (*models.Operation, error) {
	entry, err := r.lookup(op.Type)
	if err != nil {
		return nil, err
	}
	if !entry.caps.Has(CapInvert) {
		return nil, syncerrors.Newf(syncerrors.CodeNotSupported, "type %q does not support invert", op.Type)
	}
	result, err := entry.typ.(Inverter).Invert(op)
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "invert failed")
	}
	return result, nil
}

// Diff derives an operation transforming one snapshot into another. When only
// DiffX is available its forward result is used.
func (r *Registry) Diff(from, to *models.Snapshot) (*models.Operation, error) {
	entry, err := r.lookup(from.Type)
	if err != nil {
		return nil, err
	}
	switch {
	case entry.caps.Has(CapDiff):
		result, err := entry.typ.(Differ).Diff(from, to)
		if err != nil {
			return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "diff failed")
		}
		return result, nil
	case entry.caps.Has(CapDiffX):
		result, _, err := entry.typ.(DifferX).DiffX(from, to)
		if err != nil {
			return nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "diff failed")
		}
		return result, nil
	default:
		return nil, syncerrors.Newf(syncerrors.CodeNotSupported, "type %q does not support diff", from.Type)
	}
}

// DiffX derives both directions of a diff. When only Diff is available the
// pair is derived as (Diff(from, to), Diff(to, from)).
func (r *Registry) DiffX(from, to *models.Snapshot) (*models.Operation, *models.Operation, error) {
	entry, err := r.lookup(from.Type)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case entry.caps.Has(CapDiffX):
		forward, backward, err := entry.typ.(DifferX).DiffX(from, to)
		if err != nil {
			return nil, nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "diff failed")
		}
		return forward, backward, nil
	case entry.caps.Has(CapDiff):
		d := entry.typ.(Differ)
		forward, err := d.Diff(from, to)
		if err != nil {
			return nil, nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "diff failed")
		}
		backward, err := d.Diff(to, from)
		if err != nil {
			return nil, nil, syncerrors.Wrap(err, syncerrors.CodeTransformFailed, "diff failed")
		}
		return forward, backward, nil
	default:
		return nil, nil, syncerrors.Newf(syncerrors.CodeNotSupported, "type %q does not support diff", from.Type)
	}
}

// IsNoop reports whether op has no effect. Types without the capability
// report false.
func (r *Registry) IsNoop(op *models.Operation) (bool, error) {
	entry, err := r.lookup(op.Type)
	if err != nil {
		return false, err
	}
	if !entry.caps.Has(CapNoop) {
		return false, nil
	}
	return entry.typ.(NoopChecker).IsNoop(op), nil
}

// AreOperationsSimilar reports whether two operations are equivalent. Types
// without the capability report false.
func (r *Registry) AreOperationsSimilar(a, b *models.Operation) (bool, error) {
	entry, err := r.lookup(a.Type)
	if err != nil {
		return false, err
	}
	if !entry.caps.Has(CapSimilar) {
		return false, nil
	}
	return entry.typ.(SimilarityChecker).AreOperationsSimilar(a, b), nil
}

// bumpVersion is the CRDT fallback: convergent types need no positional
// transformation, the operation only takes the next slot in history.
func bumpVersion(op *models.Operation) *models.Operation {
	cp := op.Clone()
	cp.Version++
	return cp
}
