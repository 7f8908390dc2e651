// Package counter implements a convergent counter document type. Increments
// commute, so the type declares no transform capability and the registry
// resolves concurrent operations with the version-bump fallback.
package counter

import (
	"fmt"

	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/otypes"
)

// TypeName is the registered name of the counter type.
const TypeName = "counter"

// Type implements otypes.Type, otypes.Composer and otypes.Differ for a
// signed counter. The snapshot data is the current int64 value, an
// operation's data is the int64 delta to add.
type Type struct{}

// New creates the counter document type.
func New() *Type {
	return &Type{}
}

// Name implements otypes.Type.Name.
func (t *Type) Name() string {
	return TypeName
}

// Create implements otypes.Type.Create.
func (t *Type) Create(id string) *models.Snapshot {
	return &models.Snapshot{
		Type:    TypeName,
		ID:      id,
		Version: 0,
		Data:    int64(0),
	}
}

// Apply implements otypes.Type.Apply.
func (t *Type) Apply(snapshot *models.Snapshot, op *models.Operation) (*models.Snapshot, error) {
	value, err := valueOf(snapshot.Data)
	if err != nil {
		return nil, fmt.Errorf("counter snapshot: %w", err)
	}
	delta, err := valueOf(op.Data)
	if err != nil {
		return nil, fmt.Errorf("counter operation: %w", err)
	}
	result := snapshot.Clone()
	result.Data = value + delta
	result.Version = op.Version
	return result, nil
}

// Compose implements otypes.Composer by summing the deltas.
func (t *Type) Compose(op1, op2 *models.Operation) (*models.Operation, error) {
	d1, err := valueOf(op1.Data)
	if err != nil {
		return nil, err
	}
	d2, err := valueOf(op2.Data)
	if err != nil {
		return nil, err
	}
	result := op2.Clone()
	result.Data = d1 + d2
	return result, nil
}

// Diff implements otypes.Differ; the diff of two counter states is a single
// delta operation.
func (t *Type) Diff(from, to *models.Snapshot) (*models.Operation, error) {
	a, err := valueOf(from.Data)
	if err != nil {
		return nil, err
	}
	b, err := valueOf(to.Data)
	if err != nil {
		return nil, err
	}
	return &models.Operation{
		Type:    TypeName,
		ID:      from.ID,
		Version: from.Version + 1,
		Data:    b - a,
	}, nil
}

func valueOf(data interface{}) (int64, error) {
	switch v := data.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("counter value holds %T, want int64", data)
	}
}

var (
	_ otypes.Type     = (*Type)(nil)
	_ otypes.Composer = (*Type)(nil)
	_ otypes.Differ   = (*Type)(nil)
)
