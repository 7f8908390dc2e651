// Package list implements an operational-transformation document type over
// an ordered list. Operations insert or remove a single element by index.
package list

import (
	"fmt"

	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/otypes"
)

// TypeName is the registered name of the list type.
const TypeName = "list"

// Action identifies the kind of list edit.
type Action string

// List edit actions
const (
	ActionInsert Action = "insert"
	ActionRemove Action = "remove"
	ActionNoop   Action = "noop"
)

// Payload is the type-specific data of a list operation.
type Payload struct {
	Action Action      `json:"action"`
	Index  int         `json:"index"`
	Value  interface{} `json:"value,omitempty"`
}

// Type implements otypes.Type, otypes.Transformer, otypes.Inverter and
// otypes.NoopChecker for ordered lists.
type Type struct{}

// New creates the list document type.
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
		Data:    []interface{}{},
	}
}

// Apply implements otypes.Type.Apply.
func (t *Type) Apply(snapshot *models.Snapshot, op *models.Operation) (*models.Snapshot, error) {
	payload, err := payloadOf(op)
	if err != nil {
		return nil, err
	}
	elements, ok := snapshot.Data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("list snapshot holds %T, want []interface{}", snapshot.Data)
	}

	result := snapshot.Clone()
	switch payload.Action {
	case ActionInsert:
		if payload.Index < 0 || payload.Index > len(elements) {
			return nil, fmt.Errorf("insert index %d out of range [0,%d]", payload.Index, len(elements))
		}
		next := make([]interface{}, 0, len(elements)+1)
		next = append(next, elements[:payload.Index]...)
		next = append(next, payload.Value)
		next = append(next, elements[payload.Index:]...)
		result.Data = next
	case ActionRemove:
		if payload.Index < 0 || payload.Index >= len(elements) {
			return nil, fmt.Errorf("remove index %d out of range [0,%d)", payload.Index, len(elements))
		}
		next := make([]interface{}, 0, len(elements)-1)
		next = append(next, elements[:payload.Index]...)
		next = append(next, elements[payload.Index+1:]...)
		result.Data = next
	case ActionNoop:
		// nothing to do
	default:
		return nil, fmt.Errorf("unknown list action %q", payload.Action)
	}
	result.Version = op.Version
	return result, nil
}

// Transform implements otypes.Transformer. It produces the form of op that
// applies after other. On an insert/insert collision at the same index,
// priority true keeps op in place and priority false shifts it right.
func (t *Type) Transform(op, other *models.Operation, priority bool) (*models.Operation, error) {
	p, err := payloadOf(op)
	if err != nil {
		return nil, err
	}
	q, err := payloadOf(other)
	if err != nil {
		return nil, err
	}

	result := op.Clone()
	if p.Action == ActionNoop || q.Action == ActionNoop {
		return result, nil
	}

	shifted := p
	switch q.Action {
	case ActionInsert:
		switch {
		case p.Action == ActionInsert && p.Index == q.Index:
			if !priority {
				shifted.Index++
			}
		case p.Index >= q.Index && p.Action == ActionRemove:
			shifted.Index++
		case p.Index > q.Index:
			shifted.Index++
		}
	case ActionRemove:
		switch {
		case p.Action == ActionRemove && p.Index == q.Index:
			// both removed the same element
			shifted = Payload{Action: ActionNoop}
		case p.Index > q.Index:
			shifted.Index--
		}
	}
	result.Data = shifted
	return result, nil
}

// Invert implements otypes.Inverter.
func (t *Type) Invert(op *models.Operation) (*models.Operation, error) {
	p, err := payloadOf(op)
	if err != nil {
		return nil, err
	}
	result := op.Clone()
	switch p.Action {
	case ActionInsert:
		result.Data = Payload{Action: ActionRemove, Index: p.Index, Value: p.Value}
	case ActionRemove:
		result.Data = Payload{Action: ActionInsert, Index: p.Index, Value: p.Value}
	case ActionNoop:
		result.Data = Payload{Action: ActionNoop}
	default:
		return nil, fmt.Errorf("unknown list action %q", p.Action)
	}
	return result, nil
}

// IsNoop implements otypes.NoopChecker.
func (t *Type) IsNoop(op *models.Operation) bool {
	p, err := payloadOf(op)
	return err == nil && p.Action == ActionNoop
}

func payloadOf(op *models.Operation) (Payload, error) {
	switch data := op.Data.(type) {
	case Payload:
		return data, nil
	case *Payload:
		return *data, nil
	default:
		return Payload{}, fmt.Errorf("list operation holds %T, want list.Payload", op.Data)
	}
}

var (
	_ otypes.Type        = (*Type)(nil)
	_ otypes.Transformer = (*Type)(nil)
	_ otypes.Inverter    = (*Type)(nil)
	_ otypes.NoopChecker = (*Type)(nil)
)
