// Package text implements an operational-transformation document type over a
// plain string. Operations insert or delete a single character at a
// position; editors batch multi-character edits as operation sequences.
package text

import (
	"fmt"

	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/otypes"
)

// TypeName is the registered name of the text type.
const TypeName = "text"

// Action identifies the kind of text edit.
type Action string

// Text edit actions
const (
	ActionInsert Action = "insert"
	ActionDelete Action = "delete"
	ActionNoop   Action = "noop"
)

// Payload is the type-specific data of a text operation. Delete operations
// carry the removed character so they stay invertible.
type Payload struct {
	Action Action `json:"action"`
	Pos    int    `json:"pos"`
	Char   string `json:"char,omitempty"`
}

// Type implements otypes.Type plus the transform, invert, noop and
// similarity capabilities for plain text.
type Type struct{}

// New creates the text document type.
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
		Data:    "",
	}
}

// Apply implements otypes.Type.Apply.
func (t *Type) Apply(snapshot *models.Snapshot, op *models.Operation) (*models.Snapshot, error) {
	payload, err := payloadOf(op)
	if err != nil {
		return nil, err
	}
	content, ok := snapshot.Data.(string)
	if !ok {
		return nil, fmt.Errorf("text snapshot holds %T, want string", snapshot.Data)
	}

	result := snapshot.Clone()
	switch payload.Action {
	case ActionInsert:
		if payload.Pos < 0 || payload.Pos > len(content) {
			return nil, fmt.Errorf("insert position %d out of range [0,%d]", payload.Pos, len(content))
		}
		result.Data = content[:payload.Pos] + payload.Char + content[payload.Pos:]
	case ActionDelete:
		end := payload.Pos + len(payload.Char)
		if payload.Pos < 0 || end > len(content) {
			return nil, fmt.Errorf("delete position %d out of range [0,%d)", payload.Pos, len(content))
		}
		if content[payload.Pos:end] != payload.Char {
			return nil, fmt.Errorf("delete at %d expects %q, document holds %q", payload.Pos, payload.Char, content[payload.Pos:end])
		}
		result.Data = content[:payload.Pos] + content[end:]
	case ActionNoop:
		// nothing to do
	default:
		return nil, fmt.Errorf("unknown text action %q", payload.Action)
	}
	result.Version = op.Version
	return result, nil
}

// Transform implements otypes.Transformer. Positional shifts follow the
// usual insert/delete algebra; on an insert/insert collision at the same
// position, priority true keeps op in place and priority false shifts it
// right. Two deletes of the same character collapse the transformed one into
// a noop.
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
	switch {
	case p.Action == ActionInsert && q.Action == ActionInsert:
		if p.Pos > q.Pos || (p.Pos == q.Pos && !priority) {
			shifted.Pos++
		}
	case p.Action == ActionInsert && q.Action == ActionDelete:
		if p.Pos > q.Pos {
			shifted.Pos--
		}
	case p.Action == ActionDelete && q.Action == ActionInsert:
		if p.Pos >= q.Pos {
			shifted.Pos++
		}
	case p.Action == ActionDelete && q.Action == ActionDelete:
		switch {
		case p.Pos == q.Pos:
			// the other operation already removed this character
			shifted = Payload{Action: ActionNoop}
		case p.Pos > q.Pos:
			shifted.Pos--
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
		result.Data = Payload{Action: ActionDelete, Pos: p.Pos, Char: p.Char}
	case ActionDelete:
		result.Data = Payload{Action: ActionInsert, Pos: p.Pos, Char: p.Char}
	case ActionNoop:
		result.Data = Payload{Action: ActionNoop}
	default:
		return nil, fmt.Errorf("unknown text action %q", p.Action)
	}
	return result, nil
}

// IsNoop implements otypes.NoopChecker.
func (t *Type) IsNoop(op *models.Operation) bool {
	p, err := payloadOf(op)
	return err == nil && p.Action == ActionNoop
}

// AreOperationsSimilar implements otypes.SimilarityChecker. Two operations
// are similar when they perform the same edit at the same position.
func (t *Type) AreOperationsSimilar(a, b *models.Operation) bool {
	p, errA := payloadOf(a)
	q, errB := payloadOf(b)
	return errA == nil && errB == nil && p == q
}

func payloadOf(op *models.Operation) (Payload, error) {
	switch data := op.Data.(type) {
	case Payload:
		return data, nil
	case *Payload:
		return *data, nil
	default:
		return Payload{}, fmt.Errorf("text operation holds %T, want text.Payload", op.Data)
	}
}

var (
	_ otypes.Type              = (*Type)(nil)
	_ otypes.Transformer       = (*Type)(nil)
	_ otypes.Inverter          = (*Type)(nil)
	_ otypes.NoopChecker       = (*Type)(nil)
	_ otypes.SimilarityChecker = (*Type)(nil)
)
