package otypes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/docsync/docsync/pkg/errors"
	"github.com/docsync/docsync/pkg/models"
)

// baseType implements only the required contract; the registry must treat it
// as CRDT-like.
type baseType struct {
	name string
}

func (t *baseType) Name() string { return t.name }

func (t *baseType) Create(id string) *models.Snapshot {
	return &models.Snapshot{Type: t.name, ID: id, Version: 0}
}

func (t *baseType) Apply(snapshot *models.Snapshot, op *models.Operation) (*models.Snapshot, error) {
	result := snapshot.Clone()
	result.Version = op.Version
	return result, nil
}

// directedType adds a directed Transform that records the priority it was
// called with in the payload.
type directedType struct {
	baseType
}

func (t *directedType) Transform(op, other *models.Operation, priority bool) (*models.Operation, error) {
	result := op.Clone()
	result.Data = fmt.Sprintf("transformed(priority=%v)", priority)
	return result, nil
}

// bidirectionalType adds only TransformX.
type bidirectionalType struct {
	baseType
}

func (t *bidirectionalType) TransformX(op1, op2 *models.Operation) (*models.Operation, *models.Operation, error) {
	left := op1.Clone()
	left.Data = "left"
	right := op2.Clone()
	right.Data = "right"
	return left, right, nil
}

// diffType adds only the directed Diff.
type diffType struct {
	baseType
}

func (t *diffType) Diff(from, to *models.Snapshot) (*models.Operation, error) {
	return &models.Operation{
		Type: t.name, ID: from.ID, Version: from.Version + 1,
		Data: fmt.Sprintf("%d->%d", from.Version, to.Version),
	}, nil
}

func op(typeName string, version int64) *models.Operation {
	return &models.Operation{Type: typeName, ID: "doc", Version: version, Data: "payload"}
}

func TestRegister(t *testing.T) {
	t.Run("registers and retrieves a type", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Register(&baseType{name: "crdt"}))

		typ, ok := r.Get("crdt")
		require.True(t, ok)
		assert.Equal(t, "crdt", typ.Name())
		assert.Contains(t, r.ListTypes(), "crdt")
	})

	t.Run("rejects a duplicate name", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Register(&baseType{name: "crdt"}))

		err := r.Register(&directedType{baseType{name: "crdt"}})
		assert.True(t, syncerrors.IsDuplicateType(err))
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		r := NewRegistry(nil)
		err := r.Register(&baseType{name: ""})
		assert.True(t, syncerrors.IsInvalidEntity(err))
	})

	t.Run("computes capabilities at registration", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Register(&baseType{name: "crdt"}))
		require.NoError(t, r.Register(&directedType{baseType{name: "directed"}}))
		require.NoError(t, r.Register(&bidirectionalType{baseType{name: "bidirectional"}}))
		require.NoError(t, r.Register(&diffType{baseType{name: "diffable"}}))

		caps, ok := r.Capabilities("crdt")
		require.True(t, ok)
		assert.Equal(t, Capability(0), caps)

		caps, _ = r.Capabilities("directed")
		assert.True(t, caps.Has(CapTransform))
		assert.False(t, caps.Has(CapTransformX))

		caps, _ = r.Capabilities("bidirectional")
		assert.True(t, caps.Has(CapTransformX))
		assert.False(t, caps.Has(CapTransform))

		caps, _ = r.Capabilities("diffable")
		assert.True(t, caps.Has(CapDiff))
		assert.False(t, caps.Has(CapDiffX))
	})
}

func TestCreate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&baseType{name: "crdt"}))

	t.Run("creates the empty snapshot", func(t *testing.T) {
		snapshot, err := r.Create("crdt", "doc")
		require.NoError(t, err)
		assert.Equal(t, "crdt", snapshot.Type)
		assert.Equal(t, "doc", snapshot.ID)
		assert.Equal(t, int64(0), snapshot.Version)
	})

	t.Run("fails for an unregistered type", func(t *testing.T) {
		_, err := r.Create("nope", "doc")
		assert.True(t, syncerrors.IsTypeNotFound(err))
	})
}

func TestTransformDispatch(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&baseType{name: "crdt"}))
	require.NoError(t, r.Register(&directedType{baseType{name: "directed"}}))
	require.NoError(t, r.Register(&bidirectionalType{baseType{name: "bidirectional"}}))

	t.Run("uses the type's Transform when present", func(t *testing.T) {
		result, err := r.Transform(op("directed", 3), op("directed", 3), true)
		require.NoError(t, err)
		assert.Equal(t, "transformed(priority=true)", result.Data)
	})

	t.Run("derives Transform from TransformX", func(t *testing.T) {
		// priority true takes the first result of TransformX(op, other)
		result, err := r.Transform(op("bidirectional", 3), op("bidirectional", 3), true)
		require.NoError(t, err)
		assert.Equal(t, "left", result.Data)

		// priority false takes the second result of TransformX(other, op)
		result, err = r.Transform(op("bidirectional", 3), op("bidirectional", 3), false)
		require.NoError(t, err)
		assert.Equal(t, "right", result.Data)
	})

	t.Run("derives TransformX from Transform", func(t *testing.T) {
		left, right, err := r.TransformX(op("directed", 3), op("directed", 3))
		require.NoError(t, err)
		assert.Equal(t, "transformed(priority=true)", left.Data)
		assert.Equal(t, "transformed(priority=false)", right.Data)
	})

	t.Run("falls back to a version bump for convergent types", func(t *testing.T) {
		result, err := r.Transform(op("crdt", 3), op("crdt", 7), true)
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.Version)
		assert.Equal(t, "payload", result.Data)

		left, right, err := r.TransformX(op("crdt", 3), op("crdt", 7))
		require.NoError(t, err)
		assert.Equal(t, int64(4), left.Version)
		assert.Equal(t, int64(8), right.Version)
	})

	t.Run("fails for an unregistered type", func(t *testing.T) {
		_, err := r.Transform(op("nope", 1), op("nope", 1), true)
		assert.True(t, syncerrors.IsTypeNotFound(err))
	})
}

func TestOptionalPrimitives(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&baseType{name: "crdt"}))
	require.NoError(t, r.Register(&diffType{baseType{name: "diffable"}}))

	t.Run("compose without capability is not supported", func(t *testing.T) {
		_, err := r.Compose(op("crdt", 1), op("crdt", 2))
		assert.True(t, syncerrors.IsNotSupported(err))
	})

	t.Run("invert without capability is not supported", func(t *testing.T) {
		_, err := r.Invert(op("crdt", 1))
		assert.True(t, syncerrors.IsNotSupported(err))
	})

	t.Run("diff without capability is not supported", func(t *testing.T) {
		from := &models.Snapshot{Type: "crdt", ID: "doc", Version: 1}
		_, err := r.Diff(from, from)
		assert.True(t, syncerrors.IsNotSupported(err))
	})

	t.Run("derives DiffX from Diff", func(t *testing.T) {
		from := &models.Snapshot{Type: "diffable", ID: "doc", Version: 1}
		to := &models.Snapshot{Type: "diffable", ID: "doc", Version: 4}

		forward, backward, err := r.DiffX(from, to)
		require.NoError(t, err)
		assert.Equal(t, "1->4", forward.Data)
		assert.Equal(t, "4->1", backward.Data)
	})

	t.Run("noop and similarity default to false", func(t *testing.T) {
		noop, err := r.IsNoop(op("crdt", 1))
		require.NoError(t, err)
		assert.False(t, noop)

		similar, err := r.AreOperationsSimilar(op("crdt", 1), op("crdt", 1))
		require.NoError(t, err)
		assert.False(t, similar)
	})
}

func TestApplyDispatch(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&baseType{name: "crdt"}))

	snapshot := &models.Snapshot{Type: "crdt", ID: "doc", Version: 2}
	result, err := r.Apply(snapshot, op("crdt", 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Version)
	assert.Equal(t, int64(2), snapshot.Version, "input snapshot must not change")

	_, err = r.Apply(&models.Snapshot{Type: "crdt"}, op("nope", 1))
	assert.True(t, syncerrors.IsTypeNotFound(err))
}
