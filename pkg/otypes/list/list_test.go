package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsync/docsync/pkg/models"
)

func snapshot(elements ...interface{}) *models.Snapshot {
	return &models.Snapshot{Type: TypeName, ID: "doc", Version: 0, Data: elements}
}

func operation(version int64, payload Payload) *models.Operation {
	return &models.Operation{Type: TypeName, ID: "doc", Version: version, Data: payload}
}

func TestApply(t *testing.T) {
	typ := New()

	t.Run("insert", func(t *testing.T) {
		result, err := typ.Apply(snapshot("a", "b"), operation(1, Payload{Action: ActionInsert, Index: 1, Value: "x"}))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "x", "b"}, result.Data)
		assert.Equal(t, int64(1), result.Version)
	})

	t.Run("remove", func(t *testing.T) {
		result, err := typ.Apply(snapshot("a", "b", "c"), operation(1, Payload{Action: ActionRemove, Index: 1}))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "c"}, result.Data)
	})

	t.Run("noop leaves the list alone", func(t *testing.T) {
		result, err := typ.Apply(snapshot("a"), operation(1, Payload{Action: ActionNoop}))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a"}, result.Data)
	})

	t.Run("does not mutate the input snapshot", func(t *testing.T) {
		before := snapshot("a", "b")
		_, err := typ.Apply(before, operation(1, Payload{Action: ActionInsert, Index: 0, Value: "x"}))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "b"}, before.Data)
	})

	t.Run("rejects out of range indices", func(t *testing.T) {
		_, err := typ.Apply(snapshot("a"), operation(1, Payload{Action: ActionInsert, Index: 5, Value: "x"}))
		assert.Error(t, err)

		_, err = typ.Apply(snapshot("a"), operation(1, Payload{Action: ActionRemove, Index: 1}))
		assert.Error(t, err)
	})
}

func TestTransform(t *testing.T) {
	typ := New()

	payloadOf := func(t *testing.T, op *models.Operation) Payload {
		t.Helper()
		payload, ok := op.Data.(Payload)
		require.True(t, ok)
		return payload
	}

	cases := []struct {
		name     string
		op       Payload
		other    Payload
		priority bool
		want     Payload
	}{
		{
			name:  "insert before a later insert stays",
			op:    Payload{Action: ActionInsert, Index: 2, Value: "x"},
			other: Payload{Action: ActionInsert, Index: 5, Value: "y"},
			want:  Payload{Action: ActionInsert, Index: 2, Value: "x"},
		},
		{
			name:  "insert after an earlier insert shifts right",
			op:    Payload{Action: ActionInsert, Index: 5, Value: "x"},
			other: Payload{Action: ActionInsert, Index: 2, Value: "y"},
			want:  Payload{Action: ActionInsert, Index: 6, Value: "x"},
		},
		{
			name:     "insert collision with priority keeps its place",
			op:       Payload{Action: ActionInsert, Index: 3, Value: "x"},
			other:    Payload{Action: ActionInsert, Index: 3, Value: "y"},
			priority: true,
			want:     Payload{Action: ActionInsert, Index: 3, Value: "x"},
		},
		{
			name:  "insert collision without priority yields",
			op:    Payload{Action: ActionInsert, Index: 3, Value: "x"},
			other: Payload{Action: ActionInsert, Index: 3, Value: "y"},
			want:  Payload{Action: ActionInsert, Index: 4, Value: "x"},
		},
		{
			name:  "insert after a remove shifts left",
			op:    Payload{Action: ActionInsert, Index: 5, Value: "x"},
			other: Payload{Action: ActionRemove, Index: 2},
			want:  Payload{Action: ActionInsert, Index: 4, Value: "x"},
		},
		{
			name:  "remove at the insertion point shifts right",
			op:    Payload{Action: ActionRemove, Index: 3},
			other: Payload{Action: ActionInsert, Index: 3, Value: "y"},
			want:  Payload{Action: ActionRemove, Index: 4},
		},
		{
			name:  "remove after a remove shifts left",
			op:    Payload{Action: ActionRemove, Index: 5},
			other: Payload{Action: ActionRemove, Index: 2},
			want:  Payload{Action: ActionRemove, Index: 4},
		},
		{
			name:  "removing the same element becomes a noop",
			op:    Payload{Action: ActionRemove, Index: 2},
			other: Payload{Action: ActionRemove, Index: 2},
			want:  Payload{Action: ActionNoop},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := typ.Transform(operation(1, tc.op), operation(1, tc.other), tc.priority)
			require.NoError(t, err)
			assert.Equal(t, tc.want, payloadOf(t, result))
		})
	}
}

func TestInvert(t *testing.T) {
	typ := New()

	op := operation(1, Payload{Action: ActionInsert, Index: 2, Value: "x"})
	inverted, err := typ.Invert(op)
	require.NoError(t, err)
	assert.Equal(t, Payload{Action: ActionRemove, Index: 2, Value: "x"}, inverted.Data)

	restored, err := typ.Invert(inverted)
	require.NoError(t, err)
	assert.Equal(t, op.Data, restored.Data)
}

func TestIsNoop(t *testing.T) {
	typ := New()
	assert.True(t, typ.IsNoop(operation(1, Payload{Action: ActionNoop})))
	assert.False(t, typ.IsNoop(operation(1, Payload{Action: ActionInsert, Index: 0})))
}

func TestCreate(t *testing.T) {
	typ := New()
	empty := typ.Create("doc")
	assert.Equal(t, TypeName, empty.Type)
	assert.Equal(t, int64(0), empty.Version)
	assert.Equal(t, []interface{}{}, empty.Data)
}
