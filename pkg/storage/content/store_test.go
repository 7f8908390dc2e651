package content

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/docsync/docsync/pkg/errors"
	"github.com/docsync/docsync/pkg/models"
)

const docID = "doc-1"

var session = uuid.New()

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(8, nil, nil)
	require.NoError(t, err)
	return s
}

func op(version int64, data interface{}) *models.Operation {
	return &models.Operation{
		Type:      "text",
		ID:        docID,
		Version:   version,
		SessionID: session,
		Sequence:  version,
		Data:      data,
	}
}

func TestStoreOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("appends version-sequenced operations", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.StoreOperation(ctx, op(1, "a")))
		require.NoError(t, s.StoreOperation(ctx, op(2, "b")))
		require.NoError(t, s.StoreOperation(ctx, op(3, "c")))

		ops, err := s.LoadOperations(ctx, "text", docID, 1, 3)
		require.NoError(t, err)
		require.Len(t, ops, 3)
		for i, stored := range ops {
			assert.Equal(t, int64(i+1), stored.Version)
		}
	})

	t.Run("rejects a version collision", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.StoreOperation(ctx, op(1, "a")))

		err := s.StoreOperation(ctx, op(1, "a2"))
		assert.True(t, syncerrors.IsAlreadyExists(err))
	})

	t.Run("rejects a version gap", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.StoreOperation(ctx, op(1, "a")))

		err := s.StoreOperation(ctx, op(3, "c"))
		assert.True(t, syncerrors.IsUnexpectedVersion(err))
	})

	t.Run("accepts any base version for a new document", func(t *testing.T) {
		s := newTestStore(t)
		assert.NoError(t, s.StoreOperation(ctx, op(41, "resumed")))
		assert.NoError(t, s.StoreOperation(ctx, op(42, "next")))
	})

	t.Run("rejects an invalid operation", func(t *testing.T) {
		s := newTestStore(t)
		err := s.StoreOperation(ctx, &models.Operation{Type: "text"})
		assert.True(t, syncerrors.IsInvalidEntity(err))
	})
}

func TestLoadOperationsRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.StoreOperation(ctx, op(i, "x")))
	}

	ops, err := s.LoadOperations(ctx, "text", docID, 2, 4)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, int64(2), ops[0].Version)
	assert.Equal(t, int64(4), ops[2].Version)

	ops, err = s.LoadOperations(ctx, "text", docID, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = s.LoadOperations(ctx, "text", "never-seen", 1, 10)
	assert.True(t, syncerrors.IsNotInitialized(err))
}

func TestSchemaRegistry(t *testing.T) {
	ctx := context.Background()
	schemaJSON := []byte(`{"type": "object", "required": ["index"], "properties": {"index": {"type": "integer", "minimum": 0}}}`)

	t.Run("registers a schema under its content hash", func(t *testing.T) {
		s := newTestStore(t)
		hash, err := s.RegisterSchema(ctx, schemaJSON)
		require.NoError(t, err)
		assert.Len(t, hash, 64)
		assert.True(t, s.HasSchema(ctx, hash))
	})

	t.Run("rejects a duplicate registration", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.RegisterSchema(ctx, schemaJSON)
		require.NoError(t, err)

		_, err = s.RegisterSchema(ctx, schemaJSON)
		assert.True(t, syncerrors.IsAlreadyExists(err))
	})

	t.Run("rejects a schema that does not compile", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.RegisterSchema(ctx, []byte(`{"type": 42}`))
		assert.True(t, syncerrors.IsInvalidEntity(err))
	})

	t.Run("validates operation payloads against their schema", func(t *testing.T) {
		s := newTestStore(t)
		hash, err := s.RegisterSchema(ctx, schemaJSON)
		require.NoError(t, err)

		valid := op(1, map[string]interface{}{"index": 3})
		valid.Schema = hash
		require.NoError(t, s.StoreOperation(ctx, valid))

		invalid := op(2, map[string]interface{}{"index": -1})
		invalid.Schema = hash
		err = s.StoreOperation(ctx, invalid)
		assert.True(t, syncerrors.IsInvalidEntity(err))
	})

	t.Run("rejects an unknown schema reference", func(t *testing.T) {
		s := newTestStore(t)
		unknown := op(1, map[string]interface{}{"index": 3})
		unknown.Schema = "deadbeef"
		err := s.StoreOperation(ctx, unknown)
		require.True(t, syncerrors.IsInvalidEntity(err))

		var se *syncerrors.SyncError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "schema", se.Field)
	})
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()

	store := func(t *testing.T, s *Store, version int64, data string) {
		t.Helper()
		require.NoError(t, s.StoreSnapshot(ctx, &models.Snapshot{
			Type: "text", ID: docID, Version: version, Data: data,
		}))
	}

	t.Run("returns the latest snapshot at or below the requested version", func(t *testing.T) {
		s := newTestStore(t)
		store(t, s, 10, "at-10")
		store(t, s, 20, "at-20")
		store(t, s, 30, "at-30")

		snapshot, err := s.GetSnapshot(ctx, "text", docID, 25)
		require.NoError(t, err)
		assert.Equal(t, int64(20), snapshot.Version)
		assert.Equal(t, "at-20", snapshot.Data)

		snapshot, err = s.GetSnapshot(ctx, "text", docID, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(30), snapshot.Version)
	})

	t.Run("fails below the oldest snapshot", func(t *testing.T) {
		s := newTestStore(t)
		store(t, s, 10, "at-10")

		_, err := s.GetSnapshot(ctx, "text", docID, 5)
		assert.Error(t, err)
	})

	t.Run("fails for an unknown document", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.GetSnapshot(ctx, "text", "never-seen", 1)
		assert.Error(t, err)
	})

	t.Run("rejects a duplicate version", func(t *testing.T) {
		s := newTestStore(t)
		store(t, s, 10, "at-10")

		err := s.StoreSnapshot(ctx, &models.Snapshot{Type: "text", ID: docID, Version: 10, Data: "again"})
		assert.True(t, syncerrors.IsAlreadyExists(err))
	})

	t.Run("survives cache eviction", func(t *testing.T) {
		s, err := NewStore(2, nil, nil)
		require.NoError(t, err)
		store(t, s, 1, "v1")
		store(t, s, 2, "v2")
		store(t, s, 3, "v3")
		store(t, s, 4, "v4")

		// version 1 has been evicted from the LRU but not from the store
		snapshot, err := s.GetSnapshot(ctx, "text", docID, 1)
		require.NoError(t, err)
		assert.Equal(t, "v1", snapshot.Data)
	})
}
