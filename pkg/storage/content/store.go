// Package content implements the server-side content store: an append-only
// operation log per document, a schema registry keyed by content hash, and a
// snapshot cache answering "latest version at or below" lookups.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"

	syncerrors "github.com/docsync/docsync/pkg/errors"
	"github.com/docsync/docsync/pkg/models"
	"github.com/docsync/docsync/pkg/observability"
)

// DefaultSnapshotCacheSize bounds the snapshot LRU when no size is given.
const DefaultSnapshotCacheSize = 1024

type docKey struct {
	typeName string
	id       string
}

type snapKey struct {
	typeName string
	id       string
	version  int64
}

type documentLog struct {
	operations []*models.Operation
	// snapshotVersions is kept sorted ascending; it indexes the versions
	// that have a stored snapshot.
	snapshotVersions []int64
}

// Store is the in-memory content store.
type Store struct {
	logger  observability.Logger
	metrics observability.MetricsClient

	mu        sync.RWMutex
	logs      map[docKey]*documentLog
	schemas   map[string]*gojsonschema.Schema
	snapshots map[snapKey]*models.Snapshot
	cache     *lru.Cache[snapKey, *models.Snapshot]
}

// NewStore creates a content store. cacheSize bounds the snapshot LRU;
// values below one fall back to DefaultSnapshotCacheSize.
func NewStore(cacheSize int, logger observability.Logger, metrics observability.MetricsClient) (*Store, error) {
	if cacheSize < 1 {
		cacheSize = DefaultSnapshotCacheSize
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	cache, err := lru.New[snapKey, *models.Snapshot](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	return &Store{
		logger:    logger.WithPrefix("contentstore"),
		metrics:   metrics,
		logs:      make(map[docKey]*documentLog),
		schemas:   make(map[string]*gojsonschema.Schema),
		snapshots: make(map[snapKey]*models.Snapshot),
		cache:     cache,
	}, nil
}

// RegisterSchema compiles a JSON Schema document and registers it under the
// hex SHA-256 of its bytes. Registering the same document twice fails with
// an already-exists error.
func (s *Store) RegisterSchema(ctx context.Context, schemaJSON []byte) (string, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return "", syncerrors.Wrap(err, syncerrors.CodeInvalidEntity, "schema does not compile")
	}
	sum := sha256.Sum256(schemaJSON)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schemas[hash]; exists {
		return "", syncerrors.Newf(syncerrors.CodeAlreadyExists, "schema %s is already registered", hash)
	}
	s.schemas[hash] = compiled
	s.logger.Info("Schema registered", map[string]interface{}{
		"hash": hash,
	})
	return hash, nil
}

// HasSchema reports whether a schema hash is registered.
func (s *Store) HasSchema(ctx context.Context, hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.schemas[hash]
	return ok
}

// StoreOperation appends an operation to its document log. The first
// operation establishes the base version; every later one must extend the
// log by exactly one version. Re-storing an already held version fails with
// an already-exists error.
func (s *Store) StoreOperation(ctx context.Context, op *models.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateSchemaLocked(op); err != nil {
		return err
	}

	key := docKey{typeName: op.Type, id: op.ID}
	log, ok := s.logs[key]
	if !ok {
		log = &documentLog{}
		s.logs[key] = log
	}
	if n := len(log.operations); n > 0 {
		last := log.operations[n-1].Version
		switch {
		case op.Version <= last:
			return syncerrors.Newf(syncerrors.CodeAlreadyExists,
				"document %s/%s already holds version %d", op.Type, op.ID, op.Version)
		case op.Version != last+1:
			return syncerrors.Newf(syncerrors.CodeUnexpectedVersion,
				"operation has version %d, expected %d", op.Version, last+1)
		}
	}
	log.operations = append(log.operations, op.Clone())
	s.metrics.IncrementCounterWithLabels("content_operations_total", 1, map[string]string{
		"type": op.Type,
	})
	return nil
}

func (s *Store) validateSchemaLocked(op *models.Operation) error {
	if op.Schema == "" {
		return nil
	}
	schema, ok := s.schemas[op.Schema]
	if !ok {
		return syncerrors.NewInvalidEntity("operation", "schema",
			fmt.Sprintf("schema %s is not registered", op.Schema))
	}
	payload, err := json.Marshal(op.Data)
	if err != nil {
		return syncerrors.NewInvalidEntity("operation", "data", "payload is not serializable")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.CodeInvalidEntity, "schema validation failed")
	}
	if !result.Valid() {
		return syncerrors.NewInvalidEntity("operation", "data",
			fmt.Sprintf("payload violates schema %s: %v", op.Schema, result.Errors()))
	}
	return nil
}

// LoadOperations returns the operations of a document with
// minVersion <= version <= maxVersion, in increasing version order.
func (s *Store) LoadOperations(ctx context.Context, typeName, id string, minVersion, maxVersion int64) ([]*models.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[docKey{typeName: typeName, id: id}]
	if !ok {
		return nil, syncerrors.Newf(syncerrors.CodeNotInitialized,
			"document %s/%s has no operations", typeName, id)
	}
	result := make([]*models.Operation, 0, len(log.operations))
	for _, op := range log.operations {
		if op.Version >= minVersion && op.Version <= maxVersion {
			result = append(result, op.Clone())
		}
	}
	return result, nil
}

// StoreSnapshot stores a snapshot under (type, id, version). Storing a
// version twice fails with an already-exists error.
func (s *Store) StoreSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := snapKey{typeName: snapshot.Type, id: snapshot.ID, version: snapshot.Version}
	if _, exists := s.snapshots[key]; exists {
		return syncerrors.Newf(syncerrors.CodeAlreadyExists,
			"snapshot %s/%s@%d already exists", snapshot.Type, snapshot.ID, snapshot.Version)
	}
	cp := snapshot.Clone()
	s.snapshots[key] = cp
	s.cache.Add(key, cp)

	dkey := docKey{typeName: snapshot.Type, id: snapshot.ID}
	log, ok := s.logs[dkey]
	if !ok {
		log = &documentLog{}
		s.logs[dkey] = log
	}
	versions := log.snapshotVersions
	at := sort.Search(len(versions), func(i int) bool { return versions[i] >= snapshot.Version })
	versions = append(versions, 0)
	copy(versions[at+1:], versions[at:])
	versions[at] = snapshot.Version
	log.snapshotVersions = versions
	return nil
}

// GetSnapshot returns the stored snapshot with the highest version at or
// below the requested one.
func (s *Store) GetSnapshot(ctx context.Context, typeName, id string, version int64) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[docKey{typeName: typeName, id: id}]
	if !ok || len(log.snapshotVersions) == 0 {
		return nil, syncerrors.Newf(syncerrors.CodeNotInitialized,
			"document %s/%s has no snapshots", typeName, id)
	}

	versions := log.snapshotVersions
	at := sort.Search(len(versions), func(i int) bool { return versions[i] > version })
	if at == 0 {
		return nil, syncerrors.Newf(syncerrors.CodeNotInitialized,
			"document %s/%s has no snapshot at or below version %d", typeName, id, version)
	}
	key := snapKey{typeName: typeName, id: id, version: versions[at-1]}

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrementCounterWithLabels("snapshot_cache_total", 1, map[string]string{"result": "hit"})
		return cached.Clone(), nil
	}
	s.metrics.IncrementCounterWithLabels("snapshot_cache_total", 1, map[string]string{"result": "miss"})
	snapshot := s.snapshots[key]
	s.cache.Add(key, snapshot)
	return snapshot.Clone(), nil
}
