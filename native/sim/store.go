package sim

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// Store persists pools and the head version of their objects. Snapshots,
// locks and in-flight operations live in memory only.
type Store interface {
	Pools() ([]PoolRecord, error)
	Objects(poolID int64) ([]ObjectRecord, error)
	PutPool(rec PoolRecord) error
	DeletePool(id int64) error
	PutObject(poolID int64, rec ObjectRecord) error
	DeleteObject(poolID int64, ns, oid string) error
	Close() error
}

// PoolRecord is the persisted form of a pool.
type PoolRecord struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// ObjectRecord is the persisted form of an object.
type ObjectRecord struct {
	Xattrs    map[string][]byte `json:"xattrs,omitempty"`
	Omap      map[string][]byte `json:"omap,omitempty"`
	Namespace string            `json:"ns,omitempty"`
	OID       string            `json:"oid"`
	Data      []byte            `json:"data,omitempty"`
	Version   uint64            `json:"version"`
	Mtime     int64             `json:"mtime"`
}

var (
	defaultTimeout = 1 * time.Second
	poolsBucket    = []byte("pools")
)

const (
	// fileMode sets permissions so owner can read and write
	fileMode = 0600
)

// BoltStore keeps the cluster in a BoltDB file. Pools live in one bucket
// keyed by id; each pool has its own object bucket keyed by namespace and
// object name.
type BoltStore struct {
	logger *zap.Logger
	db     *bolt.DB
	Path   string
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the database at path.
func OpenBolt(logger *zap.Logger, path string) (*BoltStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(poolsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{
		logger: logger,
		db:     db,
		Path:   path,
	}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func poolKey(id int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
}

func objectsBucket(id int64) []byte {
	return []byte(fmt.Sprintf("pool/%d", id))
}

func objectKey(ns, oid string) []byte {
	return []byte(ns + "\x00" + oid)
}

// Pools returns every stored pool ordered by id.
func (b *BoltStore) Pools() ([]PoolRecord, error) {
	var pools []PoolRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(poolsBucket).ForEach(func(_, v []byte) error {
			var rec PoolRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			pools = append(pools, rec)
			return nil
		})
	})
	return pools, err
}

// Objects returns every stored object of a pool.
func (b *BoltStore) Objects(poolID int64) ([]ObjectRecord, error) {
	var objects []ObjectRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(objectsBucket(poolID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var rec ObjectRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			objects = append(objects, rec)
			return nil
		})
	})
	return objects, err
}

// PutPool stores a pool and creates its object bucket.
func (b *BoltStore) PutPool(rec PoolRecord) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(objectsBucket(rec.ID)); err != nil {
			return err
		}
		return tx.Bucket(poolsBucket).Put(poolKey(rec.ID), v)
	})
}

// DeletePool removes a pool with all its objects.
func (b *BoltStore) DeletePool(id int64) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(objectsBucket(id)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return tx.Bucket(poolsBucket).Delete(poolKey(id))
	})
	if err == nil {
		b.logger.Debug("pool removed from store", zap.Int64("id", id), zap.String("path", b.Path))
	}
	return err
}

// PutObject stores an object, replacing any previous version.
func (b *BoltStore) PutObject(poolID int64, rec ObjectRecord) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(objectsBucket(poolID))
		if err != nil {
			return err
		}
		return bucket.Put(objectKey(rec.Namespace, rec.OID), v)
	})
}

// DeleteObject removes an object. Removing a missing object is not an error.
func (b *BoltStore) DeleteObject(poolID int64, ns, oid string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(objectsBucket(poolID))
		if bucket == nil {
			return nil
		}
		return bucket.Delete(objectKey(ns, oid))
	})
}
