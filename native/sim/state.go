package sim

import (
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type objKey struct {
	ns  string
	oid string
}

type object struct {
	data    []byte
	xattrs  map[string][]byte
	omap    map[string][]byte
	locks   map[string]*lockState
	version uint64
	mtime   int64
}

func newObject() *object {
	return &object{
		xattrs: make(map[string][]byte),
		omap:   make(map[string][]byte),
	}
}

// clone copies everything but the locks, which stay with the live object.
func (o *object) clone() *object {
	c := &object{
		data:    append([]byte(nil), o.data...),
		xattrs:  make(map[string][]byte, len(o.xattrs)),
		omap:    make(map[string][]byte, len(o.omap)),
		locks:   o.locks,
		version: o.version,
		mtime:   o.mtime,
	}
	for k, v := range o.xattrs {
		c.xattrs[k] = append([]byte(nil), v...)
	}
	for k, v := range o.omap {
		c.omap[k] = append([]byte(nil), v...)
	}
	return c
}

type snapshot struct {
	objects map[objKey]*object
	name    string
	id      uint64
	stamp   int64
}

// cloneSet holds the states of one object preserved for self-managed
// snapshots. A nil state means the object did not exist. seq is the newest
// snapshot context the object was written under.
type cloneSet struct {
	states map[uint64]*object
	seq    uint64
}

type pool struct {
	objects map[objKey]*object
	snaps   map[uint64]*snapshot
	clones  map[objKey]*cloneSet
	// selfSnaps holds the live self-managed snapshot ids.
	selfSnaps    map[uint64]struct{}
	apps         map[string]map[string]string
	inconsistent []string
	name         string
	id           int64
	version      uint64
	crushRule    uint8

	numRd   uint64
	numRdKB uint64
	numWr   uint64
	numWrKB uint64
}

func newPool(id int64, name string) *pool {
	return &pool{
		id:        id,
		name:      name,
		objects:   make(map[objKey]*object),
		snaps:     make(map[uint64]*snapshot),
		clones:    make(map[objKey]*cloneSet),
		selfSnaps: make(map[uint64]struct{}),
		apps:      make(map[string]map[string]string),
	}
}

// preserve keeps the current state of key for every snapshot of io's write
// context the object has not been cloned for yet. It runs before each change
// to the object. Callers hold s.mu.
func (p *pool) preserve(io *ioctx, key objKey) {
	seq, snaps := io.writeContext()
	if seq == 0 {
		return
	}
	cs := p.clones[key]
	if cs == nil {
		cs = &cloneSet{states: make(map[uint64]*object)}
		p.clones[key] = cs
	}
	if seq <= cs.seq {
		return
	}

	var prev *object
	if cur, ok := p.objects[key]; ok {
		prev = cur.clone()
		prev.locks = nil
	}
	for _, id := range snaps {
		if _, ok := cs.states[id]; !ok && id > cs.seq {
			cs.states[id] = prev
		}
	}
	cs.seq = seq
}

func (p *pool) bytes() uint64 {
	var n uint64
	for _, o := range p.objects {
		n += uint64(len(o.data))
	}
	return n
}

func (p *pool) snapByName(name string) *snapshot {
	for _, sn := range p.snaps {
		if sn.name == name {
			return sn
		}
	}
	return nil
}

func (p *pool) sortedSnaps() []uint64 {
	ids := make([]uint64, 0, len(p.snaps))
	for id := range p.snaps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *pool) sortedKeys(ns string, all bool) []objKey {
	keys := make([]objKey, 0, len(p.objects))
	for k := range p.objects {
		if all || k.ns == ns {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ns != keys[j].ns {
			return keys[i].ns < keys[j].ns
		}
		return keys[i].oid < keys[j].oid
	})
	return keys
}

func (p *pool) read(n int) {
	p.numRd++
	p.numRdKB += uint64(n+1023) / 1024
}

func (p *pool) wrote(n int) {
	p.numWr++
	p.numWrKB += uint64(n+1023) / 1024
}

type client struct {
	conf       map[string]string
	cluster    string
	name       string
	instanceID uint64
	connected  bool
}

type ioctx struct {
	client  *client
	pool    *pool
	ns      string
	locator string

	lastVersion uint64
	inflight    int
	snapSeq     uint64
	snapIDs     []uint64
	cond        *sync.Cond
	mu          sync.Mutex
}

func newIoctx(c *client, p *pool) *ioctx {
	io := &ioctx{client: c, pool: p}
	io.cond = sync.NewCond(&io.mu)
	return io
}

func (io *ioctx) begin() {
	io.mu.Lock()
	io.inflight++
	io.mu.Unlock()
}

func (io *ioctx) end() {
	io.mu.Lock()
	io.inflight--
	if io.inflight == 0 {
		io.cond.Broadcast()
	}
	io.mu.Unlock()
}

func (io *ioctx) drain() {
	io.mu.Lock()
	for io.inflight > 0 {
		io.cond.Wait()
	}
	io.mu.Unlock()
}

func (io *ioctx) pending() int {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.inflight
}

func (io *ioctx) setVersion(v uint64) {
	io.mu.Lock()
	io.lastVersion = v
	io.mu.Unlock()
}

func (io *ioctx) setWriteContext(seq uint64, snaps []uint64) {
	io.mu.Lock()
	io.snapSeq = seq
	io.snapIDs = append([]uint64(nil), snaps...)
	io.mu.Unlock()
}

func (io *ioctx) writeContext() (uint64, []uint64) {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.snapSeq, io.snapIDs
}

func (io *ioctx) version() uint64 {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.lastVersion
}

// livePool returns the pool of io unless it was deleted. Callers hold s.mu.
func (s *Sim) livePool(io *ioctx) (*pool, bool) {
	p, ok := s.poolsByID[io.pool.id]
	return p, ok && p == io.pool
}

// commit stores obj under key, bumping its version and mtime, and persists
// it. Callers hold s.mu.
func (s *Sim) commit(io *ioctx, p *pool, key objKey, obj *object, mtime *int64) int {
	p.preserve(io, key)
	p.version++
	obj.version = p.version
	if mtime != nil && *mtime != 0 {
		obj.mtime = *mtime
	} else {
		obj.mtime = s.now().Unix()
	}
	p.objects[key] = obj
	io.setVersion(obj.version)

	if s.store == nil {
		return 0
	}
	if err := s.store.PutObject(p.id, toRecord(key, obj)); err != nil {
		s.logger.Warn("persist object failed",
			zap.String("pool", p.name),
			zap.String("oid", key.oid),
			zap.Error(err))
		return errno(unix.EIO)
	}
	return 0
}

// drop removes the object under key. Callers hold s.mu.
func (s *Sim) drop(io *ioctx, p *pool, key objKey) int {
	if _, ok := p.objects[key]; !ok {
		return errno(unix.ENOENT)
	}
	p.preserve(io, key)
	delete(p.objects, key)
	p.version++
	io.setVersion(p.version)

	if s.store == nil {
		return 0
	}
	if err := s.store.DeleteObject(p.id, key.ns, key.oid); err != nil {
		s.logger.Warn("delete persisted object failed",
			zap.String("pool", p.name),
			zap.String("oid", key.oid),
			zap.Error(err))
		return errno(unix.EIO)
	}
	return 0
}

func (s *Sim) load() error {
	pools, err := s.store.Pools()
	if err != nil {
		return err
	}
	for _, rec := range pools {
		p := newPool(rec.ID, rec.Name)
		objects, err := s.store.Objects(rec.ID)
		if err != nil {
			return err
		}
		for _, o := range objects {
			obj := fromRecord(o)
			p.objects[objKey{ns: o.Namespace, oid: o.OID}] = obj
			p.version = max(p.version, obj.version)
		}
		s.pools[p.name] = p
		s.poolsByID[p.id] = p
		s.nextPoolID = max(s.nextPoolID, p.id+1)
	}
	return nil
}

func toRecord(key objKey, obj *object) ObjectRecord {
	return ObjectRecord{
		Namespace: key.ns,
		OID:       key.oid,
		Data:      obj.data,
		Xattrs:    maps.Clone(obj.xattrs),
		Omap:      maps.Clone(obj.omap),
		Version:   obj.version,
		Mtime:     obj.mtime,
	}
}

func fromRecord(rec ObjectRecord) *object {
	obj := newObject()
	obj.data = rec.Data
	obj.version = rec.Version
	obj.mtime = rec.Mtime
	maps.Copy(obj.xattrs, rec.Xattrs)
	maps.Copy(obj.omap, rec.Omap)
	return obj
}
