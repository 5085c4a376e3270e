package sim

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

func (s *Sim) client(h native.Handle) *client {
	return s.handles.get(hCluster, h).(*client)
}

// Create2 creates an unconnected cluster handle. Empty names default to
// "ceph" and "client.admin".
func (s *Sim) Create2(clusterName, userName string, _ uint64) (native.Handle, int) {
	if clusterName == "" {
		clusterName = "ceph"
	}
	if userName == "" {
		userName = "client.admin"
	}
	c := &client{
		cluster: clusterName,
		name:    userName,
		conf:    defaultConf(),
	}
	return s.handles.create(hCluster, c), 0
}

// Shutdown frees a cluster handle. Shutting down while I/O contexts of the
// cluster are open panics.
func (s *Sim) Shutdown(h native.Handle) {
	c := s.client(h)
	open := 0
	s.handles.each(hIoctx, func(_ native.Handle, v any) bool {
		if v.(*ioctx).client == c {
			open++
		}
		return true
	})
	if open > 0 {
		panic(fmt.Sprintf("sim: shutdown of cluster %#x with %d open io contexts", uintptr(h), open))
	}
	s.record("shutdown", h)
	s.handles.free(hCluster, h)
}

func (s *Sim) ConfReadFile(h native.Handle, path string) int {
	c := s.client(h)
	if path == "" {
		path = os.Getenv("CEPH_CONF")
	}
	if path == "" {
		return errno(unix.ENOENT)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("read config file", zap.String("path", path), zap.Error(err))
		return errno(unix.ENOENT)
	}
	values, err := parseConf(data, c.name)
	if err != nil {
		s.logger.Debug("parse config file", zap.String("path", path), zap.Error(err))
		return errno(unix.EINVAL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		c.conf[k] = v
	}
	return 0
}

func (s *Sim) ConfParseEnv(h native.Handle, env string) int {
	c := s.client(h)
	if env == "" {
		env = "CEPH_ARGS"
	}
	values, err := parseArgs(os.Getenv(env))
	if err != nil {
		return errno(unix.EINVAL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		c.conf[k] = v
	}
	return 0
}

func (s *Sim) ConfSet(h native.Handle, option, value string) int {
	c := s.client(h)
	option = normalizeOption(option)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := c.conf[option]; !ok {
		return errno(unix.ENOENT)
	}
	c.conf[option] = value
	return 0
}

func (s *Sim) ConfGet(h native.Handle, option string, buf []byte) int {
	c := s.client(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := c.conf[normalizeOption(option)]
	if !ok {
		return errno(unix.ENOENT)
	}
	if !putCString(buf, v) {
		return errno(unix.ENAMETOOLONG)
	}
	return 0
}

func (s *Sim) Connect(h native.Handle) int {
	c := s.client(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.connected {
		return errno(unix.EISCONN)
	}
	c.connected = true
	c.instanceID = s.instances.Add(1)
	s.logger.Debug("client connected",
		zap.String("cluster", c.cluster),
		zap.String("name", c.name),
		zap.Uint64("instance", c.instanceID))
	return 0
}

// connected returns the client of h, or a status when it is not connected.
func (s *Sim) connected(h native.Handle) (*client, int) {
	c := s.client(h)
	if !c.connected {
		return nil, errno(unix.ENOTCONN)
	}
	return c, 0
}

func (s *Sim) ClusterStat(h native.Handle, out *native.ClusterStat) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}

	var used, objects uint64
	for _, p := range s.pools {
		used += p.bytes()
		objects += uint64(len(p.objects))
	}
	out.KB = s.capacity / 1024
	out.KBUsed = (used + 1023) / 1024
	out.KBAvail = out.KB - min(out.KB, out.KBUsed)
	out.NumObjects = objects
	return 0
}

func (s *Sim) ClusterFSID(h native.Handle, buf []byte) int {
	s.client(h)
	if !putCString(buf, s.fsid) {
		return errno(unix.ERANGE)
	}
	return len(s.fsid)
}

func (s *Sim) WaitForLatestOSDMap(h native.Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, rc := s.connected(h)
	return rc
}

func (s *Sim) GetInstanceID(h native.Handle) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client(h).instanceID
}

func (s *Sim) sortedPools() []*pool {
	pools := make([]*pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].id < pools[j].id })
	return pools
}

func (s *Sim) PoolList(h native.Handle, buf []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}

	needed := 0
	for _, p := range s.sortedPools() {
		if needed+len(p.name)+1 <= len(buf) {
			copy(buf[needed:], p.name)
			buf[needed+len(p.name)] = 0
		}
		needed += len(p.name) + 1
	}
	if needed < len(buf) {
		buf[needed] = 0
	}
	return needed + 1
}

func (s *Sim) PoolCreate(h native.Handle, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	_, rc := s.createPool(name)
	return rc
}

// createPool adds a pool. Callers hold s.mu.
func (s *Sim) createPool(name string) (*pool, int) {
	if name == "" {
		return nil, errno(unix.EINVAL)
	}
	if _, ok := s.pools[name]; ok {
		return nil, errno(unix.EEXIST)
	}

	p := newPool(s.nextPoolID, name)
	if s.store != nil {
		if err := s.store.PutPool(PoolRecord{ID: p.id, Name: p.name}); err != nil {
			s.logger.Warn("persist pool failed", zap.String("pool", name), zap.Error(err))
			return nil, errno(unix.EIO)
		}
	}
	s.nextPoolID++
	s.pools[name] = p
	s.poolsByID[p.id] = p
	s.logger.Debug("pool created", zap.String("pool", name), zap.Int64("id", p.id))
	return p, 0
}

func (s *Sim) PoolDelete(h native.Handle, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	return s.deletePool(name)
}

// deletePool removes a pool. Callers hold s.mu.
func (s *Sim) deletePool(name string) int {
	p, ok := s.pools[name]
	if !ok {
		return errno(unix.ENOENT)
	}
	if s.store != nil {
		if err := s.store.DeletePool(p.id); err != nil {
			s.logger.Warn("delete persisted pool failed", zap.String("pool", name), zap.Error(err))
			return errno(unix.EIO)
		}
	}
	delete(s.pools, name)
	delete(s.poolsByID, p.id)
	s.logger.Debug("pool deleted", zap.String("pool", name), zap.Int64("id", p.id))
	return 0
}

func (s *Sim) PoolLookup(h native.Handle, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return int64(rc)
	}
	p, ok := s.pools[name]
	if !ok {
		return int64(errno(unix.ENOENT))
	}
	return p.id
}

func (s *Sim) PoolReverseLookup(h native.Handle, id int64, buf []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	p, ok := s.poolsByID[id]
	if !ok {
		return errno(unix.ENOENT)
	}
	if !putCString(buf, p.name) {
		return errno(unix.ERANGE)
	}
	return len(p.name)
}

// newBuffer hands out a natively allocated buffer. Empty output yields the
// null handle, as the C library returns NULL for it.
func (s *Sim) newBuffer(data []byte) (native.Handle, int) {
	if len(data) == 0 {
		return 0, 0
	}
	return s.handles.create(hBuffer, data), len(data)
}

func (s *Sim) BufferBytes(buf native.Handle, n int) []byte {
	data := s.handles.get(hBuffer, buf).([]byte)
	if n > len(data) {
		panic(fmt.Sprintf("sim: read of %d bytes from %d byte buffer", n, len(data)))
	}
	return append([]byte(nil), data[:n]...)
}

func (s *Sim) BufferFree(buf native.Handle) {
	if buf.IsNull() {
		return
	}
	s.record("buffer_free", buf)
	s.handles.free(hBuffer, buf)
}

// Releases reported by the compatibility calls.
const (
	requireOSDRelease      = 17
	minCompatClient        = 12
	requireMinCompatClient = 12
)

func (s *Sim) ConfParseArgv(h native.Handle, argv []string) int {
	_, rc := s.ConfParseArgvRemainder(h, argv)
	return rc
}

// ConfParseArgvRemainder applies the options already present in the
// configuration. argv[0] is the program name and is skipped.
func (s *Sim) ConfParseArgvRemainder(h native.Handle, argv []string) ([]string, int) {
	c := s.client(h)
	if len(argv) > 0 {
		argv = argv[1:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	values, rest, err := parseArgv(argv, func(key string) bool {
		_, ok := c.conf[key]
		return ok
	})
	if err != nil {
		return nil, errno(unix.EINVAL)
	}
	for k, v := range values {
		c.conf[k] = v
	}
	return rest, 0
}

func (s *Sim) PoolCreateWithCrushRule(h native.Handle, name string, rule uint8) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	p, rc := s.createPool(name)
	if rc != 0 {
		return rc
	}
	p.crushRule = rule
	return 0
}

// PoolGetBaseTier reports the pool itself, as no simulated pool is a cache
// tier.
func (s *Sim) PoolGetBaseTier(h native.Handle, id int64, tier *int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	if _, ok := s.poolsByID[id]; !ok {
		return errno(unix.ENOENT)
	}
	*tier = id
	return 0
}

func (s *Sim) InconsistentPGList(h native.Handle, id int64, buf []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	p, ok := s.poolsByID[id]
	if !ok {
		return errno(unix.ENOENT)
	}

	needed := 0
	for _, pg := range p.inconsistent {
		if needed+len(pg)+1 <= len(buf) {
			copy(buf[needed:], pg)
			buf[needed+len(pg)] = 0
		}
		needed += len(pg) + 1
	}
	if needed < len(buf) {
		buf[needed] = 0
	}
	return needed + 1
}

// SetInconsistentPGs sets the placement groups reported as inconsistent for
// the pool with the given id.
func (s *Sim) SetInconsistentPGs(id int64, pgs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.poolsByID[id]
	if !ok {
		return fmt.Errorf("pool %d not found", id)
	}
	p.inconsistent = append([]string(nil), pgs...)
	return nil
}

func (s *Sim) GetMinCompatibleOSD(h native.Handle, release *int8) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	*release = requireOSDRelease
	return 0
}

func (s *Sim) GetMinCompatibleClient(h native.Handle, minRelease, requireMin *int8) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rc := s.connected(h); rc != 0 {
		return rc
	}
	*minRelease = minCompatClient
	*requireMin = requireMinCompatClient
	return 0
}
