package rados

import (
	"encoding/json"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native/sim"
	"github.com/wippyai/go-rados/resource"
)

const testPool = "data"

// newTestEnv returns a simulated cluster with a connected handle and an I/O
// context on testPool. Everything is closed at the end of the test.
func newTestEnv(t *testing.T, simOpts []sim.Option, opts ...Option) (*sim.Sim, *Rados, *Conn, *IOContext) {
	t.Helper()

	s, err := sim.New(simOpts...)
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	r := New(s, opts...)
	t.Cleanup(r.Close)

	conn, err := r.NewConn()
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.CreatePool(testPool); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	io, err := conn.OpenIOContext(testPool)
	if err != nil {
		t.Fatalf("OpenIOContext: %v", err)
	}
	return s, r, conn, io
}

func traceNames(s *sim.Sim) []string {
	var names []string
	for _, c := range s.Trace() {
		names = append(names, c.Name)
	}
	return names
}

type eventLog struct {
	events []resource.Event
	mu     sync.Mutex
}

func (l *eventLog) OnResourceEvent(e resource.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) count(typ resource.EventType, kind resource.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == typ && e.Kind == kind {
			n++
		}
	}
	return n
}

func TestConn_CloseCascades(t *testing.T) {
	s, _, conn, io := newTestEnv(t, []sim.Option{sim.WithLatency(1 << 62)})

	c, err := io.Object("obj").WriteFullAsync([]byte("pending"))
	if err != nil {
		t.Fatalf("WriteFullAsync: %v", err)
	}
	it, err := io.ListObjects()
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	s.ResetTrace()

	conn.Close()

	want := []string{"nobjects_list_close", "aio_cancel", "aio_release", "ioctx_destroy", "shutdown"}
	if got := traceNames(s); !slices.Equal(got, want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	if live := s.Live(); len(live) != 0 {
		t.Fatalf("live native handles after close: %v", live)
	}

	if c.Valid() || io.Valid() || conn.Valid() {
		t.Fatal("handles still valid after close")
	}
	if _, _, err := it.Next(); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("iterator Next = %v, want released", err)
	}
	if err := io.Object("obj").Write([]byte("x"), 0); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("Write after close = %v, want released", err)
	}
	if _, err := c.Result(); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("Result after close = %v, want released", err)
	}

	conn.Close()
	if n := len(s.Trace()); n != len(want) {
		t.Fatalf("second close made %d more native calls", n-len(want))
	}
}

func TestConn_IOContextCloseLeavesConn(t *testing.T) {
	s, _, conn, io := newTestEnv(t, nil)

	io.Close()
	io.Close()
	if got := traceNames(s); !slices.Equal(got, []string{"ioctx_destroy"}) {
		t.Fatalf("trace = %v", got)
	}
	if !conn.Valid() || !conn.IsConnected() {
		t.Fatal("closing the context closed the connection")
	}
	if _, err := conn.ListPools(); err != nil {
		t.Fatalf("ListPools: %v", err)
	}
}

func TestRados_CloseReleasesRoots(t *testing.T) {
	log := &eventLog{}
	s, r, _, _ := newTestEnv(t, nil, WithObserver(log))

	op, err := r.NewWriteOp()
	if err != nil {
		t.Fatalf("NewWriteOp: %v", err)
	}
	if r.Registry().Live(resource.KindWriteOp) != 1 {
		t.Fatal("write op not tracked")
	}

	r.Close()

	if live := s.Live(); len(live) != 0 {
		t.Fatalf("live native handles after Close: %v", live)
	}
	if err := op.Add(&RemoveTask{}); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("Add after Close = %v, want released", err)
	}
	for _, kind := range []resource.Kind{resource.KindCluster, resource.KindIOContext, resource.KindWriteOp} {
		if got := log.count(resource.EventReleased, kind); got != 1 {
			t.Errorf("%s released %d times, want 1", kind, got)
		}
	}
	if r.Registry().Len() != 0 {
		t.Fatalf("registry still counts %d resources", r.Registry().Len())
	}
}

func TestConn_NotConnected(t *testing.T) {
	s, err := sim.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	r := New(s)
	defer r.Close()

	conn, err := r.NewConn(WithClusterName("ceph"), WithUser("client.admin"))
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if conn.IsConnected() {
		t.Fatal("connected before Connect")
	}
	if _, err := conn.ListPools(); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Fatalf("ListPools = %v, want not connected", err)
	}
	if _, err := conn.OpenIOContext("data"); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Fatalf("OpenIOContext = %v, want not connected", err)
	}

	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Connect(); !errors.IsErrno(err, unix.EISCONN) {
		t.Fatalf("second Connect = %v, want EISCONN", err)
	}
}

func TestConn_Config(t *testing.T) {
	_, _, conn, _ := newTestEnv(t, nil)

	if err := conn.SetConfig("log_file", "/tmp/rados.log"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	got, err := conn.GetConfig("log file")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got != "/tmp/rados.log" {
		t.Fatalf("GetConfig = %q", got)
	}

	if err := conn.SetConfig("no_such_option", "x"); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("SetConfig unknown = %v, want ENOENT", err)
	}
}

func TestConn_Pools(t *testing.T) {
	_, _, conn, _ := newTestEnv(t, nil)

	if err := conn.CreatePool("other"); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	if err := conn.CreatePool("other"); !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("CreatePool twice = %v, want EEXIST", err)
	}

	pools, err := conn.ListPools()
	if err != nil {
		t.Fatalf("ListPools: %v", err)
	}
	if !slices.Equal(pools, []string{testPool, "other"}) {
		t.Fatalf("ListPools = %v", pools)
	}

	id, err := conn.LookupPool("other")
	if err != nil {
		t.Fatalf("LookupPool: %v", err)
	}
	name, err := conn.PoolName(id)
	if err != nil || name != "other" {
		t.Fatalf("PoolName = %q, %v", name, err)
	}

	io, err := conn.OpenIOContextByID(id)
	if err != nil {
		t.Fatalf("OpenIOContextByID: %v", err)
	}
	if got, _ := io.PoolID(); got != id {
		t.Fatalf("PoolID = %d, want %d", got, id)
	}
	io.Close()

	if err := conn.DeletePool("other"); err != nil {
		t.Fatalf("DeletePool: %v", err)
	}
	if _, err := conn.LookupPool("other"); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("LookupPool deleted = %v, want ENOENT", err)
	}
}

func TestConn_ClusterInfo(t *testing.T) {
	s, _, conn, io := newTestEnv(t, nil)

	fsid, err := conn.FSID()
	if err != nil || fsid != s.FSID() {
		t.Fatalf("FSID = %q, %v, want %q", fsid, err, s.FSID())
	}
	if id, err := conn.InstanceID(); err != nil || id == 0 {
		t.Fatalf("InstanceID = %d, %v", id, err)
	}
	if err := conn.WaitForLatestOSDMap(); err != nil {
		t.Fatalf("WaitForLatestOSDMap: %v", err)
	}

	if err := io.Object("a").WriteFull([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	st, err := conn.ClusterStat()
	if err != nil {
		t.Fatalf("ClusterStat: %v", err)
	}
	if st.NumObjects != 1 || st.KB != st.KBUsed+st.KBAvail {
		t.Fatalf("ClusterStat = %+v", st)
	}
}

func TestConn_MonCommand(t *testing.T) {
	s, _, conn, _ := newTestEnv(t, nil)

	cmd, _ := json.Marshal(map[string]string{"prefix": "osd pool ls", "format": "json"})
	res, err := conn.MonCommand([]string{string(cmd)}, nil)
	if err != nil {
		t.Fatalf("MonCommand: %v", err)
	}
	var pools []string
	if err := json.Unmarshal(res.Output, &pools); err != nil {
		t.Fatalf("output %q: %v", res.Output, err)
	}
	if !slices.Equal(pools, []string{testPool}) {
		t.Fatalf("pools = %v", pools)
	}

	_, err = conn.MonCommand([]string{`{"prefix": "osd pool delete", "pool": "data"}`}, nil)
	if !errors.IsErrno(err, unix.EPERM) {
		t.Fatalf("unconfirmed delete = %v, want EPERM", err)
	}
	if !strings.Contains(err.Error(), "yes-i-really-really-mean-it") {
		t.Fatalf("status text missing from error: %v", err)
	}

	out, err := conn.PingMonitor("a")
	if err != nil || !strings.Contains(out, "HEALTH_OK") {
		t.Fatalf("PingMonitor = %q, %v", out, err)
	}

	// Every natively allocated buffer was freed.
	if n := s.Live()["buffer"]; n != 0 {
		t.Fatalf("%d native buffers leaked", n)
	}
	if !slices.Contains(traceNames(s), "buffer_free") {
		t.Fatal("no buffer was freed through the native routine")
	}
}

func TestRados_BufferGrowthFromZero(t *testing.T) {
	s, _, conn, io := newTestEnv(t, nil, WithInitialBufferSize(0))

	if fsid, err := conn.FSID(); err != nil || fsid != s.FSID() {
		t.Fatalf("FSID = %q, %v", fsid, err)
	}
	if v, err := conn.GetConfig("ms_type"); err != nil || v != "async+posix" {
		t.Fatalf("GetConfig = %q, %v", v, err)
	}
	if pools, err := conn.ListPools(); err != nil || !slices.Equal(pools, []string{testPool}) {
		t.Fatalf("ListPools = %v, %v", pools, err)
	}

	if err := io.SetNamespace("tenant"); err != nil {
		t.Fatal(err)
	}
	if ns, err := io.Namespace(); err != nil || ns != "tenant" {
		t.Fatalf("Namespace = %q, %v", ns, err)
	}

	obj := io.Object("obj")
	value := []byte(strings.Repeat("v", 300))
	if err := obj.SetXattr("big", value); err != nil {
		t.Fatal(err)
	}
	got, err := obj.GetXattr("big")
	if err != nil || string(got) != string(value) {
		t.Fatalf("GetXattr = %d bytes, %v", len(got), err)
	}
}

func TestRados_MaxBufferSize(t *testing.T) {
	_, _, conn, _ := newTestEnv(t, nil, WithInitialBufferSize(4), WithMaxBufferSize(16))

	_, err := conn.FSID()
	if !stderrors.Is(err, errors.ErrBufferOverflow) {
		t.Fatalf("FSID = %v, want buffer overflow", err)
	}
	if !errors.IsErrno(err, unix.ERANGE) {
		t.Fatalf("overflow does not carry the native cause: %v", err)
	}
}

func TestConn_ParseArgs(t *testing.T) {
	_, _, conn, _ := newTestEnv(t, nil)

	if err := conn.ParseArgs([]string{"--mon-host", "10.0.0.1"}); err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if v, err := conn.GetConfig("mon_host"); err != nil || v != "10.0.0.1" {
		t.Fatalf("mon_host = %q, %v", v, err)
	}

	rest, err := conn.ParseArgsRemainder([]string{"--mon_host=10.0.0.2", "extra", "--not-an-option", "x"})
	if err != nil {
		t.Fatalf("ParseArgsRemainder: %v", err)
	}
	if !slices.Equal(rest, []string{"extra", "--not-an-option", "x"}) {
		t.Fatalf("remainder = %v", rest)
	}
	if v, _ := conn.GetConfig("mon_host"); v != "10.0.0.2" {
		t.Fatalf("mon_host = %q", v)
	}

	if err := conn.ParseArgs([]string{"--mon-host"}); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("missing value = %v, want EINVAL", err)
	}
}

func TestConn_PoolQueries(t *testing.T) {
	s, _, conn, _ := newTestEnv(t, nil)

	if err := conn.CreatePoolWithCrushRule("ruled", 1); err != nil {
		t.Fatalf("CreatePoolWithCrushRule: %v", err)
	}
	if err := conn.CreatePoolWithCrushRule("ruled", 1); !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("second create = %v, want EEXIST", err)
	}
	id, err := conn.LookupPool("ruled")
	if err != nil {
		t.Fatal(err)
	}
	if tier, err := conn.PoolBaseTier(id); err != nil || tier != id {
		t.Fatalf("PoolBaseTier = %d, %v, want %d", tier, err, id)
	}

	if pgs, err := conn.InconsistentPGs(id); err != nil || len(pgs) != 0 {
		t.Fatalf("InconsistentPGs = %v, %v", pgs, err)
	}
	want := []string{"3.0", "3.1f"}
	if err := s.SetInconsistentPGs(id, want...); err != nil {
		t.Fatal(err)
	}
	if pgs, err := conn.InconsistentPGs(id); err != nil || !slices.Equal(pgs, want) {
		t.Fatalf("InconsistentPGs = %v, %v, want %v", pgs, err, want)
	}

	if rel, err := conn.MinCompatibleOSD(); err != nil || rel <= 0 {
		t.Fatalf("MinCompatibleOSD = %d, %v", rel, err)
	}
	req, err := conn.MinCompatibleClient()
	if err != nil || req.Min <= 0 || req.RequireMin <= 0 {
		t.Fatalf("MinCompatibleClient = %+v, %v", req, err)
	}
}

func TestConn_PoolQueriesNeedConnection(t *testing.T) {
	s, err := sim.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	r := New(s)
	defer r.Close()
	conn, err := r.NewConn()
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.CreatePoolWithCrushRule("p", 0); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Fatalf("CreatePoolWithCrushRule = %v, want not connected", err)
	}
	if _, err := conn.InconsistentPGs(1); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Fatalf("InconsistentPGs = %v, want not connected", err)
	}
	if _, err := conn.MinCompatibleClient(); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Fatalf("MinCompatibleClient = %v, want not connected", err)
	}
}
