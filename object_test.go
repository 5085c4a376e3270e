package rados

import (
	"context"
	stderrors "errors"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/native/sim"
)

func TestObject_HelloRoundTrip(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("greeting")

	if err := obj.WriteFull([]byte("hello")); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}
	got, err := obj.Read(16, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Read = %q, want %q", got, "hello")
	}

	st, err := obj.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size != 5 {
		t.Fatalf("Stat size = %d", st.Size)
	}
	if time.Since(st.ModTime) > time.Minute {
		t.Fatalf("Stat mtime = %v", st.ModTime)
	}
}

func TestObject_ReadMissingMapsToENOENT(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)

	_, err := io.Object("missing").Read(8, 0)
	if !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Read = %v, want ENOENT", err)
	}
	if !stderrors.Is(err, unix.ENOENT) {
		t.Fatal("errors.Is does not see the errno")
	}
	e, ok := errors.AsErrno(err)
	if !ok {
		t.Fatalf("no errno in %v", err)
	}
	if e.Code != -2 || e.Name != "ENOENT" {
		t.Fatalf("errno = %d %s, want -2 ENOENT", e.Code, e.Name)
	}
	var re *errors.Error
	if !stderrors.As(err, &re) || re.Phase != errors.PhaseObject || re.Op != "rados_read" {
		t.Fatalf("error context = %+v", re)
	}
}

func TestObject_WriteVariants(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")

	steps := []struct {
		name string
		run  func() error
		want string
	}{
		{"write", func() error { return obj.Write([]byte("abc"), 0) }, "abc"},
		{"write past end", func() error { return obj.Write([]byte("z"), 4) }, "abc\x00z"},
		{"append", func() error { return obj.Append([]byte("!!")) }, "abc\x00z!!"},
		{"truncate", func() error { return obj.Truncate(2) }, "ab"},
		{"write same", func() error { return obj.WriteSame([]byte("xy"), 6, 2) }, "abxyxyxy"},
		{"write full", func() error { return obj.WriteFull([]byte("new")) }, "new"},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got, err := obj.Read(64, 0)
		if err != nil {
			t.Fatalf("%s: read: %v", step.name, err)
		}
		if string(got) != step.want {
			t.Fatalf("%s: contents = %q, want %q", step.name, got, step.want)
		}
	}

	if err := obj.WriteSame([]byte("xy"), 5, 0); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("WriteSame uneven = %v, want EINVAL", err)
	}

	if err := obj.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := obj.Stat(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Stat after remove = %v", err)
	}
}

func TestObject_ReadIntoReusesBuffer(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")
	if err := obj.WriteFull([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}

	buf := buffer.New(4)
	for off, want := range map[uint64]string{0: "0123", 4: "4567", 8: "89"} {
		n, err := obj.ReadInto(buf, off)
		if err != nil {
			t.Fatalf("ReadInto(%d): %v", off, err)
		}
		if got := string(buf.Read(n)); got != want {
			t.Fatalf("ReadInto(%d) = %q, want %q", off, got, want)
		}
	}
}

func TestObject_CompareExt(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")
	if err := obj.WriteFull([]byte("hello world")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cmp  string
		off  uint64
		want CompareResult
	}{
		{"match", "world", 6, CompareResult{Match: true}},
		{"first byte", "Hello", 0, CompareResult{Offset: 0}},
		{"later byte", "help", 0, CompareResult{Offset: 3}},
		{"past end", "world!", 6, CompareResult{Offset: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := obj.CompareExt([]byte(tt.cmp), tt.off)
			if err != nil {
				t.Fatalf("CompareExt: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CompareExt = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := io.Object("missing").CompareExt([]byte("x"), 0); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("CompareExt missing = %v, want ENOENT", err)
	}
}

func TestObject_Xattrs(t *testing.T) {
	s, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")

	want := map[string][]byte{"a": []byte("1"), "b": []byte("22"), "c": {}}
	for k, v := range want {
		if err := obj.SetXattr(k, v); err != nil {
			t.Fatalf("SetXattr(%s): %v", k, err)
		}
	}

	v, err := obj.GetXattr("b")
	if err != nil || string(v) != "22" {
		t.Fatalf("GetXattr = %q, %v", v, err)
	}
	if _, err := obj.GetXattr("nope"); !errors.IsErrno(err, unix.ENODATA) {
		t.Fatalf("GetXattr missing = %v, want ENODATA", err)
	}

	got, err := obj.Xattrs()
	if err != nil {
		t.Fatalf("Xattrs: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Xattrs = %v", got)
	}
	for k, v := range want {
		if string(got[k]) != string(v) {
			t.Fatalf("Xattrs[%s] = %q, want %q", k, got[k], v)
		}
	}
	if n := s.Live()["xattrs_iter"]; n != 0 {
		t.Fatalf("%d xattr iterators left open", n)
	}

	if err := obj.RemoveXattr("a"); err != nil {
		t.Fatalf("RemoveXattr: %v", err)
	}
	if err := obj.RemoveXattr("a"); !errors.IsErrno(err, unix.ENODATA) {
		t.Fatalf("RemoveXattr twice = %v, want ENODATA", err)
	}
}

func TestObject_XattrIteratorStopsEarly(t *testing.T) {
	s, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")
	for _, k := range []string{"a", "b", "c"} {
		if err := obj.SetXattr(k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	it, err := obj.XattrIterator()
	if err != nil {
		t.Fatalf("XattrIterator: %v", err)
	}
	for _, err := range it.All() {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		break
	}
	if n := s.Live()["xattrs_iter"]; n != 0 {
		t.Fatal("breaking out of All left the iterator open")
	}
	if _, _, err := it.Next(); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("Next after All = %v, want released", err)
	}
}

func TestObject_Exec(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("greeter")

	res, err := obj.Exec("hello", "say_hello", []byte("ceph"), 64)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(res.Output) != "Hello, ceph!" || res.ReturnValue != len("Hello, ceph!") {
		t.Fatalf("Exec = %+v", res)
	}

	if _, err := obj.Exec("hello", "say_hello", []byte(strings.Repeat("x", 101)), 256); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("Exec long input = %v, want EINVAL", err)
	}
	if _, err := obj.Exec("hello", "say_hello", nil, 4); !errors.IsErrno(err, unix.ERANGE) {
		t.Fatalf("Exec small output = %v, want ERANGE", err)
	}
	if _, err := obj.Exec("nope", "nothing", nil, 4); err == nil {
		t.Fatal("Exec of unknown class succeeded")
	}

	if _, err := obj.Exec("hello", "record_hello", []byte("ceph"), 0); err != nil {
		t.Fatalf("record_hello: %v", err)
	}
	if _, err := obj.Exec("hello", "record_hello", nil, 0); !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("record_hello twice = %v, want EEXIST", err)
	}
	if _, err := obj.Exec("hello", "turn_it_to_11", nil, 0); err != nil {
		t.Fatalf("turn_it_to_11: %v", err)
	}
	data, err := obj.Read(64, 0)
	if err != nil || string(data) != "HELLO, CEPH!" {
		t.Fatalf("stored greeting = %q, %v", data, err)
	}
}

func TestObject_Checksum(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")
	data := []byte("aaaabbbbccccdddd")
	if err := obj.WriteFull(data); err != nil {
		t.Fatal(err)
	}

	sums, err := obj.Checksum(ChecksumXXHash64, 0, 0, 16, 4)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if len(sums) != 4 {
		t.Fatalf("got %d checksums, want 4", len(sums))
	}
	for i, sum := range sums {
		if want := xxhash.Sum64(data[i*4 : i*4+4]); sum != want {
			t.Fatalf("chunk %d: %#x, want %#x", i, sum, want)
		}
	}

	whole, err := obj.Checksum(ChecksumXXHash64, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Checksum whole: %v", err)
	}
	if !slices.Equal(whole, []uint64{xxhash.Sum64(data)}) {
		t.Fatalf("whole object checksum = %#x", whole)
	}

	crc, err := obj.Checksum(ChecksumCRC32C, 0xffffffff, 0, 0, 8)
	if err != nil {
		t.Fatalf("Checksum crc32c: %v", err)
	}
	if len(crc) != 2 || crc[0] == crc[1] || crc[0] > 0xffffffff {
		t.Fatalf("crc32c = %#x", crc)
	}

	if _, err := obj.Checksum(ChecksumType(99), 0, 0, 0, 0); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("unknown type = %v, want invalid input", err)
	}
}

func TestObject_Snapshots(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("obj")
	if err := obj.WriteFull([]byte("v1")); err != nil {
		t.Fatal(err)
	}

	if err := io.CreateSnapshot("snap1"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if err := io.CreateSnapshot("snap1"); !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("CreateSnapshot twice = %v, want EEXIST", err)
	}
	if err := obj.WriteFull([]byte("v2")); err != nil {
		t.Fatal(err)
	}

	snaps, err := io.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Name != "snap1" || snaps[0].Stamp.IsZero() {
		t.Fatalf("Snapshots = %+v", snaps)
	}
	id, err := io.LookupSnapshot("snap1")
	if err != nil || id != snaps[0].ID {
		t.Fatalf("LookupSnapshot = %d, %v", id, err)
	}

	if err := obj.Rollback("snap1"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	got, err := obj.Read(8, 0)
	if err != nil || string(got) != "v1" {
		t.Fatalf("after rollback = %q, %v", got, err)
	}

	if err := io.RemoveSnapshot("snap1"); err != nil {
		t.Fatalf("RemoveSnapshot: %v", err)
	}
	if _, err := io.LookupSnapshot("snap1"); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("LookupSnapshot removed = %v, want ENOENT", err)
	}
}

func TestIOContext_NamespaceIsolation(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("shared-name")
	if err := obj.WriteFull([]byte("default")); err != nil {
		t.Fatal(err)
	}

	if err := io.SetNamespace("tenant"); err != nil {
		t.Fatal(err)
	}
	if _, err := obj.Read(16, 0); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Read in other namespace = %v, want ENOENT", err)
	}
	if err := obj.WriteFull([]byte("tenant")); err != nil {
		t.Fatal(err)
	}

	if err := io.SetNamespace(AllNamespaces); err != nil {
		t.Fatal(err)
	}
	it, err := io.ListObjects()
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	var namespaces []string
	for e, err := range it.All() {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if e.OID != "shared-name" {
			t.Fatalf("unexpected object %+v", e)
		}
		namespaces = append(namespaces, e.Namespace)
	}
	slices.Sort(namespaces)
	if !slices.Equal(namespaces, []string{"", "tenant"}) {
		t.Fatalf("namespaces = %q", namespaces)
	}
}

func TestObject_Locks(t *testing.T) {
	_, _, conn, io := newTestEnv(t, nil)
	obj := io.Object("locked")

	lock, err := obj.LockExclusive("l", LockOptions{Description: "test"})
	if err != nil {
		t.Fatalf("LockExclusive: %v", err)
	}
	if len(lock.Cookie) != 32 {
		t.Fatalf("generated cookie %q", lock.Cookie)
	}
	if _, err := obj.LockExclusive("l", LockOptions{Cookie: "other"}); !errors.IsErrno(err, unix.EBUSY) {
		t.Fatalf("second exclusive lock = %v, want EBUSY", err)
	}

	ls, err := obj.ListLockers("l")
	if err != nil {
		t.Fatalf("ListLockers: %v", err)
	}
	id, _ := conn.InstanceID()
	if !ls.Exclusive || len(ls.Holders) != 1 {
		t.Fatalf("ListLockers = %+v", ls)
	}
	h := ls.Holders[0]
	if h.Cookie != lock.Cookie || h.Client != "client."+strconv.FormatUint(id, 10) || h.Address == "" {
		t.Fatalf("holder = %+v", h)
	}

	if err := lock.Renew(); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := lock.Renew(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Renew after unlock = %v, want ENOENT", err)
	}
	if err := lock.Unlock(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Unlock twice = %v, want ENOENT", err)
	}
}

func TestObject_SharedLocksAndBreak(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil, WithInitialBufferSize(0))
	obj := io.Object("locked")

	var cookies []string
	for range 3 {
		l, err := obj.LockShared("s", LockOptions{Tag: "readers", Duration: time.Minute})
		if err != nil {
			t.Fatalf("LockShared: %v", err)
		}
		cookies = append(cookies, l.Cookie)
	}
	if _, err := obj.LockShared("s", LockOptions{Tag: "writers"}); !errors.IsErrno(err, unix.EBUSY) {
		t.Fatalf("LockShared with other tag = %v, want EBUSY", err)
	}

	ls, err := obj.ListLockers("s")
	if err != nil {
		t.Fatalf("ListLockers: %v", err)
	}
	if ls.Exclusive || ls.Tag != "readers" || len(ls.Holders) != 3 {
		t.Fatalf("ListLockers = %+v", ls)
	}
	var listed []string
	for _, h := range ls.Holders {
		listed = append(listed, h.Cookie)
	}
	slices.Sort(listed)
	slices.Sort(cookies)
	if !slices.Equal(listed, cookies) {
		t.Fatalf("cookies = %v, want %v", listed, cookies)
	}

	victim := ls.Holders[0]
	if err := obj.BreakLock("s", victim.Client, victim.Cookie); err != nil {
		t.Fatalf("BreakLock: %v", err)
	}
	ls, err = obj.ListLockers("s")
	if err != nil || len(ls.Holders) != 2 {
		t.Fatalf("after break: %+v, %v", ls, err)
	}
}

func TestObject_AsyncRoundTrip(t *testing.T) {
	_, _, _, io := newTestEnv(t, []sim.Option{sim.WithLatency(time.Millisecond)})
	obj := io.Object("async")
	ctx := context.Background()

	w, err := obj.WriteFullAsync([]byte("hello"))
	if err != nil {
		t.Fatalf("WriteFullAsync: %v", err)
	}
	defer w.Release()
	if _, err := w.Wait(ctx); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := obj.AppendAsync([]byte(" world"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	if _, err := a.Wait(ctx); err != nil {
		t.Fatalf("append: %v", err)
	}

	r, err := obj.ReadAsync(64, 0)
	if err != nil {
		t.Fatalf("ReadAsync: %v", err)
	}
	defer r.Release()
	data, err := r.Wait(ctx)
	if err != nil || string(data) != "hello world" {
		t.Fatalf("read = %q, %v", data, err)
	}
	again, err := r.Result()
	if err != nil || &again[0] != &data[0] {
		t.Fatal("second Result did not return the cached value")
	}

	st, err := obj.StatAsync()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Release()
	if stat, err := st.Wait(ctx); err != nil || stat.Size != 11 {
		t.Fatalf("stat = %+v, %v", stat, err)
	}

	cmp, err := obj.CompareExtAsync([]byte("hellO"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer cmp.Release()
	if res, err := cmp.Wait(ctx); err != nil || res != (CompareResult{Offset: 4}) {
		t.Fatalf("cmpext = %+v, %v", res, err)
	}

	sx, err := obj.SetXattrAsync("k", []byte("value"))
	if err != nil {
		t.Fatal(err)
	}
	defer sx.Release()
	if _, err := sx.Wait(ctx); err != nil {
		t.Fatalf("setxattr: %v", err)
	}
	gx, err := obj.GetXattrAsync("k", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer gx.Release()
	if _, err := gx.Wait(ctx); !errors.IsErrno(err, unix.ERANGE) {
		t.Fatalf("getxattr into small buffer = %v, want ERANGE", err)
	}

	ex, err := obj.ExecAsync("hello", "say_hello", nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer ex.Release()
	if res, err := ex.Wait(ctx); err != nil || string(res.Output) != "Hello, world!" {
		t.Fatalf("exec = %+v, %v", res, err)
	}

	rm, err := obj.RemoveAsync()
	if err != nil {
		t.Fatal(err)
	}
	defer rm.Release()
	if _, err := rm.Wait(ctx); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := obj.Stat(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Stat after async remove = %v", err)
	}
}

func TestObject_AsyncResultBeforeComplete(t *testing.T) {
	s, _, _, io := newTestEnv(t, nil)
	s.SetLatency(time.Hour)

	c, err := io.Object("slow").WriteFullAsync([]byte("late"))
	if err != nil {
		t.Fatalf("WriteFullAsync: %v", err)
	}
	if _, err := c.Result(); !stderrors.Is(err, errors.ErrIncomplete) {
		t.Fatalf("Result = %v, want incomplete", err)
	}
	if done, err := c.IsComplete(); err != nil || done {
		t.Fatalf("IsComplete = %v, %v", done, err)
	}

	if err := io.Cancel(c.Completion); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := c.Result(); !errors.IsErrno(err, unix.ECANCELED) {
		t.Fatalf("Result after cancel = %v, want ECANCELED", err)
	}
	c.Release()
}

func TestObject_ReleaseCancelsInFlight(t *testing.T) {
	s, _, _, io := newTestEnv(t, nil)
	s.SetLatency(time.Hour)
	obj := io.Object("never")

	c, err := obj.WriteFullAsync([]byte("late"))
	if err != nil {
		t.Fatalf("WriteFullAsync: %v", err)
	}
	s.ResetTrace()
	c.Release()

	want := []string{"aio_cancel", "aio_release"}
	if got := traceNames(s); !slices.Equal(got, want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	if c.Valid() {
		t.Fatal("completion still valid")
	}

	s.SetLatency(0)
	if _, err := obj.Stat(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("cancelled write landed: %v", err)
	}
}

func TestIOContext_Flush(t *testing.T) {
	_, _, _, io := newTestEnv(t, []sim.Option{sim.WithLatency(5 * time.Millisecond)})

	var pending []interface{ Release() }
	for i := range 4 {
		c, err := io.Object("obj").AppendAsync([]byte{byte('a' + i)})
		if err != nil {
			t.Fatal(err)
		}
		pending = append(pending, c)
	}
	if err := io.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	st, err := io.Object("obj").Stat()
	if err != nil || st.Size != 4 {
		t.Fatalf("after flush: %+v, %v", st, err)
	}

	f, err := io.FlushAsync()
	if err != nil {
		t.Fatalf("FlushAsync: %v", err)
	}
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("FlushAsync wait: %v", err)
	}
	f.Release()
	for _, c := range pending {
		c.Release()
	}
}

// badLengthLib reports a code below the errno window for every read.
type badLengthLib struct {
	*sim.Sim
}

const badLength = -errors.MaxErrno - 9

func (badLengthLib) AioGetReturnValue(native.Handle) int { return badLength }

func (badLengthLib) Read(native.Handle, string, []byte, uint64) int { return badLength }

func TestObject_NegativeLengthIsAnError(t *testing.T) {
	s, err := sim.New()
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	defer s.Close()
	r := New(badLengthLib{s})
	defer r.Close()

	conn, err := r.NewConn()
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := conn.CreatePool(testPool); err != nil {
		t.Fatal(err)
	}
	io, err := conn.OpenIOContext(testPool)
	if err != nil {
		t.Fatal(err)
	}
	obj := io.Object("obj")
	if err := obj.WriteFull([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	if data, err := obj.Read(5, 0); !stderrors.Is(err, errors.ErrMalformedOutput) {
		t.Fatalf("Read = %q, %v, want ErrMalformedOutput", data, err)
	}
	c, err := obj.ReadAsync(5, 0)
	if err != nil {
		t.Fatalf("ReadAsync: %v", err)
	}
	if data, err := c.Wait(context.Background()); !stderrors.Is(err, errors.ErrMalformedOutput) {
		t.Fatalf("ReadAsync result = %q, %v, want ErrMalformedOutput", data, err)
	}
	x, err := obj.GetXattrAsync("missing", 16)
	if err != nil {
		t.Fatalf("GetXattrAsync: %v", err)
	}
	if data, err := x.Wait(context.Background()); !stderrors.Is(err, errors.ErrMalformedOutput) {
		t.Fatalf("GetXattrAsync result = %q, %v, want ErrMalformedOutput", data, err)
	}
}

func TestObject_SelfManagedSnapshots(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("versioned")
	if err := obj.WriteFull([]byte("v1")); err != nil {
		t.Fatal(err)
	}

	snap, err := io.CreateSelfManagedSnapshot()
	if err != nil {
		t.Fatalf("CreateSelfManagedSnapshot: %v", err)
	}
	if err := io.SetSelfManagedWriteContext(snap.ID, []uint64{snap.ID}); err != nil {
		t.Fatalf("SetSelfManagedWriteContext: %v", err)
	}
	if err := obj.WriteFull([]byte("v2")); err != nil {
		t.Fatal(err)
	}
	late := io.Object("late")
	if err := late.WriteFull([]byte("new")); err != nil {
		t.Fatal(err)
	}

	if err := obj.RollbackSelfManaged(snap.ID); err != nil {
		t.Fatalf("RollbackSelfManaged: %v", err)
	}
	if data, err := obj.Read(16, 0); err != nil || string(data) != "v1" {
		t.Fatalf("after rollback = %q, %v", data, err)
	}
	if err := late.RollbackSelfManaged(snap.ID); err != nil {
		t.Fatalf("RollbackSelfManaged late: %v", err)
	}
	if _, err := late.Read(16, 0); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("object created after snapshot = %v, want ENOENT", err)
	}

	if err := snap.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := obj.RollbackSelfManaged(snap.ID); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("rollback to removed snapshot = %v, want ENOENT", err)
	}
	if err := snap.Remove(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("second Remove = %v, want ENOENT", err)
	}
}

func TestIOContext_SelfManagedWriteContextOrder(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)

	tests := []struct {
		name  string
		seq   uint64
		snaps []uint64
		ok    bool
	}{
		{"empty", 0, nil, true},
		{"descending", 5, []uint64{5, 3, 1}, true},
		{"ascending", 5, []uint64{1, 3}, false},
		{"newer than seq", 2, []uint64{3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := io.SetSelfManagedWriteContext(tt.seq, tt.snaps)
			if tt.ok && err != nil {
				t.Fatalf("SetSelfManagedWriteContext: %v", err)
			}
			if !tt.ok && !errors.IsErrno(err, unix.EINVAL) {
				t.Fatalf("SetSelfManagedWriteContext = %v, want EINVAL", err)
			}
		})
	}
}

func TestIOContext_SelfManagedSnapshotAsync(t *testing.T) {
	_, _, _, io := newTestEnv(t, []sim.Option{sim.WithLatency(5 * time.Millisecond)})

	c, err := io.CreateSelfManagedSnapshotAsync()
	if err != nil {
		t.Fatalf("CreateSelfManagedSnapshotAsync: %v", err)
	}
	defer c.Release()
	snap, err := c.Wait(context.Background())
	if err != nil || snap.ID == 0 {
		t.Fatalf("Wait = %+v, %v", snap, err)
	}

	rm, err := snap.RemoveAsync()
	if err != nil {
		t.Fatalf("RemoveAsync: %v", err)
	}
	defer rm.Release()
	if _, err := rm.Wait(context.Background()); err != nil {
		t.Fatalf("remove Wait: %v", err)
	}
	if err := io.SelfManagedSnapshot(snap.ID).Remove(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Remove after async remove = %v, want ENOENT", err)
	}
}

func TestObject_WriteSameAsync(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	obj := io.Object("pattern")

	c, err := obj.WriteSameAsync([]byte("ab"), 6, 2)
	if err != nil {
		t.Fatalf("WriteSameAsync: %v", err)
	}
	defer c.Release()
	if _, err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if data, err := obj.Read(16, 0); err != nil || string(data) != "\x00\x00ababab" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if _, err := obj.WriteSameAsync([]byte("ab"), 5, 0); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("WriteSameAsync uneven length = %v, want EINVAL", err)
	}
}

func TestIOContext_Alignment(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	if req, err := io.RequiresAlignment(); err != nil || req {
		t.Fatalf("RequiresAlignment = %v, %v", req, err)
	}
	if n, err := io.RequiredAlignment(); err != nil || n != 0 {
		t.Fatalf("RequiredAlignment = %d, %v", n, err)
	}
}
