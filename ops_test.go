package rados

import (
	"context"
	stderrors "errors"
	"slices"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native/sim"
)

func TestWriteOp_AppliesAllTasks(t *testing.T) {
	s, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")

	op, err := r.NewWriteOp()
	if err != nil {
		t.Fatalf("NewWriteOp: %v", err)
	}
	defer op.Close()

	stamp := time.Unix(1700000000, 0)
	op.SetModTime(stamp)
	err = op.Add(
		&CreateTask{Mode: CreateExclusive},
		&WriteFullTask{Data: []byte("hello")},
		&AppendTask{Data: []byte(" world")},
		&SetXattrTask{Name: "owner", Value: []byte("me")},
		&OmapSetTask{Values: map[string][]byte{"b": []byte("2"), "a": []byte("1"), "c": []byte("3")}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(op.Tasks()) != 5 {
		t.Fatalf("Tasks = %d", len(op.Tasks()))
	}
	if err := op.Operate(obj, OperationNoFlag); err != nil {
		t.Fatalf("Operate: %v", err)
	}

	data, err := obj.Read(64, 0)
	if err != nil || string(data) != "hello world" {
		t.Fatalf("contents = %q, %v", data, err)
	}
	st, err := obj.Stat()
	if err != nil || !st.ModTime.Equal(stamp) {
		t.Fatalf("mtime = %v, %v, want %v", st.ModTime, err, stamp)
	}
	if v, err := obj.GetXattr("owner"); err != nil || string(v) != "me" {
		t.Fatalf("xattr = %q, %v", v, err)
	}

	if err := op.Operate(obj, OperationNoFlag); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("second Operate = %v, want invalid input", err)
	}
	if err := op.Add(&RemoveTask{}); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("Add after Operate = %v, want invalid input", err)
	}

	s.ResetTrace()
	op.Close()
	op.Close()
	if got := traceNames(s); !slices.Equal(got, []string{"release_write_op"}) {
		t.Fatalf("trace = %v", got)
	}
}

func TestWriteOp_IsAtomic(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	if err := obj.WriteFull([]byte("original")); err != nil {
		t.Fatal(err)
	}

	op, err := r.NewWriteOp()
	if err != nil {
		t.Fatal(err)
	}
	defer op.Close()

	write := &WriteFullTask{Data: []byte("replaced")}
	create := &CreateTask{Mode: CreateExclusive}
	if err := op.Add(write, create); err != nil {
		t.Fatal(err)
	}
	err = op.Operate(obj, OperationNoFlag)
	if !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("Operate = %v, want EEXIST", err)
	}
	if !errors.IsErrno(write.Err(), unix.EEXIST) {
		t.Fatalf("task Err = %v, want the operation failure", write.Err())
	}

	data, err := obj.Read(64, 0)
	if err != nil || string(data) != "original" {
		t.Fatalf("contents after failed op = %q, %v", data, err)
	}
}

func TestWriteOp_CompareMismatch(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	if err := obj.WriteFull([]byte("version-1")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cmp     string
		wantErr bool
		offset  uint64
	}{
		{"match", "version-1", false, 0},
		{"mismatch", "version-2", true, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := r.NewWriteOp()
			if err != nil {
				t.Fatal(err)
			}
			defer op.Close()

			cmp := &CompareExtTask{Data: []byte(tt.cmp)}
			if err := op.Add(cmp, &WriteFullTask{Data: []byte("version-2")}); err != nil {
				t.Fatal(err)
			}
			err = op.Operate(obj, OperationNoFlag)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Operate: %v", err)
				}
				res, err := cmp.Result()
				if err != nil || !res.Match {
					t.Fatalf("Result = %+v, %v", res, err)
				}
				return
			}

			if !errors.IsErrno(err, unix.EILSEQ) {
				t.Fatalf("Operate = %v, want EILSEQ", err)
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("not a structured error: %v", err)
			}
			if e.Value != tt.offset {
				t.Fatalf("error value = %v, want offset %d", e.Value, tt.offset)
			}
			res, err := cmp.Result()
			if err != nil {
				t.Fatalf("Result: %v", err)
			}
			if res.Match || res.Offset != tt.offset {
				t.Fatalf("Result = %+v, want offset %d", res, tt.offset)
			}
		})
	}
}

func TestWriteOp_TaskOwnership(t *testing.T) {
	_, r, _, _ := newTestEnv(t, nil)

	first, err := r.NewWriteOp()
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := r.NewWriteOp()
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	task := &RemoveTask{}
	if err := first.Add(task); err != nil {
		t.Fatal(err)
	}
	if err := first.Add(task); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("adding twice = %v, want invalid input", err)
	}
	if err := second.Add(task); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("adding to another op = %v, want invalid input", err)
	}

	if err := task.Err(); !stderrors.Is(err, errors.ErrIncomplete) {
		t.Fatalf("Err before Operate = %v, want incomplete", err)
	}
	unbound := &CompareExtTask{}
	if _, err := unbound.Result(); !stderrors.Is(err, errors.ErrIncomplete) {
		t.Fatalf("Result of unbound task = %v, want incomplete", err)
	}
}

func TestWriteOp_Async(t *testing.T) {
	_, r, _, io := newTestEnv(t, []sim.Option{sim.WithLatency(time.Millisecond)})
	obj := io.Object("doc")

	op, err := r.NewWriteOp()
	if err != nil {
		t.Fatal(err)
	}
	defer op.Close()

	cmp := &CompareExtTask{Data: []byte("x")}
	if err := op.Add(&WriteFullTask{Data: []byte("xyz")}, cmp, &TruncateTask{Size: 2}); err != nil {
		t.Fatal(err)
	}
	c, err := op.OperateAsync(obj, OperationNoFlag)
	if err != nil {
		t.Fatalf("OperateAsync: %v", err)
	}
	defer c.Release()

	tasks, err := c.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d", len(tasks))
	}
	if res, err := cmp.Result(); err != nil || !res.Match {
		t.Fatalf("cmp = %+v, %v", res, err)
	}
	data, err := obj.Read(8, 0)
	if err != nil || string(data) != "xy" {
		t.Fatalf("contents = %q, %v", data, err)
	}
}

func TestWriteOp_ZeroRemoveAndXattrs(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	if err := obj.WriteFull([]byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	if err := obj.SetXattr("gone", []byte("x")); err != nil {
		t.Fatal(err)
	}

	op, _ := r.NewWriteOp()
	defer op.Close()
	if err := op.Add(
		&AssertExistsTask{},
		&ZeroTask{Offset: 1, Length: 2},
		&WriteTask{Data: []byte("Z"), Offset: 5},
		&RemoveXattrTask{Name: "gone"},
	); err != nil {
		t.Fatal(err)
	}
	if err := op.Operate(obj, OperationNoFlag); err != nil {
		t.Fatalf("Operate: %v", err)
	}
	data, _ := obj.Read(8, 0)
	if string(data) != "a\x00\x00deZ" {
		t.Fatalf("contents = %q", data)
	}
	if _, err := obj.GetXattr("gone"); !errors.IsErrno(err, unix.ENODATA) {
		t.Fatalf("xattr still present: %v", err)
	}

	rm, _ := r.NewWriteOp()
	defer rm.Close()
	if err := rm.Add(&RemoveTask{}); err != nil {
		t.Fatal(err)
	}
	if err := rm.Operate(obj, OperationNoFlag); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := obj.Stat(); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("Stat after remove = %v", err)
	}

	assert, _ := r.NewWriteOp()
	defer assert.Close()
	if err := assert.Add(&AssertExistsTask{}, &WriteFullTask{Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := assert.Operate(obj, OperationNoFlag); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("assert exists on missing object = %v, want ENOENT", err)
	}
}

func TestReadOp_Tasks(t *testing.T) {
	s, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	data := []byte("0123456789abcdef")
	if err := obj.WriteFull(data); err != nil {
		t.Fatal(err)
	}
	if err := obj.SetXattr("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	version, err := io.LastVersion()
	if err != nil {
		t.Fatal(err)
	}

	op, err := r.NewReadOp()
	if err != nil {
		t.Fatalf("NewReadOp: %v", err)
	}
	defer op.Close()

	stat := &StatTask{}
	read := &ReadTask{Offset: 10, Length: 16}
	sum := &ChecksumTask{Type: ChecksumXXHash64, Length: 16, ChunkSize: 8}
	xattrs := &GetXattrsTask{}
	if err := op.Add(&AssertExistsTask{}, &AssertVersionTask{Version: version}, stat, read, sum, xattrs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := read.Result(); !stderrors.Is(err, errors.ErrIncomplete) {
		t.Fatalf("Result before Operate = %v, want incomplete", err)
	}

	if err := op.Operate(obj, OperationNoFlag); err != nil {
		t.Fatalf("Operate: %v", err)
	}

	if st, err := stat.Result(); err != nil || st.Size != 16 {
		t.Fatalf("stat = %+v, %v", st, err)
	}
	if got, err := read.Result(); err != nil || string(got) != "abcdef" {
		t.Fatalf("read = %q, %v", got, err)
	}
	sums, err := sum.Result()
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if !slices.Equal(sums, []uint64{xxhash.Sum64(data[:8]), xxhash.Sum64(data[8:])}) {
		t.Fatalf("checksums = %#x", sums)
	}
	attrs, err := xattrs.Result()
	if err != nil || len(attrs) != 1 || string(attrs["k"]) != "v" {
		t.Fatalf("xattrs = %v, %v", attrs, err)
	}
	if n := s.Live()["xattrs_iter"]; n != 0 {
		t.Fatal("xattr iterator not closed after its result was read")
	}
}

func TestReadOp_StopsAtFirstFailure(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	if err := obj.WriteFull([]byte("abc")); err != nil {
		t.Fatal(err)
	}

	op, _ := r.NewReadOp()
	defer op.Close()

	cmp := &CompareExtTask{Data: []byte("abd")}
	read := &ReadTask{Length: 3}
	if err := op.Add(cmp, read); err != nil {
		t.Fatal(err)
	}
	err := op.Operate(obj, OperationNoFlag)
	if !errors.IsErrno(err, unix.EILSEQ) {
		t.Fatalf("Operate = %v, want EILSEQ", err)
	}

	res, err := cmp.Result()
	if err != nil || res.Match || res.Offset != 2 {
		t.Fatalf("cmp = %+v, %v", res, err)
	}
	if _, err := read.Result(); !errors.IsErrno(err, unix.EILSEQ) {
		t.Fatalf("skipped task = %v, want the operation failure", err)
	}
}

func TestReadOp_AssertVersion(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	if err := obj.WriteFull([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	version, _ := io.LastVersion()

	tests := []struct {
		name    string
		version uint64
		want    unix.Errno
	}{
		{"newer expected", version + 1, unix.ERANGE},
		{"older expected", version - 1, unix.EOVERFLOW},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, _ := r.NewReadOp()
			defer op.Close()
			if err := op.Add(&AssertVersionTask{Version: tt.version}); err != nil {
				t.Fatal(err)
			}
			if err := op.Operate(obj, OperationNoFlag); !errors.IsErrno(err, tt.want) {
				t.Fatalf("Operate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadOp_Omap(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("index")

	w, _ := r.NewWriteOp()
	defer w.Close()
	values := map[string][]byte{}
	for _, k := range []string{"a1", "a2", "a3", "b1", "b2"} {
		values[k] = []byte("v-" + k)
	}
	if err := w.Add(&OmapSetTask{Values: values}); err != nil {
		t.Fatal(err)
	}
	if err := w.Operate(obj, OperationNoFlag); err != nil {
		t.Fatalf("omap set: %v", err)
	}

	tests := []struct {
		name     string
		task     interface{ Result() (OmapPage, error) }
		wantKeys []string
		values   bool
		more     bool
	}{
		{"all values", &OmapGetValuesTask{}, []string{"a1", "a2", "a3", "b1", "b2"}, true, false},
		{"prefix", &OmapGetValuesTask{Prefix: "b"}, []string{"b1", "b2"}, true, false},
		{"paged", &OmapGetValuesTask{StartAfter: "a1", Max: 2}, []string{"a2", "a3"}, true, true},
		{"keys", &OmapGetKeysTask{StartAfter: "a3"}, []string{"b1", "b2"}, false, false},
		{"keys paged", &OmapGetKeysTask{Max: 1}, []string{"a1"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, _ := r.NewReadOp()
			defer op.Close()
			if err := op.Add(tt.task.(ReadOpTask)); err != nil {
				t.Fatal(err)
			}
			if err := op.Operate(obj, OperationNoFlag); err != nil {
				t.Fatalf("Operate: %v", err)
			}
			page, err := tt.task.Result()
			if err != nil {
				t.Fatalf("Result: %v", err)
			}
			if !slices.Equal(page.Keys(), tt.wantKeys) || page.More != tt.more {
				t.Fatalf("page = %v more=%v, want %v more=%v", page.Keys(), page.More, tt.wantKeys, tt.more)
			}
			for _, p := range page.Pairs {
				if tt.values && string(p.Value) != "v-"+p.Key {
					t.Fatalf("value of %s = %q", p.Key, p.Value)
				}
				if !tt.values && p.Value != nil {
					t.Fatalf("key listing returned value for %s", p.Key)
				}
			}
		})
	}

	clearOp, _ := r.NewWriteOp()
	defer clearOp.Close()
	if err := clearOp.Add(&OmapRemoveKeysTask{Keys: []string{"a1"}}, &OmapClearTask{}); err != nil {
		t.Fatal(err)
	}
	if err := clearOp.Operate(obj, OperationNoFlag); err != nil {
		t.Fatalf("omap clear: %v", err)
	}
	op, _ := r.NewReadOp()
	defer op.Close()
	keys := &OmapGetKeysTask{}
	if err := op.Add(keys); err != nil {
		t.Fatal(err)
	}
	if err := op.Operate(obj, OperationNoFlag); err != nil {
		t.Fatal(err)
	}
	if page, err := keys.Result(); err != nil || len(page.Pairs) != 0 {
		t.Fatalf("after clear: %v, %v", page.Keys(), err)
	}
}

func TestReadOp_CloseReleasesUnreadIterators(t *testing.T) {
	s, r, _, io := newTestEnv(t, nil)
	obj := io.Object("doc")
	if err := obj.SetXattr("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	op, _ := r.NewReadOp()
	xattrs := &GetXattrsTask{}
	omap := &OmapGetValuesTask{}
	if err := op.Add(xattrs, omap); err != nil {
		t.Fatal(err)
	}
	if err := op.Operate(obj, OperationNoFlag); err != nil {
		t.Fatal(err)
	}

	s.ResetTrace()
	op.Close()
	want := []string{"omap_get_end", "getxattrs_end", "release_read_op"}
	if got := traceNames(s); !slices.Equal(got, want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	if _, err := xattrs.Result(); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("Result after Close = %v, want released", err)
	}
}

func TestReadOp_Async(t *testing.T) {
	_, r, _, io := newTestEnv(t, []sim.Option{sim.WithLatency(time.Millisecond)})
	obj := io.Object("doc")
	if err := obj.WriteFull([]byte("payload")); err != nil {
		t.Fatal(err)
	}

	op, _ := r.NewReadOp()
	defer op.Close()
	read := &ReadTask{Length: 32}
	if err := op.Add(read); err != nil {
		t.Fatal(err)
	}
	c, err := op.OperateAsync(obj, OperationNoFlag)
	if err != nil {
		t.Fatalf("OperateAsync: %v", err)
	}
	defer c.Release()
	if _, err := op.OperateAsync(obj, OperationNoFlag); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("second OperateAsync = %v, want invalid input", err)
	}

	if _, err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	got, err := read.Result()
	if err != nil || string(got) != "payload" {
		t.Fatalf("read = %q, %v", got, err)
	}
}

func runWrite(t *testing.T, r *Rados, obj *Object, tasks ...WriteOpTask) error {
	t.Helper()
	op, err := r.NewWriteOp()
	if err != nil {
		t.Fatalf("NewWriteOp: %v", err)
	}
	t.Cleanup(op.Close)
	if err := op.Add(tasks...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return op.Operate(obj, OperationNoFlag)
}

func runRead(t *testing.T, r *Rados, obj *Object, tasks ...ReadOpTask) error {
	t.Helper()
	op, err := r.NewReadOp()
	if err != nil {
		t.Fatalf("NewReadOp: %v", err)
	}
	t.Cleanup(op.Close)
	if err := op.Add(tasks...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return op.Operate(obj, OperationNoFlag)
}

func TestWriteOp_CompareXattrGuards(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("guarded")
	if err := obj.SetXattr("gen", []byte("5")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		op    CompareOp
		value string
		ok    bool
	}{
		{"equal", CompareEQ, "5", true},
		{"not equal", CompareNE, "5", false},
		{"value greater", CompareGT, "6", true},
		{"value less", CompareLT, "6", false},
		{"greater or equal", CompareGTE, "5", true},
		{"less or equal", CompareLTE, "4", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWrite(t, r, obj,
				&CompareXattrTask{Name: "gen", Op: tt.op, Value: []byte(tt.value)},
				&WriteFullTask{Data: []byte(tt.name)},
			)
			if tt.ok && err != nil {
				t.Fatalf("Operate: %v", err)
			}
			if !tt.ok && !errors.IsErrno(err, unix.ECANCELED) {
				t.Fatalf("Operate = %v, want ECANCELED", err)
			}
		})
	}

	if err := runWrite(t, r, io.Object("absent"), &CompareXattrTask{Name: "gen", Op: CompareEQ}); !errors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("compare on missing object = %v, want ENOENT", err)
	}
	if err := runRead(t, r, obj, &CompareXattrTask{Name: "missing", Op: CompareEQ}); err != nil {
		t.Fatalf("missing xattr compares as empty: %v", err)
	}
}

func TestOmapCompareTask(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("counters")
	if err := runWrite(t, r, obj, &OmapSetTask{Values: map[string][]byte{"n": []byte("b")}}); err != nil {
		t.Fatal(err)
	}

	held := &OmapCompareTask{Key: "n", Op: CompareGT, Value: []byte("a")}
	if err := runWrite(t, r, obj, held, &OmapSetTask{Values: map[string][]byte{"n": []byte("c")}}); err != nil {
		t.Fatalf("Operate: %v", err)
	}
	if ok, err := held.Result(); err != nil || !ok {
		t.Fatalf("Result = %v, %v", ok, err)
	}

	failed := &OmapCompareTask{Key: "n", Op: CompareEQ, Value: []byte("b")}
	if err := runWrite(t, r, obj, failed, &OmapClearTask{}); !errors.IsErrno(err, unix.ECANCELED) {
		t.Fatalf("Operate = %v, want ECANCELED", err)
	}
	if ok, err := failed.Result(); err != nil || ok {
		t.Fatalf("Result = %v, %v, want false", ok, err)
	}

	read := &OmapCompareTask{Key: "n", Op: CompareEQ, Value: []byte("c")}
	if err := runRead(t, r, obj, read); err != nil {
		t.Fatalf("read Operate: %v", err)
	}
	if ok, err := read.Result(); err != nil || !ok {
		t.Fatalf("read Result = %v, %v", ok, err)
	}

	unsupported := &OmapCompareTask{Key: "n", Op: CompareNE, Value: []byte("c")}
	if err := runRead(t, r, obj, unsupported); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("CompareNE = %v, want EINVAL", err)
	}
	if _, err := unsupported.Result(); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("CompareNE Result = %v, want EINVAL", err)
	}
}

func TestWriteOp_RangeRemovalAndWriteSame(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("ranged")

	values := map[string][]byte{}
	for _, k := range []string{"a", "b", "c", "d"} {
		values[k] = []byte(k)
	}
	err := runWrite(t, r, obj,
		&SetAllocHintTask{ObjectSize: 4 << 20, WriteSize: 4096, Flags: AllocHintSequentialWrite | AllocHintCompressible},
		&WriteSameTask{Data: []byte("xy"), Length: 6},
		&OmapSetTask{Values: values},
	)
	if err != nil {
		t.Fatalf("Operate: %v", err)
	}
	if err := runWrite(t, r, obj, &OmapRemoveRangeTask{Start: "b", End: "d"}); err != nil {
		t.Fatalf("remove range: %v", err)
	}

	keys := &OmapGetKeysTask{}
	read := &ReadTask{Length: 16}
	if err := runRead(t, r, obj, keys, read); err != nil {
		t.Fatal(err)
	}
	if page, err := keys.Result(); err != nil || !slices.Equal(page.Keys(), []string{"a", "d"}) {
		t.Fatalf("keys = %v, %v", page.Keys(), err)
	}
	if data, err := read.Result(); err != nil || string(data) != "xyxyxy" {
		t.Fatalf("data = %q, %v", data, err)
	}

	if err := runWrite(t, r, obj, &WriteSameTask{Data: []byte("xy"), Length: 3}); !errors.IsErrno(err, unix.EINVAL) {
		t.Fatalf("uneven WriteSameTask = %v, want EINVAL", err)
	}
	hinted := io.Object("hinted")
	if err := runWrite(t, r, hinted, &SetAllocHintTask{ObjectSize: 1 << 20}); err != nil {
		t.Fatalf("alloc hint: %v", err)
	}
	if _, err := hinted.Stat(); err != nil {
		t.Fatalf("alloc hint did not create the object: %v", err)
	}
}

func TestOmapGetValuesByKeysTask(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("lookup")
	if err := runWrite(t, r, obj, &OmapSetTask{Values: map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}}); err != nil {
		t.Fatal(err)
	}

	task := &OmapGetValuesByKeysTask{Keys: []string{"c", "a", "missing", "a"}}
	if err := runRead(t, r, obj, task); err != nil {
		t.Fatalf("Operate: %v", err)
	}
	page, err := task.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !slices.Equal(page.Keys(), []string{"a", "c"}) || string(page.Pairs[1].Value) != "3" {
		t.Fatalf("page = %+v", page)
	}
}

func TestOperation_Exec(t *testing.T) {
	_, r, _, io := newTestEnv(t, nil)
	obj := io.Object("greeting")

	write := &ExecTask{Class: "hello", Method: "record_hello", Input: []byte("ops")}
	if err := runWrite(t, r, obj, write); err != nil {
		t.Fatalf("write exec: %v", err)
	}
	if rc, err := write.Result(); err != nil || rc != 0 {
		t.Fatalf("write Result = %d, %v", rc, err)
	}

	replay := &ReadExecTask{Class: "hello", Method: "replay", MaxOutput: 64}
	if err := runRead(t, r, obj, replay); err != nil {
		t.Fatalf("read exec: %v", err)
	}
	if res, err := replay.Result(); err != nil || string(res.Output) != "Hello, ops!" {
		t.Fatalf("read Result = %+v, %v", res, err)
	}

	short := &ReadExecTask{Class: "hello", Method: "replay", MaxOutput: 4}
	if err := runRead(t, r, obj, short); !errors.IsErrno(err, unix.ERANGE) {
		t.Fatalf("short output = %v, want ERANGE", err)
	}
	if _, err := short.Result(); !errors.IsErrno(err, unix.ERANGE) {
		t.Fatalf("short Result = %v, want ERANGE", err)
	}

	again := &ExecTask{Class: "hello", Method: "record_hello", Input: []byte("ops")}
	if err := runWrite(t, r, obj, again); !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("second record = %v, want EEXIST", err)
	}
	if _, err := again.Result(); !errors.IsErrno(err, unix.EEXIST) {
		t.Fatalf("second record Result = %v, want EEXIST", err)
	}
}
