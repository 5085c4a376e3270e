package sim

import (
	"bytes"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

// writeTxn is the working copy of the object a write operation runs on.
type writeTxn struct {
	obj     *object
	exists  bool
	removed bool
	dirty   bool
	wrote   int
}

func (w *writeTxn) ensure() *object {
	if w.obj == nil || w.removed {
		w.obj = newObject()
		w.removed = false
	}
	w.exists = true
	w.dirty = true
	return w.obj
}

type writeStep func(w *writeTxn) int

type writeOp struct {
	steps []writeStep
}

type readStep func(obj *object) int

type readOp struct {
	steps []readStep
}

func (s *Sim) writeOp(h native.Handle) *writeOp {
	return s.handles.get(hWriteOp, h).(*writeOp)
}

func (s *Sim) readOp(h native.Handle) *readOp {
	return s.handles.get(hReadOp, h).(*readOp)
}

func (op *writeOp) add(step writeStep) {
	op.steps = append(op.steps, step)
}

func (op *readOp) add(step readStep) {
	op.steps = append(op.steps, step)
}

func (s *Sim) CreateWriteOp() native.Handle {
	return s.handles.create(hWriteOp, &writeOp{})
}

func (s *Sim) ReleaseWriteOp(op native.Handle) {
	s.record("release_write_op", op)
	s.handles.free(hWriteOp, op)
}

func (s *Sim) WriteOpAssertExists(op native.Handle) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		return 0
	})
}

// assertVersion fails with -ERANGE when the object is older than ver and
// with -EOVERFLOW when it is newer.
func assertVersion(obj *object, ver uint64) int {
	switch {
	case obj.version < ver:
		return errno(unix.ERANGE)
	case obj.version > ver:
		return errno(unix.EOVERFLOW)
	}
	return 0
}

func (s *Sim) WriteOpAssertVersion(op native.Handle, ver uint64) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		return assertVersion(w.obj, ver)
	})
}

func (s *Sim) WriteOpCmpExt(op native.Handle, cmp []byte, off uint64, prval *int32) {
	s.writeOp(op).add(func(w *writeTxn) int {
		rc := errno(unix.ENOENT)
		if w.exists {
			rc = compare(w.obj.data, cmp, off)
		}
		if prval != nil {
			*prval = int32(rc)
		}
		return rc
	})
}

func (s *Sim) WriteOpCreate(op native.Handle, exclusive int, _ string) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if w.exists && exclusive == native.CreateExclusive {
			return errno(unix.EEXIST)
		}
		if !w.exists {
			w.ensure()
		}
		return 0
	})
}

func (s *Sim) WriteOpWrite(op native.Handle, buf []byte, off uint64) {
	s.writeOp(op).add(func(w *writeTxn) int {
		obj := w.ensure()
		obj.data = writeAt(obj.data, buf, off)
		w.wrote += len(buf)
		return 0
	})
}

func (s *Sim) WriteOpWriteFull(op native.Handle, buf []byte) {
	s.writeOp(op).add(func(w *writeTxn) int {
		obj := w.ensure()
		obj.data = append([]byte(nil), buf...)
		w.wrote += len(buf)
		return 0
	})
}

func (s *Sim) WriteOpAppend(op native.Handle, buf []byte) {
	s.writeOp(op).add(func(w *writeTxn) int {
		obj := w.ensure()
		obj.data = append(obj.data, buf...)
		w.wrote += len(buf)
		return 0
	})
}

func (s *Sim) WriteOpRemove(op native.Handle) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		w.exists = false
		w.removed = true
		w.dirty = true
		return 0
	})
}

func (s *Sim) WriteOpTruncate(op native.Handle, off uint64) {
	s.writeOp(op).add(func(w *writeTxn) int {
		obj := w.ensure()
		if off <= uint64(len(obj.data)) {
			obj.data = obj.data[:off]
		} else {
			obj.data = append(obj.data, make([]byte, off-uint64(len(obj.data)))...)
		}
		return 0
	})
}

// WriteOpZero zeroes a range. It never extends the object.
func (s *Sim) WriteOpZero(op native.Handle, off, length uint64) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		obj := w.ensure()
		for i := off; i < off+length && i < uint64(len(obj.data)); i++ {
			obj.data[i] = 0
		}
		return 0
	})
}

func (s *Sim) WriteOpSetXattr(op native.Handle, name string, value []byte) {
	s.writeOp(op).add(func(w *writeTxn) int {
		w.ensure().xattrs[name] = append([]byte(nil), value...)
		w.wrote += len(value)
		return 0
	})
}

func (s *Sim) WriteOpRmXattr(op native.Handle, name string) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		if _, ok := w.obj.xattrs[name]; !ok {
			return errno(unix.ENODATA)
		}
		delete(w.ensure().xattrs, name)
		return 0
	})
}

func (s *Sim) WriteOpOmapSet(op native.Handle, keys []string, values [][]byte) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if len(keys) != len(values) {
			return errno(unix.EINVAL)
		}
		obj := w.ensure()
		for i, k := range keys {
			obj.omap[k] = append([]byte(nil), values[i]...)
			w.wrote += len(values[i])
		}
		return 0
	})
}

func (s *Sim) WriteOpOmapRmKeys(op native.Handle, keys []string) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		obj := w.ensure()
		for _, k := range keys {
			delete(obj.omap, k)
		}
		return 0
	})
}

func (s *Sim) WriteOpOmapClear(op native.Handle) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		clear(w.ensure().omap)
		return 0
	})
}

// WriteOpOmapRmRange removes the keys in [begin, end).
func (s *Sim) WriteOpOmapRmRange(op native.Handle, begin, end string) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			return errno(unix.ENOENT)
		}
		obj := w.ensure()
		for k := range obj.omap {
			if k >= begin && k < end {
				delete(obj.omap, k)
			}
		}
		return 0
	})
}

// cmpXattr compares value with the stored attribute the way the OSD does:
// value is the left operand and a missing attribute reads as empty. A false
// comparison is -ECANCELED.
func cmpXattr(obj *object, name string, cmp native.CompareOp, value []byte) int {
	if obj == nil {
		return errno(unix.ENOENT)
	}
	c := bytes.Compare(value, obj.xattrs[name])
	var ok bool
	switch cmp {
	case native.CompareEQ:
		ok = c == 0
	case native.CompareNE:
		ok = c != 0
	case native.CompareGT:
		ok = c > 0
	case native.CompareGTE:
		ok = c >= 0
	case native.CompareLT:
		ok = c < 0
	case native.CompareLTE:
		ok = c <= 0
	default:
		return errno(unix.EINVAL)
	}
	if !ok {
		return errno(unix.ECANCELED)
	}
	return 0
}

// cmpOmap compares the stored value with value, so the stored value is the
// left operand here. A missing key reads as empty. Only EQ, GT and LT are
// supported.
func cmpOmap(obj *object, key string, cmp native.CompareOp, value []byte) int {
	if obj == nil {
		return errno(unix.ENOENT)
	}
	c := bytes.Compare(obj.omap[key], value)
	var ok bool
	switch cmp {
	case native.CompareEQ:
		ok = c == 0
	case native.CompareGT:
		ok = c > 0
	case native.CompareLT:
		ok = c < 0
	default:
		return errno(unix.EINVAL)
	}
	if !ok {
		return errno(unix.ECANCELED)
	}
	return 0
}

func (w *writeTxn) current() *object {
	if !w.exists {
		return nil
	}
	return w.obj
}

func (s *Sim) WriteOpCmpXattr(op native.Handle, name string, cmp native.CompareOp, value []byte) {
	value = bytes.Clone(value)
	s.writeOp(op).add(func(w *writeTxn) int {
		return cmpXattr(w.current(), name, cmp, value)
	})
}

func (s *Sim) WriteOpOmapCmp(op native.Handle, key string, cmp native.CompareOp, value []byte, prval *int32) {
	value = bytes.Clone(value)
	s.writeOp(op).add(func(w *writeTxn) int {
		return setPrval(prval, cmpOmap(w.current(), key, cmp, value))
	})
}

func (s *Sim) WriteOpWriteSame(op native.Handle, buf []byte, writeLen int, off uint64) {
	data, rc := repeat(buf, writeLen)
	s.writeOp(op).add(func(w *writeTxn) int {
		if rc != 0 {
			return rc
		}
		obj := w.ensure()
		obj.data = writeAt(obj.data, data, off)
		w.wrote += len(data)
		return 0
	})
}

// WriteOpExec runs a class method on the working copy. Its output is
// dropped.
func (s *Sim) WriteOpExec(op native.Handle, class, method string, in []byte, prval *int32) {
	in = bytes.Clone(in)
	s.writeOp(op).add(func(w *writeTxn) int {
		fn, rc := s.classes.lookup(class, method)
		if rc != 0 {
			return setPrval(prval, rc)
		}
		mc := &MethodContext{obj: w.current(), exists: w.exists}
		if _, rc := fn(mc, in); rc < 0 {
			return setPrval(prval, rc)
		}
		if mc.dirty {
			w.obj, w.exists, w.removed, w.dirty = mc.obj, true, false, true
		}
		return setPrval(prval, 0)
	})
}

// WriteOpSetAllocHint only creates the object; placement is not simulated.
func (s *Sim) WriteOpSetAllocHint(op native.Handle, _, _ uint64, _ native.AllocHintFlag) {
	s.writeOp(op).add(func(w *writeTxn) int {
		if !w.exists {
			w.ensure()
		}
		return 0
	})
}

// applyWrite runs every step on a copy of the object and commits the result
// only when all of them succeed.
func (s *Sim) applyWrite(op *writeOp, mtime *int64) job {
	steps := append([]writeStep(nil), op.steps...)
	var when *int64
	if mtime != nil {
		v := *mtime
		when = &v
	}
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		w := &writeTxn{}
		if obj, ok := p.objects[key]; ok {
			w.obj = obj.clone()
			w.exists = true
		}
		for _, step := range steps {
			if rc := step(w); rc < 0 {
				return rc, 0
			}
		}
		if !w.dirty {
			if w.exists {
				return 0, w.obj.version
			}
			return 0, 0
		}
		if w.removed && !w.exists {
			rc := s.drop(io, p, key)
			return rc, p.version
		}
		p.wrote(w.wrote)
		return s.commit(io, p, key, w.obj, when), w.obj.version
	}
}

func (s *Sim) WriteOpOperate(op, h native.Handle, oid string, mtime *int64, _ native.OperationFlag) int {
	return s.runSync(h, oid, s.applyWrite(s.writeOp(op), mtime))
}

func (s *Sim) AioWriteOpOperate(op, h, c native.Handle, oid string, mtime *int64, _ native.OperationFlag) int {
	return s.submitJob(h, oid, c, s.applyWrite(s.writeOp(op), mtime))
}

func (s *Sim) CreateReadOp() native.Handle {
	return s.handles.create(hReadOp, &readOp{})
}

func (s *Sim) ReleaseReadOp(op native.Handle) {
	s.record("release_read_op", op)
	s.handles.free(hReadOp, op)
}

func setPrval(prval *int32, rc int) int {
	if prval != nil {
		*prval = int32(rc)
	}
	return rc
}

func (s *Sim) ReadOpAssertExists(op native.Handle) {
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return errno(unix.ENOENT)
		}
		return 0
	})
}

func (s *Sim) ReadOpAssertVersion(op native.Handle, ver uint64) {
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return errno(unix.ENOENT)
		}
		return assertVersion(obj, ver)
	})
}

func (s *Sim) ReadOpCmpExt(op native.Handle, cmp []byte, off uint64, prval *int32) {
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		return setPrval(prval, compare(obj.data, cmp, off))
	})
}

func (s *Sim) ReadOpStat(op native.Handle, size *uint64, mtime *int64, prval *int32) {
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		*size = uint64(len(obj.data))
		*mtime = obj.mtime
		return setPrval(prval, 0)
	})
}

func (s *Sim) ReadOpRead(op native.Handle, off uint64, buf []byte, bytesRead *uint64, prval *int32) {
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		n := 0
		if off < uint64(len(obj.data)) {
			n = copy(buf, obj.data[off:])
		}
		*bytesRead = uint64(n)
		return setPrval(prval, 0)
	})
}

func (s *Sim) ReadOpChecksum(op native.Handle, typ native.ChecksumType, init []byte, off, length, chunkSize uint64, out []byte, prval *int32) {
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		return setPrval(prval, checksum(obj.data, typ, init, off, length, chunkSize, out))
	})
}

// ReadOpGetXattrs allocates the iterator immediately; it is filled when the
// operation executes and must be freed even if it never does.
func (s *Sim) ReadOpGetXattrs(op native.Handle, iter *native.Handle, prval *int32) {
	it := &pairIter{}
	*iter = s.handles.create(hXattrIter, it)
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		it.fill(obj.xattrs, "", "", 0, true)
		return setPrval(prval, 0)
	})
}

func (s *Sim) ReadOpOmapGetVals(op native.Handle, startAfter, filterPrefix string, max uint64, iter *native.Handle, more *uint8, prval *int32) {
	it := &pairIter{}
	*iter = s.handles.create(hOmapIter, it)
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		truncated := it.fill(obj.omap, startAfter, filterPrefix, max, true)
		if more != nil {
			*more = 0
			if truncated {
				*more = 1
			}
		}
		return setPrval(prval, 0)
	})
}

func (s *Sim) ReadOpOmapGetKeys(op native.Handle, startAfter string, max uint64, iter *native.Handle, more *uint8, prval *int32) {
	it := &pairIter{}
	*iter = s.handles.create(hOmapIter, it)
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		truncated := it.fill(obj.omap, startAfter, "", max, false)
		if more != nil {
			*more = 0
			if truncated {
				*more = 1
			}
		}
		return setPrval(prval, 0)
	})
}

func (s *Sim) ReadOpOmapGetValsByKeys(op native.Handle, keys []string, iter *native.Handle, prval *int32) {
	keys = append([]string(nil), keys...)
	it := &pairIter{}
	*iter = s.handles.create(hOmapIter, it)
	s.readOp(op).add(func(obj *object) int {
		if obj == nil {
			return setPrval(prval, errno(unix.ENOENT))
		}
		it.fillKeys(obj.omap, keys)
		return setPrval(prval, 0)
	})
}

func (s *Sim) ReadOpCmpXattr(op native.Handle, name string, cmp native.CompareOp, value []byte) {
	value = bytes.Clone(value)
	s.readOp(op).add(func(obj *object) int {
		return cmpXattr(obj, name, cmp, value)
	})
}

func (s *Sim) ReadOpOmapCmp(op native.Handle, key string, cmp native.CompareOp, value []byte, prval *int32) {
	value = bytes.Clone(value)
	s.readOp(op).add(func(obj *object) int {
		return setPrval(prval, cmpOmap(obj, key, cmp, value))
	})
}

// ReadOpExec runs a class method on a copy of the object, so changes it
// makes are discarded.
func (s *Sim) ReadOpExec(op native.Handle, class, method string, in, out []byte, used *uint64, prval *int32) {
	in = bytes.Clone(in)
	s.readOp(op).add(func(obj *object) int {
		fn, rc := s.classes.lookup(class, method)
		if rc != 0 {
			return setPrval(prval, rc)
		}
		mc := &MethodContext{}
		if obj != nil {
			mc.obj, mc.exists = obj.clone(), true
		}
		result, rc := fn(mc, in)
		if rc < 0 {
			return setPrval(prval, rc)
		}
		if len(result) > len(out) {
			return setPrval(prval, errno(unix.ERANGE))
		}
		*used = uint64(copy(out, result))
		return setPrval(prval, 0)
	})
}

// applyRead runs the steps in order and stops at the first failure.
func (s *Sim) applyRead(op *readOp) job {
	steps := append([]readStep(nil), op.steps...)
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj := p.objects[key]
		var version uint64
		if obj != nil {
			version = obj.version
			io.setVersion(version)
			p.read(len(obj.data))
		}
		for _, step := range steps {
			if rc := step(obj); rc < 0 {
				return rc, version
			}
		}
		return 0, version
	}
}

func (s *Sim) ReadOpOperate(op, h native.Handle, oid string, _ native.OperationFlag) int {
	return s.runSync(h, oid, s.applyRead(s.readOp(op)))
}

func (s *Sim) AioReadOpOperate(op, h, c native.Handle, oid string, _ native.OperationFlag) int {
	return s.submitJob(h, oid, c, s.applyRead(s.readOp(op)))
}

// pairIter iterates name/value pairs copied out of an object.
type pairIter struct {
	keys   []string
	values [][]byte
	pos    int
}

// fill loads the pairs of m after startAfter with the given prefix, at most
// max of them when max is non-zero, and reports whether more remained.
func (it *pairIter) fill(m map[string][]byte, startAfter, prefix string, max uint64, withValues bool) bool {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k > startAfter && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	truncated := false
	if max > 0 && uint64(len(keys)) > max {
		keys = keys[:max]
		truncated = true
	}
	it.keys = keys
	it.values = make([][]byte, len(keys))
	if withValues {
		for i, k := range keys {
			it.values[i] = append([]byte(nil), m[k]...)
		}
	}
	it.pos = 0
	return truncated
}

// fillKeys loads the pairs of m named by keys, in key order. Missing keys
// are skipped.
func (it *pairIter) fillKeys(m map[string][]byte, keys []string) {
	it.keys = it.keys[:0]
	for _, k := range keys {
		if _, ok := m[k]; ok {
			it.keys = append(it.keys, k)
		}
	}
	sort.Strings(it.keys)
	it.keys = slices.Compact(it.keys)
	it.values = make([][]byte, len(it.keys))
	for i, k := range it.keys {
		it.values[i] = append([]byte(nil), m[k]...)
	}
	it.pos = 0
}

func (it *pairIter) next() (string, []byte, bool) {
	if it.pos >= len(it.keys) {
		return "", nil, false
	}
	k, v := it.keys[it.pos], it.values[it.pos]
	it.pos++
	return k, v, true
}
