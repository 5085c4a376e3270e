package rados

import (
	stderrors "errors"
	"fmt"
	"slices"
	"testing"

	"github.com/wippyai/go-rados/errors"
)

func writeObjects(t *testing.T, io *IOContext, n int) []string {
	t.Helper()
	oids := make([]string, n)
	for i := range oids {
		oids[i] = fmt.Sprintf("obj-%02d", i)
		if err := io.Object(oids[i]).WriteFull([]byte("x")); err != nil {
			t.Fatalf("WriteFull %s: %v", oids[i], err)
		}
	}
	return oids
}

func TestObjectCursor_BeginEnd(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	writeObjects(t, io, 3)

	r, err := io.FullRange()
	if err != nil {
		t.Fatalf("FullRange: %v", err)
	}
	defer r.Close()

	if end, err := r.Start.IsEnd(); err != nil || end {
		t.Fatalf("begin IsEnd = %v, %v", end, err)
	}
	if end, err := r.End.IsEnd(); err != nil || !end {
		t.Fatalf("end IsEnd = %v, %v", end, err)
	}
	if cmp, err := r.Start.Compare(r.End); err != nil || cmp >= 0 {
		t.Fatalf("Compare(begin, end) = %d, %v", cmp, err)
	}
	if cmp, err := r.End.Compare(r.End); err != nil || cmp != 0 {
		t.Fatalf("Compare(end, end) = %d, %v", cmp, err)
	}
}

func TestObjectCursor_CompareAcrossContexts(t *testing.T) {
	_, _, conn, io := newTestEnv(t, nil)
	other, err := conn.OpenIOContext(testPool)
	if err != nil {
		t.Fatalf("OpenIOContext: %v", err)
	}
	a, err := io.ListBegin()
	if err != nil {
		t.Fatal(err)
	}
	b, err := other.ListBegin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Compare(b); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("Compare = %v, want invalid input", err)
	}
	it, err := io.ListObjects()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	if _, err := it.SeekCursor(b); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("SeekCursor = %v, want invalid input", err)
	}
}

func TestObjectRange_SlicesCoverListing(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	oids := writeObjects(t, io, 10)

	full, err := io.FullRange()
	if err != nil {
		t.Fatalf("FullRange: %v", err)
	}
	defer full.Close()

	for _, count := range []int{1, 3, 4, 16} {
		t.Run(fmt.Sprintf("%d slices", count), func(t *testing.T) {
			var got []string
			for i := range count {
				part, err := full.Slice(i, count)
				if err != nil {
					t.Fatalf("Slice(%d, %d): %v", i, count, err)
				}
				for e, err := range io.ListRange(part) {
					if err != nil {
						t.Fatalf("ListRange: %v", err)
					}
					got = append(got, e.OID)
				}
				part.Close()
			}
			if !slices.Equal(got, oids) {
				t.Fatalf("listed %v, want %v", got, oids)
			}
		})
	}
}

func TestObjectRange_SliceArguments(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	full, err := io.FullRange()
	if err != nil {
		t.Fatal(err)
	}
	defer full.Close()

	tests := []struct {
		name         string
		index, count int
	}{
		{"zero count", 0, 0},
		{"negative index", -1, 2},
		{"index past count", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := full.Slice(tt.index, tt.count); !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("Slice(%d, %d) = %v, want invalid input", tt.index, tt.count, err)
			}
		})
	}
}

func TestObjectIterator_CursorAndSeek(t *testing.T) {
	_, _, _, io := newTestEnv(t, nil)
	oids := writeObjects(t, io, 5)

	it, err := io.ListObjects()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	for range 2 {
		if _, ok, err := it.Next(); err != nil || !ok {
			t.Fatalf("Next: %v, %v", ok, err)
		}
	}
	if pos, err := it.Position(); err != nil || pos != 2 {
		t.Fatalf("Position = %d, %v", pos, err)
	}
	mark, err := it.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	defer mark.Close()

	if _, ok, err := it.Next(); err != nil || !ok {
		t.Fatalf("Next: %v, %v", ok, err)
	}
	if _, err := it.SeekCursor(mark); err != nil {
		t.Fatalf("SeekCursor: %v", err)
	}
	if e, ok, err := it.Next(); err != nil || !ok || e.OID != oids[2] {
		t.Fatalf("Next after SeekCursor = %+v, %v, %v", e, ok, err)
	}

	if pos, err := it.Seek(0); err != nil || pos != 0 {
		t.Fatalf("Seek(0) = %d, %v", pos, err)
	}
	if e, ok, err := it.Next(); err != nil || !ok || e.OID != oids[0] {
		t.Fatalf("Next after Seek = %+v, %v, %v", e, ok, err)
	}
}

func TestObjectCursor_ReleasedWithContext(t *testing.T) {
	s, _, conn, _ := newTestEnv(t, nil)
	io, err := conn.OpenIOContext(testPool)
	if err != nil {
		t.Fatal(err)
	}
	c, err := io.ListBegin()
	if err != nil {
		t.Fatal(err)
	}
	s.ResetTrace()

	io.Close()
	if got := traceNames(s); !slices.Equal(got, []string{"object_list_cursor_free", "ioctx_destroy"}) {
		t.Fatalf("trace = %v", got)
	}
	if _, err := c.IsEnd(); !stderrors.Is(err, errors.ErrReleased) {
		t.Fatalf("IsEnd after close = %v, want released", err)
	}
	c.Close()
}
