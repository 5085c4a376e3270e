package buffer

import (
	"errors"
	"math"
	"slices"
	"testing"

	rerrors "github.com/wippyai/go-rados/errors"
	"golang.org/x/sys/unix"
)

func TestGrow(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 2},
		{2, 4},
		{5, 8},
		{10, 16},
		{100, 160},
	}
	for _, tt := range tests {
		if got := Grow(tt.in); got != tt.want {
			t.Errorf("Grow(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for c := 0; c < 10000; c++ {
		if Grow(c) <= c {
			t.Fatalf("Grow(%d) = %d is not increasing", c, Grow(c))
		}
	}
}

// Rounding up keeps every step at least GrowthFactor times the previous
// capacity, which is what bounds the number of retries by
// ceil(log_1.6(K/c0)). Rounding down would take 2, 3, 4, 6 to reach 5.
func TestGrow_AtLeastFactor(t *testing.T) {
	for c := 1; c < 10000; c++ {
		if got := Grow(c); float64(got) < float64(c)*GrowthFactor {
			t.Fatalf("Grow(%d) = %d, below %d * %v", c, got, c, GrowthFactor)
		}
	}

	var calls []int
	if _, _, err := Retry(2, tooSmall(5, 'x', &calls)); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if want := []int{2, 4, 7}; !slices.Equal(calls, want) {
		t.Fatalf("capacities = %v, want %v", calls, want)
	}
}

func TestBuffer_Write(t *testing.T) {
	b := New(4)
	if err := b.Write([]byte("abcd")); err != nil {
		t.Fatalf("Write exact fit: %v", err)
	}
	if got := b.String(4); got != "abcd" {
		t.Fatalf("String(4) = %q", got)
	}

	err := b.Write([]byte("abcde"))
	if !errors.Is(err, rerrors.ErrBufferOverflow) {
		t.Fatalf("Write overflow = %v, want ErrBufferOverflow", err)
	}
}

func TestBuffer_Read(t *testing.T) {
	b := Wrap([]byte("hello world"))

	if got := string(b.Read(5)); got != "hello" {
		t.Errorf("Read(5) = %q", got)
	}
	if got := len(b.Read(100)); got != 11 {
		t.Errorf("Read(100) returned %d bytes, want clamp to 11", got)
	}
	if got := len(b.Read(-1)); got != 0 {
		t.Errorf("Read(-1) returned %d bytes", got)
	}

	out := b.Read(5)
	out[0] = 'j'
	if b.Bytes()[0] != 'h' {
		t.Error("Read must return a copy")
	}
}

func TestBuffer_CString(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"terminated", []byte("abc\x00garbage"), "abc"},
		{"unterminated", []byte("abc"), "abc"},
		{"empty", []byte("\x00abc"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wrap(tt.data).CString(); got != tt.want {
				t.Errorf("CString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuffer_Strings(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		n           int
		stopOnEmpty bool
		want        []string
	}{
		{"pool list", "rbd\x00data\x00\x00\xff\xff", 10, true, []string{"rbd", "data"}},
		{"uses reported length", "a\x00b\x00c\x00", 4, true, []string{"a", "b"}},
		{"keep empty entries", "tag\x00\x00x\x00", 7, false, []string{"tag", "", "x"}},
		{"trailing bytes ignored", "a\x00bc", 4, true, []string{"a"}},
		{"empty", "", 0, true, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap([]byte(tt.data)).Strings(tt.n, tt.stopOnEmpty)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Strings() = %q, want %q", got, tt.want)
			}
		})
	}
}

// tooSmall simulates a native call that needs need bytes.
func tooSmall(need int, payload byte, calls *[]int) func(*Buffer) int {
	return func(b *Buffer) int {
		*calls = append(*calls, b.Cap())
		if b.Cap() < need {
			return -int(unix.ERANGE)
		}
		for i := 0; i < need; i++ {
			b.Bytes()[i] = payload
		}
		return need
	}
}

func TestRetry_TerminationBound(t *testing.T) {
	for _, c0 := range []int{0, 1, 2, 7, 64, 100} {
		for _, k := range []int{1, 2, 5, 37, 100, 513, 4096, 100000} {
			var calls []int
			buf, n, err := Retry(c0, tooSmall(k, 'x', &calls))
			if err != nil {
				t.Fatalf("c0=%d K=%d: %v", c0, k, err)
			}
			if n != k {
				t.Fatalf("c0=%d K=%d: n = %d", c0, k, n)
			}
			if n > buf.Cap() {
				t.Fatalf("c0=%d K=%d: reported length %d exceeds capacity %d", c0, k, n, buf.Cap())
			}

			bound := 0
			if base := max(c0, 1); k > base {
				bound = int(math.Ceil(math.Log(float64(k)/float64(base)) / math.Log(GrowthFactor)))
			}
			if c0 == 0 && k == 1 {
				bound = 1 // the step from zero to the one byte floor
			}
			if grows := len(calls) - 1; grows > bound {
				t.Errorf("c0=%d K=%d: %d grow steps, bound %d", c0, k, grows, bound)
			}

			for i := 1; i < len(calls); i++ {
				if calls[i] <= calls[i-1] {
					t.Fatalf("capacity shrank or stalled: %v", calls)
				}
			}
		}
	}
}

func TestRetry_PropagatesOtherErrors(t *testing.T) {
	calls := 0
	_, _, err := Retry(8, func(b *Buffer) int {
		calls++
		return -int(unix.ENOENT)
	}, Op(rerrors.PhaseObject, "rados_getxattr"))

	if calls != 1 {
		t.Fatalf("called %d times, want 1", calls)
	}
	if !rerrors.IsErrno(err, unix.ENOENT) {
		t.Fatalf("err = %v, want ENOENT", err)
	}
	var e *rerrors.Error
	if !errors.As(err, &e) || e.Op != "rados_getxattr" || e.Phase != rerrors.PhaseObject {
		t.Fatalf("err = %#v, want op and phase recorded", err)
	}
}

func TestRetry_CustomCondition(t *testing.T) {
	var caps []int
	_, n, err := Retry(2, func(b *Buffer) int {
		caps = append(caps, b.Cap())
		if b.Cap() < 10 {
			return -int(unix.ENAMETOOLONG)
		}
		return 0
	}, On(unix.ENAMETOOLONG))
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d", n)
	}
	if len(caps) < 2 {
		t.Fatalf("expected retries, got %v", caps)
	}

	// ERANGE is not retried once the condition set is replaced.
	_, _, err = Retry(2, func(b *Buffer) int { return -int(unix.ERANGE) }, On(unix.ENAMETOOLONG))
	if !rerrors.IsErrno(err, unix.ERANGE) {
		t.Fatalf("err = %v, want ERANGE propagated", err)
	}
}

func TestRetry_MaxCapacity(t *testing.T) {
	var calls []int
	_, _, err := Retry(16, tooSmall(1<<20, 'x', &calls), WithMaxCapacity(1024))
	if !errors.Is(err, rerrors.ErrBufferOverflow) {
		t.Fatalf("err = %v, want ErrBufferOverflow", err)
	}
	if !rerrors.IsErrno(err, unix.ERANGE) {
		t.Fatal("overflow should carry the native ERANGE cause")
	}
	for _, c := range calls {
		if c > 1024 {
			t.Fatalf("capacity %d exceeded limit", c)
		}
	}
}

func TestRetrySized(t *testing.T) {
	capacity, rc, err := RetrySized(0, func(c int) int {
		if c < 300 {
			return -int(unix.ERANGE)
		}
		return 3
	})
	if err != nil {
		t.Fatalf("RetrySized: %v", err)
	}
	if rc != 3 || capacity < 300 {
		t.Fatalf("capacity=%d rc=%d", capacity, rc)
	}
}

func TestPool(t *testing.T) {
	b := Get(10)
	if b.Cap() != 10 {
		t.Fatalf("Get(10).Cap() = %d", b.Cap())
	}
	copy(b.Bytes(), "dirty")
	Put(b)

	b = Get(5)
	for _, c := range b.Bytes() {
		if c != 0 {
			t.Fatal("pooled buffer not cleared")
		}
	}
	Put(b)

	big := Get(poolMaxCap + 1)
	if big.Cap() != poolMaxCap+1 {
		t.Fatalf("Get(big).Cap() = %d", big.Cap())
	}
	Put(big)
	Put(nil)
}
