package resource

import (
	"testing"
)

func TestRegistry_Observer(t *testing.T) {
	reg := NewRegistry(nil)
	obs := &testObserver{}
	reg.Subscribe(obs)

	r := reg.New(nil, KindCluster, 1, nil)
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != 1 || obs.events[0].Kind != KindCluster {
		t.Fatalf("Wrong event payload: %+v", obs.events[0])
	}

	r.Release()
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventReleased {
		t.Fatal("Expected EventReleased")
	}
	if obs.events[1].ID != obs.events[0].ID {
		t.Fatal("created and released events should carry the same ID")
	}

	reg.Unsubscribe(obs)
	reg.New(nil, KindCluster, 2, nil)
	if len(obs.events) != 2 {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestRegistry_LiveCounts(t *testing.T) {
	reg := NewRegistry(nil)

	root := reg.New(nil, KindCluster, 1, nil)
	io := reg.New(root, KindIOContext, 2, nil)
	reg.New(io, KindCompletion, 3, nil)
	c2 := reg.New(io, KindCompletion, 4, nil)

	tests := []struct {
		kind Kind
		want int
	}{
		{KindCluster, 1},
		{KindIOContext, 1},
		{KindCompletion, 2},
		{KindWriteOp, 0},
	}
	for _, tt := range tests {
		if got := reg.Live(tt.kind); got != tt.want {
			t.Errorf("Live(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}

	c2.Release()
	if got := reg.Live(KindCompletion); got != 1 {
		t.Fatalf("Live(completion) = %d after release, want 1", got)
	}

	root.Release()
	if reg.Len() != 0 {
		t.Fatalf("Len() = %d after releasing root, want 0", reg.Len())
	}
}

func TestRegistry_ReleaseAll(t *testing.T) {
	reg := NewRegistry(nil)
	log := &freeLog{}

	a := reg.New(nil, KindCluster, 1, log.release)
	b := reg.New(nil, KindCluster, 2, log.release)
	reg.New(a, KindIOContext, 3, log.release)

	reg.ReleaseAll()

	if !a.Released() || !b.Released() {
		t.Fatal("expected every root released")
	}
	if log.count(3) != 1 {
		t.Fatal("expected descendant of root released")
	}
	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", reg.Len())
	}

	// Nothing left to release.
	reg.ReleaseAll()
	if len(log.freed) != 3 {
		t.Fatalf("freed %d handles, want 3", len(log.freed))
	}
}

func TestKind_String(t *testing.T) {
	for _, k := range Kinds() {
		if k.String() == "unknown" {
			t.Errorf("kind %d has no name", k)
		}
	}
	if Kind(200).String() != "unknown" {
		t.Error("out of range kind should be unknown")
	}
}
