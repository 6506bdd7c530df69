package stubs_test

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate/isolatetest"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

func TestCacheSharesStubs(t *testing.T) {
	iso, c := newCache(t)
	d := stubs.ToBoolean{Slot: isolate.OperandLeft}
	first := get(t, c, d)
	second := get(t, c, d)
	if first != second {
		t.Error("second Get generated a new stub")
	}
	if iso.Counters.StubCacheMisses != 1 || iso.Counters.StubCacheHits != 1 {
		t.Errorf("hits %d misses %d, want 1 and 1", iso.Counters.StubCacheHits, iso.Counters.StubCacheMisses)
	}
	code, err := iso.Code(first.Code)
	if err != nil {
		t.Fatal(err)
	}
	if code.Kind != isolate.StubCode || code.Name != d.String() {
		t.Errorf("code %s (%s)", code.Name, code.Kind)
	}
	if s, ok := c.Lookup(first.Key); !ok || s != first {
		t.Error("Lookup does not find the stub")
	}

	get(t, c, stubs.ToBoolean{Slot: isolate.OperandRight})
	if c.Len() != 2 {
		t.Errorf("%d stubs, want 2", c.Len())
	}
	keys := c.Keys()
	if len(keys) != 2 || keys[0] >= keys[1] {
		t.Errorf("keys %v are not sorted", keys)
	}
}

func TestCacheRejectsNonCanonical(t *testing.T) {
	iso, c := newCache(t)
	if _, err := c.Get(stubs.BinaryOp{Op: stubs.OpAdd, KnownRHS: 3}); !errors.Is(err, stubs.ErrNonCanonical) {
		t.Errorf("Get: %v, want ErrNonCanonical", err)
	}
	if iso.Counters.StubCacheMisses != 0 {
		t.Error("rejected description counted as a miss")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	iso, c := newCache(t)
	get(t, c, stubs.TranscendentalCache{Type: stubs.Cos})
	get(t, c, stubs.RecordWrite{Object: 1, Offset: 2, Scratch: 3})
	s := site(t, c, stubs.NewBinaryOp(stubs.OpMod, stubs.OverwriteLeft, true, 8, true))
	if _, err := s.Call(tagged.FromSmi(1), number(t, iso, 2.5)); err != nil {
		t.Fatal(err)
	}

	data, err := c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	snap, err := stubs.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Isolate != iso.ID {
		t.Errorf("snapshot isolate %v, want %v", snap.Isolate, iso.ID)
	}

	other := isolatetest.New(t)
	restored := stubs.NewCache(other)
	n, err := restored.Restore(data)
	if err != nil {
		t.Fatal(err)
	}
	if n != c.Len() {
		t.Errorf("restored %d stubs, want %d", n, c.Len())
	}
	want, got := c.Keys(), restored.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %v, want %v", i, got[i], want[i])
		}
	}
	for from, to := range c.Transitions() {
		if restored.Resolve(from) != to {
			t.Errorf("transition %v -> %v was not restored", from, to)
		}
	}

	again, err := restored.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if n, err := stubs.NewCache(other).Restore(again); err != nil || n != len(want) {
		t.Errorf("restoring a restored cache: %d, %v", n, err)
	}
	if n, err := restored.Restore(data); err != nil || n != 0 {
		t.Errorf("restoring into a full cache: %d new stubs, %v", n, err)
	}
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	encode := func(s stubs.Snapshot) []byte {
		t.Helper()
		data, err := cbor.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	tests := []struct {
		name string
		data []byte
		bad  bool
	}{
		{"garbage", []byte{0xff, 0x00}, false},
		{"version", encode(stubs.Snapshot{Version: 99}), true},
		{"non-canonical key", encode(stubs.Snapshot{Version: 1, Keys: []stubs.Key{60}}), true},
		{"dangling transition", encode(stubs.Snapshot{Version: 1, Transitions: map[stubs.Key]stubs.Key{1: 2}}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newCache(t)
			_, err := c.Restore(tt.data)
			if err == nil {
				t.Fatal("bad snapshot accepted")
			}
			if tt.bad && !errors.Is(err, stubs.ErrBadSnapshot) {
				t.Errorf("error %v does not wrap ErrBadSnapshot", err)
			}
		})
	}
}
