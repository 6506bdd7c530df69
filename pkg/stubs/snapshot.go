package stubs

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const snapshotVersion = 1

var ErrBadSnapshot = errors.New("stubs: bad snapshot")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("stubs: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the serialized form of a cache: the keys it generated and the
// transitions it recorded. Code is not serialized; restoring regenerates it.
type Snapshot struct {
	Isolate     uuid.UUID   `cbor:"1,keyasint"`
	Version     int         `cbor:"2,keyasint"`
	Keys        []Key       `cbor:"3,keyasint"`
	Transitions map[Key]Key `cbor:"4,keyasint,omitempty"`
}

// Snapshot serializes the cache to CBOR bytes.
func (c *Cache) Snapshot() ([]byte, error) {
	s := Snapshot{
		Isolate: c.iso.ID,
		Version: snapshotVersion,
		Keys:    c.Keys(),
	}
	if len(c.patches) > 0 {
		s.Transitions = c.Transitions()
	}
	return cborEncMode.Marshal(&s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("stubs: unmarshal snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadSnapshot, s.Version, snapshotVersion)
	}
	return &s, nil
}

// Restore regenerates every stub named in a snapshot and replays its
// transitions. It returns the number of stubs that were not already in the
// cache.
func (c *Cache) Restore(data []byte) (int, error) {
	s, err := UnmarshalSnapshot(data)
	if err != nil {
		return 0, err
	}
	before := len(c.stubs)
	for _, k := range s.Keys {
		d, err := Decode(k)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		if _, err := c.Get(d); err != nil {
			return 0, err
		}
	}
	for from, to := range s.Transitions {
		if _, ok := c.stubs[from]; !ok {
			return 0, fmt.Errorf("%w: transition from unknown key %v", ErrBadSnapshot, from)
		}
		if _, ok := c.stubs[to]; !ok {
			return 0, fmt.Errorf("%w: transition to unknown key %v", ErrBadSnapshot, to)
		}
		c.patch(from, to)
	}
	restored := len(c.stubs) - before
	log.Debug("stubs: restored snapshot", "from", s.Isolate, "stubs", restored, "transitions", len(s.Transitions))
	return restored, nil
}
