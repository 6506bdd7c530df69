package stubs

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Stub is a generated stub installed in the isolate's code table.
type Stub struct {
	Key  Key
	Desc Description
	Code isolate.CodeID
}

func (s *Stub) String() string { return s.Desc.String() }

// Cache generates stubs on first use and shares them afterwards. It also
// records the type transitions binary op stubs make, so call sites can be
// patched to the stub that replaced theirs.
type Cache struct {
	iso     *isolate.Isolate
	stubs   map[Key]*Stub
	patches map[Key]Key

	transcendental [numTranscendentals]*transcendentalTable
}

func NewCache(iso *isolate.Isolate) *Cache {
	return &Cache{
		iso:     iso,
		stubs:   make(map[Key]*Stub),
		patches: make(map[Key]Key),
	}
}

// Get returns the stub for d, generating it on a miss.
func (c *Cache) Get(d Description) (*Stub, error) {
	key, err := Encode(d)
	if err != nil {
		return nil, err
	}
	if s, ok := c.stubs[key]; ok {
		c.iso.Counters.StubCacheHits++
		return s, nil
	}
	c.iso.Counters.StubCacheMisses++

	entry, err := c.generate(key, d)
	if err != nil {
		return nil, fmt.Errorf("stubs: generate %s: %w", d, err)
	}
	s := &Stub{
		Key:  key,
		Desc: d,
		Code: c.iso.AddCode(d.String(), isolate.StubCode, entry),
	}
	c.stubs[key] = s
	log.Debug("stubs: generated", "stub", d, "key", key, "code", s.Code)
	return s, nil
}

// Lookup returns the stub with the given key if it has been generated.
func (c *Cache) Lookup(k Key) (*Stub, bool) {
	s, ok := c.stubs[k]
	return s, ok
}

// Len returns the number of generated stubs.
func (c *Cache) Len() int { return len(c.stubs) }

// Keys returns the keys of all generated stubs in ascending order.
func (c *Cache) Keys() []Key {
	keys := make([]Key, 0, len(c.stubs))
	for k := range c.stubs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Resolve follows recorded transitions from k to the stub currently
// standing in for it.
func (c *Cache) Resolve(k Key) Key {
	for i := 0; i < len(c.patches); i++ {
		next, ok := c.patches[k]
		if !ok {
			break
		}
		k = next
	}
	return k
}

// Transitions returns the recorded transitions, old key to new key.
func (c *Cache) Transitions() map[Key]Key {
	out := make(map[Key]Key, len(c.patches))
	for from, to := range c.patches {
		out[from] = to
	}
	return out
}

func (c *Cache) patch(from, to Key) {
	if from == to {
		return
	}
	c.patches[from] = to
	log.Debug("stubs: patched", "from", from, "to", to)
}

func (c *Cache) generate(key Key, d Description) (isolate.Entry, error) {
	switch d := d.(type) {
	case BinaryOp:
		return c.binaryOp(key, d)
	case ToBoolean:
		return toBoolean(d), nil
	case WriteInt32ToHeapNumber:
		return writeInt32ToHeapNumber(d), nil
	case RecordWrite:
		return recordWrite(d), nil
	case TranscendentalCache:
		return c.transcendentalStub(d), nil
	}
	return nil, ErrUnsupportedStub
}

// BinaryOpSite is a call site of a binary operation. It starts out on the
// stub for its description and follows the transitions the stub makes.
type BinaryOpSite struct {
	cache *Cache
	key   Key
}

// NewBinaryOpSite describes and generates the stub for a site.
func (c *Cache) NewBinaryOpSite(d BinaryOp) (*BinaryOpSite, error) {
	s, err := c.Get(d)
	if err != nil {
		return nil, err
	}
	return &BinaryOpSite{cache: c, key: s.Key}, nil
}

// Stub returns the stub the site currently calls.
func (s *BinaryOpSite) Stub() *Stub {
	return s.cache.stubs[s.cache.Resolve(s.key)]
}

// Call loads the operands into their slots and calls the site's stub.
func (s *BinaryOpSite) Call(left, right tagged.Value) (tagged.Value, error) {
	stub := s.Stub()
	d := stub.Desc.(BinaryOp)
	iso := s.cache.iso
	l, r := d.slots()
	iso.Regs.Operands[l] = left
	iso.Regs.Operands[r] = right
	if err := iso.CallCode(stub.Code); err != nil {
		return 0, err
	}
	return iso.Regs.Result, nil
}
