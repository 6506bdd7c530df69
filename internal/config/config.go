// Package config handles v8m.toml isolate configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
)

// Smallest spaces the bootstrap and the self-check scenarios fit in.
const (
	MinOldSpace   = 64 << 10
	MinYoungSpace = 1 << 10
	MinStackWords = 256
)

var ErrInvalid = errors.New("invalid configuration")

// Config represents a v8m.toml file.
type Config struct {
	Heap  Heap  `toml:"heap"`
	Stack Stack `toml:"stack"`
	Flags Flags `toml:"flags"`
	Stubs Stubs `toml:"stubs"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Heap sizes the two spaces. Sizes are human-readable byte counts such as
// "1 MiB" or "256KB".
type Heap struct {
	OldSpace   string `toml:"old_space"`
	YoungSpace string `toml:"young_space"`
}

// Stack sizes the simulated machine stack, in words.
type Stack struct {
	Size    int `toml:"size"`
	Reserve int `toml:"reserve"`
}

// Flags are the isolate switches.
type Flags struct {
	InlineNew bool `toml:"inline_new"`
	DebugCode bool `toml:"debug_code"`
	Trace     bool `toml:"trace"`
}

// Stubs configures the stub cache snapshot.
type Stubs struct {
	Snapshot string `toml:"snapshot"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Heap:  Heap{OldSpace: "1 MiB", YoungSpace: "256 KiB"},
		Stack: Stack{Size: 4096, Reserve: 64},
		Flags: Flags{InlineNew: true},
		Stubs: Stubs{Snapshot: "stubs.cbor"},
	}
}

// Load parses a configuration file. Keys the file leaves out keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(text string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(text, c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseSize(name, s string, min uint64) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}
	if n < min {
		return 0, fmt.Errorf("%w: %s %s is below the minimum of %s", ErrInvalid, name, humanize.IBytes(n), humanize.IBytes(min))
	}
	return int(n), nil
}

// Validate rejects sizes the isolate cannot run in.
func (c *Config) Validate() error {
	if _, err := parseSize("heap.old_space", c.Heap.OldSpace, MinOldSpace); err != nil {
		return err
	}
	if _, err := parseSize("heap.young_space", c.Heap.YoungSpace, MinYoungSpace); err != nil {
		return err
	}
	if c.Stack.Reserve < 0 {
		return fmt.Errorf("%w: stack.reserve %d is negative", ErrInvalid, c.Stack.Reserve)
	}
	if c.Stack.Size-c.Stack.Reserve < MinStackWords {
		return fmt.Errorf("%w: stack.size %d leaves %d usable words, want at least %d",
			ErrInvalid, c.Stack.Size, c.Stack.Size-c.Stack.Reserve, MinStackWords)
	}
	return nil
}

// Isolate converts the configuration into isolate settings.
func (c *Config) Isolate() (isolate.Config, error) {
	if err := c.Validate(); err != nil {
		return isolate.Config{}, err
	}
	old, _ := parseSize("heap.old_space", c.Heap.OldSpace, MinOldSpace)
	young, _ := parseSize("heap.young_space", c.Heap.YoungSpace, MinYoungSpace)
	return isolate.Config{
		Heap:         heap.Config{OldSpace: old, YoungSpace: young},
		StackSize:    c.Stack.Size,
		StackReserve: c.Stack.Reserve,
		Flags: isolate.Flags{
			InlineNew: c.Flags.InlineNew,
			DebugCode: c.Flags.DebugCode,
			Trace:     c.Flags.Trace,
		},
	}, nil
}
