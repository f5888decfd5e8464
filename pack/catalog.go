package pack

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Catalog is the full set of packs plus the metronome click assets
type Catalog struct {
	// DefaultUnlocked lists packs available before any unlock
	DefaultUnlocked []string `toml:"default_unlocked"`
	// Metronome maps click sound name to asset reference
	Metronome map[string]string `toml:"metronome"`
	Packs     map[string]*Pack  `toml:"packs"`
}

// Parse decodes a TOML catalog and validates cross references
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse catalog: unknown keys %s", strings.Join(keys, ", "))
	}

	for id, p := range c.Packs {
		if p == nil {
			return nil, fmt.Errorf("parse catalog: pack %s is empty", id)
		}
		if p.ID == "" {
			p.ID = id
		}
		if p.Name == "" {
			p.Name = id
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses a catalog file from fsys
func Load(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Validate checks that ids match keys and that groups and pads reference known sounds
func (c *Catalog) Validate() error {
	var errs []error
	for _, id := range c.IDs() {
		p := c.Packs[id]
		if p.ID != id {
			errs = append(errs, fmt.Errorf("pack %s: id %q does not match key", id, p.ID))
		}
		for group, members := range p.Groups {
			for _, sound := range members {
				if _, ok := p.Sounds[sound]; !ok {
					errs = append(errs, fmt.Errorf("pack %s: group %s references unknown sound %s", id, group, sound))
				}
			}
		}
		groups := p.GroupIndex()
		seen := make(map[int]bool, len(p.Pads))
		for _, pad := range p.Pads {
			if seen[pad.ID] {
				errs = append(errs, fmt.Errorf("pack %s: duplicate pad id %d", id, pad.ID))
			}
			seen[pad.ID] = true
			if _, ok := p.Sounds[pad.Sound]; !ok {
				errs = append(errs, fmt.Errorf("pack %s: pad %d references unknown sound %s", id, pad.ID, pad.Sound))
			}
			if pad.Group != "" {
				if group, _ := groups.GroupOf(pad.Sound); group != pad.Group {
					errs = append(errs, fmt.Errorf("pack %s: pad %d group %s does not match sound %s group %q", id, pad.ID, pad.Group, pad.Sound, group))
				}
			}
		}
	}
	for _, id := range c.DefaultUnlocked {
		if _, ok := c.Packs[id]; !ok {
			errs = append(errs, fmt.Errorf("default_unlocked references unknown pack %s", id))
		}
	}
	return errors.Join(errs...)
}

// Pack returns a pack by id
func (c *Catalog) Pack(id string) (*Pack, bool) {
	p, ok := c.Packs[id]
	return p, ok && p != nil
}

// IDs returns pack ids in sorted order
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Packs))
	for id := range c.Packs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MetronomeAsset returns the asset reference for a click sound
func (c *Catalog) MetronomeAsset(name string) (string, bool) {
	ref, ok := c.Metronome[name]
	return ref, ok
}

// MetronomeSounds returns click sound names in sorted order
func (c *Catalog) MetronomeSounds() []string {
	names := make([]string, 0, len(c.Metronome))
	for name := range c.Metronome {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
