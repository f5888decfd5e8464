// Package pack describes sound packs and the catalog that lists them
package pack

import (
	"sort"
)

// Pad is one trigger slot in a pack's layout
type Pad struct {
	ID    int    `toml:"id"`
	Sound string `toml:"sound"`
	Color string `toml:"color"`
	Icon  string `toml:"icon"`
	Title string `toml:"title"`
	// Group, when set, must name the group in Pack.Groups that lists Sound
	Group string `toml:"group"`
}

// Pack is a named bundle of sounds with exclusivity groups and a pad layout
type Pack struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Genre string `toml:"genre"`
	BPM   int    `toml:"bpm"`
	Demo  string `toml:"demo"`

	// Sounds maps sound name to asset reference
	Sounds map[string]string `toml:"sounds"`
	// Groups maps group name to member sound names; at most one member plays at a time
	Groups map[string][]string `toml:"groups"`
	Pads   []Pad               `toml:"pads"`
}

// SoundNames returns sound names in sorted order
func (p *Pack) SoundNames() []string {
	names := make([]string, 0, len(p.Sounds))
	for name := range p.Sounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Asset returns the asset reference for a sound
func (p *Pack) Asset(sound string) (string, bool) {
	ref, ok := p.Sounds[sound]
	return ref, ok
}

// GroupIndex is the inverse of Pack.Groups: sound name to group name
type GroupIndex map[string]string

// GroupIndex builds the sound to group lookup
// A sound listed in several groups belongs to the alphabetically first one
func (p *Pack) GroupIndex() GroupIndex {
	names := make([]string, 0, len(p.Groups))
	for name := range p.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	idx := make(GroupIndex)
	for _, group := range names {
		for _, sound := range p.Groups[group] {
			if _, taken := idx[sound]; !taken {
				idx[sound] = group
			}
		}
	}
	return idx
}

// GroupOf returns the group a sound belongs to
func (g GroupIndex) GroupOf(sound string) (string, bool) {
	group, ok := g[sound]
	return group, ok
}

// Pad returns the pad with the given id
func (p *Pack) Pad(id int) (Pad, bool) {
	for _, pad := range p.Pads {
		if pad.ID == id {
			return pad, true
		}
	}
	return Pad{}, false
}
