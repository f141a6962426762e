// Package catalog holds the table of rooms, the item types each room accepts,
// and which of those types may appear more than once.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed rooms.yaml
var defaultRooms []byte

type Room struct {
	Name     string   `yaml:"name" json:"name"`
	Types    []string `yaml:"types" json:"types"`
	Multiple []string `yaml:"multiple" json:"multiple"`
}

type Catalog struct {
	rooms []Room
	index map[string]int
}

type file struct {
	Rooms []Room `yaml:"rooms"`
}

// Default returns the built-in room table.
func Default() *Catalog {
	c, err := Parse(defaultRooms)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded rooms.yaml is invalid: %v", err))
	}
	return c
}

// Load reads a room table from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read room catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML room table and checks it for consistency.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse room catalog: %w", err)
	}
	if len(f.Rooms) == 0 {
		return nil, fmt.Errorf("room catalog has no rooms")
	}

	c := &Catalog{index: make(map[string]int, len(f.Rooms))}
	for _, r := range f.Rooms {
		if r.Name == "" {
			return nil, fmt.Errorf("room catalog entry has no name")
		}
		if _, dup := c.index[r.Name]; dup {
			return nil, fmt.Errorf("room %q is listed twice", r.Name)
		}
		if len(r.Types) == 0 {
			return nil, fmt.Errorf("room %q has no item types", r.Name)
		}
		for _, m := range r.Multiple {
			if !slices.Contains(r.Types, m) {
				return nil, fmt.Errorf("room %q allows multiple %q but not the type itself", r.Name, m)
			}
		}
		c.index[r.Name] = len(c.rooms)
		c.rooms = append(c.rooms, r)
	}
	return c, nil
}

// Rooms returns the rooms in catalog order.
func (c *Catalog) Rooms() []Room {
	return slices.Clone(c.rooms)
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.rooms))
	for i, r := range c.rooms {
		names[i] = r.Name
	}
	return names
}

func (c *Catalog) Room(name string) (Room, bool) {
	i, ok := c.index[name]
	if !ok {
		return Room{}, false
	}
	return c.rooms[i], true
}

// AllowedTypes returns the item types accepted by room, or nil for an unknown room.
func (c *Catalog) AllowedTypes(room string) []string {
	r, ok := c.Room(room)
	if !ok {
		return nil
	}
	return slices.Clone(r.Types)
}

func (c *Catalog) IsAllowed(room, itemType string) bool {
	r, ok := c.Room(room)
	return ok && slices.Contains(r.Types, itemType)
}

// AllowsMultiple reports whether more than one item of itemType may exist in room.
func (c *Catalog) AllowsMultiple(room, itemType string) bool {
	r, ok := c.Room(room)
	return ok && slices.Contains(r.Multiple, itemType)
}
