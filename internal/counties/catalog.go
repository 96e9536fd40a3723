// Package counties holds the static county catalog: display names, map
// centers and the three-letter prefixes used for saved-property numbers.
package counties

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed counties.yaml
var defaultCatalog []byte

// County is a catalog entry.
type County struct {
	Key       string     `yaml:"key" json:"key"`
	Name      string     `yaml:"name" json:"name"`
	Prefix    string     `yaml:"prefix" json:"prefix"`
	Center    [2]float64 `yaml:"center" json:"center"` // [lat, lng]
	Available bool       `yaml:"available" json:"available"`
}

// Catalog indexes counties by normalized key.
type Catalog struct {
	byKey map[string]County
	order []string
}

type catalogFile struct {
	Counties []County `yaml:"counties"`
}

// Default returns the embedded catalog. It panics if the embedded file is invalid.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("counties: invalid embedded catalog: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse county catalog: %w", err)
	}

	c := &Catalog{byKey: make(map[string]County, len(file.Counties))}
	for _, county := range file.Counties {
		key := Normalize(county.Key)
		if key == "" {
			return nil, fmt.Errorf("county %q has no key", county.Name)
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate county key %q", key)
		}
		county.Key = key
		county.Prefix = strings.ToUpper(strings.TrimSpace(county.Prefix))
		c.byKey[key] = county
		c.order = append(c.order, key)
	}
	return c, nil
}

// Lookup finds a county by key or display name ("Burnet County" and "burnet" both match).
func (c *Catalog) Lookup(name string) (County, bool) {
	county, ok := c.byKey[Normalize(name)]
	return county, ok
}

// All returns catalog counties in file order.
func (c *Catalog) All() []County {
	out := make([]County, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.byKey[key])
	}
	return out
}

// Available returns the counties enabled for browsing, sorted by key.
func (c *Catalog) Available() []County {
	var out []County
	for _, county := range c.byKey {
		if county.Available {
			out = append(out, county)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Prefix returns the display number prefix for a county name. Names missing
// from the catalog fall back to their first three letters, uppercased.
func (c *Catalog) Prefix(name string) string {
	key := Normalize(name)
	if county, ok := c.byKey[key]; ok && county.Prefix != "" {
		return county.Prefix
	}
	if len(key) > 3 {
		key = key[:3]
	}
	return strings.ToUpper(key)
}

// Normalize lowercases, trims and strips a trailing " county".
func Normalize(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, " county")
	return strings.TrimSpace(key)
}
