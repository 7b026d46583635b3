// Package resource defines the catalog resources dexsync mirrors and the
// extractors that project a detail document into a snapshot record.
package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Record is one snapshot entry: a small mapping of scalar fields.
type Record map[string]any

// Extractor maps a raw detail document for key into its snapshot record.
// Extractors are pure.
type Extractor func(raw []byte, key string) (Record, error)

// Definition parameterizes the sync engine for one resource.
type Definition struct {
	// Name is the resource name used on the command line and in config.
	Name string
	// Key names the manifest URL field (<key>_url) and snapshot files (<key>_map.<version>.json).
	Key string
	// Dir is the directory under the data root holding the manifest and snapshots.
	Dir string
	// Endpoint is the catalog path for listings and details.
	Endpoint string
	Extract  Extractor
}

// ManifestPath returns the logical path of the resource manifest.
func (d Definition) ManifestPath() string {
	return "/" + d.Dir + "/manifest.json"
}

// SnapshotPath returns the logical path of the snapshot for version.
func (d Definition) SnapshotPath(version string) string {
	return fmt.Sprintf("/%s/%s_map.%s.json", d.Dir, d.Key, version)
}

// URLField returns the manifest field naming the current snapshot.
func (d Definition) URLField() string {
	return d.Key + "_url"
}

// Locales is the display-name fallback chain.
type Locales struct {
	Primary   string
	Secondary string
}

// ErrShape is wrapped by extractor errors for documents missing required fields.
var ErrShape = errors.New("unexpected detail document shape")

// ErrUnknownResource is returned by Lookup for names not in the registry.
var ErrUnknownResource = errors.New("unknown resource")

// NamedRef is a catalog reference to a named category such as a generation.
type NamedRef struct {
	Name string `json:"name"`
}

// LocalizedName is one entry of a detail document's names list.
type LocalizedName struct {
	Name     string   `json:"name"`
	Language NamedRef `json:"language"`
}

type detail struct {
	ID          *int            `json:"id"`
	Generation  *NamedRef       `json:"generation"`
	Color       *NamedRef       `json:"color"`
	Type        *NamedRef       `json:"type"`
	DamageClass *NamedRef       `json:"damage_class"`
	Names       []LocalizedName `json:"names"`
}

func decode(raw []byte) (*detail, error) {
	var d detail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}
	if d.ID == nil {
		return nil, fmt.Errorf("%w: missing id", ErrShape)
	}
	return &d, nil
}

func tag(ref *NamedRef) any {
	if ref == nil || ref.Name == "" {
		return nil
	}
	return ref.Name
}

// DisplayName picks the primary locale name, then the secondary, then key.
func (l Locales) DisplayName(names []LocalizedName, key string) string {
	for _, lang := range []string{l.Primary, l.Secondary} {
		if lang == "" {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(n.Language.Name, lang) && n.Name != "" {
				return n.Name
			}
		}
	}
	return key
}

// Abilities returns the ability definition.
func Abilities(l Locales) Definition {
	return Definition{
		Name:     "abilities",
		Key:      "ability",
		Dir:      "abilities",
		Endpoint: "ability",
		Extract: func(raw []byte, key string) (Record, error) {
			d, err := decode(raw)
			if err != nil {
				return nil, err
			}
			return Record{
				"id":         *d.ID,
				"generation": tag(d.Generation),
				"name":       l.DisplayName(d.Names, key),
			}, nil
		},
	}
}

// Species returns the species definition.
func Species(l Locales) Definition {
	return Definition{
		Name:     "species",
		Key:      "species",
		Dir:      "species",
		Endpoint: "pokemon-species",
		Extract: func(raw []byte, key string) (Record, error) {
			d, err := decode(raw)
			if err != nil {
				return nil, err
			}
			return Record{
				"id":         *d.ID,
				"generation": tag(d.Generation),
				"color":      tag(d.Color),
				"name":       l.DisplayName(d.Names, key),
			}, nil
		},
	}
}

// Moves returns the move definition.
func Moves(l Locales) Definition {
	return Definition{
		Name:     "moves",
		Key:      "move",
		Dir:      "moves",
		Endpoint: "move",
		Extract: func(raw []byte, key string) (Record, error) {
			d, err := decode(raw)
			if err != nil {
				return nil, err
			}
			return Record{
				"id":           *d.ID,
				"generation":   tag(d.Generation),
				"type":         tag(d.Type),
				"damage_class": tag(d.DamageClass),
				"name":         l.DisplayName(d.Names, key),
			}, nil
		},
	}
}

// Registry returns every resource definition in sync order.
func Registry(l Locales) []Definition {
	return []Definition{Abilities(l), Species(l), Moves(l)}
}

// Lookup returns the definitions named by names, in the order given.
// An empty names selects the whole registry.
func Lookup(l Locales, names ...string) ([]Definition, error) {
	all := Registry(l)
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Definition, len(all))
	for _, d := range all {
		byName[d.Name] = d
		byName[d.Key] = d
	}

	var out []Definition
	seen := make(map[string]bool)
	for _, name := range names {
		d, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: abilities, species, moves)", ErrUnknownResource, name)
		}
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out, nil
}
