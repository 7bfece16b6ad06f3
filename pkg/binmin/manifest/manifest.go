// Package manifest holds the record produced by duplicate detection and
// consolidation: the source folders, the canonical-to-derived pack, the
// files kept as they are, and the references that could not be resolved.
//
// A manifest is assembled through a Builder, which is append-only, and then
// frozen with Build. The resulting *Manifest never changes; every accessor
// returns a copy, so downstream stages (restore, verification, commit) can
// share it freely.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/jamesainslie/binmin/pkg/binmin/types"
	"gopkg.in/yaml.v3"
)

// Manifest is an immutable minimization record.
type Manifest struct {
	folders  []string
	pack     map[string][]string
	unique   []string
	notFound []string
}

// wire is the serialized shape shared by the JSON and YAML codecs.
type wire struct {
	Folders  []string            `json:"folders" yaml:"folders"`
	Pack     map[string][]string `json:"pack" yaml:"pack"`
	Unique   []string            `json:"unique,omitempty" yaml:"unique,omitempty"`
	NotFound []string            `json:"notFound" yaml:"notFound"`
}

// New freezes the given parts into a Manifest. Inputs are copied.
//
// unique lists regular files that have no duplicates and no links; they are
// neither canonical nor derived but still belong to the tree.
func New(folders []string, pack map[string][]string, unique, notFound []string) *Manifest {
	m := &Manifest{
		folders:  dedupeSorted(folders),
		pack:     copyPack(pack),
		unique:   dedupeSorted(unique),
		notFound: append([]string{}, notFound...),
	}
	return m
}

// Folders returns the source directories in natural order.
func (m *Manifest) Folders() []string {
	return append([]string{}, m.folders...)
}

// Canonicals returns every pack key in natural order.
func (m *Manifest) Canonicals() []string {
	keys := make([]string, 0, len(m.pack))
	for k := range m.pack {
		keys = append(keys, k)
	}
	types.SortNatural(keys)
	return keys
}

// Derived returns the derived list of a canonical path.
func (m *Manifest) Derived(canonical string) []string {
	return append([]string{}, m.pack[canonical]...)
}

// Has reports whether path is a pack key.
func (m *Manifest) Has(canonical string) bool {
	_, ok := m.pack[canonical]
	return ok
}

// Pack returns a copy of the canonical-to-derived mapping.
func (m *Manifest) Pack() map[string][]string {
	return copyPack(m.pack)
}

// Unique returns the files kept as they are, in natural order.
func (m *Manifest) Unique() []string {
	return append([]string{}, m.unique...)
}

// NotFound returns the unresolved references in discovery order.
func (m *Manifest) NotFound() []string {
	return append([]string{}, m.notFound...)
}

// Len returns the number of canonical entries.
func (m *Manifest) Len() int {
	return len(m.pack)
}

// DerivedCount returns the total number of derived paths.
func (m *Manifest) DerivedCount() int {
	n := 0
	for _, d := range m.pack {
		n += len(d)
	}
	return n
}

// Validate checks that no canonical path is also listed as derived, that
// no derived path is listed twice, and that unique files appear in neither
// role.
func (m *Manifest) Validate() error {
	if err := ValidatePack(m.pack); err != nil {
		return err
	}
	derived := make(map[string]string)
	for k, list := range m.pack {
		for _, d := range list {
			derived[d] = k
		}
	}
	for _, u := range m.unique {
		if _, isKey := m.pack[u]; isKey {
			return fmt.Errorf("unique path %q is also a canonical path", u)
		}
		if owner, ok := derived[u]; ok {
			return fmt.Errorf("unique path %q is also derived from %q", u, owner)
		}
	}
	return nil
}

// ValidatePack checks the key/value disjointness of a pack.
func ValidatePack(pack map[string][]string) error {
	owner := make(map[string]string)
	for _, key := range sortedKeys(pack) {
		for _, d := range pack[key] {
			if _, isKey := pack[d]; isKey {
				return fmt.Errorf("derived path %q of %q is also a canonical path", d, key)
			}
			if prev, dup := owner[d]; dup {
				return fmt.Errorf("derived path %q listed under both %q and %q", d, prev, key)
			}
			owner[d] = key
		}
	}
	return nil
}

// MarshalJSON encodes the manifest as {folders, pack, unique, notFound}.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.toWire())
}

// UnmarshalJSON decodes a manifest.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = *New(w.Folders, w.Pack, w.Unique, w.NotFound)
	return nil
}

// MarshalYAML encodes the manifest for gopkg.in/yaml.v3.
func (m *Manifest) MarshalYAML() (interface{}, error) {
	return m.toWire(), nil
}

// UnmarshalYAML decodes a manifest from a YAML node.
func (m *Manifest) UnmarshalYAML(node *yaml.Node) error {
	var w wire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*m = *New(w.Folders, w.Pack, w.Unique, w.NotFound)
	return nil
}

func (m *Manifest) toWire() wire {
	w := wire{
		Folders:  m.Folders(),
		Pack:     m.Pack(),
		Unique:   m.Unique(),
		NotFound: m.NotFound(),
	}
	return w
}

func copyPack(pack map[string][]string) map[string][]string {
	out := make(map[string][]string, len(pack))
	for k, v := range pack {
		out[k] = append([]string{}, v...)
	}
	return out
}

func sortedKeys(pack map[string][]string) []string {
	keys := make([]string, 0, len(pack))
	for k := range pack {
		keys = append(keys, k)
	}
	types.SortNatural(keys)
	return keys
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	types.SortNatural(out)
	return out
}
