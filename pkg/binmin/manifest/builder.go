package manifest

import "github.com/jamesainslie/binmin/pkg/binmin/types"

// Builder accumulates a manifest during collection. It is not safe for
// concurrent use; callers serialize access.
type Builder struct {
	folders  []string
	pack     map[string][]string
	unique   []string
	notFound []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{pack: make(map[string][]string)}
}

// AddFolder records a source directory.
func (b *Builder) AddFolder(path string) {
	b.folders = append(b.folders, path)
}

// EnsureKey creates an empty pack entry for path unless one exists.
func (b *Builder) EnsureKey(path string) {
	if _, ok := b.pack[path]; !ok {
		b.pack[path] = []string{}
	}
}

// AddDerived appends derived to target's list, creating the entry if needed.
func (b *Builder) AddDerived(target, derived string) {
	b.pack[target] = append(b.pack[target], derived)
}

// AddNotFound records an unresolved reference.
func (b *Builder) AddNotFound(paths ...string) {
	b.notFound = append(b.notFound, paths...)
}

// SetUnique replaces the list of files kept as they are.
func (b *Builder) SetUnique(paths []string) {
	b.unique = append([]string{}, paths...)
}

// Draft returns a copy of the in-progress pack with every derived list in
// natural order.
func (b *Builder) Draft() map[string][]string {
	out := copyPack(b.pack)
	for _, v := range out {
		types.SortNatural(v)
	}
	return out
}

// ReplacePack swaps in a consolidated pack.
func (b *Builder) ReplacePack(pack map[string][]string) {
	b.pack = copyPack(pack)
}

// Build freezes the builder's state into an immutable Manifest. The builder
// can keep being used; later changes do not affect the returned value.
func (b *Builder) Build() *Manifest {
	return New(b.folders, b.pack, b.unique, b.notFound)
}
