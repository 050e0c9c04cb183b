package page

import (
	"slices"

	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// DynamicInclude is a reference rendered to its own artifact instead of being inlined.
type DynamicInclude struct {
	From   string // file containing the reference
	To     string // referenced file
	AsIfAt string // file whose location the artifact is rendered as if it were at
}

// DependencySet records every source file a page's output depends on.
//
// A set is owned by exclusively one page generation and is not safe for
// concurrent use. It grows monotonically during one pass and is reset at the
// start of the next.
type DependencySet struct {
	static  sets.Set[string]
	dynamic []DynamicInclude
	seenDyn sets.Set[DynamicInclude]
	missing sets.Set[string]
}

// NewDependencySet returns an empty set.
func NewDependencySet() *DependencySet {
	d := &DependencySet{}
	d.Reset()
	return d
}

// Reset clears all three collections.
func (d *DependencySet) Reset() {
	d.static = sets.New[string]()
	d.dynamic = nil
	d.seenDyn = sets.New[DynamicInclude]()
	d.missing = sets.New[string]()
}

// AddStatic records a file whose content is inlined into the page.
func (d *DependencySet) AddStatic(path string) {
	if path != "" {
		d.static.Add(path)
	}
}

// AddDynamic records a reference rendered to a separate artifact.
func (d *DependencySet) AddDynamic(inc DynamicInclude) {
	if d.seenDyn.Add(inc) {
		d.dynamic = append(d.dynamic, inc)
	}
}

// AddMissing records a reference that did not resolve.
func (d *DependencySet) AddMissing(path string) {
	if path != "" {
		d.missing.Add(path)
	}
}

// Merge folds other into d.
func (d *DependencySet) Merge(other *DependencySet) {
	if other == nil {
		return
	}
	d.static.Union(other.static)
	d.missing.Union(other.missing)
	for _, inc := range other.dynamic {
		d.AddDynamic(inc)
	}
}

// Static returns the statically included files in sorted order.
func (d *DependencySet) Static() []string { return sets.Sorted(d.static) }

// Missing returns unresolved references in sorted order.
func (d *DependencySet) Missing() []string { return sets.Sorted(d.missing) }

// Dynamic returns dynamic includes in the order they were recorded.
func (d *DependencySet) Dynamic() []DynamicInclude { return slices.Clone(d.dynamic) }

// Files returns every file path that, when changed, invalidates the page.
func (d *DependencySet) Files() []string {
	all := d.static.Clone()
	all.Union(d.missing)
	for _, inc := range d.dynamic {
		all.Add(inc.To)
	}
	return sets.Sorted(all)
}

// Intersects reports whether any dependency is in changed.
func (d *DependencySet) Intersects(changed sets.Set[string]) bool {
	for p := range d.static {
		if changed.Has(p) {
			return true
		}
	}
	for p := range d.missing {
		if changed.Has(p) {
			return true
		}
	}
	for _, inc := range d.dynamic {
		if changed.Has(inc.To) {
			return true
		}
	}
	return false
}
