package frame

import "github.com/hubastard/canopy/engine/core"

// RootSet holds the primary root followed by island roots, in insertion
// order. Walks visit every root in that order. Ids are unique.
type RootSet struct {
	list    []core.Root
	primary string
	hasPri  bool
}

// SetPrimary makes r the primary root, replacing the previous primary.
// Islands are kept; a root already present with r's id is moved to the
// front.
func (rs *RootSet) SetPrimary(r core.Root) {
	if rs.hasPri {
		rs.remove(rs.primary)
	}
	rs.remove(r.ID())
	rs.list = append([]core.Root{r}, rs.list...)
	rs.primary, rs.hasPri = r.ID(), true
}

// Push appends an island. A root with an id already present replaces it
// in place.
func (rs *RootSet) Push(r core.Root) {
	for i, have := range rs.list {
		if have.ID() == r.ID() {
			rs.list[i] = r
			return
		}
	}
	rs.list = append(rs.list, r)
}

// Remove drops the root with the given id.
func (rs *RootSet) Remove(id string) (core.Root, bool) {
	r, ok := rs.remove(id)
	if ok && rs.hasPri && id == rs.primary {
		rs.primary, rs.hasPri = "", false
	}
	return r, ok
}

func (rs *RootSet) remove(id string) (core.Root, bool) {
	for i, r := range rs.list {
		if r.ID() == id {
			rs.list = append(rs.list[:i], rs.list[i+1:]...)
			return r, true
		}
	}
	return nil, false
}

// Primary returns the primary root, if one was set.
func (rs *RootSet) Primary() (core.Root, bool) {
	if !rs.hasPri {
		return nil, false
	}
	return rs.list[0], true
}

// IsPrimary reports whether id names the primary root.
func (rs *RootSet) IsPrimary(id string) bool { return rs.hasPri && rs.primary == id }

func (rs *RootSet) Len() int { return len(rs.list) }

// All returns a copy of the roots, so callouts may add or remove roots
// while the caller iterates.
func (rs *RootSet) All() []core.Root { return append([]core.Root(nil), rs.list...) }

// ForEach calls f for every root until f returns false.
func (rs *RootSet) ForEach(f func(core.Root) bool) {
	for _, r := range rs.All() {
		if !f(r) {
			return
		}
	}
}

// AnyDirty reports whether some root needs a walk.
func (rs *RootSet) AnyDirty() bool {
	for _, r := range rs.list {
		if r.Dirty() {
			return true
		}
	}
	return false
}

// Invalidate marks every root dirty.
func (rs *RootSet) Invalidate() {
	for _, r := range rs.list {
		r.Invalidate()
	}
}
