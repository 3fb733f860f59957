package frame

import "time"

// Context is the transient state of one RunFrame call.
type Context struct {
	Frame       uint64
	Start       time.Time
	ForceRedraw bool

	// Walked is set once a render walk ran.
	Walked bool
	// CanSubmit permits the commit. A root left dirty by its walk clears it
	// unless PrevSkippedSubmit is set.
	CanSubmit bool
	// PrevSkippedSubmit is whether the previous frame skipped its commit.
	PrevSkippedSubmit bool
	// SkippedSubmit is set when a warranted commit was not made.
	SkippedSubmit bool
	Committed     bool
	// ForcedSubmit is set when a dirty root was submitted anyway.
	ForcedSubmit bool
}

// markLeftDirty records a root the walk could not clean.
func (c *Context) markLeftDirty() {
	if c.PrevSkippedSubmit {
		c.ForcedSubmit = true
		return
	}
	c.CanSubmit = false
}
