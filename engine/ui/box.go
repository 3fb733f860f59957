package ui

// UIBox is a leaf element drawn as a filled rectangle.
type UIBox struct {
	Common[*UIBox]
}

func Box() *UIBox {
	b := &UIBox{}
	b.Common = NewCommon(b)
	return b
}

func (l *UIBox) Layout(c Constraints) LayoutResult {
	b := &l.base
	b.size = [2]float32{
		b.resolveAxis(0, b.padAxis(0), c),
		b.resolveAxis(1, b.padAxis(1), c),
	}
	return LayoutResult{Size: b.size}
}
