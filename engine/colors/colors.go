package colors

// Color is linear RGBA in [0..1].
type Color [4]float32

var (
	White       = Color{1, 1, 1, 1}
	Black       = Color{0, 0, 0, 1}
	Yellow      = Color{1, 1, 0, 1}
	Gray        = Color{0.5, 0.5, 0.5, 1}
	DarkGray    = Color{0.08, 0.10, 0.12, 1}
	Transparent = Color{}
)

func (c Color) WithAlpha(a float32) Color {
	c[3] = a
	return c
}

// Alpha is the opacity channel.
func (c Color) Alpha() float32 { return c[3] }

// Visible reports whether anything would be drawn.
func (c Color) Visible() bool { return c[3] > 0 }
