// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	paletteSize = 256
	amin        = 1e-5 // Amplitude floor before the dB conversion.
	topDB       = 80.0 // Values further than this below the slice maximum are raised to it.
)

// heatStops are the control points of the dark-to-bright heat ramp
// (black through purple, red and orange to pale yellow).
var heatStops = []struct {
	pos float64
	hex string
}{
	{0.00, "#000004"},
	{0.13, "#1b0c41"},
	{0.25, "#4a0c6b"},
	{0.38, "#781c6d"},
	{0.50, "#a52c60"},
	{0.63, "#cf4446"},
	{0.75, "#ed6925"},
	{0.88, "#fb9b06"},
	{0.95, "#f7d13d"},
	{1.00, "#fcffa4"},
}

// RGB is an 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// Hex formats the colour as #rrggbb.
func (c RGB) Hex() string {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
}

// MarshalJSON encodes the colour as a hex string.
func (c RGB) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.Hex() + `"`), nil
}

// Palette is a fixed lookup table of display colours, darkest first.
type Palette struct {
	colors [paletteSize]RGB
}

// NewHeatPalette samples the heat ramp into a 256 entry table. Stops are
// blended in CIE L*a*b* so perceived brightness rises smoothly.
func NewHeatPalette() *Palette {
	p := &Palette{}
	stop := 0
	for i := range paletteSize {
		t := float64(i) / float64(paletteSize-1)
		for stop < len(heatStops)-2 && t > heatStops[stop+1].pos {
			stop++
		}
		a, b := heatStops[stop], heatStops[stop+1]
		c1, c2 := mustHex(a.hex), mustHex(b.hex)
		c := c1.BlendLab(c2, (t-a.pos)/(b.pos-a.pos)).Clamped()
		// Truncate rather than round, like scaling a float colour to bytes.
		p.colors[i] = RGB{R: uint8(c.R * 255), G: uint8(c.G * 255), B: uint8(c.B * 255)}
	}
	return p
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// At maps v in [0,1] to a colour. Index floor(v*256), with 1.0 mapped to
// the last entry; out-of-range values are clamped.
func (p *Palette) At(v float64) RGB {
	idx := int(v * paletteSize)
	idx = min(max(idx, 0), paletteSize-1)
	return p.colors[idx]
}

// Min returns the colour used for the quietest bins.
func (p *Palette) Min() RGB { return p.colors[0] }

// Max returns the colour used for the loudest bins.
func (p *Palette) Max() RGB { return p.colors[paletteSize-1] }

// ColorOf converts spectrum bins into colours and writes them into dst,
// which must be at least len(coeffs) long. Magnitudes become dB relative to
// 1.0 with an amplitude floor and an 80 dB window below the slice maximum,
// then are clamped to [minDB, maxDB] and normalised onto the palette.
// Deterministic for identical input.
func ColorOf(coeffs []complex128, dst []RGB, p *Palette, minDB, maxDB float64) {
	peak := math.Inf(-1)
	for _, c := range coeffs {
		peak = max(peak, toDB(c))
	}
	floor := peak - topDB
	span := maxDB - minDB

	for i, c := range coeffs {
		db := max(toDB(c), floor)
		db = min(max(db, minDB), maxDB)
		dst[i] = p.At((db - minDB) / span)
	}
}

func toDB(c complex128) float64 {
	mag := math.Hypot(real(c), imag(c))
	return 20 * math.Log10(max(mag, amin))
}

// Spectrogram is a scrolling time/frequency image: one colour column per
// analysis step, newest on the right. Columns live in a ring indexed by a
// rotating head so scrolling never copies the image.
type Spectrogram struct {
	setup  *Setup
	height int   // Display bins per column.
	width  int   // Columns kept.
	pixels []RGB // width columns of height colours, column major.
	held   []RGB // Last coloured column, repeated when no window arrives.
	head   int   // Index of the next column to write.
	added  uint64
}

// NewSpectrogram allocates an image of setup.SpectrogramWidth columns by
// setup.DisplayBins rows, initially black.
func NewSpectrogram(setup *Setup) *Spectrogram {
	h, w := setup.DisplayBins, setup.SpectrogramWidth
	return &Spectrogram{
		setup:  setup,
		height: h,
		width:  w,
		pixels: make([]RGB, h*w),
		held:   make([]RGB, h),
	}
}

// Add scrolls the image by one column. A new slice is coloured first; a nil
// slice repeats the previous column.
func (s *Spectrogram) Add(slice *Slice) {
	if slice != nil {
		ColorOf(slice.Coeffs[:s.height], s.held, s.setup.Palette, s.setup.MinDB, s.setup.MaxDB)
	}
	copy(s.pixels[s.head*s.height:(s.head+1)*s.height], s.held)
	s.head = (s.head + 1) % s.width
	s.added++
}

// Height returns the number of frequency rows.
func (s *Spectrogram) Height() int { return s.height }

// Width returns the number of time columns.
func (s *Spectrogram) Width() int { return s.width }

// Column returns column x in display order, 0 being the oldest and
// Width()-1 the newest. The slice aliases internal storage.
func (s *Spectrogram) Column(x int) []RGB {
	i := (s.head + x) % s.width
	return s.pixels[i*s.height : (i+1)*s.height]
}

// Latest returns the most recently written column.
func (s *Spectrogram) Latest() []RGB {
	return s.Column(s.width - 1)
}

// At returns the colour at frequency row bin and display column x.
func (s *Spectrogram) At(bin, x int) RGB {
	return s.Column(x)[bin]
}

// Image linearises the ring into dst as rows of frequency bins, each row
// holding Width() colours from oldest to newest, the layout a texture
// upload expects. dst is grown if needed and returned.
func (s *Spectrogram) Image(dst []RGB) []RGB {
	n := s.height * s.width
	if cap(dst) < n {
		dst = make([]RGB, n)
	}
	dst = dst[:n]
	for x := range s.width {
		col := s.Column(x)
		for bin, c := range col {
			dst[bin*s.width+x] = c
		}
	}
	return dst
}

// Columns returns how many columns have been added since creation.
func (s *Spectrogram) Columns() uint64 { return s.added }
