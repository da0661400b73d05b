// Package filter removes red and pink ink from rasterized pages.
//
// A pixel is erased in the first pass when it is strongly red or lies close
// to one of the entries of a Table. When painting over with white a second,
// broader pass whitens every remaining reddish pixel. The second pass is
// skipped for black: repainting leftover warm pixels with black would smear
// content that is not red.
package filter

// Verdict is the outcome of classifying a single pixel
type Verdict int

const (
	Keep Verdict = iota
	StrongRed
	TableMatch
	Residual
	Pinkish // approximate tier only
)

func (v Verdict) String() string {
	switch v {
	case StrongRed:
		return "strong-red"
	case TableMatch:
		return "table-match"
	case Residual:
		return "residual"
	case Pinkish:
		return "pinkish"
	}
	return "keep"
}

// Stats counts how many pixels each rule erased
type Stats struct {
	Pixels     int
	StrongRed  int
	TableMatch int
	Residual   int
	Pinkish    int
}

// Erased returns the total number of repainted pixels
func (s Stats) Erased() int {
	return s.StrongRed + s.TableMatch + s.Residual + s.Pinkish
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.Pixels += other.Pixels
	s.StrongRed += other.StrongRed
	s.TableMatch += other.TableMatch
	s.Residual += other.Residual
	s.Pinkish += other.Pinkish
}

// Filter is a configured red-removal filter. The zero value uses an empty
// table; use New for the built-in palette.
type Filter struct {
	Table       Table
	Replacement Replacement
	Algorithm   Algorithm
}

// New returns a filter using the default table
func New(replacement Replacement, algorithm Algorithm) Filter {
	return Filter{
		Table:       DefaultTable(),
		Replacement: replacement,
		Algorithm:   algorithm,
	}
}

// isStrongRed is r > 150, r > 1.2g, r > 1.5b and r+g+b > 100, kept in
// integer arithmetic
func isStrongRed(r, g, b uint8) bool {
	ri, gi, bi := int(r), int(g), int(b)
	return ri > 150 && 5*ri > 6*gi && 2*ri > 3*bi && ri+gi+bi > 100
}

// isResidual is the broad cleanup rule of the second pass
func isResidual(r, g, b uint8) bool {
	return r > g && r > b && r > 180
}

// Classify reports what the two-pass filter does with a pixel of the given
// color. It always uses the reference rules, whatever f.Algorithm is.
func (f Filter) Classify(c RGB) Verdict {
	if isStrongRed(c.R, c.G, c.B) {
		return StrongRed
	}
	if f.Table.Match(c.R, c.G, c.B) >= 0 {
		return TableMatch
	}
	if f.Replacement == White && isResidual(c.R, c.G, c.B) {
		return Residual
	}
	return Keep
}

// Apply filters buf in place and returns per-rule counts. A malformed
// buffer is a programming error and panics.
func (f Filter) Apply(buf *Buffer) Stats {
	buf.validate()
	switch f.Algorithm {
	case Accelerated:
		return f.applyAccelerated(buf)
	case Approximate:
		return f.applyApproximate(buf)
	}
	return f.applyReference(buf)
}

// applyReference runs both passes one pixel at a time
func (f Filter) applyReference(buf *Buffer) Stats {
	repl := f.Replacement.RGB()
	pix := buf.Pix
	st := Stats{Pixels: buf.Width * buf.Height}

	// Pass 1: strong red, then the near-color table
	for i := 0; i+2 < len(pix); i += Channels {
		r, g, b := pix[i], pix[i+1], pix[i+2]
		switch {
		case isStrongRed(r, g, b):
			st.StrongRed++
		case f.Table.Match(r, g, b) >= 0:
			st.TableMatch++
		default:
			continue
		}
		pix[i], pix[i+1], pix[i+2] = repl.R, repl.G, repl.B
	}

	if f.Replacement != White {
		return st
	}

	// Pass 2: leftover reds, white only
	for i := 0; i+2 < len(pix); i += Channels {
		if isResidual(pix[i], pix[i+1], pix[i+2]) {
			pix[i], pix[i+1], pix[i+2] = 255, 255, 255
			st.Residual++
		}
	}
	return st
}
