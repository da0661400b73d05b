package filter

import (
	"runtime"
	"sync"
)

// minBandRows keeps tiny buffers on a single goroutine
const minBandRows = 64

// lookup holds one bit per 24-bit color: set when the color is within
// tolerance of some table entry
type lookup struct {
	table []uint64
}

func (l *lookup) has(r, g, b uint8) bool {
	idx := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	return l.table[idx>>6]&(1<<(idx&63)) != 0
}

func (l *lookup) set(r, g, b int) {
	idx := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	l.table[idx>>6] |= 1 << (idx & 63)
}

var (
	lookupMu    sync.Mutex
	lookupCache = map[string]*lookup{}
)

// lookupFor returns the cached lookup for t, building it on first use.
// Building marks the tolerance cube around every target instead of testing
// all 2^24 colors against the table.
func lookupFor(t Table) *lookup {
	key := t.key()

	lookupMu.Lock()
	defer lookupMu.Unlock()
	if l, ok := lookupCache[key]; ok {
		return l
	}

	l := &lookup{table: make([]uint64, (1<<24)/64)}
	for _, target := range t.Targets {
		d := int(target.Delta)
		c := target.Color
		for r := clamp(int(c.R) - d); r <= clamp(int(c.R)+d); r++ {
			for g := clamp(int(c.G) - d); g <= clamp(int(c.G)+d); g++ {
				for b := clamp(int(c.B) - d); b <= clamp(int(c.B)+d); b++ {
					l.set(r, g, b)
				}
			}
		}
	}
	lookupCache[key] = l
	return l
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// applyAccelerated produces the same pixels as applyReference. Both passes
// collapse into one: a pixel erased by pass 1 becomes white or black, and
// neither satisfies the residual rule, so pass 2 only ever sees pixels
// pass 1 left alone.
func (f Filter) applyAccelerated(buf *Buffer) Stats {
	lut := lookupFor(f.Table)
	repl := f.Replacement.RGB()
	white := f.Replacement == White

	bands := runtime.GOMAXPROCS(0)
	if maxBands := buf.Height / minBandRows; bands > maxBands {
		bands = maxBands
	}
	if bands < 1 {
		bands = 1
	}

	rowBytes := buf.Width * Channels
	rowsPerBand := (buf.Height + bands - 1) / bands
	results := make([]Stats, bands)

	var wg sync.WaitGroup
	for n := 0; n < bands; n++ {
		start := n * rowsPerBand
		end := start + rowsPerBand
		if end > buf.Height {
			end = buf.Height
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(n int, pix []uint8) {
			defer wg.Done()
			st := &results[n]
			for i := 0; i+2 < len(pix); i += Channels {
				r, g, b := pix[i], pix[i+1], pix[i+2]
				switch {
				case isStrongRed(r, g, b):
					st.StrongRed++
				case lut.has(r, g, b):
					st.TableMatch++
				case white && isResidual(r, g, b):
					st.Residual++
				default:
					continue
				}
				pix[i], pix[i+1], pix[i+2] = repl.R, repl.G, repl.B
			}
		}(n, buf.Pix[start*rowBytes:end*rowBytes])
	}
	wg.Wait()

	total := Stats{Pixels: buf.Width * buf.Height}
	for _, st := range results {
		total.Add(st)
	}
	return total
}
