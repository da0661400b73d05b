package filter

// isRedLoose is the strong-red rule without the brightness condition
func isRedLoose(r, g, b uint8) bool {
	ri, gi, bi := int(r), int(g), int(b)
	return ri > 150 && 5*ri > 6*gi && 2*ri > 3*bi
}

// isPinkish is r > 140, r > 1.1g and r > 1.2b
func isPinkish(r, g, b uint8) bool {
	ri, gi, bi := int(r), int(g), int(b)
	return ri > 140 && 10*ri > 11*gi && 5*ri > 6*bi
}

// applyApproximate is the fast tier. Light anti-aliased pinks covered by
// the table can survive, while some warm greys the reference filter keeps
// are erased. There is no residual pass for either replacement color.
func (f Filter) applyApproximate(buf *Buffer) Stats {
	repl := f.Replacement.RGB()
	pix := buf.Pix
	st := Stats{Pixels: buf.Width * buf.Height}

	for i := 0; i+2 < len(pix); i += Channels {
		r, g, b := pix[i], pix[i+1], pix[i+2]
		switch {
		case isRedLoose(r, g, b):
			st.StrongRed++
		case isPinkish(r, g, b):
			st.Pinkish++
		default:
			continue
		}
		pix[i], pix[i+1], pix[i+2] = repl.R, repl.G, repl.B
	}
	return st
}
