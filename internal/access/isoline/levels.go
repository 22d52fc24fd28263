package isoline

// Breakpoints returns nClass+1 equal-interval breakpoints from 0 to top.
// The last one is top itself so the upper band always reaches the raster maximum.
func Breakpoints(top float64, nClass int) []float64 {
	if nClass < 1 {
		return nil
	}
	step := top / float64(nClass)
	out := make([]float64, nClass+1)
	for i := range out {
		out[i] = float64(i) * step
	}
	out[nClass] = top
	return out
}
