package matrix

// Range is a half-open index range [Start, End) into the combined coordinate list.
type Range struct {
	Start, End int
}

func (r Range) Len() int { return r.End - r.Start }

// Partition splits n indices into consecutive groups of at most size.
func Partition(n, size int) []Range {
	if n <= 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	out := make([]Range, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		out = append(out, Range{Start: start, End: end})
	}
	return out
}

// Pairs enumerates every ordered pair (i, j) of distinct group indices once,
// yielding k*(k-1) pairs for k groups.
func Pairs(k int) [][2]int {
	if k < 2 {
		return nil
	}
	seen := make(map[[2]int]struct{}, k*(k-1))
	out := make([][2]int, 0, k*(k-1))
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			p := [2]int{i, j}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// blockColumns lists the destination columns of the (src, dst) query: the
// source group itself followed by the destination group. The source group's
// own block is kept from whichever of its queries is merged first.
func blockColumns(src, dst Range) []int {
	out := make([]int, 0, src.Len()+dst.Len())
	for c := src.Start; c < src.End; c++ {
		out = append(out, c)
	}
	for c := dst.Start; c < dst.End; c++ {
		out = append(out, c)
	}
	return out
}
