// Package editdistance computes Levenshtein distance over runes.
package editdistance

// Levenshtein returns the minimum number of single-rune insertions, deletions
// and substitutions that turn a into b. It fills the full (len(a)+1)x(len(b)+1)
// matrix.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
		}
	}

	return d[n][m]
}

// Within reports whether the distance between a and b is at most k.
// Only the diagonal band of width 2k+1 is evaluated, so the cost is
// O(k·max(len(a), len(b))) regardless of input length.
func Within(a, b string, k int) bool {
	if k < 0 {
		return false
	}
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if abs(n-m) > k {
		return false
	}

	// Cells outside the band are treated as k+1.
	over := k + 1
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		if j <= k {
			prev[j] = j
		} else {
			prev[j] = over
		}
	}

	for i := 1; i <= n; i++ {
		lo := max(1, i-k)
		hi := min(m, i+k)

		for j := range curr {
			curr[j] = over
		}
		if i <= k {
			curr[0] = i
		}

		rowMin := curr[0]
		for j := lo; j <= hi; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			v := min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if v > over {
				v = over
			}
			curr[j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if rowMin > k {
			return false
		}
		prev, curr = curr, prev
	}

	return prev[m] <= k
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
