package chunking

import "context"

// separators in priority order: paragraph break, line break, sentence
// end, word boundary. The splitter prefers the highest-priority
// separator that appears in the back half of the current window so
// chunks stay reasonably full.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// recursiveSplitter walks the text window by window, cutting at the last
// occurrence of the best available separator inside each window. When no
// separator exists the window is cut hard at the budget.
type recursiveSplitter struct{}

func (recursiveSplitter) name() string { return StrategyRecursive }

func (recursiveSplitter) cuts(_ context.Context, text []rune, budget int) []int {
	var out []int
	prev := 0
	for len(text)-prev > budget {
		cut := cutWithin(text, prev, prev+budget)
		out = append(out, cut)
		prev = cut
	}
	return append(out, len(text))
}

// cutWithin finds the best cut point in (lo, hi]. Separators found in
// the front half of the window are ignored so a stray newline near the
// start cannot produce a sliver chunk.
func cutWithin(text []rune, lo, hi int) int {
	minPos := lo + (hi-lo)/2
	for _, sep := range separators {
		if pos := lastSeparator(text, sep, minPos, hi); pos > 0 {
			return pos
		}
	}
	return hi
}

// lastSeparator returns the position just after the last occurrence of
// sep whose end falls in (minPos, hi], or -1.
func lastSeparator(text []rune, sep []rune, minPos, hi int) int {
	for end := hi; end-len(sep) >= minPos; end-- {
		if matchAt(text, sep, end-len(sep)) {
			return end
		}
	}
	return -1
}

func matchAt(text, sep []rune, at int) bool {
	if at < 0 || at+len(sep) > len(text) {
		return false
	}
	for i, r := range sep {
		if text[at+i] != r {
			return false
		}
	}
	return true
}
