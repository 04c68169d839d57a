package segment

import (
	"math"
	"slices"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// optimizer splits sentences longer than maxSize at the best internal break.
type optimizer struct {
	rules   *ruleSet
	target  int
	minSize int
	maxSize int

	// conjunctionBias is the fraction of the sentence length that
	// comma+conjunction candidates are ranked against.
	conjunctionBias float64
}

// split returns sentence unchanged when it fits, otherwise the pieces of the
// first break class that produces a valid split, each piece split again
// while it is still too long. A sentence without any valid break comes back
// whole. Protected spans and candidates are computed once per sentence and
// the recursion works on rune ranges of it.
func (o *optimizer) split(sentence string) []string {
	if utf8.RuneCountInString(sentence) <= o.maxSize {
		return []string{sentence}
	}
	runes := []rune(sentence)
	spans := o.rules.spans(sentence)
	byClass := make([][]BreakCandidate, len(o.rules.breaks))
	for i, class := range o.rules.breaks {
		byClass[i] = o.candidates(class, sentence, runes, spans)
	}
	return o.splitRange(runes, byClass, 0, len(runes), nil)
}

func (o *optimizer) splitRange(runes []rune, byClass [][]BreakCandidate, lo, hi int, out []string) []string {
	if hi-lo <= o.maxSize {
		return append(out, string(runes[lo:hi]))
	}
	p, ok := o.bestSplit(runes, byClass, lo, hi)
	if !ok {
		return append(out, string(runes[lo:hi]))
	}
	llo, lhi := trimRange(runes, lo, p)
	rlo, rhi := trimRange(runes, p, hi)
	out = o.splitRange(runes, byClass, llo, lhi, out)
	return o.splitRange(runes, byClass, rlo, rhi, out)
}

// bestSplit walks the break classes in priority order and commits to the
// first class with a candidate inside runes[lo:hi] leaving both trimmed
// parts at least minSize long.
func (o *optimizer) bestSplit(runes []rune, byClass [][]BreakCandidate, lo, hi int) (int, bool) {
	for ci, class := range o.rules.breaks {
		all := byClass[ci]
		from := sort.Search(len(all), func(i int) bool { return all[i].Position > lo })
		to := sort.Search(len(all), func(i int) bool { return all[i].Position >= hi })
		if from >= to {
			continue
		}

		candidates := slices.Clone(all[from:to])
		anchor := float64(lo) + o.anchor(class.Kind, hi-lo)
		sort.SliceStable(candidates, func(i, j int) bool {
			return math.Abs(float64(candidates[i].Position)-anchor) <
				math.Abs(float64(candidates[j].Position)-anchor)
		})
		for _, c := range candidates {
			llo, lhi := trimRange(runes, lo, c.Position)
			rlo, rhi := trimRange(runes, c.Position, hi)
			if lhi-llo >= o.minSize && rhi-rlo >= o.minSize {
				return c.Position, true
			}
		}
	}
	return 0, false
}

// trimRange narrows runes[lo:hi] to exclude surrounding whitespace.
func trimRange(runes []rune, lo, hi int) (int, int) {
	for lo < hi && unicode.IsSpace(runes[lo]) {
		lo++
	}
	for hi > lo && unicode.IsSpace(runes[hi-1]) {
		hi--
	}
	return lo, hi
}

// anchor is the rune position candidates of a class are ranked against.
func (o *optimizer) anchor(kind BreakKind, n int) float64 {
	switch kind {
	case CommaConjunctionBreak:
		return o.conjunctionBias * float64(n)
	case WordBreak:
		return float64(min(o.target, n))
	default:
		return float64(n) / 2
	}
}

// candidates lists the split points of one class in left-to-right order.
// Points whose trigger rune sits inside a protected span are dropped.
func (o *optimizer) candidates(class BreakClass, sentence string, runes []rune, spans []ProtectedSpan) []BreakCandidate {
	var out []BreakCandidate
	if class.Pattern == nil {
		for i, r := range runes {
			if i == 0 || !unicode.IsSpace(r) || insideAny(spans, i) {
				continue
			}
			out = append(out, BreakCandidate{Position: i, Class: class.Kind, Matched: string(r)})
		}
		return out
	}
	eachMatch(class.Pattern, sentence, func(m *regexp2.Match) {
		if insideAny(spans, m.Index) {
			return
		}
		out = append(out, BreakCandidate{
			Position: m.Index + m.Length,
			Class:    class.Kind,
			Matched:  m.String(),
		})
	})
	return out
}
