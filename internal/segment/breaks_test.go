package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer(lang Language, target, minSize, maxSize int, bias float64) *optimizer {
	return &optimizer{
		rules:           rulesFor(lang),
		target:          target,
		minSize:         minSize,
		maxSize:         maxSize,
		conjunctionBias: bias,
	}
}

func TestOptimizerSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		bias float64
		want []string
	}{
		{
			name: "fits already",
			in:   "short enough.",
			bias: 0.6,
			want: []string{"short enough."},
		},
		{
			name: "conjunction nearest sixty percent",
			in:   "aaaa bbbb cccc dddd, and eeee ffff gggg hhhh iiii, and jjjj kkkk llll.",
			bias: 0.6,
			want: []string{"aaaa bbbb cccc dddd, and eeee ffff gggg hhhh iiii,", "and jjjj kkkk llll."},
		},
		{
			name: "bias is tunable",
			in:   "aaaa bbbb cccc dddd, and eeee ffff gggg hhhh iiii, and jjjj kkkk llll.",
			bias: 0.3,
			want: []string{"aaaa bbbb cccc dddd,", "and eeee ffff gggg hhhh iiii, and jjjj kkkk llll."},
		},
		{
			name: "semicolon beats plain comma",
			in:   "aaaa bbbb cccc dddd eeee; ffff gggg hhhh iiii jjjj, kkkk llll mmmm.",
			bias: 0.6,
			want: []string{"aaaa bbbb cccc dddd eeee;", "ffff gggg hhhh iiii jjjj, kkkk llll mmmm."},
		},
		{
			name: "too short parts fall through to word boundary",
			in:   "aaaa, and bbbb cccc dddd eeee ffff gggg hhhh iiii jjjj kkkk llll mmmm nnnn.",
			bias: 0.6,
			want: []string{"aaaa, and bbbb cccc dddd eeee ffff gggg", "hhhh iiii jjjj kkkk llll mmmm nnnn."},
		},
		{
			name: "sentence end inside an oversized piece",
			in:   "This part is long. It keeps going for a while. And then it ends here.",
			bias: 0.6,
			want: []string{"This part is long. It keeps going for a while.", "And then it ends here."},
		},
		{
			name: "no whitespace at all",
			in:   strings.Repeat("x", 100),
			bias: 0.6,
			want: []string{strings.Repeat("x", 100)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := newTestOptimizer(English, 40, 10, 60, tt.bias)
			assert.Equal(t, tt.want, o.split(tt.in))
		})
	}
}

func TestOptimizerRecursesUntilPiecesFit(t *testing.T) {
	t.Parallel()

	in := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 12))
	o := newTestOptimizer(English, 40, 10, 60, 0.6)

	pieces := o.split(in)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		assert.LessOrEqual(t, n, 60, p)
		assert.GreaterOrEqual(t, n, 10, p)
	}
	assert.Equal(t, in, strings.Join(pieces, " "))
}

func TestOptimizerSplitsLongParagraphOnWords(t *testing.T) {
	t.Parallel()

	in := strings.TrimSpace(strings.Repeat("speech without any punctuation ", 520))
	require.Greater(t, utf8.RuneCountInString(in), 16000)
	o := newTestOptimizer(English, 150, 40, 300, 0.6)

	pieces := o.split(in)
	require.Greater(t, len(pieces), 50)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		assert.LessOrEqual(t, n, 300)
		assert.GreaterOrEqual(t, n, 40)
		assert.Equal(t, strings.TrimSpace(p), p)
	}
	assert.Equal(t, in, strings.Join(pieces, " "))
}

func BenchmarkOptimizerSplitLongParagraph(b *testing.B) {
	in := strings.TrimSpace(strings.Repeat("speech without any punctuation ", 520))
	o := newTestOptimizer(English, 150, 40, 300, 0.6)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		o.split(in)
	}
}

func TestWordCandidatesSkipProtectedSpans(t *testing.T) {
	t.Parallel()

	sentence := "We met at 3:30 P.M today"
	o := newTestOptimizer(English, 40, 10, 60, 0.6)
	runes := []rune(sentence)

	var positions []int
	for _, c := range o.candidates(BreakClass{Kind: WordBreak}, sentence, runes, o.rules.spans(sentence)) {
		positions = append(positions, c.Position)
	}
	assert.Equal(t, []int{2, 6, 9, 18}, positions)
}

func TestSentenceEndCandidatesSkipAbbreviations(t *testing.T) {
	t.Parallel()

	sentence := "Ask Dr. Smith first. Then go."
	o := newTestOptimizer(English, 40, 10, 60, 0.6)
	class := o.rules.breaks[0]
	require.Equal(t, SentenceEndBreak, class.Kind)

	got := o.candidates(class, sentence, []rune(sentence), o.rules.spans(sentence))
	require.Len(t, got, 1)
	assert.Equal(t, 20, got[0].Position)
	assert.Equal(t, ".", got[0].Matched)
}

func TestBreakKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "comma_conjunction", CommaConjunctionBreak.String())
	assert.Equal(t, "word", WordBreak.String())
	assert.Equal(t, "BreakKind(42)", BreakKind(42).String())
}
