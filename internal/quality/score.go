// Package quality scores chunk sets for speech naturalness. It is an offline
// instrument for tuning the segmenter and plays no part in synthesis.
package quality

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultIdealMin = 40
	DefaultIdealMax = 150

	idealWeight       = 0.4
	naturalnessWeight = 0.3
	readabilityWeight = 0.3

	// recommendationMargin is how far apart two overall scores must be
	// before one chunk set is preferred over the other.
	recommendationMargin = 0.1
)

// Options sets the ideal chunk length band, in runes, inclusive.
type Options struct {
	IdealMin int
	IdealMax int
}

func (o Options) withDefaults() Options {
	if o.IdealMin <= 0 {
		o.IdealMin = DefaultIdealMin
	}
	if o.IdealMax <= 0 {
		o.IdealMax = DefaultIdealMax
	}
	return o
}

// Report holds the scores of one chunk set.
type Report struct {
	Count       int     `json:"count" yaml:"count"`
	IdealRatio  float64 `json:"ideal_ratio" yaml:"ideal_ratio"`
	Naturalness float64 `json:"naturalness" yaml:"naturalness"`
	Readability float64 `json:"readability" yaml:"readability"`
	Overall     float64 `json:"overall" yaml:"overall"`

	AvgLength float64 `json:"avg_length" yaml:"avg_length"`
	MinLength int     `json:"min_length" yaml:"min_length"`
	MaxLength int     `json:"max_length" yaml:"max_length"`
	StdDev    float64 `json:"std_dev" yaml:"std_dev"`
}

// Score evaluates chunks. An empty set scores zero everywhere.
func Score(chunks []string, opts Options) Report {
	opts = opts.withDefaults()
	if len(chunks) == 0 {
		return Report{}
	}

	r := Report{Count: len(chunks), MinLength: math.MaxInt}
	lengths := make([]int, len(chunks))
	var (
		total, ideal  int
		natural, read float64
	)
	for i, c := range chunks {
		n := utf8.RuneCountInString(c)
		lengths[i] = n
		total += n
		r.MinLength = min(r.MinLength, n)
		r.MaxLength = max(r.MaxLength, n)
		if n >= opts.IdealMin && n <= opts.IdealMax {
			ideal++
		}
		natural += naturalness(c)
		read += readability(c)
	}

	count := float64(len(chunks))
	r.AvgLength = float64(total) / count
	var variance float64
	for _, n := range lengths {
		d := float64(n) - r.AvgLength
		variance += d * d
	}
	r.StdDev = math.Sqrt(variance / count)

	r.IdealRatio = float64(ideal) / count
	r.Naturalness = natural / count
	r.Readability = read / count
	r.Overall = idealWeight*r.IdealRatio + naturalnessWeight*r.Naturalness + readabilityWeight*r.Readability
	return r
}

var leadingConjunctions = []string{"and ", "but ", "or ", "so ", "yet "}

// naturalness rewards chunks that end and start where a speaker would pause.
func naturalness(chunk string) float64 {
	chunk = strings.TrimSpace(chunk)
	var score float64

	if endsWithAny(chunk, ".!?;") {
		score += 0.3
	}
	first, _ := utf8.DecodeRuneInString(chunk)
	if unicode.IsUpper(first) || hasAnyPrefix(strings.ToLower(chunk), leadingConjunctions) {
		score += 0.2
	}
	if !endsWithAny(chunk, ".!?;,") {
		score -= 0.2
	}
	if strings.ContainsAny(chunk, ".!?") {
		score += 0.3
	}
	return score
}

var transitions = []string{"however", "therefore", "moreover", "furthermore"}

// readability rewards chunks of 10 to 25 words and chunks that open with a
// transition word.
func readability(chunk string) float64 {
	var score float64
	switch words := len(strings.Fields(chunk)); {
	case words >= 10 && words <= 25:
		score += 0.4
	case words >= 5 && words <= 35:
		score += 0.2
	default:
		score -= 0.1
	}
	if hasAnyPrefix(strings.ToLower(strings.TrimSpace(chunk)), transitions) {
		score += 0.3
	}
	return score
}

func endsWithAny(s, chars string) bool {
	last, size := utf8.DecodeLastRuneInString(s)
	return size > 0 && strings.ContainsRune(chars, last)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
