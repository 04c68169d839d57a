package segment

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one piece of output text, sized for a single synthesis call.
// Length counts runes.
type Chunk struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// assembler groups sentences into chunks greedily.
type assembler struct {
	target  int
	minSize int
	maxSize int
	opt     *optimizer
}

func (a *assembler) assemble(sentences []Sentence) []string {
	var (
		out    []string
		buf    []string
		bufLen int
	)
	flush := func() {
		if len(buf) > 0 {
			out = append(out, strings.Join(buf, " "))
			buf, bufLen = buf[:0], 0
		}
	}

	for _, s := range sentences {
		n := utf8.RuneCountInString(s.Text)
		switch {
		case n > a.maxSize:
			flush()
			out = append(out, a.opt.split(s.Text)...)
		case s.Hard:
			flush()
			out = append(out, s.Text)
		case bufLen == 0:
			buf, bufLen = append(buf, s.Text), n
		case bufLen+1+n <= a.target:
			buf, bufLen = append(buf, s.Text), bufLen+1+n
		case bufLen < a.minSize && bufLen+1+n <= a.maxSize:
			// undersized buffers may grow past target, never past max
			buf, bufLen = append(buf, s.Text), bufLen+1+n
		default:
			flush()
			buf, bufLen = append(buf, s.Text), n
		}
	}
	flush()
	return out
}
