package segment

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// Sentence is one unit produced by the boundary splitter, already restored
// and whitespace-normalized. Hard sentences came from a priority break
// (parenthetical statement, exclamation, semicolon before a transition) and
// are never merged with a neighbor.
type Sentence struct {
	Text string
	Hard bool
}

// splitSentences splits masked text into restored sentences. Paragraphs
// (separated by blank lines) are split independently.
func (r *ruleSet) splitSentences(m *Mask) []Sentence {
	var out []Sentence
	for _, para := range paragraphs(m.Text) {
		runes := []rune(para)

		cuts, hard := r.priorityCuts(para, runes, m)
		if !hard {
			cuts = r.terminalCuts(runes, m)
		}

		last := 0
		for _, c := range append(cuts, len(runes)) {
			if c <= last {
				continue
			}
			text := normalizeSpace(m.Restore(string(runes[last:c])))
			last = c
			if text == "" {
				continue
			}
			out = append(out, Sentence{Text: text, Hard: hard})
		}
	}
	return out
}

// priorityCuts finds the three priority break classes. When any of them is
// present the paragraph is split at those positions only.
func (r *ruleSet) priorityCuts(para string, runes []rune, m *Mask) ([]int, bool) {
	var cuts []int

	eachMatch(parenStatement, para, func(match *regexp2.Match) {
		start, end := match.Index, match.Index+match.Length
		if start > 0 && unicode.IsSpace(runes[start-1]) {
			cuts = append(cuts, start)
		}
		// punctuation glued to the closing parenthesis stays with it
		for end < len(runes) && unicode.IsPunct(runes[end]) {
			end++
		}
		if end < len(runes) && unicode.IsSpace(runes[end]) {
			cuts = append(cuts, end)
		}
	})

	var n nesting
	for i := 0; i < len(runes); i++ {
		if n.track(runes[i]) || runes[i] != '!' {
			continue
		}
		j := i
		for j+1 < len(runes) && runes[j+1] == '!' {
			j++
		}
		i = j
		if n.open() {
			continue
		}
		k := skipSpace(runes, j+1)
		if k == j+1 || k >= len(runes) {
			continue
		}
		if runes[k] == '(' || r.opensSentence(runes, k, m) {
			cuts = append(cuts, j+1)
		}
	}

	eachMatch(r.transition, para, func(match *regexp2.Match) {
		cuts = append(cuts, match.Index+match.Length)
	})

	if len(cuts) == 0 {
		return nil, false
	}
	sort.Ints(cuts)
	return cuts, true
}

// terminalCuts applies the primary rule: one or more of . ! ? (plus any
// closing quotes or brackets) followed by whitespace and a sentence opener.
// Terminators inside an open parenthesis or quotation do not cut.
func (r *ruleSet) terminalCuts(runes []rune, m *Mask) []int {
	var cuts []int
	var n nesting

	for i := 0; i < len(runes); i++ {
		if n.track(runes[i]) || !isTerminal(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		// closing marks right after the terminator belong to the sentence
		for j+1 < len(runes) {
			next := runes[j+1]
			if next == '"' && n.quoted || next == '”' {
				n.quoted = false
			} else if (next == ')' || next == ']') && n.depth > 0 {
				n.depth--
			} else if next != '\'' && next != '’' {
				break
			}
			j++
		}
		i = j
		if n.open() {
			continue
		}
		k := skipSpace(runes, j+1)
		if k == j+1 || k >= len(runes) {
			continue
		}
		if r.opensSentence(runes, k, m) {
			cuts = append(cuts, j+1)
		}
	}
	return cuts
}

// nesting tracks open brackets and double quotes while scanning.
type nesting struct {
	depth  int
	quoted bool
}

// track updates the state for ch and reports whether ch was a bracket or
// quote mark.
func (n *nesting) track(ch rune) bool {
	switch ch {
	case '(', '[':
		n.depth++
	case ')', ']':
		if n.depth > 0 {
			n.depth--
		}
	case '"':
		n.quoted = !n.quoted
	case '“':
		n.quoted = true
	case '”':
		n.quoted = false
	default:
		return false
	}
	return true
}

func (n *nesting) open() bool {
	return n.depth > 0 || n.quoted
}

// opensSentence reports whether a sentence may start at runes[i]: an
// uppercase letter, possibly behind opening quotes or brackets, or an
// inverted question or exclamation mark. A placeholder is judged by the
// text it hides.
func (r *ruleSet) opensSentence(runes []rune, i int, m *Mask) bool {
	for i < len(runes) && strings.ContainsRune(r.openers, runes[i]) {
		if runes[i] == '¡' || runes[i] == '¿' {
			return true
		}
		i++
	}
	if i >= len(runes) {
		return false
	}
	if original, ok := m.original(runes, i); ok {
		for _, ch := range original {
			return unicode.IsUpper(ch)
		}
	}
	return unicode.IsUpper(runes[i])
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

// paragraphs splits text on blank lines.
func paragraphs(text string) []string {
	var (
		out     []string
		current []string
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				out = append(out, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, "\n"))
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
