package segment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

const placeholderPrefix = "__PROTECT_"

var placeholderPattern = mustCompile(`__PROTECT_[0-9]+_[0-9]+__`)

// ProtectedSpan is a substring that must never be read as a sentence end.
// Start and End are rune offsets into the text given to Protect.
type ProtectedSpan struct {
	PatternID   int
	Start       int
	End         int
	Original    string
	Placeholder string
}

// Mask is the result of Protect: the masked text plus what is needed to
// undo it.
type Mask struct {
	Text  string
	Spans []ProtectedSpan

	originals map[string]string
}

// MaskingError is the panic value raised when a placeholder cannot be
// restored. It always indicates a bug in the pattern tables, never bad input.
type MaskingError struct {
	Placeholder string
}

func (e *MaskingError) Error() string {
	return fmt.Sprintf("segment: unrecoverable masking state: no original for %s", e.Placeholder)
}

// Protect replaces every protected span of text with a placeholder of the
// form __PROTECT_<pattern>_<match>__.
//
// Text that already contains the placeholder prefix is returned unmasked:
// restoring it would otherwise rewrite the caller's own characters.
func Protect(text string, lang Language) *Mask {
	if strings.Contains(text, placeholderPrefix) {
		return &Mask{Text: text}
	}

	spans := rulesFor(resolve(lang, text)).spans(text)
	if len(spans) == 0 {
		return &Mask{Text: text}
	}

	runes := []rune(text)
	originals := make(map[string]string, len(spans))

	var b strings.Builder
	b.Grow(len(text) + len(spans)*len(placeholderPrefix))
	last := 0
	for _, s := range spans {
		b.WriteString(string(runes[last:s.Start]))
		b.WriteString(s.Placeholder)
		originals[s.Placeholder] = s.Original
		last = s.End
	}
	b.WriteString(string(runes[last:]))

	return &Mask{Text: b.String(), Spans: spans, originals: originals}
}

// Restore substitutes every placeholder in text with its original. It is a
// no-op on text without placeholders, so restoring twice is harmless, and on
// any text when the mask protected nothing.
// A placeholder that this mask did not produce panics with *MaskingError.
func (m *Mask) Restore(text string) string {
	if len(m.originals) == 0 || !strings.Contains(text, placeholderPrefix) {
		return text
	}
	out, err := placeholderPattern.ReplaceFunc(text, func(match regexp2.Match) string {
		token := match.String()
		original, ok := m.originals[token]
		if !ok {
			panic(&MaskingError{Placeholder: token})
		}
		return original
	}, -1, -1)
	if err != nil {
		panic(fmt.Errorf("segment: restore placeholders: %w", err))
	}
	return out
}

// original returns the text hidden behind the placeholder that starts at
// runes[i], if any.
func (m *Mask) original(runes []rune, i int) (string, bool) {
	if len(m.originals) == 0 || runes[i] != '_' {
		return "", false
	}
	rest := string(runes[i:min(len(runes), i+64)])
	if !strings.HasPrefix(rest, placeholderPrefix) {
		return "", false
	}
	end := strings.Index(rest[len(placeholderPrefix):], "__")
	if end < 0 {
		return "", false
	}
	token := rest[:len(placeholderPrefix)+end+2]
	original, ok := m.originals[token]
	return original, ok
}

// spans finds the protected spans of text: each pattern in table order,
// skipping matches that overlap a span claimed by an earlier pattern.
func (r *ruleSet) spans(text string) []ProtectedSpan {
	var spans []ProtectedSpan
	for pi, re := range r.protected {
		mi := 0
		eachMatch(re, text, func(m *regexp2.Match) {
			start, end := m.Index, m.Index+m.Length
			if m.Length == 0 || overlapsAny(spans, start, end) {
				return
			}
			spans = append(spans, ProtectedSpan{
				PatternID:   pi,
				Start:       start,
				End:         end,
				Original:    m.String(),
				Placeholder: fmt.Sprintf("%s%d_%d__", placeholderPrefix, pi, mi),
			})
			mi++
		})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

func overlapsAny(spans []ProtectedSpan, start, end int) bool {
	for _, s := range spans {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}

// insideAny reports whether rune offset i lies within one of spans.
func insideAny(spans []ProtectedSpan, i int) bool {
	for _, s := range spans {
		if i >= s.Start && i < s.End {
			return true
		}
	}
	return false
}

func resolve(lang Language, text string) Language {
	if lang == Auto {
		return DetectLanguage(text)
	}
	return lang
}
