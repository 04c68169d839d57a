package segment

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Language selects the rule tables used for a segmentation call.
type Language int

const (
	Auto    Language = iota // zero value, detect per call
	English                 // English rule tables
	Spanish                 // Spanish rule tables
)

var languageNames = [...]string{
	Auto:    "auto",
	English: "en",
	Spanish: "es",
}

// String returns the ISO 639-1 code of the language, or "auto".
func (l Language) String() string {
	if int(l) >= 0 && int(l) < len(languageNames) {
		return languageNames[l]
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Tag returns the BCP 47 tag of the language. Auto maps to language.Und.
func (l Language) Tag() language.Tag {
	switch l {
	case English:
		return language.English
	case Spanish:
		return language.Spanish
	default:
		return language.Und
	}
}

// MarshalText encodes the language as its code (e.g. "es").
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts anything ParseLanguage accepts.
func (l *Language) UnmarshalText(text []byte) error {
	lang, err := ParseLanguage(string(text))
	if err != nil {
		return err
	}
	*l = lang
	return nil
}

// ParseLanguage maps a user supplied name or BCP 47 tag ("es-MX", "english",
// "") onto a Language. The empty string and "auto" select detection.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "auto":
		return Auto, nil
	case "english":
		return English, nil
	case "spanish", "español", "espanol":
		return Spanish, nil
	}

	tag, err := language.Parse(s)
	if err != nil {
		return Auto, fmt.Errorf("segment: unknown language %q: %w", s, err)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return English, nil
	case "es":
		return Spanish, nil
	}
	return Auto, fmt.Errorf("segment: unsupported language %q", s)
}

// spanishMarks are runes that never occur in plain English prose.
const spanishMarks = "áéíóúñüÁÉÍÓÚÑÜ¡¿"

var englishFunctionWords = wordSet(
	"the", "and", "for", "with", "from", "where", "when", "because", "although", "however",
	"a", "an", "of", "in", "to", "is", "was", "were",
)

var spanishFunctionWords = wordSet(
	"que", "para", "con", "por", "desde", "hasta", "donde", "cuando", "porque", "aunque",
	"el", "la", "los", "las", "es", "en", "de",
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// DetectLanguage classifies text as English or Spanish.
//
// Any Spanish-only diacritic or inverted punctuation mark decides Spanish
// outright. Otherwise whole-word, case-insensitive counts of two fixed
// function-word lists are compared and Spanish must win strictly; ties,
// including texts with no function words at all, resolve to English.
func DetectLanguage(text string) Language {
	text = norm.NFC.String(text)
	if strings.ContainsAny(text, spanishMarks) {
		return Spanish
	}

	// cases.Caser is stateful, one per call.
	folded := cases.Fold().String(text)

	var en, es int
	for _, w := range strings.FieldsFunc(folded, isWordSeparator) {
		if _, ok := englishFunctionWords[w]; ok {
			en++
		}
		if _, ok := spanishFunctionWords[w]; ok {
			es++
		}
	}
	if es > en {
		return Spanish
	}
	return English
}

func isWordSeparator(r rune) bool {
	return !unicode.IsLetter(r) && r != '\''
}
