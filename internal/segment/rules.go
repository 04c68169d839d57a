package segment

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// BreakKind names a class of candidate split point inside an oversized
// sentence. Kinds are listed in the order the optimizer tries them.
type BreakKind int

const (
	SentenceEndBreak BreakKind = iota // terminal punctuation the splitter did not cut
	CommaConjunctionBreak
	SemicolonBreak
	SubordinatorBreak
	PlainCommaBreak
	WordBreak
)

var breakKindNames = [...]string{
	SentenceEndBreak:      "sentence_end",
	CommaConjunctionBreak: "comma_conjunction",
	SemicolonBreak:        "semicolon",
	SubordinatorBreak:     "subordinator",
	PlainCommaBreak:       "comma",
	WordBreak:             "word",
}

func (k BreakKind) String() string {
	if int(k) >= 0 && int(k) < len(breakKindNames) {
		return breakKindNames[k]
	}
	return fmt.Sprintf("BreakKind(%d)", int(k))
}

// BreakClass is one entry of a language's ordered break list. A nil Pattern
// means the class is matched on whitespace instead of a regular expression.
// Patterns match the punctuation that stays with the left part; the split
// falls right after the match.
type BreakClass struct {
	Kind    BreakKind
	Pattern *regexp2.Regexp
}

// BreakCandidate is a possible split location inside a sentence.
// Position is a rune offset: the left part is sentence[:Position].
type BreakCandidate struct {
	Position int
	Class    BreakKind
	Matched  string
}

// ruleSet holds everything language specific. Rule sets are built once at
// package initialization and never mutated.
type ruleSet struct {
	lang Language

	// protected is applied in order; earlier patterns win overlaps.
	protected []*regexp2.Regexp

	// openers may precede the capital letter that starts a sentence.
	openers string

	// transition matches a semicolon followed by a transition adverb.
	transition *regexp2.Regexp

	breaks []BreakClass
}

var (
	parenStatement = mustCompile(`\([^()]*[.!?…]["'”’]?\)`)

	sentenceEnd = mustCompile(`[.!?…]+["'”’)\]]*(?=\s+["“‘(\[¡¿«]*\p{Lu})`)
	semicolon   = mustCompile(`;(?=\s)`)
	plainComma  = mustCompile(`,(?=\s)`)
)

var rules = map[Language]*ruleSet{
	English: {
		lang: English,
		protected: compileAll(
			`\b(?:Dr|Mr|Mrs|Ms|Prof|Sr|Jr)\.`,
			`\b(?:Ph\.D|M\.D|B\.A|M\.A|B\.S|M\.S)(?:\.(?!\s*$))?`,
			`\b(?:U\.S\.A|U\.S|U\.K)\.(?!\s*$)`,
			`\b(?:etc|vs|i\.e|e\.g)\.`,
			`\b[0-9]+\.[0-9]+\b`,
			// A trailing meridiem at the very end of the text stays unmasked
			// so its period can terminate the last sentence.
			`\b[0-9]{1,2}:[0-9]{2}\s?[AaPp]\.[Mm](?!\.?\s*$)`,
			`\b(?:NASA|FBI|CIA|MIT|IBM|CEO|CFO|CTO|HTTPS|HTTP|SSL|TLS)\b`,
		),
		openers:    `"“‘'([`,
		transition: mustCompileIgnoreCase(`;(?=\s+(?:specifically|namely|however|therefore|furthermore)\b)`),
		breaks: []BreakClass{
			{Kind: SentenceEndBreak, Pattern: sentenceEnd},
			{Kind: CommaConjunctionBreak, Pattern: mustCompileIgnoreCase(`,(?=\s+(?:and|but|or|so|yet)\b)`)},
			{Kind: SemicolonBreak, Pattern: semicolon},
			{Kind: SubordinatorBreak, Pattern: mustCompileIgnoreCase(
				`,(?=\s+(?:which|that|who|whom|whose|where|when|because|although|though|while|whereas|since|unless|until|if)\b)`)},
			{Kind: PlainCommaBreak, Pattern: plainComma},
			{Kind: WordBreak},
		},
	},
	Spanish: {
		lang: Spanish,
		protected: compileAll(
			`\b(?:Dr|Dra|Sr|Sra|Srta|Prof|Lic|Ing)\.`,
			`\bEE\.\s?UU\b\.?`,
			`\b(?:etc|p\.ej|vs)\.`,
			`\b[0-9]+\.[0-9]+\b`,
			`\b[0-9]{1,2}:[0-9]{2}\s?[AaPp]\.[Mm]\.`,
			`\b(?:NASA|FBI|CIA|MIT|IBM|CEO|CFO|CTO|HTTPS|HTTP|SSL|TLS)\b`,
		),
		openers:    `"“‘'([«¡¿`,
		transition: mustCompileIgnoreCase(`;(?=\s+(?:específicamente|es decir|sin embargo|por lo tanto|además|no obstante)\b)`),
		breaks: []BreakClass{
			{Kind: SentenceEndBreak, Pattern: sentenceEnd},
			{Kind: CommaConjunctionBreak, Pattern: mustCompileIgnoreCase(`,(?=\s+(?:y|e|pero|o|u|ni|sino)\b)`)},
			{Kind: SemicolonBreak, Pattern: semicolon},
			{Kind: SubordinatorBreak, Pattern: mustCompileIgnoreCase(
				`,(?=\s+(?:que|quien|quienes|cual|cuales|cuyo|cuya|donde|cuando|porque|aunque|mientras|si)\b)`)},
			{Kind: PlainCommaBreak, Pattern: plainComma},
			{Kind: WordBreak},
		},
	},
}

// rulesFor returns the rule set of lang. Auto is not a rule set; callers
// resolve it first.
func rulesFor(lang Language) *ruleSet {
	if r, ok := rules[lang]; ok {
		return r
	}
	return rules[English]
}

func mustCompile(expr string) *regexp2.Regexp {
	return regexp2.MustCompile(expr, regexp2.None)
}

func mustCompileIgnoreCase(expr string) *regexp2.Regexp {
	return regexp2.MustCompile(expr, regexp2.IgnoreCase)
}

func compileAll(exprs ...string) []*regexp2.Regexp {
	out := make([]*regexp2.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = mustCompile(expr)
	}
	return out
}

// eachMatch calls fn for every non-overlapping match of re in s, left to
// right. Index and Length of the match are rune offsets.
func eachMatch(re *regexp2.Regexp, s string, fn func(m *regexp2.Match)) {
	m, err := re.FindStringMatch(s)
	// regexp2 only fails on match timeout, which is not configured here.
	for err == nil && m != nil {
		fn(m)
		m, err = re.FindNextMatch(m)
	}
}
