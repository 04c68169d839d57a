package segment

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func FuzzChunk(f *testing.F) {
	seeds := []string{
		"",
		"x",
		"Dr. Smith works at the U.S. Department. He is busy.",
		"Great work! (Nice job.) However, fix the bug; specifically, the timeout.",
		"¿Estás listo? ¡Sí! Vamos a las 3:30 p.m. con el Dr. García.",
		"__PROTECT_0_0__ stays as typed.",
		"((( \"unbalanced. Quotes\" ))) ...",
		strings.Repeat("word, and more words; ", 40),
		"(!)0",
		"She checked it twice (really!). Then she left the office early.",
		"The result was odd (see the appendix.), but we moved on.",
		`She yelled "Stop! Go back now!" and ran toward the door.`,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	e, err := New(Config{TargetSize: 60, MinSize: 15, MaxSize: 120})
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, text string) {
		if !utf8.ValidString(text) {
			t.Skip()
		}
		chunks := e.Chunk(text)
		if strings.TrimSpace(text) == "" {
			if chunks != nil {
				t.Fatalf("blank input produced %q", chunks)
			}
			return
		}
		if len(chunks) == 0 {
			t.Fatalf("no chunks for %q", text)
		}
		for _, c := range chunks {
			if strings.TrimSpace(c) == "" {
				t.Fatalf("empty chunk in %q", chunks)
			}
		}
		if got, want := normalizeSpace(strings.Join(chunks, " ")), normalizeSpace(text); got != want {
			t.Fatalf("content changed:\n got %q\nwant %q", got, want)
		}
	})
}
