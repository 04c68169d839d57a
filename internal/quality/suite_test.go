package quality

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pablopda/linux-speech-tools/internal/segment"
)

func TestLoadSuite(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		file string
		lang segment.Language
	}{
		{"english.yaml", segment.English},
		{"spanish.yaml", segment.Spanish},
	} {
		tc := tc
		t.Run(tc.file, func(t *testing.T) {
			t.Parallel()
			s, err := LoadSuite(filepath.Join("testdata", tc.file))
			require.NoError(t, err)
			assert.Equal(t, tc.lang, s.Language)
			assert.Len(t, s.Cases, 20)
			for _, c := range s.Cases {
				assert.NotEmpty(t, c.Name)
				assert.NotEmpty(t, c.IdealChunks)
			}
		})
	}
}

func TestLoadSuiteErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadSuite(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseSuite([]byte("cases:\n  - id: 1\n    name: empty\n    text: \"\"\n"))
	assert.ErrorContains(t, err, "needs text and ideal_chunks")

	_, err = ParseSuite([]byte("language: klingon\n"))
	assert.Error(t, err)
}

type fixedChunker map[string][]string

func (f fixedChunker) Chunk(text string) []string { return f[text] }

func TestEvaluateSuite(t *testing.T) {
	t.Parallel()

	suite := &Suite{
		Language: segment.English,
		Cases: []Case{
			{ID: 1, Name: "match", Text: "a", IdealChunks: []string{"One. Two."}},
			{ID: 2, Name: "mismatch", Text: "b", IdealChunks: []string{"One.", "Two."}},
		},
	}
	c := fixedChunker{"a": {"One. Two."}, "b": {"One. Two."}}

	res := EvaluateSuite(c, suite, Options{})
	require.Len(t, res.Cases, 2)
	assert.Equal(t, 1, res.ExactMatches)
	assert.True(t, res.Cases[0].ExactMatch)
	assert.False(t, res.Cases[1].ExactMatch)
	assert.Equal(t, []string{"One.", "Two."}, suite.Cases[1].IdealChunks)

	assert.Equal(t, SuiteResult{Language: segment.Spanish}, EvaluateSuite(c, &Suite{Language: segment.Spanish}, Options{}))
}

func TestEvaluateSuiteWithEngine(t *testing.T) {
	t.Parallel()

	s, err := LoadSuite(filepath.Join("testdata", "english.yaml"))
	require.NoError(t, err)
	e, err := segment.New(segment.DefaultConfig())
	require.NoError(t, err)

	res := EvaluateSuite(e, s, Options{})
	require.Len(t, res.Cases, len(s.Cases))
	byID := make(map[int]CaseResult, len(res.Cases))
	for _, c := range res.Cases {
		byID[c.ID] = c
		assert.NotEmpty(t, c.Generated, c.Name)
	}
	assert.True(t, byID[1].ExactMatch)
	assert.True(t, byID[19].ExactMatch)
	assert.GreaterOrEqual(t, res.ExactMatches, 2)
	assert.Greater(t, res.MeanGenerated, 0.0)
}

func TestEvaluateSuitePinsEngineLanguage(t *testing.T) {
	t.Parallel()

	// "Dra." is a title only under the Spanish rules; the text itself
	// detects as English.
	text := "Ask Dra. Lopez today. Then leave."
	e, err := segment.New(segment.Config{TargetSize: 10, MinSize: 5, MaxSize: 40})
	require.NoError(t, err)
	require.Equal(t, segment.English, e.Language(text))
	require.Equal(t, []string{"Ask Dra.", "Lopez today.", "Then leave."}, e.Chunk(text))

	suite := &Suite{
		Language: segment.Spanish,
		Cases:    []Case{{ID: 1, Name: "title", Text: text, IdealChunks: []string{"Ask Dra. Lopez today.", "Then leave."}}},
	}
	res := EvaluateSuite(e, suite, Options{})
	require.Len(t, res.Cases, 1)
	assert.Equal(t, []string{"Ask Dra. Lopez today.", "Then leave."}, res.Cases[0].Generated)
	assert.Equal(t, 1, res.ExactMatches)

	suite.Language = segment.Auto
	res = EvaluateSuite(e, suite, Options{})
	assert.Equal(t, 0, res.ExactMatches)
}

func TestEngineChunkSizesStayInBounds(t *testing.T) {
	t.Parallel()

	cfg := segment.DefaultConfig()
	e, err := segment.New(cfg)
	require.NoError(t, err)

	var total, inBounds int
	for _, file := range []string{"english.yaml", "spanish.yaml"} {
		s, err := LoadSuite(filepath.Join("testdata", file))
		require.NoError(t, err)
		pinned := e.WithLanguage(s.Language)

		for _, tc := range s.Cases {
			chunks := pinned.Chunks(tc.Text)
			require.NotEmpty(t, chunks, tc.Name)
			for i, c := range chunks {
				total++
				last := i == len(chunks)-1
				if c.Length <= cfg.MaxSize && (last || c.Length >= cfg.MinSize) {
					inBounds++
				} else {
					t.Logf("%s: chunk %d has %d runes: %q", file, i, c.Length, c.Text)
				}
			}
		}
	}

	require.Positive(t, total)
	ratio := float64(inBounds) / float64(total)
	assert.GreaterOrEqual(t, ratio, 0.9, "%d of %d chunks within [%d,%d]", inBounds, total, cfg.MinSize, cfg.MaxSize)
}
