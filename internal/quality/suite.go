package quality

import (
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/pablopda/linux-speech-tools/internal/segment"
)

// Suite is a set of texts with independently written ideal chunkings.
type Suite struct {
	Language segment.Language `yaml:"language"`
	Cases    []Case           `yaml:"cases"`
}

// Case is one entry of a Suite.
type Case struct {
	ID          int      `yaml:"id"`
	Name        string   `yaml:"name"`
	Text        string   `yaml:"text"`
	IdealChunks []string `yaml:"ideal_chunks"`
}

// LoadSuite reads a YAML suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite %s: %w", path, err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes a YAML suite. Every case needs text and at least one
// ideal chunk.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode suite: %w", err)
	}
	for i, c := range s.Cases {
		if c.Text == "" || len(c.IdealChunks) == 0 {
			return nil, fmt.Errorf("decode suite: case %d (%q) needs text and ideal_chunks", i, c.Name)
		}
	}
	return &s, nil
}

// CaseResult is how the engine did on one case.
type CaseResult struct {
	ID         int        `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Generated  []string   `json:"generated" yaml:"generated"`
	Ideal      []string   `json:"ideal" yaml:"ideal"`
	ExactMatch bool       `json:"exact_match" yaml:"exact_match"`
	Comparison Comparison `json:"comparison" yaml:"comparison"`
}

// SuiteResult aggregates a suite run.
type SuiteResult struct {
	Language      segment.Language `json:"language" yaml:"language"`
	Cases         []CaseResult     `json:"cases" yaml:"cases"`
	ExactMatches  int              `json:"exact_matches" yaml:"exact_matches"`
	MeanGold      float64          `json:"mean_gold" yaml:"mean_gold"`
	MeanGenerated float64          `json:"mean_generated" yaml:"mean_generated"`
}

// Chunker is the part of the engine a suite run needs.
type Chunker interface {
	Chunk(text string) []string
}

// languagePinner is implemented by *segment.Engine.
type languagePinner interface {
	WithLanguage(lang segment.Language) *segment.Engine
}

// EvaluateSuite chunks every case text and compares the result with the
// ideal chunks. The ideal chunks are only read, never updated. When the
// suite names a language and c is an engine, the engine is pinned to it.
func EvaluateSuite(c Chunker, suite *Suite, opts Options) SuiteResult {
	res := SuiteResult{Language: suite.Language}
	if p, ok := c.(languagePinner); ok && suite.Language != segment.Auto {
		c = p.WithLanguage(suite.Language)
	}
	if len(suite.Cases) == 0 {
		return res
	}

	for _, tc := range suite.Cases {
		generated := c.Chunk(tc.Text)
		cr := CaseResult{
			ID:         tc.ID,
			Name:       tc.Name,
			Generated:  generated,
			Ideal:      tc.IdealChunks,
			ExactMatch: slices.Equal(generated, tc.IdealChunks),
			Comparison: Compare(tc.IdealChunks, generated, opts),
		}
		if cr.ExactMatch {
			res.ExactMatches++
		}
		res.MeanGold += cr.Comparison.Gold.Overall
		res.MeanGenerated += cr.Comparison.Generated.Overall
		res.Cases = append(res.Cases, cr)
	}

	n := float64(len(suite.Cases))
	res.MeanGold /= n
	res.MeanGenerated /= n
	return res
}
