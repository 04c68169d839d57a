package quality

import "fmt"

// Recommendation says which of two chunk sets to prefer.
type Recommendation string

const (
	UseGenerated Recommendation = "use_generated"
	KeepGold     Recommendation = "keep_gold"
)

// Comparison is the outcome of Compare.
type Comparison struct {
	Gold           Report         `json:"gold" yaml:"gold"`
	Generated      Report         `json:"generated" yaml:"generated"`
	Recommendation Recommendation `json:"recommendation" yaml:"recommendation"`
	Reasoning      string         `json:"reasoning" yaml:"reasoning"`
}

// Compare scores a reference chunk set against a generated one. Generated
// chunks are preferred unless the reference wins by more than 0.1.
func Compare(gold, generated []string, opts Options) Comparison {
	c := Comparison{
		Gold:      Score(gold, opts),
		Generated: Score(generated, opts),
	}

	g, r := c.Generated.Overall, c.Gold.Overall
	switch {
	case g > r+recommendationMargin:
		c.Recommendation = UseGenerated
		c.Reasoning = fmt.Sprintf("generated chunks score significantly higher (%.3f vs %.3f)", g, r)
	case r > g+recommendationMargin:
		c.Recommendation = KeepGold
		c.Reasoning = fmt.Sprintf("gold chunks score higher (%.3f vs %.3f)", r, g)
	default:
		c.Recommendation = UseGenerated
		c.Reasoning = fmt.Sprintf("scores are close (%.3f vs %.3f)", g, r)
	}
	return c
}
