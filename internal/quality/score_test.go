package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, Report{}, Score(nil, Options{}))
	})

	t.Run("transition and trailing fragment", func(t *testing.T) {
		t.Parallel()
		r := Score([]string{
			"However, the committee decided to postpone the final vote until next week.",
			"and nobody complained",
		}, Options{})

		assert.Equal(t, 2, r.Count)
		assert.InDelta(t, 0.5, r.IdealRatio, 1e-9)
		assert.InDelta(t, 0.4, r.Naturalness, 1e-9)
		assert.InDelta(t, 0.3, r.Readability, 1e-9)
		assert.InDelta(t, 0.41, r.Overall, 1e-9)
		assert.InDelta(t, 47.5, r.AvgLength, 1e-9)
		assert.InDelta(t, 26.5, r.StdDev, 1e-9)
		assert.Equal(t, 21, r.MinLength)
		assert.Equal(t, 74, r.MaxLength)
	})

	t.Run("custom ideal band", func(t *testing.T) {
		t.Parallel()
		r := Score([]string{"Stop.", "Listen carefully."}, Options{IdealMin: 1, IdealMax: 10})
		assert.InDelta(t, 0.5, r.IdealRatio, 1e-9)
	})

	t.Run("lengths count runes", func(t *testing.T) {
		t.Parallel()
		r := Score([]string{"¿Qué?"}, Options{})
		assert.Equal(t, 5, r.MaxLength)
	})
}

func TestCompare(t *testing.T) {
	t.Parallel()

	fragmented := []string{"Stop.", "Listen carefully.", "This is important.", "We must act now."}
	joined := []string{"Stop. Listen carefully. This is important. We must act now."}

	c := Compare(fragmented, joined, Options{})
	assert.Equal(t, UseGenerated, c.Recommendation)
	assert.InDelta(t, 0.21, c.Gold.Overall, 1e-9)
	assert.InDelta(t, 0.76, c.Generated.Overall, 1e-9)
	assert.Contains(t, c.Reasoning, "significantly higher")

	c = Compare(joined, fragmented, Options{})
	assert.Equal(t, KeepGold, c.Recommendation)

	c = Compare(joined, joined, Options{})
	assert.Equal(t, UseGenerated, c.Recommendation)
	assert.Contains(t, c.Reasoning, "close")
}
