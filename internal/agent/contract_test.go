package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractCheck(t *testing.T) {
	c, err := NewContract()
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		v, err := c.Check([]byte(`{"final_answer": "Yes.", "verdict": "True", "reasoning_trace": "ok", "evidence": [], "recommendations": []}`))
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("soft", func(t *testing.T) {
		v, err := c.Check([]byte(`{"final_answer": "?", "verdict": "Maybe", "evidence": [{"type": "blog", "content": "x", "score": 0.5}]}`))
		require.NoError(t, err)
		require.Len(t, v, 2)
		assert.False(t, Fatal(v))

		labels := []string{v[0].Label(), v[1].Label()}
		assert.ElementsMatch(t, []string{"verdict", "evidence.type"}, labels)
	})

	t.Run("fatal", func(t *testing.T) {
		v, err := c.Check([]byte(`{"verdict": "True"}`))
		require.NoError(t, err)
		assert.True(t, Fatal(v))
	})

	t.Run("not json", func(t *testing.T) {
		_, err := c.Check([]byte(`nope`))
		assert.Error(t, err)
	})
}

func TestViolationLabel(t *testing.T) {
	assert.Equal(t, "evidence.score", Violation{Field: "evidence.12.score"}.Label())
	assert.Equal(t, "verdict", Violation{Field: "verdict"}.Label())
}
