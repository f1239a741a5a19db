package questions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandom_Counts(t *testing.T) {
	require.Len(t, Random(5), 5)
	require.Len(t, Random(0), DefaultCount)
	require.Len(t, Random(-3), DefaultCount)
	require.Len(t, Random(10000), len(pool))
}

func TestRandom_EveryQuestionIsWellFormed(t *testing.T) {
	for _, q := range Random(len(pool)) {
		require.NotEmpty(t, q.Question)
		require.Len(t, q.Options, 4)
		require.Contains(t, q.Options, q.CorrectAnswer)
		require.Equal(t, q.CorrectAnswer, q.Options[q.CorrectAnswerIndex])
	}
}

func TestRandom_DoesNotShareOptionSlices(t *testing.T) {
	got := Random(len(pool))
	for i := range got {
		got[i].Options[0] = "mutated"
	}
	for _, q := range pool {
		require.NotEqual(t, "mutated", q.Options[0])
	}
}
