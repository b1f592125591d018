package exam

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOption(t *testing.T) {
	for in, want := range map[string]Option{"A": OptionA, "b": OptionB, " c ": OptionC, "D\n": OptionD} {
		got, err := ParseOption(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "E", "AB", "1", "option a"} {
		_, err := ParseOption(in)
		assert.ErrorIs(t, err, ErrInvalidOption, in)
	}
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty(" hard")
	require.NoError(t, err)
	assert.Equal(t, Hard, d)

	_, err = ParseDifficulty("expert")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPublicQuestionHidesAnswerKey(t *testing.T) {
	q := bank("Science", 1)[0]
	raw, err := json.Marshal(q.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_option")
	assert.Contains(t, string(raw), q.OptionA)
	assert.Equal(t, q.ID, q.Public().ID)
}

func TestQuestionValidate(t *testing.T) {
	good := bank("Science", 1)[0]
	require.NoError(t, good.Validate())

	tests := map[string]func(q *Question){
		"no subject":     func(q *Question) { q.Subject = " " },
		"no content":     func(q *Question) { q.Content = "" },
		"bad difficulty": func(q *Question) { q.Difficulty = "Trivial" },
		"bad key":        func(q *Question) { q.CorrectOption = "Z" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			q := good
			mutate(&q)
			assert.Error(t, q.Validate())
		})
	}
}
