package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/users"
)

type recordingWriter struct {
	got []users.User
}

func (w *recordingWriter) Upsert(_ context.Context, u users.User, password string) (users.User, error) {
	if password != DemoPassword {
		return users.User{}, exam.ErrInvalidInput
	}
	w.got = append(w.got, u)
	return u, nil
}

func TestQuestionsBank(t *testing.T) {
	qs := Questions()
	require.Len(t, qs, len(Subjects)*3*PerTier)

	keys := map[exam.Difficulty]exam.Option{exam.Easy: exam.OptionA, exam.Medium: exam.OptionB, exam.Hard: exam.OptionC}
	ids := map[string]bool{}
	for _, q := range qs {
		require.NoError(t, q.Validate())
		assert.Equal(t, keys[q.Difficulty], q.CorrectOption, q.ID)
		assert.False(t, ids[q.ID], "duplicate id %s", q.ID)
		ids[q.ID] = true
	}
	assert.Equal(t, "science-easy-1", qs[0].ID)
	assert.Equal(t, "This is a Easy question about Basic Concept 1 in Science.", qs[0].Content)
}

func TestRunIsIdempotent(t *testing.T) {
	store := exam.NewMemoryStore()
	w := &recordingWriter{}
	ctx := context.Background()

	res, err := Run(ctx, store, w, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, res.QuestionsInserted)
	assert.Equal(t, 3, res.Users)

	res, err = Run(ctx, store, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.QuestionsInserted)
	assert.Equal(t, 30, res.QuestionsUpdated)
	assert.Zero(t, res.Users)

	hard, err := store.FindBySubjectAndDifficulty(ctx, "Mathematics", exam.Hard)
	require.NoError(t, err)
	assert.Len(t, hard, PerTier)
}

func TestDemoUsersHaveStableIDs(t *testing.T) {
	a, b := Users(), Users()
	require.Len(t, a, 3)
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, users.StatusApproved, a[i].Status)
	}
	assert.Equal(t, users.RoleStudent, a[0].Role)
	assert.Equal(t, users.RoleAdmin, a[2].Role)
}
