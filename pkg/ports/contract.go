package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	snap := &domain.Snapshot{
		Form:   "basic",
		Params: map[string]any{"user_id": "37"},
		Steps: []domain.Step{
			{
				Question:    domain.Question{ID: "1", Kind: domain.QuestionSimple, Prompt: "What is your name?"},
				StateBefore: json.RawMessage(`{"stage":"name"}`),
				Answer:      &domain.Answer{Kind: domain.AnswerText, Text: "Alice"},
			},
			{
				Question:    domain.Question{ID: "2", Kind: domain.QuestionSimple, Prompt: "How old are you, Alice?"},
				StateBefore: json.RawMessage(`{"stage":"age","name":"Alice"}`),
			},
		},
		CachedAnswers: map[string]domain.Answer{
			"1": {Kind: domain.AnswerText, Text: "Alice"},
		},
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, loaded.Steps, 2)
		assert.Equal(t, "basic", loaded.Form)
		assert.Equal(t, snap.Steps[0].Question, loaded.Steps[0].Question)
		assert.JSONEq(t, string(snap.Steps[1].StateBefore), string(loaded.Steps[1].StateBefore))
		require.NotNil(t, loaded.Steps[0].Answer)
		assert.Equal(t, "Alice", loaded.Steps[0].Answer.Text)
		assert.Nil(t, loaded.Steps[1].Answer, "pending step must stay unanswered")
		assert.Equal(t, "Alice", loaded.CachedAnswers["1"].Text)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, snap)
		_ = store.Save(ctx, id2, snap)

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})

	t.Run("Done Session Round-Trip", func(t *testing.T) {
		done := &domain.Snapshot{
			Form:   "basic",
			Steps:  snap.Steps[:1],
			Done:   true,
			Result: json.RawMessage(`{"name":"Alice"}`),
		}
		id := sessionID + "-done"
		defer func() { _ = store.Delete(ctx, id) }()

		require.NoError(t, store.Save(ctx, id, done))
		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.True(t, loaded.Done)
		assert.JSONEq(t, `{"name":"Alice"}`, string(loaded.Result))
	})
}
