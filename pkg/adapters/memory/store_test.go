package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/birocrat/pkg/adapters/memory"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	ans := domain.TextAnswer("Alice")
	snap := &domain.Snapshot{
		Steps: []domain.Step{{
			Question: domain.Question{ID: "1", Kind: domain.QuestionSimple, Prompt: "Name?"},
			Answer:   &ans,
		}},
		CachedAnswers: map[string]domain.Answer{"1": ans},
	}
	require.NoError(t, store.Save(ctx, "s1", snap))

	// Mutating the saved value must not affect the stored copy.
	snap.Steps[0].Answer.Text = "Mallory"
	snap.CachedAnswers["1"] = domain.TextAnswer("Mallory")

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Steps[0].Answer.Text)
	assert.Equal(t, "Alice", loaded.CachedAnswers["1"].Text)

	// Nor must mutating a loaded value.
	loaded.Steps[0].Answer.Text = "Eve"
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Steps[0].Answer.Text)
}
