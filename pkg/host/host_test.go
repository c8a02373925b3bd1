package host_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/birocrat/pkg/adapters/memory"
	"github.com/aretw0/birocrat/pkg/bundle"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/host"
	"github.com/aretw0/birocrat/pkg/session"
)

const petScript = `
function Main(state, answer, params)
    if state == nil then
        return {
            status = "question",
            props = { id = "species", type = "select", text = "Cat or dog?", options = { "cat", "dog" } },
            state = { stage = "species" },
        }
    end
    if state.stage == "species" then
        return {
            status = "question",
            props = { id = "name", type = "simple", text = "Pet name?" },
            state = { stage = "name", species = answer.selected[1] },
        }
    end
    if answer.text == "" then
        return { status = "error", props = "A name is required." }
    end
    return { status = "done", props = { species = state.species, name = answer.text } }
end
`

func newTestHost(t *testing.T) (*host.Host, *bundle.Registry, *session.Manager) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "pets")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "form.yaml"),
		[]byte("name: pets\nscript: script.lua\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.lua"), []byte(petScript), 0o644))

	registry := bundle.NewRegistry(root)
	manager := session.NewManager(memory.NewStore())
	return host.New(registry, manager), registry, manager
}

func TestHostSessionLifecycle(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()

	forms, err := h.ListForms()
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "pets", forms[0].Manifest.Name)

	id, poll, err := h.StartSession(ctx, "pets", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "species", poll.Question.ID)

	poll, err = h.Answer(ctx, id, domain.SelectedAnswer("cat"))
	require.NoError(t, err)
	assert.Equal(t, "name", poll.Question.ID)

	// Driver rejection is not an error.
	poll, err = h.Answer(ctx, id, domain.TextAnswer(""))
	require.NoError(t, err)
	assert.Equal(t, "A name is required.", poll.Rejection)

	poll, err = h.Answer(ctx, id, domain.TextAnswer("Misha"))
	require.NoError(t, err)
	require.True(t, poll.Done)

	st, err := h.Describe(ctx, id)
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.Equal(t, "pets", st.Form)
	assert.Equal(t, 2, st.Steps)

	result, err := h.Result(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"species":"cat","name":"Misha"}`, string(result))

	require.NoError(t, h.Drop(ctx, id))
	_, err = h.Describe(ctx, id)
	assert.True(t, host.IsNotFound(err))
}

func TestHostResumesFromStore(t *testing.T) {
	h1, registry, manager := newTestHost(t)
	ctx := context.Background()

	id, _, err := h1.StartSession(ctx, "pets", nil)
	require.NoError(t, err)
	_, err = h1.Answer(ctx, id, domain.SelectedAnswer("dog"))
	require.NoError(t, err)

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "pets", snap.Form)

	// A fresh host over the same store picks the session up mid-flight.
	h2 := host.New(registry, manager)
	q, err := h2.Current(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "name", q.ID)

	poll, err := h2.Answer(ctx, id, domain.TextAnswer("Rex"))
	require.NoError(t, err)
	require.True(t, poll.Done)
}

func TestHostRewind(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()

	id, _, err := h.StartSession(ctx, "pets", nil)
	require.NoError(t, err)
	_, err = h.Answer(ctx, id, domain.SelectedAnswer("cat"))
	require.NoError(t, err)
	poll, err := h.Answer(ctx, id, domain.TextAnswer("Misha"))
	require.NoError(t, err)
	require.True(t, poll.Done)

	idx, q, err := h.RewindToQuestion(ctx, id, "species")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "species", q.ID)

	ans, ok, err := h.Suggestion(ctx, id, "name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Misha", ans.Text)

	history, err := h.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].Answer)
}

func TestHostUnknownFormAndSession(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()

	_, _, err := h.StartSession(ctx, "nope", nil)
	assert.True(t, host.IsNotFound(err))

	_, err = h.Answer(ctx, "missing-session", domain.TextAnswer("x"))
	assert.True(t, host.IsNotFound(err))
}
