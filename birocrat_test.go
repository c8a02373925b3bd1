package birocrat_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/pkg/domain"
)

const surveyScript = `
function Main(state, answer, params)
    if state == nil then
        return {
            status = "question",
            props = { id = "color", type = "select", text = "Pick a color", options = { "red", "blue" } },
            state = {},
        }
    end
    if answer.selected[1] == "red" and not params.allow_red then
        return { status = "error", props = "red is unavailable" }
    end
    return { status = "done", props = { color = answer.selected[1] } }
end
`

func TestFormEndToEnd(t *testing.T) {
	form, err := birocrat.New(surveyScript, birocrat.WithName("colors"))
	require.NoError(t, err)
	ctx := context.Background()

	poll, err := form.Start(ctx)
	require.NoError(t, err)
	require.NotNil(t, poll.Question)
	assert.Equal(t, "color", poll.Question.ID)

	poll, err = form.Answer(ctx, domain.SelectedAnswer("red"))
	require.NoError(t, err)
	assert.Equal(t, "red is unavailable", poll.Rejection)

	poll, err = form.Answer(ctx, domain.SelectedAnswer("blue"))
	require.NoError(t, err)
	require.True(t, poll.Done)
	assert.True(t, form.Done())

	result, err := form.Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"color":"blue"}`, string(result))
}

func TestFormParams(t *testing.T) {
	form, err := birocrat.New(surveyScript, birocrat.WithParams(map[string]any{"allow_red": true}))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = form.Start(ctx)
	require.NoError(t, err)
	poll, err := form.Answer(ctx, domain.SelectedAnswer("red"))
	require.NoError(t, err)
	require.True(t, poll.Done)
}

func TestFormSnapshotResume(t *testing.T) {
	form, err := birocrat.New(surveyScript, birocrat.WithName("colors"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = form.Start(ctx)
	require.NoError(t, err)

	snap := form.Snapshot()
	assert.Equal(t, "colors", snap.Form)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded domain.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	resumed, err := birocrat.Resume(surveyScript, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "colors", resumed.Name())

	q, err := resumed.Current()
	require.NoError(t, err)
	assert.Equal(t, "color", q.ID)

	poll, err := resumed.Answer(ctx, domain.SelectedAnswer("blue"))
	require.NoError(t, err)
	assert.True(t, poll.Done)
}

func TestFormRewindAfterDone(t *testing.T) {
	form, err := birocrat.New(surveyScript)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = form.Start(ctx)
	require.NoError(t, err)
	poll, err := form.Answer(ctx, domain.SelectedAnswer("blue"))
	require.NoError(t, err)
	require.True(t, poll.Done)

	idx, err := form.RewindToQuestion(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.False(t, form.Done())

	// Previous answer is still cached for pre-filling.
	ans, ok := form.Suggestion("color")
	require.True(t, ok)
	assert.Equal(t, []string{"blue"}, ans.Selected)

	history := form.History()
	require.Len(t, history, 1)
	assert.Nil(t, history[0].Answer)
}
