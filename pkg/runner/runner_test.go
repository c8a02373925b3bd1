package runner_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/pkg/adapters/memory"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/runner"
)

const plannerScript = `
function Main(state, answer, params)
    if state == nil then
        return {
            status = "question",
            props = { id = "city", type = "simple", text = "Which city?" },
            state = { stage = "city" },
        }
    end
    if state.stage == "city" then
        if answer.text == "" then
            return { status = "error", props = "City is required." }
        end
        return {
            status = "question",
            props = { id = "days", type = "simple", text = "How many days?" },
            state = { stage = "days", city = answer.text },
        }
    end
    return { status = "done", props = { city = state.city, days = answer.text } }
end
`

// scriptedHandler feeds predetermined inputs and records events.
type scriptedHandler struct {
	inputs     []runner.Input
	asked      []string
	rejections []string
	notices    []string
	result     json.RawMessage
}

func (h *scriptedHandler) Ask(_ context.Context, q domain.Question, _ *domain.Answer) (runner.Input, error) {
	h.asked = append(h.asked, q.ID)
	in := h.inputs[0]
	h.inputs = h.inputs[1:]
	return in, nil
}

func (h *scriptedHandler) Reject(_ context.Context, message string) error {
	h.rejections = append(h.rejections, message)
	return nil
}

func (h *scriptedHandler) Finish(_ context.Context, result json.RawMessage) error {
	h.result = result
	return nil
}

func (h *scriptedHandler) Notify(_ context.Context, msg string) error {
	h.notices = append(h.notices, msg)
	return nil
}

func answerInput(a domain.Answer) runner.Input {
	return runner.Input{Answer: &a}
}

func TestRunnerCompletesForm(t *testing.T) {
	form, err := birocrat.New(plannerScript)
	require.NoError(t, err)

	h := &scriptedHandler{inputs: []runner.Input{
		answerInput(domain.TextAnswer("")),
		answerInput(domain.TextAnswer("Lisbon")),
		answerInput(domain.TextAnswer("3")),
	}}
	r := runner.New(form, runner.WithHandler(h))

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Lisbon","days":"3"}`, string(result))

	assert.Equal(t, []string{"city", "city", "days"}, h.asked)
	assert.Equal(t, []string{"City is required."}, h.rejections)
	assert.JSONEq(t, `{"city":"Lisbon","days":"3"}`, string(h.result))
}

func TestRunnerBackCommand(t *testing.T) {
	form, err := birocrat.New(plannerScript)
	require.NoError(t, err)

	h := &scriptedHandler{inputs: []runner.Input{
		answerInput(domain.TextAnswer("Lisbon")),
		{Back: 1},
		answerInput(domain.TextAnswer("Porto")),
		answerInput(domain.TextAnswer("5")),
	}}
	r := runner.New(form, runner.WithHandler(h))

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Porto","days":"5"}`, string(result))
	assert.Equal(t, []string{"city", "days", "city", "days"}, h.asked)
}

func TestRunnerQuitAndResume(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	form, err := birocrat.New(plannerScript, birocrat.WithName("planner"))
	require.NoError(t, err)

	h := &scriptedHandler{inputs: []runner.Input{
		answerInput(domain.TextAnswer("Lisbon")),
		{Quit: true},
	}}
	r := runner.New(form,
		runner.WithHandler(h),
		runner.WithStore(store),
		runner.WithSessionID("trip-1"),
	)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, runner.ErrAborted)

	// The accepted answer was persisted before the quit.
	snap, err := store.Load(ctx, "trip-1")
	require.NoError(t, err)

	resumed, err := birocrat.Resume(plannerScript, snap)
	require.NoError(t, err)

	h2 := &scriptedHandler{inputs: []runner.Input{
		answerInput(domain.TextAnswer("7")),
	}}
	r2 := runner.New(resumed,
		runner.WithHandler(h2),
		runner.WithStore(store),
		runner.WithSessionID("trip-1"),
	)

	result, err := r2.Run(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Lisbon","days":"7"}`, string(result))
	assert.Equal(t, []string{"resuming session"}, h2.notices)
	assert.Equal(t, []string{"days"}, h2.asked)
}

func TestRunnerBackAtFirstQuestion(t *testing.T) {
	form, err := birocrat.New(plannerScript)
	require.NoError(t, err)

	h := &scriptedHandler{inputs: []runner.Input{
		{Back: 1},
		answerInput(domain.TextAnswer("Faro")),
		answerInput(domain.TextAnswer("2")),
	}}
	r := runner.New(form, runner.WithHandler(h))

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Faro","days":"2"}`, string(result))
	assert.NotEmpty(t, h.notices, "expected a notice about the failed rewind")
}
