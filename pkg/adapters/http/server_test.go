package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/birocrat/api"
	birohttp "github.com/aretw0/birocrat/pkg/adapters/http"
	"github.com/aretw0/birocrat/pkg/adapters/memory"
	"github.com/aretw0/birocrat/pkg/bundle"
	"github.com/aretw0/birocrat/pkg/host"
	"github.com/aretw0/birocrat/pkg/session"
)

const signupScript = `
function Main(state, answer, params)
    if state == nil then
        return {
            status = "question",
            props = { id = "plan", type = "select", text = "Which plan?", options = { "free", "pro" } },
            state = { stage = "plan" },
        }
    end
    if state.stage == "plan" then
        return {
            status = "question",
            props = { id = "email", type = "simple", text = "Your email?" },
            state = { stage = "email", plan = answer.selected[1] },
        }
    end
    if not string.find(answer.text, "@", 1, true) then
        return { status = "error", props = "That does not look like an email address." }
    end
    return { status = "done", props = { plan = state.plan, email = answer.text } }
end
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "signup")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "form.yaml"),
		[]byte("name: signup\ntitle: Sign up\nscript: script.lua\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.lua"), []byte(signupScript), 0o644))

	registry := bundle.NewRegistry(root)
	manager := session.NewManager(memory.NewStore())
	h := host.New(registry, manager)

	srv, err := birohttp.New(h, birohttp.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := nethttp.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != nethttp.StatusNoContent {
		ct := resp.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "application/json") {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		}
	}
	return resp, decoded
}

func startSession(t *testing.T, ts *httptest.Server) (string, map[string]any) {
	t.Helper()
	resp, body := doJSON(t, nethttp.MethodPost, ts.URL+"/forms/signup/sessions", nil)
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id, body
}

func TestOpenAPISpecIsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))
	assert.NotNil(t, doc.Paths.Find("/sessions/{id}/answer"))
}

func TestServerSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, nethttp.MethodGet, ts.URL+"/healthz", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	id, first := startSession(t, ts)
	question := first["question"].(map[string]any)
	assert.Equal(t, "plan", question["id"])
	assert.Equal(t, "select", question["kind"])

	resp, body := doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/answer",
		map[string]any{"answer": map[string]any{"kind": "options", "selected": []string{"pro"}}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "email", body["question"].(map[string]any)["id"])

	// Rejection comes back as a 200 with a rejection message.
	resp, body = doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/answer",
		map[string]any{"answer": map[string]any{"kind": "text", "text": "not-an-email"}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "That does not look like an email address.", body["rejection"])

	resp, body = doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/answer",
		map[string]any{"answer": map[string]any{"kind": "text", "text": "dev@example.com"}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["done"])

	resp, result := doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/"+id+"/result", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "pro", result["plan"])
	assert.Equal(t, "dev@example.com", result["email"])

	resp, status := doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/"+id, nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "signup", status["form"])
	assert.Equal(t, true, status["done"])

	resp, _ = doJSON(t, nethttp.MethodDelete, ts.URL+"/sessions/"+id, nil)
	require.Equal(t, nethttp.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/"+id, nil)
	require.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestServerListForms(t *testing.T) {
	ts := newTestServer(t)

	resp, err := nethttp.Get(ts.URL + "/forms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	var forms []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&forms))
	require.Len(t, forms, 1)
	assert.Equal(t, "signup", forms[0]["name"])
	assert.Equal(t, "Sign up", forms[0]["title"])
}

func TestServerRewindAndSuggestions(t *testing.T) {
	ts := newTestServer(t)
	id, _ := startSession(t, ts)

	_, _ = doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/answer",
		map[string]any{"answer": map[string]any{"kind": "options", "selected": []string{"free"}}})

	resp, body := doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/rewind",
		map[string]any{"question_id": "plan"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["index"])
	assert.Equal(t, "plan", body["question"].(map[string]any)["id"])

	resp, suggestion := doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/"+id+"/suggestions/plan", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"free"}, suggestion["selected"])

	resp, _ = doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/"+id+"/suggestions/email", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestServerErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	id, _ := startSession(t, ts)

	t.Run("kind mismatch is 422", func(t *testing.T) {
		resp, _ := doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/answer",
			map[string]any{"answer": map[string]any{"kind": "text", "text": "pro"}})
		assert.Equal(t, nethttp.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("bad rewind target is 422", func(t *testing.T) {
		resp, _ := doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/rewind",
			map[string]any{"index": 9})
		assert.Equal(t, nethttp.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("result before done is 409", func(t *testing.T) {
		resp, _ := doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/"+id+"/result", nil)
		assert.Equal(t, nethttp.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		resp, _ := doJSON(t, nethttp.MethodGet, ts.URL+"/sessions/ghost/question", nil)
		assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown form is 404", func(t *testing.T) {
		resp, _ := doJSON(t, nethttp.MethodPost, ts.URL+"/forms/ghost/sessions", nil)
		assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	})

	t.Run("empty rewind body is 400", func(t *testing.T) {
		resp, _ := doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/rewind",
			map[string]any{})
		assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	})
}

func TestServerHistory(t *testing.T) {
	ts := newTestServer(t)
	id, _ := startSession(t, ts)

	_, _ = doJSON(t, nethttp.MethodPost, ts.URL+"/sessions/"+id+"/answer",
		map[string]any{"answer": map[string]any{"kind": "options", "selected": []string{"pro"}}})

	resp, err := nethttp.Get(fmt.Sprintf("%s/sessions/%s/history", ts.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	var entries []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "plan", entries[0]["question"].(map[string]any)["id"])
	assert.NotNil(t, entries[0]["answer"])
	assert.Nil(t, entries[1]["answer"])
}

func TestServerMetricsAndSpecEndpoints(t *testing.T) {
	ts := newTestServer(t)
	startSession(t, ts)

	resp, err := nethttp.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, err = nethttp.Get(ts.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))

	req, err := nethttp.NewRequest(nethttp.MethodOptions, ts.URL+"/forms", nil)
	require.NoError(t, err)
	resp, err = nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
