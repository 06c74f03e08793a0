package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAgent(t *testing.T, body string, status int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/docs" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EXCHANGE_LOG_ENABLED", "false")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const vitaminC = `{"final_answer":"No.","verdict":"False","reasoning_trace":"Trials show no effect.","evidence":[],"recommendations":["See a doctor"]}`

func TestAsk(t *testing.T) {
	url := fakeAgent(t, vitaminC, http.StatusOK)

	out, err := run(t, "--agent-url", url, "--plain", "ask", "Does", "vitamin", "C", "cure", "colds?")
	require.NoError(t, err)
	assert.Contains(t, out, "FALSE")
	assert.Contains(t, out, "Trials show no effect.")
	assert.Contains(t, out, "See a doctor")
}

func TestAskBackendError(t *testing.T) {
	url := fakeAgent(t, `{"detail":"boom"}`, http.StatusInternalServerError)

	out, err := run(t, "--agent-url", url, "ask", "Is the earth flat?")
	require.Error(t, err)
	assert.Contains(t, out, "Connection Error")
}

func TestVerify(t *testing.T) {
	url := fakeAgent(t, vitaminC, http.StatusOK)

	out, err := run(t, "--agent-url", url, "--plain", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ping")
	assert.Contains(t, out, `✓ query "Does garlic cure flu?"`)
	assert.Contains(t, out, "✓ contract")
}

func TestVerifyReportsContractWarnings(t *testing.T) {
	url := fakeAgent(t, `{"final_answer":"Hm.","verdict":"Partly","evidence":[{"type":"rumor","content":"x","score":0.2}]}`, http.StatusOK)

	out, err := run(t, "--agent-url", url, "--plain", "verify", "--claim", "Is coffee healthy?")
	require.NoError(t, err)
	assert.Contains(t, out, "! verdict (enum)")
	assert.Contains(t, out, `verdict "Partly" renders neutral`)
	assert.NotContains(t, out, "✓ contract")
}

func TestVerifyFatalContract(t *testing.T) {
	url := fakeAgent(t, `{"verdict":"True"}`, http.StatusOK)

	out, err := run(t, "--agent-url", url, "verify")
	require.Error(t, err)
	assert.Contains(t, out, "✗")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelWarn, parseLevel("nonsense"))
}
