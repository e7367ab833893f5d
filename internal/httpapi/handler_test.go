package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/dispatch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/session"
)

func newTestRouter(t *testing.T, reply string) (*gin.Engine, *session.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	gen := dispatch.GeneratorFunc(func(context.Context, string) (string, error) { return reply, nil })
	sess, err := session.New(session.Options{ID: "web", Generator: gen, Clock: clock})
	require.NoError(t, err)
	return NewRouter(sess, nil), sess
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestAcceptsRecord(t *testing.T) {
	r, sess := newTestRouter(t, "")
	w := do(r, http.MethodPost, "/v1/captures",
		`{"diff":"x = 5/12","fullText":"x = 5/12","url":"https://example.com/p","capturedAt":"2026-03-01T10:00:00Z"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.SequenceID)
	assert.Equal(t, 1, sess.Snapshot().BufferedTotal)
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w := do(r, http.MethodPost, "/v1/captures", `{"diff":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", string(resp.Code))
}

func TestManualWithoutDataIsConflict(t *testing.T) {
	r, _ := newTestRouter(t, "hint")
	w := do(r, http.MethodPost, "/v1/nudges/manual", "")
	require.Equal(t, http.StatusConflict, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NO_DATA", string(resp.Code))
	assert.Equal(t, "no data to analyze", resp.Error)
}

func TestManualThenListings(t *testing.T) {
	r, _ := newTestRouter(t, "Recheck how many outcomes are favourable.")
	require.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/v1/captures", `{"diff":"I'm stuck on this"}`).Code)

	w := do(r, http.MethodPost, "/v1/nudges/manual", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var n struct {
		Text          string `json:"text"`
		Level         int    `json:"level"`
		ManualTrigger bool   `json:"manualTrigger"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
	assert.Equal(t, "Recheck how many outcomes are favourable.", n.Text)
	assert.GreaterOrEqual(t, n.Level, 1)
	assert.True(t, n.ManualTrigger)

	w = do(r, http.MethodGet, "/v1/nudges", "")
	require.Equal(t, http.StatusOK, w.Code)
	var nl struct {
		Nudges []json.RawMessage `json:"nudges"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nl))
	assert.Len(t, nl.Nudges, 1)

	w = do(r, http.MethodGet, "/v1/batches", "")
	require.Equal(t, http.StatusOK, w.Code)
	var bl struct {
		Batches []batchView `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bl))
	require.Len(t, bl.Batches, 1)
	assert.Contains(t, bl.Batches[0].StructuredText, "<error_signal>")

	w = do(r, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "web", snap.SessionID)
	assert.Equal(t, 1, snap.Nudges)
}

func TestEmptyNudgeListIsArray(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w := do(r, http.MethodGet, "/v1/nudges", "")
	assert.JSONEq(t, `{"nudges":[]}`, w.Body.String())
}
