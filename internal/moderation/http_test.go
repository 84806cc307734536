package moderation_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/modflow/internal/moderation"
)

func multipartUpload(t *testing.T, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestHandler(f *fixture) http.Handler {
	h := moderation.NewHTTPHandler(f.service, zap.NewNop(), 1<<20, 1<<20, time.Minute)
	return h.Router()
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestHandler(newFixture()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleModerate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	body, contentType := multipartUpload(t, map[string]string{"min_confidence": "65"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/moderations", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	newTestHandler(f).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float32(65), f.jobs.startConf)

	var resp struct {
		SessionID  string         `json:"session_id"`
		JobID      string         `json:"job_id"`
		Verdict    string         `json:"verdict"`
		Categories map[string]int `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "job-123", resp.JobID)
	require.Equal(t, "allowed", resp.Verdict)
	require.Len(t, resp.Categories, 35)
}

func TestHandleModerateMissingFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("min_confidence", "65"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/moderations", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	newTestHandler(newFixture()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleModerateBadConfidence(t *testing.T) {
	t.Parallel()

	body, contentType := multipartUpload(t, map[string]string{"min_confidence": "150"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/moderations", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	newTestHandler(newFixture()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
