package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iqoption/crashcollector/collector/cfg"
	"github.com/iqoption/crashcollector/collector/service"
	"github.com/iqoption/crashcollector/common/format/minidump"
	"github.com/iqoption/crashcollector/common/upload"
)

func newTestServer(t *testing.T, opts ...func(*cfg.JsonConfig)) *Server {
	t.Helper()
	conf := cfg.Default()
	for _, o := range opts {
		o(conf)
	}
	srv, err := NewServer(conf, service.New(nil), nil)
	require.NoError(t, err)
	return srv
}

func postCrash(t *testing.T, srv *Server, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType, err := upload.Encode(fields, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPostCrashAnswersWithReportId(t *testing.T) {
	srv := newTestServer(t)

	rec := postCrash(t, srv, "/", map[string]string{"prod": "Electron"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "close", rec.Header().Get("Connection"))

	latest, ok := srv.Service().Latest()
	require.True(t, ok)
	require.Equal(t, latest.Id, rec.Body.String())
	require.Equal(t, rec.Body.Len(), int(rec.Result().ContentLength))
}

func TestAnyPostPathIsAnUpload(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/", "/submit", "/post/crash"} {
		rec := postCrash(t, srv, path, map[string]string{"path": path})
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
	require.Len(t, srv.Service().Crashes(), 3)

	rec := get(srv, "/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCrashes(t *testing.T) {
	srv := newTestServer(t)

	rec := get(srv, "/crashes")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = get(srv, "/crashes/latest")
	require.Equal(t, http.StatusNotFound, rec.Code)

	first := postCrash(t, srv, "/", map[string]string{"n": "1"}).Body.String()
	second := postCrash(t, srv, "/", map[string]string{"n": "2"}).Body.String()

	var crashes []minidump.Report
	rec = get(srv, "/crashes")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crashes))
	require.Len(t, crashes, 2)
	require.Equal(t, first, crashes[0].Id)
	require.Equal(t, second, crashes[1].Id)

	var latest minidump.Report
	rec = get(srv, "/crashes/latest")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	require.Equal(t, second, latest.Id)

	var one minidump.Report
	rec = get(srv, "/crashes/"+first)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.Equal(t, "1", one.Fields["n"])

	rec = get(srv, "/crashes/does-not-exist")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedUploadAnswersBadRequest(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "multipart/form-data")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "malformed crash upload")
	require.Empty(t, srv.Service().Crashes())
	require.Len(t, srv.Service().Failures(), 1)
}

func TestHealth(t *testing.T) {
	rec := get(newTestServer(t), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"success"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(t), "/metrics")
	require.Equal(t, http.StatusNotFound, rec.Code)

	srv := newTestServer(t, func(conf *cfg.JsonConfig) {
		conf.Monitoring.Enable = true
	})
	postCrash(t, srv, "/", map[string]string{"prod": "Electron"})

	rec = get(srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "crashes_received_total 1")
	require.Contains(t, rec.Body.String(), "crashes_http_requests_total")
}
