package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendPostsMultipart(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "crash.dmp")
	require.NoError(t, os.WriteFile(dump, []byte("MDMP"), 0644))

	var (
		method string
		fields = map[string]string{}
		dumped []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for name, values := range r.MultipartForm.Value {
			fields[name] = values[0]
		}
		if f, _, err := r.FormFile(MinidumpPart); err == nil {
			dumped, _ = io.ReadAll(f)
			f.Close()
		}
		w.Write([]byte("report-id\n"))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL).Send(context.Background(),
		map[string]string{"prod": "Electron", "ver": "1.2.3"},
		map[string]string{MinidumpPart: dump})
	require.NoError(t, err)
	require.Equal(t, "report-id", id)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, map[string]string{"prod": "Electron", "ver": "1.2.3"}, fields)
	require.Equal(t, "MDMP", string(dumped))
}

func TestSendFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad upload", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Send(context.Background(), map[string]string{"prod": "x"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad upload")
}

func TestSendMissingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").Send(context.Background(), nil,
		map[string]string{MinidumpPart: filepath.Join(t.TempDir(), "missing.dmp")})
	require.Error(t, err)
}

func TestCrashes(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`[{"id": "a", "fields": {"prod": "Electron"}}, {"id": "b", "fields": {}}]`))
	}))
	defer srv.Close()

	reports, err := NewClient(srv.URL+"/submit?x=1").Crashes(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/crashes", path)
	require.Len(t, reports, 2)
	require.Equal(t, "a", reports[0].Id)
	require.Equal(t, "Electron", reports[0].Fields["prod"])
}

func TestCrashesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(srv.URL).Crashes(context.Background())
	require.Error(t, err)
}
