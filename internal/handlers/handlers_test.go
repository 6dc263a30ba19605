package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ingest-control-plane/internal/handlers"
	"ingest-control-plane/internal/repository"
	"ingest-control-plane/internal/routes"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.Memory) {
	t.Helper()
	mem := repository.NewMemory()
	logger := zerolog.Nop()
	router := routes.NewRouter(
		handlers.NewSourceHandler(mem.SourceRepository(), logger),
		handlers.NewJobHandler(mem.JobRepository(), logger),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, mem
}

// do issues a JSON request and decodes the response body into out (when out
// is non-nil and the body is JSON).
func do(t *testing.T, method, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
			require.NoError(t, json.Unmarshal(raw, out))
		}
	}
	return resp
}

func createSource(t *testing.T, srv *httptest.Server, name, csvPath string) map[string]interface{} {
	t.Helper()
	var src map[string]interface{}
	resp := do(t, http.MethodPost, srv.URL+"/api/sources", map[string]string{
		"name":     name,
		"csv_path": csvPath,
	}, &src)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return src
}

func startJob(t *testing.T, srv *httptest.Server, sourceID string) map[string]interface{} {
	t.Helper()
	var job map[string]interface{}
	resp := do(t, http.MethodPost, srv.URL+"/api/sources/"+sourceID+"/ingestions", nil, &job)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return job
}
