package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cmsServer serves a small metastore catalog and the CSV files it points to
type cmsServer struct {
	*httptest.Server

	mu        sync.Mutex
	modified  map[string]string
	broken    map[string]bool
	downloads map[string]int
}

func newCMSServer(t *testing.T) *cmsServer {
	t.Helper()

	s := &cmsServer{
		modified: map[string]string{
			"xubh-q36u": "2024-05-01",
			"4jcv-atw7": "2024-05-08",
		},
		broken:    map[string]bool{},
		downloads: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metastore", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		items := []map[string]interface{}{
			{
				"identifier":   "nursing-only",
				"title":        "Nursing homes",
				"theme":        []string{"Nursing homes including rehab services"},
				"modified":     "2024-05-01",
				"distribution": []map[string]string{{"mediaType": "text/csv", "downloadURL": s.URL + "/files/nursing-only.csv"}},
			},
		}
		for id, modified := range s.modified {
			items = append(items, map[string]interface{}{
				"identifier":   id,
				"title":        "Hospital dataset " + id,
				"theme":        []string{"Hospitals"},
				"modified":     modified,
				"distribution": []map[string]string{{"mediaType": "text/csv", "downloadURL": s.URL + "/files/" + id + ".csv"}},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), ".csv")

		s.mu.Lock()
		s.downloads[id]++
		broken := s.broken[id]
		s.mu.Unlock()

		if broken {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprintf(w, "Facility ID,Facility Name,Patient's Rating\n%s-1,General,4\n", id)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *cmsServer) downloadCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[id]
}

func (s *cmsServer) set(id, modified string, broken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified[id] = modified
	s.broken[id] = broken
}

type testEnv struct {
	root      string
	outputDir string
	statePath string
}

func setupEnv(t *testing.T, metastoreURL string) *testEnv {
	t.Helper()

	root := t.TempDir()
	chdir(t, root)
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METASTORE_URL", metastoreURL)
	t.Setenv("HTTP_MAX_RETRIES", "0")
	t.Setenv("CSV_DELIMITER", "")
	t.Setenv("OUTPUT_DIR", "")
	t.Setenv("STATE_PATH", "")
	t.Setenv("REPORT_DIR", "")

	return &testEnv{
		root:      root,
		outputDir: filepath.Join(root, "out"),
		statePath: filepath.Join(root, "state", "run_state.json"),
	}
}

func (e *testEnv) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	args = append(args, "--output-dir", e.outputDir, "--state-path", e.statePath)
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_SyncThenNoop(t *testing.T) {
	srv := newCMSServer(t)
	env := setupEnv(t, srv.URL+"/metastore")

	code, _, stderr := env.run(t, "run", "--workers", "2")
	require.Equal(t, exitOK, code, stderr)

	raw, err := os.ReadFile(filepath.Join(env.outputDir, "xubh-q36u.csv"))
	require.NoError(t, err)
	assert.Equal(t, "facility_id,facility_name,patients_rating\nxubh-q36u-1,General,4\n", string(raw))
	assert.FileExists(t, filepath.Join(env.outputDir, "4jcv-atw7.csv"))
	assert.NoFileExists(t, filepath.Join(env.outputDir, "nursing-only.csv"))
	assert.FileExists(t, env.statePath)
	assert.FileExists(t, filepath.Join(env.root, "state", "runs", "last_successful.json"))

	// nothing changed upstream
	code, _, stderr = env.run(t)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, 1, srv.downloadCount("xubh-q36u"))
	assert.Equal(t, 1, srv.downloadCount("4jcv-atw7"))
	assert.Equal(t, 0, srv.downloadCount("nursing-only"))

	// one dataset moves forward
	srv.set("4jcv-atw7", "2024-06-01", false)
	code, _, stderr = env.run(t)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, 1, srv.downloadCount("xubh-q36u"))
	assert.Equal(t, 2, srv.downloadCount("4jcv-atw7"))
}

func TestExecute_WorkerFailureExitsOne(t *testing.T) {
	srv := newCMSServer(t)
	srv.set("4jcv-atw7", "2024-05-08", true)
	env := setupEnv(t, srv.URL+"/metastore")

	code, _, stderr := env.run(t)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "1 of 2 datasets failed")
	assert.FileExists(t, filepath.Join(env.outputDir, "xubh-q36u.csv"))
	assert.NoFileExists(t, filepath.Join(env.outputDir, "4jcv-atw7.csv"))

	// the failed dataset is the only one fetched again
	srv.set("4jcv-atw7", "2024-05-08", false)
	code, _, stderr = env.run(t)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, 1, srv.downloadCount("xubh-q36u"))
	assert.Equal(t, 2, srv.downloadCount("4jcv-atw7"))
}

func TestExecute_MetastoreUnavailableExitsTwo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	env := setupEnv(t, srv.URL)

	code, _, stderr := env.run(t)
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "503")
	assert.NoFileExists(t, env.statePath)
}

func TestExecute_InvalidConfigExitsTwo(t *testing.T) {
	srv := newCMSServer(t)
	env := setupEnv(t, srv.URL+"/metastore")
	t.Setenv("ADAPTER_STORAGE", "ftp")

	code, _, stderr := env.run(t)
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "ftp")
}

func TestExecute_DryRun(t *testing.T) {
	srv := newCMSServer(t)
	env := setupEnv(t, srv.URL+"/metastore")

	code, stdout, stderr := env.run(t, "--dry-run")
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, stdout, "2 of 2 datasets would be downloaded")
	assert.Contains(t, stdout, "xubh-q36u")
	assert.Equal(t, 0, srv.downloadCount("xubh-q36u"))
	assert.NoFileExists(t, env.statePath)
}

func TestExecute_Status(t *testing.T) {
	srv := newCMSServer(t)
	env := setupEnv(t, srv.URL+"/metastore")

	status := func() string {
		t.Helper()
		var stdout, stderr bytes.Buffer
		code := execute(context.Background(), []string{"status", "--output-dir", env.outputDir, "--state-path", env.statePath}, &stdout, &stderr)
		require.Equal(t, exitOK, code, stderr.String())
		return stdout.String()
	}

	assert.Contains(t, status(), "Last run: never")

	code, _, errOut := env.run(t)
	require.Equal(t, exitOK, code, errOut)

	out := status()
	assert.Contains(t, out, "Datasets: 2")
	assert.Contains(t, out, "xubh-q36u.csv")
	assert.Contains(t, out, "2024-05-08")
	assert.NotContains(t, out, "missing")
}

func TestExecute_StatusFlagsMissingOutputs(t *testing.T) {
	srv := newCMSServer(t)
	env := setupEnv(t, srv.URL+"/metastore")

	code, _, errOut := env.run(t)
	require.Equal(t, exitOK, code, errOut)
	require.NoError(t, os.Remove(filepath.Join(env.outputDir, "xubh-q36u.csv")))

	var stdout, stderr bytes.Buffer
	code = execute(context.Background(), []string{"status", "--output-dir", env.outputDir, "--state-path", env.statePath}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var missingLine string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if strings.HasPrefix(line, "xubh-q36u") {
			missingLine = line
		}
	}
	assert.True(t, strings.HasSuffix(strings.TrimSpace(missingLine), "missing"), missingLine)
	assert.Contains(t, stdout.String(), "1 recorded outputs are missing from storage")
}

func TestExecute_UnknownFlagExitsTwo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--no-such-flag"}, &stdout, &stderr)
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr.String(), "no-such-flag")
}
