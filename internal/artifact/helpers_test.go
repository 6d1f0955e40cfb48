package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/paperapi"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/retry"
)

// fastPolicy retries quickly so tests exercise backoff without sleeping.
func fastPolicy(retries int) retry.Policy {
	return retry.Policy{
		Retries:        retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     8 * time.Millisecond,
		Multiplier:     2,
		AttemptTimeout: 5 * time.Second,
	}
}

// makeJar builds a minimal jar with a manifest.
func makeJar(t *testing.T, marker string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	if err != nil {
		t.Fatalf("create manifest: %v", err)
	}
	fmt.Fprintf(w, "Manifest-Version: 1.0\nMain-Class: io.papermc.paperclip.Main\nX-Marker: %s\n", marker)
	if err := zw.Close(); err != nil {
		t.Fatalf("close jar: %v", err)
	}
	return buf.Bytes()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type fakeBuild struct {
	ID      int
	Time    time.Time
	Channel string
	Name    string
	SHA256  string
}

// fakeAPI serves the subset of the PaperMC v2 API used by paperfetch.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	project    string
	versions   []string
	builds     map[string][]fakeBuild
	payloads   map[string][]byte
	signatures map[string][]byte
	// buildStatuses and downloadStatuses are served, one per request,
	// before the endpoint starts answering normally.
	buildStatuses    []int
	downloadStatuses []int
	requests         map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		t:          t,
		project:    "paper",
		builds:     map[string][]fakeBuild{},
		payloads:   map[string][]byte{},
		signatures: map[string][]byte{},
		requests:   map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/projects/{project}", api.handleProject)
	mux.HandleFunc("GET /v2/projects/{project}/versions/{version}/builds", api.handleBuilds)
	mux.HandleFunc("GET /v2/projects/{project}/versions/{version}/builds/{build}/downloads/{name}", api.handleDownload)

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

// addBuild publishes payload as build id of version with its real checksum.
func (a *fakeAPI) addBuild(version string, id int, payload []byte) fakeBuild {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := fakeBuild{
		ID:      id,
		Time:    time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour),
		Channel: paperapi.ChannelDefault,
		Name:    fmt.Sprintf("%s-%s-%d.jar", a.project, version, id),
		SHA256:  sha256Hex(payload),
	}
	a.builds[version] = append(a.builds[version], b)
	a.payloads[b.Name] = payload
	return b
}

func (a *fakeAPI) client(t *testing.T) *paperapi.Client {
	t.Helper()
	c, err := paperapi.NewClient(a.server.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func (a *fakeAPI) count(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[kind]
}

func (a *fakeAPI) handleProject(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.requests["project"]++
	versions := a.versions
	a.mu.Unlock()

	if r.PathValue("project") != a.project {
		http.Error(w, `{"error":"no such project"}`, http.StatusNotFound)
		return
	}
	a.writeJSON(w, map[string]any{
		"project_id":     a.project,
		"project_name":   "Paper",
		"version_groups": []string{},
		"versions":       versions,
	})
}

func (a *fakeAPI) handleBuilds(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.requests["builds"]++
	if len(a.buildStatuses) > 0 {
		status := a.buildStatuses[0]
		a.buildStatuses = a.buildStatuses[1:]
		a.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	builds, ok := a.builds[r.PathValue("version")]
	a.mu.Unlock()

	if r.PathValue("project") != a.project || !ok {
		http.Error(w, `{"error":"version not found"}`, http.StatusNotFound)
		return
	}

	out := make([]map[string]any, 0, len(builds))
	for _, b := range builds {
		out = append(out, map[string]any{
			"build":   b.ID,
			"time":    b.Time.Format(time.RFC3339),
			"channel": b.Channel,
			"downloads": map[string]any{
				"application": map[string]string{"name": b.Name, "sha256": b.SHA256},
			},
		})
	}
	a.writeJSON(w, map[string]any{
		"project_id": a.project,
		"version":    r.PathValue("version"),
		"builds":     out,
	})
}

func (a *fakeAPI) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	kind := "download"
	if strings.HasSuffix(name, ".asc") {
		kind = "signature"
	}

	a.mu.Lock()
	a.requests[kind]++
	if kind == "download" && len(a.downloadStatuses) > 0 {
		status := a.downloadStatuses[0]
		a.downloadStatuses = a.downloadStatuses[1:]
		a.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	var body []byte
	var ok bool
	if kind == "signature" {
		body, ok = a.signatures[strings.TrimSuffix(name, ".asc")]
	} else {
		body, ok = a.payloads[name]
	}
	a.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/java-archive")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if _, err := w.Write(body); err != nil {
		a.t.Errorf("write payload: %v", err)
	}
}

func (a *fakeAPI) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.t.Errorf("encode response: %v", err)
	}
}

// stubTransport replays canned responses without a network.
type stubTransport struct {
	mu        sync.Mutex
	responses []stubResponse
	opened    []string
}

type stubResponse struct {
	body []byte
	// size is the advertised length; -1 for unknown
	size int64
	err  error
}

func (s *stubTransport) DownloadURL(project, version string, build int, name string) string {
	return fmt.Sprintf("https://stub.invalid/%s/%s/%d/%s", project, version, build, name)
}

func (s *stubTransport) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, url)
	if len(s.responses) == 0 {
		return nil, 0, fmt.Errorf("stub: no response for %s", url)
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	if resp.err != nil {
		return nil, 0, resp.err
	}
	return io.NopCloser(bytes.NewReader(resp.body)), resp.size, nil
}

func (s *stubTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opened)
}

// noRequestClient fails the test on any HTTP request.
type noRequestClient struct {
	t     *testing.T
	mu    sync.Mutex
	calls int
}

func (c *noRequestClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	c.t.Errorf("unexpected request: %s %s", req.Method, req.URL)
	return nil, fmt.Errorf("no requests allowed")
}

// logEntry is one call recorded by recordingLogger.
type logEntry struct {
	level string
	msg   string
	kv    map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, keysAndValues []interface{}) {
	kv := map[string]any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			kv[k] = keysAndValues[i+1]
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Debug(msg string, kv ...interface{}) { l.record("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...interface{})  { l.record("info", msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...interface{})  { l.record("warn", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...interface{}) { l.record("error", msg, kv) }

// retryDelays returns the delays logged before each retry.
func (l *recordingLogger) retryDelays() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var delays []time.Duration
	for _, e := range l.entries {
		if e.level != "warn" {
			continue
		}
		if d, ok := e.kv["delay"].(time.Duration); ok {
			delays = append(delays, d)
		}
	}
	return delays
}

// stagingLeftovers lists staging files in dir.
func stagingLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if isStagingName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Errorf("%s exists (err=%v), want no file", filepath.Base(path), err)
	}
}
