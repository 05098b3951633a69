package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvbbnn00/onedrive-index/api"
	"github.com/vvbbnn00/onedrive-index/auth"
	"github.com/vvbbnn00/onedrive-index/drive"
	"github.com/vvbbnn00/onedrive-index/kv"
	"github.com/vvbbnn00/onedrive-index/kv/memory"
)

// fakeGraph is an in-memory stand-in for the Microsoft Graph drive API,
// with a per-path call counter so tests can assert which upstream requests
// were (not) made.
type fakeGraph struct {
	srv *httptest.Server

	mu    sync.Mutex
	calls map[string]int
	nodes map[string]*graphNode
	byID  map[string]*graphNode
}

type graphNode struct {
	id      string
	name    string
	path    string
	dir     bool
	content string
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	g := &fakeGraph{
		calls: map[string]int{},
		nodes: map[string]*graphNode{},
		byID:  map[string]*graphNode{},
	}
	g.addNode(&graphNode{id: "ROOT", name: "root", path: "/", dir: true})
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) addNode(n *graphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[strings.ToLower(n.path)] = n
	g.byID[n.id] = n
}

func (g *fakeGraph) addFolder(p, id string) {
	g.addNode(&graphNode{id: id, name: baseName(p), path: p, dir: true})
}

func (g *fakeGraph) addFile(p, id, content string) {
	g.addNode(&graphNode{id: id, name: baseName(p), path: p, content: content})
}

func baseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

func (g *fakeGraph) callCount(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func (g *fakeGraph) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func (g *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.calls[r.URL.Path]++
	g.mu.Unlock()

	p := r.URL.Path
	switch {
	case p == "/root/children":
		g.serveChildren(w, "/")
	case strings.HasPrefix(p, "/root:") && strings.HasSuffix(p, ":/children"):
		dir := strings.TrimSuffix(strings.TrimPrefix(p, "/root:"), ":/children")
		g.serveChildren(w, dir)
	case strings.HasPrefix(p, "/root/search("):
		g.serveSearch(w, p)
	case p == "/root":
		g.serveItem(w, "/")
	case strings.HasPrefix(p, "/root:/"):
		g.serveItem(w, strings.TrimPrefix(p, "/root:"))
	case strings.HasPrefix(p, "/items/"):
		g.serveItemByID(w, strings.TrimPrefix(p, "/items/"))
	case strings.HasPrefix(p, "/dl/"):
		g.serveContent(w, strings.TrimPrefix(p, "/dl/"))
	default:
		writeGraphError(w, http.StatusNotFound, "itemNotFound")
	}
}

func (g *fakeGraph) lookup(p string) *graphNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes[strings.ToLower(p)]
}

func (g *fakeGraph) itemJSON(n *graphNode) map[string]any {
	m := map[string]any{
		"id":                   n.id,
		"name":                 n.name,
		"size":                 len(n.content),
		"lastModifiedDateTime": "2024-01-02T03:04:05Z",
	}
	if n.path != "/" {
		parent := n.path[:strings.LastIndexByte(n.path, '/')]
		m["parentReference"] = map[string]string{"path": "/drive/root:" + parent}
	}
	if n.dir {
		m["folder"] = map[string]any{"childCount": 0}
	} else {
		m["file"] = map[string]any{
			"mimeType": "application/octet-stream",
			"hashes": map[string]string{
				"quickXorHash": "kCZvWW1HV2rOyDHHnHhVlFDf+2M=",
				"sha256Hash":   "9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08",
			},
		}
		m["@microsoft.graph.downloadUrl"] = g.srv.URL + "/dl/" + n.id
	}
	return m
}

func (g *fakeGraph) serveItem(w http.ResponseWriter, p string) {
	n := g.lookup(p)
	if n == nil {
		writeGraphError(w, http.StatusNotFound, "itemNotFound")
		return
	}
	json.NewEncoder(w).Encode(g.itemJSON(n))
}

func (g *fakeGraph) serveItemByID(w http.ResponseWriter, id string) {
	g.mu.Lock()
	n := g.byID[id]
	g.mu.Unlock()
	if n == nil {
		writeGraphError(w, http.StatusNotFound, "itemNotFound")
		return
	}
	json.NewEncoder(w).Encode(g.itemJSON(n))
}

func (g *fakeGraph) serveChildren(w http.ResponseWriter, dir string) {
	prefix := strings.ToLower(strings.TrimSuffix(dir, "/")) + "/"
	var value []map[string]any
	g.mu.Lock()
	var children []*graphNode
	for p, n := range g.nodes {
		if strings.HasPrefix(p, prefix) && p != prefix && !strings.Contains(p[len(prefix):], "/") {
			children = append(children, n)
		}
	}
	g.mu.Unlock()
	for _, n := range children {
		value = append(value, g.itemJSON(n))
	}
	json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func (g *fakeGraph) serveSearch(w http.ResponseWriter, p string) {
	q := strings.TrimPrefix(p, "/root/search(q='")
	q = strings.ToLower(strings.TrimSuffix(q, "')"))
	var value []map[string]any
	g.mu.Lock()
	var matches []*graphNode
	for _, n := range g.nodes {
		if n.path != "/" && strings.Contains(strings.ToLower(n.name), q) {
			matches = append(matches, n)
		}
	}
	g.mu.Unlock()
	for _, n := range matches {
		value = append(value, g.itemJSON(n))
	}
	json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func (g *fakeGraph) serveContent(w http.ResponseWriter, id string) {
	g.mu.Lock()
	n := g.byID[id]
	g.mu.Unlock()
	if n == nil || n.dir {
		writeGraphError(w, http.StatusNotFound, "itemNotFound")
		return
	}
	w.Write([]byte(n.content))
}

func writeGraphError(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": code},
	})
}

func setupServer(t *testing.T, graph *fakeGraph, routes []string) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv := drive.NewClient(graph.srv.URL, drive.StaticTokenSource("tok"), drive.WithLogger(logger))
	classifier := auth.NewClassifier(routes)
	resolver := auth.NewResolver(kv.WithPrefix(store, "test_cache:"), drv, logger)
	sessions := auth.NewSessions(kv.WithPrefix(store, "test_session:"), logger)
	codec, err := auth.NewCodec("test-secret")
	require.NoError(t, err)
	cipher, err := auth.NewIDCipher("test-secret")
	require.NoError(t, err)

	a := api.New(drv, classifier, resolver, sessions, codec, cipher, api.WithLogger(logger))
	t.Cleanup(func() { _ = a.Close() })
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodGet, url, nil)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func verify(t *testing.T, client *http.Client, baseURL, password, path string) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPost, baseURL+"/api/verify", map[string]string{
		"token": password,
		"path":  path,
	})
}

func TestListPublicFolder(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFile("/readme.md", "F1", "hello")
	graph.addFolder("/docs", "D1")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := get(t, client, srv.URL+"/api/?path=/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Cache-Control"))
	assert.Empty(t, resp.Header.Get("X-Need-NoCache"))

	list := decode[api.ListResponse](t, resp)
	require.NotNil(t, list.Folder)
	require.Len(t, list.Folder.Value, 2)

	names := []string{list.Folder.Value[0].Name, list.Folder.Value[1].Name}
	assert.ElementsMatch(t, []string{"readme.md", "docs"}, names)
	for _, item := range list.Folder.Value {
		// ids are encrypted on the wire
		assert.NotContains(t, []string{"F1", "D1"}, item.ID)
		assert.Empty(t, item.Token)
	}
}

func TestProtectedUnlockFlow(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123\n")
	graph.addFile("/private/file.txt", "F1", "classified")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	// Challenge: no session, no token.
	resp := get(t, client, srv.URL+"/api/?path=/private/file.txt")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "yes", resp.Header.Get("X-Need-NoCache"))

	challenge := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "/private/.password", challenge.AuthPath)
	assert.True(t, challenge.NeedAuth)

	// Unlock.
	resp = verify(t, client, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Same request with the session cookie now succeeds and mints odpt.
	resp = get(t, client, srv.URL+"/api/?path=/private/file.txt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Need-NoCache"), "protected hits stay uncacheable")

	list := decode[api.ListResponse](t, resp)
	require.NotNil(t, list.File)
	assert.Equal(t, "file.txt", list.File.Name)
	assert.Regexp(t, `^[a-z0-9]{8}-[0-9a-f]{128}$`, list.File.Token)

	// The minted token works without any session.
	fresh := newClient(t)
	resp = get(t, fresh, srv.URL+"/api/raw/?path=/private/file.txt&odpt="+list.File.Token)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Location"), "/dl/F1")

	// But not for a different file.
	graph.addFile("/private/other.txt", "F2", "also classified")
	resp = get(t, fresh, srv.URL+"/api/raw/?path=/private/other.txt&odpt="+list.File.Token)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestListingOmitsSentinelToken(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	graph.addFile("/private/file.txt", "F1", "x")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := verify(t, client, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, client, srv.URL+"/api/?path=/private")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListResponse](t, resp)
	require.NotNil(t, list.Folder)

	for _, item := range list.Folder.Value {
		if item.Name == ".password" {
			assert.Empty(t, item.Token, "sentinel entries never carry a token")
			assert.Zero(t, item.Size, "sentinel size must not leak the secret length")
			if assert.NotNil(t, item.File) {
				assert.Nil(t, item.File.Hashes, "sentinel hashes must not leak")
			}
		} else {
			assert.NotEmpty(t, item.Token)
			require.NotNil(t, item.File)
			assert.NotNil(t, item.File.Hashes)
		}
	}
}

func TestNoPasswordSet(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/docs", "D1")
	graph.addFile("/docs/x.txt", "F1", "x")
	srv := setupServer(t, graph, []string{"/docs"})
	client := newClient(t)

	resp := get(t, client, srv.URL+"/api/?path=/docs/x.txt")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Need-NoCache"))
	resp.Body.Close()
}

func TestVerifyRejectsTraversal(t *testing.T) {
	graph := newFakeGraph(t)
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	for _, p := range []string{
		"/../etc/.password",
		`/private/..\.password`,
		"/c:/private/.password",
	} {
		resp := verify(t, client, srv.URL, "x", p)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "path %q", p)
		resp.Body.Close()
	}
	assert.Zero(t, graph.totalCalls(), "malformed paths never reach the upstream")
}

func TestVerifyValidation(t *testing.T) {
	graph := newFakeGraph(t)
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	// Missing fields.
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/verify", map[string]string{"token": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Wrong suffix.
	resp = verify(t, client, srv.URL, "x", "/private/file.txt")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unsupported verb.
	resp = get(t, client, srv.URL+"/api/verify")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	assert.Zero(t, graph.totalCalls())
}

func TestVerifyWrongPassword(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	graph.addFile("/private/file.txt", "F1", "x")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := verify(t, client, srv.URL, "wrong", "/private/.password")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The failed attempt must not have unlocked anything.
	resp = get(t, client, srv.URL+"/api/?path=/private/file.txt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestVerifyMissingSentinel(t *testing.T) {
	graph := newFakeGraph(t)
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := verify(t, client, srv.URL, "x", "/private/.password")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLogout(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	graph.addFile("/private/file.txt", "F1", "x")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := verify(t, client, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, client, srv.URL+"/api/?path=/private/file.txt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodDelete, srv.URL+"/api/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, client, srv.URL+"/api/?path=/private/file.txt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchFiltersLockedResults(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFile("/report-public.txt", "F1", "x")
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	graph.addFile("/private/report-secret.txt", "F2", "y")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := get(t, client, srv.URL+"/api/search/?q=report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Need-NoCache"))

	results := decode[api.SearchResponse](t, resp)
	require.Len(t, results.Value, 1)
	assert.Equal(t, "report-public.txt", results.Value[0].Name)

	// After unlocking, the gated result appears.
	resp = verify(t, client, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, client, srv.URL+"/api/search/?q=report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results = decode[api.SearchResponse](t, resp)
	names := make([]string, 0, len(results.Value))
	for _, item := range results.Value {
		names = append(names, item.Name)
	}
	assert.ElementsMatch(t, []string{"report-public.txt", "report-secret.txt"}, names)
}

func TestItemMeta(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFile("/readme.md", "F1", "hello")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := get(t, client, srv.URL+"/api/?path=/readme.md")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListResponse](t, resp)
	require.NotNil(t, list.File)

	resp = get(t, client, srv.URL+"/api/item/?id="+list.File.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item := decode[api.ItemResponse](t, resp)
	assert.Equal(t, "readme.md", item.Name)
	assert.NotEqual(t, "F1", item.ID)
}

func TestItemMetaRejectsBadID(t *testing.T) {
	graph := newFakeGraph(t)
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	for _, id := range []string{"", "F1", "bm90LWEtcmVhbC1pZA"} {
		resp := get(t, client, srv.URL+"/api/item/?id="+id)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "id %q", id)
		resp.Body.Close()
	}
	assert.Zero(t, graph.totalCalls(), "bad ids never reach the upstream")
}

func TestItemMetaEnforcesGate(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	graph.addFile("/private/file.txt", "F1", "x")
	srv := setupServer(t, graph, []string{"/private"})

	// Obtain the encrypted id with an unlocked client.
	unlocked := newClient(t)
	resp := verify(t, unlocked, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = get(t, unlocked, srv.URL+"/api/?path=/private/file.txt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListResponse](t, resp)
	require.NotNil(t, list.File)

	// A fresh client cannot use the id to bypass the gate.
	fresh := newClient(t)
	resp = get(t, fresh, srv.URL+"/api/item/?id="+list.File.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRawDownload(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFile("/readme.md", "F1", "hello world")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	// Default: redirect to the pre-authenticated URL.
	resp := get(t, client, srv.URL+"/api/raw/?path=/readme.md")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Location"), "/dl/F1")

	// Proxied: content streamed inline.
	resp = get(t, client, srv.URL+"/api/raw/?path=/readme.md&proxy=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))

	// Folders are not downloadable.
	graph.addFolder("/docs", "D1")
	resp = get(t, client, srv.URL+"/api/raw/?path=/docs")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRawNeverServesSentinel(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := verify(t, client, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Even the unlocked session cannot download the password file itself.
	resp = get(t, client, srv.URL+"/api/raw/?path=/private/.password")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestNameAttachment(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFile("/readme.md", "F1", "hello")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	resp := get(t, client, srv.URL+"/api/name/readme.md?path=/readme.md&proxy=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, `attachment; filename="readme.md"`, resp.Header.Get("Content-Disposition"))
}

func TestVerifyRateLimiting(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	for i := 0; i < 5; i++ {
		resp := verify(t, client, srv.URL, "wrong", "/private/.password")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
		resp.Body.Close()
	}

	// Locked out: even the correct password is refused now.
	resp := verify(t, client, srv.URL, "secret123", "/private/.password")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestResolverCachingAcrossRequests(t *testing.T) {
	graph := newFakeGraph(t)
	graph.addFolder("/private", "D1")
	graph.addFile("/private/.password", "S1", "secret123")
	graph.addFile("/private/file.txt", "F1", "x")
	srv := setupServer(t, graph, []string{"/private"})
	client := newClient(t)

	for i := 0; i < 4; i++ {
		resp := get(t, client, srv.URL+"/api/?path=/private/file.txt")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	// One metadata fetch for the nearest (missing) candidate and one for the
	// gate sentinel; every later request is served from the cache.
	assert.Equal(t, 1, graph.callCount("/root:/private/.password"))
	assert.Equal(t, 1, graph.callCount("/root:/private/file.txt/.password"))
}

func TestHealthAndOpenAPI(t *testing.T) {
	graph := newFakeGraph(t)
	srv := setupServer(t, graph, nil)
	client := newClient(t)

	resp := get(t, client, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, client, srv.URL+"/openapi.yaml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "openapi:")
}
