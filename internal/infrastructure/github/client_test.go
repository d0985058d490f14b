package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"flow-vce/pkg/config"

	gh "github.com/google/go-github/v18/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Client, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	api := gh.NewClient(nil)
	u, _ := url.Parse(server.URL + "/")
	api.BaseURL = u
	api.UploadURL = u

	cfg, err := config.Parse([]byte(""))
	require.NoError(t, err)
	return NewClientWithAPI(api, cfg), mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		in, owner, repo string
	}{
		{"https://github.com/acme/site", "acme", "site"},
		{"https://github.com/acme/site.git", "acme", "site"},
		{"git@github.com:acme/site.git", "acme", "site"},
		{"https://github.com/acme/site/tree/main/docs", "acme", "site"},
		{"acme/site", "acme", "site"},
	}
	for _, tc := range cases {
		owner, repo, err := ParseRepoURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.owner, owner, tc.in)
		assert.Equal(t, tc.repo, repo, tc.in)
	}

	_, _, err := ParseRepoURL("https://gitlab.com/acme")
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
}

func TestPagesURL(t *testing.T) {
	assert.Equal(t, "https://acme.github.io/site", PagesURL("Acme", "site"))
	assert.Equal(t, "https://acme.github.io", PagesURL("acme", "acme.github.io"))
}

func TestCurrentUser(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, map[string]string{"login": "octo", "name": "Octo Cat"})
	})

	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octo", u.Login)
	assert.Equal(t, "Octo Cat", u.Name)
}

func TestListFiles(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/o/r/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		writeJSON(t, w, 200, map[string]interface{}{
			"sha": "t1",
			"tree": []map[string]interface{}{
				{"path": "index.html", "type": "blob", "size": 10, "sha": "a"},
				{"path": "css", "type": "tree", "sha": "d"},
				{"path": "css/style.css", "type": "blob", "size": 3, "sha": "b"},
			},
		})
	})

	files, err := c.ListFiles(context.Background(), "o", "r", "")
	require.NoError(t, err)
	assert.Equal(t, []RepoFile{
		{Path: "index.html", Size: 10, SHA: "a"},
		{Path: "css/style.css", Size: 3, SHA: "b"},
	}, files)
}

func TestGetFile(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/o/r/contents/index.html", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev", r.URL.Query().Get("ref"))
		writeJSON(t, w, 200, map[string]interface{}{
			"type":     "file",
			"path":     "index.html",
			"sha":      "abc",
			"size":     5,
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("hello")),
		})
	})
	mux.HandleFunc("/repos/o/r/contents/missing.txt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 404, map[string]string{"message": "Not Found"})
	})

	f, err := c.GetFile(context.Background(), "o", "r", "dev", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(f.Content))
	assert.Equal(t, "abc", f.SHA)

	_, err = c.GetFile(context.Background(), "o", "r", "dev", "missing.txt")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGetFileOverContentsLimit(t *testing.T) {
	c, mux := setup(t)
	bundle := strings.Repeat("var a=1;", 1<<17)
	mux.HandleFunc("/repos/o/r/contents/vendor.min.js", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, map[string]interface{}{
			"type":     "file",
			"path":     "vendor.min.js",
			"sha":      "big1",
			"size":     len(bundle),
			"encoding": "none",
			"content":  "",
		})
	})
	mux.HandleFunc("/repos/o/r/git/blobs/big1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github.v3.raw", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(bundle))
	})

	f, err := c.GetFile(context.Background(), "o", "r", "main", "vendor.min.js")
	require.NoError(t, err)
	assert.Equal(t, "vendor.min.js", f.Path)
	assert.Equal(t, "big1", f.SHA)
	assert.Equal(t, int64(len(bundle)), f.Size)
	assert.Equal(t, bundle, string(f.Content))
}

// gitServer fakes the git data endpoints used by CommitFiles.
type gitServer struct {
	t        *testing.T
	mu       sync.Mutex
	blobs    map[string]string
	tree     map[string]interface{}
	commit   map[string]interface{}
	refSHA   string
	branches map[string]bool

	truncated bool
}

func newGitServer(t *testing.T, mux *http.ServeMux) *gitServer {
	s := &gitServer{t: t, blobs: map[string]string{}, branches: map[string]bool{"main": true}}

	ref := func(branch string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !s.branches[branch] {
				writeJSON(t, w, 404, map[string]string{"message": "Not Found"})
				return
			}
			switch r.Method {
			case http.MethodGet:
				writeJSON(t, w, 200, map[string]interface{}{
					"ref":    "refs/heads/" + branch,
					"object": map[string]string{"sha": "p1", "type": "commit"},
				})
			case http.MethodPatch:
				var body struct {
					SHA   string `json:"sha"`
					Force bool   `json:"force"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				s.refSHA = body.SHA
				writeJSON(t, w, 200, map[string]interface{}{
					"ref":    "refs/heads/" + branch,
					"object": map[string]string{"sha": body.SHA, "type": "commit"},
				})
			}
		}
	}
	mux.HandleFunc("/repos/o/r/git/refs/heads/main", ref("main"))
	mux.HandleFunc("/repos/o/r/git/refs/heads/gh-pages", ref("gh-pages"))
	mux.HandleFunc("/repos/o/r/git/refs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p1", body.SHA)
		s.mu.Lock()
		s.branches[body.Ref[len("refs/heads/"):]] = true
		s.mu.Unlock()
		writeJSON(t, w, 201, map[string]interface{}{
			"ref":    body.Ref,
			"object": map[string]string{"sha": body.SHA, "type": "commit"},
		})
	})

	mux.HandleFunc("/repos/o/r/git/commits/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, map[string]interface{}{"sha": "p1", "tree": map[string]string{"sha": "t1"}})
	})
	mux.HandleFunc("/repos/o/r/git/trees/t1", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		truncated := s.truncated
		s.mu.Unlock()
		writeJSON(t, w, 200, map[string]interface{}{
			"sha": "t1",
			"tree": []map[string]interface{}{
				{"path": "keep.txt", "mode": "100644", "type": "blob", "sha": "k"},
				{"path": "lib", "mode": "040000", "type": "tree", "sha": "d1"},
				{"path": "lib/vendor", "mode": "160000", "type": "commit", "sha": "sub1"},
				{"path": "old.txt", "mode": "100644", "type": "blob", "sha": "o"},
				{"path": "index.html", "mode": "100644", "type": "blob", "sha": "i0"},
			},
			"truncated": truncated,
		})
	})
	mux.HandleFunc("/repos/o/r/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "base64", body.Encoding)
		decoded, err := base64.StdEncoding.DecodeString(body.Content)
		require.NoError(t, err)

		s.mu.Lock()
		sha := fmt.Sprintf("blob-%s", decoded)
		s.blobs[sha] = string(decoded)
		s.mu.Unlock()
		writeJSON(t, w, 201, map[string]string{"sha": sha})
	})
	mux.HandleFunc("/repos/o/r/git/trees", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.mu.Lock()
		s.tree = body
		s.mu.Unlock()
		writeJSON(t, w, 201, map[string]string{"sha": "t2"})
	})
	mux.HandleFunc("/repos/o/r/git/commits", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.mu.Lock()
		s.commit = body
		s.mu.Unlock()
		writeJSON(t, w, 201, map[string]string{"sha": "c2"})
	})
	return s
}

func (s *gitServer) treePaths() map[string]string {
	out := map[string]string{}
	for _, e := range s.tree["tree"].([]interface{}) {
		entry := e.(map[string]interface{})
		out[entry["path"].(string)] = entry["sha"].(string)
	}
	return out
}

func (s *gitServer) treeEntry(path string) map[string]interface{} {
	for _, e := range s.tree["tree"].([]interface{}) {
		entry := e.(map[string]interface{})
		if entry["path"] == path {
			return entry
		}
	}
	return nil
}

func TestCommitFiles(t *testing.T) {
	t.Run("additions on top of base tree", func(t *testing.T) {
		c, mux := setup(t)
		s := newGitServer(t, mux)

		sha, err := c.CommitFiles(context.Background(), "o", "r", "main", "update site", []FileChange{
			{Path: "index.html", Content: []byte("<h1>v2</h1>")},
			{Path: "css/style.css", Content: []byte("body{}")},
		})
		require.NoError(t, err)
		assert.Equal(t, "c2", sha)
		assert.Equal(t, "c2", s.refSHA)

		assert.Equal(t, "t1", s.tree["base_tree"])
		assert.Equal(t, map[string]string{
			"index.html":    "blob-<h1>v2</h1>",
			"css/style.css": "blob-body{}",
		}, s.treePaths())

		assert.Equal(t, "update site", s.commit["message"])
		assert.Equal(t, "t2", s.commit["tree"])
		assert.Equal(t, []interface{}{"p1"}, s.commit["parents"])
	})

	t.Run("deletions rebuild the full tree", func(t *testing.T) {
		c, mux := setup(t)
		s := newGitServer(t, mux)

		_, err := c.CommitFiles(context.Background(), "o", "r", "", "remove old", []FileChange{
			{Path: "old.txt", Delete: true},
			{Path: "index.html", Content: []byte("new")},
		})
		require.NoError(t, err)

		_, hasBase := s.tree["base_tree"]
		assert.False(t, hasBase)
		assert.Equal(t, map[string]string{
			"keep.txt":   "k",
			"lib/vendor": "sub1",
			"index.html": "blob-new",
		}, s.treePaths())
		assert.Equal(t, "160000", s.treeEntry("lib/vendor")["mode"])
		assert.Equal(t, "commit", s.treeEntry("lib/vendor")["type"])
	})

	t.Run("deletions refuse a truncated tree", func(t *testing.T) {
		c, mux := setup(t)
		s := newGitServer(t, mux)
		s.truncated = true

		_, err := c.CommitFiles(context.Background(), "o", "r", "main", "remove old", []FileChange{
			{Path: "old.txt", Delete: true},
		})
		assert.ErrorIs(t, err, ErrTreeTruncated)
		assert.Nil(t, s.tree)
		assert.Empty(t, s.refSHA)
	})

	t.Run("empty change set", func(t *testing.T) {
		c, _ := setup(t)
		_, err := c.CommitFiles(context.Background(), "o", "r", "main", "noop", nil)
		assert.Error(t, err)
	})
}

func TestPublishPages(t *testing.T) {
	c, mux := setup(t)
	s := newGitServer(t, mux)

	var enabled, builds int
	mux.HandleFunc("/repos/o/r/pages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, 404, map[string]string{"message": "Not Found"})
		case http.MethodPost:
			var body enablePagesRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gh-pages", body.Source.Branch)
			assert.Equal(t, pagesPreviewAccept, r.Header.Get("Accept"))
			enabled++
			writeJSON(t, w, 201, map[string]string{"status": "queued"})
		}
	})
	mux.HandleFunc("/repos/o/r/pages/builds", func(w http.ResponseWriter, r *http.Request) {
		builds++
		writeJSON(t, w, 201, map[string]string{"status": "queued"})
	})

	res, err := c.PublishPages(context.Background(), "o", "r", "publish", []FileChange{
		{Path: "index.html", Content: []byte("<html></html>")},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://o.github.io/r", res.URL)
	assert.Equal(t, "gh-pages", res.Branch)
	assert.Equal(t, "c2", res.CommitSHA)
	assert.True(t, s.branches["gh-pages"])
	assert.Equal(t, 1, enabled)
	assert.Equal(t, 1, builds)
}

func TestCreateRepo(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "my-site", body["name"])
		assert.Equal(t, true, body["auto_init"])
		writeJSON(t, w, 201, map[string]interface{}{
			"id": 7, "name": "my-site", "full_name": "octo/my-site",
			"owner":          map[string]string{"login": "octo"},
			"default_branch": "main",
		})
	})

	repo, err := c.CreateRepo(context.Background(), CreateRepoOptions{Name: "my-site"})
	require.NoError(t, err)
	assert.Equal(t, "octo", repo.Owner)
	assert.Equal(t, "octo/my-site", repo.FullName)

	_, err = c.CreateRepo(context.Background(), CreateRepoOptions{})
	assert.Error(t, err)
}

func TestBranchesAndPulls(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/o/r/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, []map[string]interface{}{
			{"name": "main", "commit": map[string]string{"sha": "p1"}, "protected": true},
			{"name": "feature"},
		})
	})
	mux.HandleFunc("/repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "main", body["base"])
			writeJSON(t, w, 201, map[string]interface{}{
				"number": 3, "title": body["title"], "state": "open",
				"head": map[string]string{"ref": "feature"},
				"base": map[string]string{"ref": "main"},
			})
			return
		}
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		writeJSON(t, w, 200, []map[string]interface{}{{"number": 1, "title": "first", "state": "closed"}})
	})

	branches, err := c.ListBranches(context.Background(), "o", "r")
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, Branch{Name: "main", SHA: "p1", Protected: true}, branches[0])

	prs, err := c.ListPullRequests(context.Background(), "o", "r", "all")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 1, prs[0].Number)

	pr, err := c.CreatePullRequest(context.Background(), "o", "r", NewPullRequest{Title: "Add page", Head: "feature"})
	require.NoError(t, err)
	assert.Equal(t, 3, pr.Number)
	assert.Equal(t, "feature", pr.Head)
}
