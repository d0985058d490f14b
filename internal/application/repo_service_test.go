package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"flow-vce/internal/domain/models"
	"flow-vce/internal/infrastructure/github"
	"flow-vce/pkg/config"
	"flow-vce/pkg/filetree"
	"flow-vce/pkg/types"

	gh "github.com/google/go-github/v18/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentsAPILimit = 1 << 20

// fakeRepo serves the subset of the GitHub API that RepoService touches for
// repository o/r on branch main.
type fakeRepo struct {
	t       *testing.T
	mu      sync.Mutex
	files   map[string]string
	order   []string
	tree    map[string]interface{}
	commits int
	pages   bool
}

func newFakeRepo(t *testing.T) (*fakeRepo, ClientFactory) {
	t.Helper()
	f := &fakeRepo{
		t: t,
		files: map[string]string{
			"index.html":   "<h1>repo</h1>",
			"css/site.css": "body{}",
			"logo.png":     "\x89PNG\x00\x00\x00\x0dIHDR",
			"video.mp4":    strings.Repeat("x", 64),
		},
		order: []string{"index.html", "css/site.css", "logo.png", "video.mp4"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, 200, map[string]interface{}{
			"name":           "r",
			"full_name":      "o/r",
			"owner":          map[string]string{"login": "o"},
			"default_branch": "main",
			"html_url":       "https://github.com/o/r",
		})
	})
	mux.HandleFunc("/repos/o/r/git/trees/", func(w http.ResponseWriter, r *http.Request) {
		entries := make([]map[string]interface{}, 0, len(f.order))
		for _, p := range f.order {
			entries = append(entries, map[string]interface{}{
				"path": p, "mode": "100644", "type": "blob", "sha": "sha-" + p, "size": len(f.files[p]),
			})
		}
		f.json(w, 200, map[string]interface{}{"sha": "t1", "tree": entries})
	})
	mux.HandleFunc("/repos/o/r/contents/", func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/repos/o/r/contents/")
		content, ok := f.files[p]
		if !ok {
			f.json(w, 404, map[string]string{"message": "Not Found"})
			return
		}
		// 与 GitHub 一致，超过 1MB 的文件不返回内容
		if len(content) > contentsAPILimit {
			f.json(w, 200, map[string]interface{}{
				"type": "file", "path": p, "sha": "sha-" + p, "size": len(content), "encoding": "none", "content": "",
			})
			return
		}
		f.json(w, 200, map[string]interface{}{
			"type":     "file",
			"path":     p,
			"sha":      "sha-" + p,
			"size":     len(content),
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
	})
	mux.HandleFunc("/repos/o/r/git/blobs/", func(w http.ResponseWriter, r *http.Request) {
		sha := strings.TrimPrefix(r.URL.Path, "/repos/o/r/git/blobs/")
		f.mu.Lock()
		content, ok := f.files[strings.TrimPrefix(sha, "sha-")]
		f.mu.Unlock()
		if !ok {
			f.json(w, 404, map[string]string{"message": "Not Found"})
			return
		}
		_, _ = w.Write([]byte(content))
	})
	mux.HandleFunc("/repos/o/r/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, 200, map[string]interface{}{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": "p1", "type": "commit"},
		})
	})
	mux.HandleFunc("/repos/o/r/git/commits/p1", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, 200, map[string]interface{}{"sha": "p1", "tree": map[string]string{"sha": "t1"}})
	})
	mux.HandleFunc("/repos/o/r/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, 201, map[string]string{"sha": "b1"})
	})
	mux.HandleFunc("/repos/o/r/git/trees", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.tree = body
		f.mu.Unlock()
		f.json(w, 201, map[string]string{"sha": "t2"})
	})
	mux.HandleFunc("/repos/o/r/git/commits", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.commits++
		f.mu.Unlock()
		f.json(w, 201, map[string]string{"sha": "c2"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg, err := config.Parse([]byte(""))
	require.NoError(t, err)
	factory := func(ctx context.Context, token string) (*github.Client, error) {
		if token == "" {
			return nil, github.ErrMissingToken
		}
		api := gh.NewClient(nil)
		u, _ := url.Parse(server.URL + "/")
		api.BaseURL = u
		api.UploadURL = u
		return github.NewClientWithAPI(api, cfg), nil
	}
	return f, factory
}

func (f *fakeRepo) json(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeRepo) treePaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.tree["tree"].([]interface{}) {
		out = append(out, e.(map[string]interface{})["path"].(string))
	}
	return out
}

func newRepoService(t *testing.T) (*RepoService, *ProjectService, *fakeRepo) {
	t.Helper()
	fake, factory := newFakeRepo(t)
	projects := newProjectService(t)
	return NewRepoServiceWithFactory(factory, 32, projects), projects, fake
}

func TestRepoTree(t *testing.T) {
	s, _, _ := newRepoService(t)

	roots, err := s.Tree(context.Background(), "tok", "o", "r", "main", true)
	require.NoError(t, err)
	require.NotEmpty(t, roots)
	assert.Equal(t, "css", roots[0].Name)

	css := filetree.Find(roots, "css/site.css")
	require.NotNil(t, css)
	assert.Equal(t, "css", css.Language)
	assert.Equal(t, int64(6), css.Size)

	_, err = s.Tree(context.Background(), "", "o", "r", "main", false)
	assert.ErrorIs(t, err, github.ErrMissingToken)
}

func TestConnectPullCommit(t *testing.T) {
	s, projects, fake := newRepoService(t)
	ctx := context.Background()

	p, err := projects.Create("site", "")
	require.NoError(t, err)

	_, err = s.Pull(ctx, "tok", p.ID)
	assert.ErrorIs(t, err, ErrNotConnected)

	link, err := s.Connect(ctx, "tok", p.ID, "https://github.com/o/r.git", "")
	require.NoError(t, err)
	assert.Equal(t, "o/r", link.FullName())
	assert.Equal(t, "main", link.Branch)

	pulled, err := s.Pull(ctx, "tok", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pulled.Files)
	assert.Equal(t, []string{"logo.png", "video.mp4"}, pulled.Skipped)

	got, err := projects.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", "css/site.css"}, paths(got))

	_, err = s.Commit(ctx, "tok", p.ID, "")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	_, err = projects.PutFile(p.ID, "index.html", []byte("<h1>local</h1>"))
	require.NoError(t, err)
	_, err = projects.DeleteNode(p.ID, "css")
	require.NoError(t, err)

	result, err := s.Commit(ctx, "tok", p.ID, "sync")
	require.NoError(t, err)
	assert.Equal(t, "c2", result.SHA)
	assert.Equal(t, []string{"index.html"}, result.Files)
	assert.Equal(t, []string{"css/site.css"}, result.Deleted)
	assert.ElementsMatch(t, []string{"index.html", "logo.png", "video.mp4"}, fake.treePaths())

	dirty, deleted, err := projects.DirtyFiles(p.ID)
	require.NoError(t, err)
	assert.Empty(t, dirty)
	assert.Empty(t, deleted)
}

func TestPullLargeTextFile(t *testing.T) {
	fake, factory := newFakeRepo(t)
	bundle := strings.Repeat("var a=1;", 3<<16)
	require.Greater(t, len(bundle), contentsAPILimit)
	fake.files["vendor.min.js"] = bundle
	fake.order = []string{"index.html", "vendor.min.js"}

	projects := newProjectService(t)
	s := NewRepoServiceWithFactory(factory, 2<<20, projects)
	ctx := context.Background()

	p, err := projects.Create("bundle", "")
	require.NoError(t, err)
	_, err = s.Connect(ctx, "tok", p.ID, "o/r", "")
	require.NoError(t, err)

	pulled, err := s.Pull(ctx, "tok", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pulled.Files)
	assert.Empty(t, pulled.Skipped)

	content, err := projects.GetFile(p.ID, "vendor.min.js")
	require.NoError(t, err)
	assert.Equal(t, len(bundle), len(content.Content))
}

func TestPublishPagesRequiresSite(t *testing.T) {
	s, projects, _ := newRepoService(t)
	p, err := projects.Create("empty", "")
	require.NoError(t, err)

	_, err = s.PublishPages(context.Background(), "tok", p.ID)
	assert.ErrorIs(t, err, ErrMissingSite)

	require.NoError(t, projects.ImportSite(p.ID, &types.GeneratedSite{
		HTML:     "<h1>x</h1>",
		Metadata: types.SiteMetadata{Title: "X"},
	}))
	_, err = s.PublishPages(context.Background(), "tok", p.ID)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = s.Connect(context.Background(), "tok", "missing", "o/r", "")
	assert.ErrorIs(t, err, models.ErrProjectNotFound)
}
