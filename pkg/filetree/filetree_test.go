package filetree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(paths ...string) []FileRecord {
	out := make([]FileRecord, 0, len(paths))
	for i, p := range paths {
		out = append(out, FileRecord{ID: fmt.Sprintf("f%d", i), Path: p, Size: int64(len(p)), Language: "text"})
	}
	return out
}

// shape renders nodes as "name" for files and "name{...}" for folders.
func shape(nodes []*Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.IsDir() {
			parts = append(parts, n.Name+"{"+shape(n.Children)+"}")
		} else {
			parts = append(parts, n.Name)
		}
	}
	return strings.Join(parts, ",")
}

func scenarioA() []FileRecord {
	return records("index.html", "css/style.css", "css/theme/dark.css", "js/app.js")
}

func TestBuild(t *testing.T) {
	t.Run("scenario A", func(t *testing.T) {
		roots, err := Build(scenarioA())
		require.NoError(t, err)
		assert.Equal(t, "index.html,css{style.css,theme{dark.css}},js{app.js}", shape(roots))

		css := Find(roots, "css")
		require.NotNil(t, css)
		assert.Equal(t, KindFolder, css.Kind)
		assert.Equal(t, "css", css.Path)

		dark := Find(roots, "css/theme/dark.css")
		require.NotNil(t, dark)
		assert.Equal(t, KindFile, dark.Kind)
		assert.Equal(t, "f2", dark.ID)
		assert.Equal(t, "text", dark.Language)
	})

	t.Run("empty input", func(t *testing.T) {
		roots, err := Build(nil)
		require.NoError(t, err)
		assert.Empty(t, roots)
	})

	t.Run("root level files only", func(t *testing.T) {
		roots, err := Build(records("b.txt", "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "b.txt,a.txt", shape(roots))
	})

	t.Run("insertion order is first seen, not sorted", func(t *testing.T) {
		roots, err := Build(records("z/1", "a/1", "z/2", "m.txt", "a/0"))
		require.NoError(t, err)
		assert.Equal(t, "z{1,2},a{1,0},m.txt", shape(roots))
	})

	t.Run("files and folders interleave by first encounter", func(t *testing.T) {
		roots, err := Build(records("top.txt", "dir/x.txt", "dir/sub/y.txt", "dir/z.txt", "last.txt"))
		require.NoError(t, err)
		assert.Equal(t, "top.txt,dir{x.txt,sub{y.txt},z.txt},last.txt", shape(roots))
	})

	t.Run("same segment under different parents", func(t *testing.T) {
		roots, err := Build(records("a/src/x", "b/src/x", "src/x"))
		require.NoError(t, err)
		assert.Equal(t, "a{src{x}},b{src{x}},src{x}", shape(roots))
		assert.Equal(t, "b/src/x", Find(roots, "b/src/x").Path)
	})

	t.Run("case sensitive segments", func(t *testing.T) {
		roots, err := Build(records("Docs/a", "docs/a"))
		require.NoError(t, err)
		assert.Equal(t, "Docs{a},docs{a}", shape(roots))
	})

	t.Run("duplicate path last write wins", func(t *testing.T) {
		in := []FileRecord{
			{ID: "1", Path: "a/x", Size: 1},
			{ID: "2", Path: "a/y", Size: 2},
			{ID: "3", Path: "a/x", Size: 3, Language: "go"},
		}
		roots, err := Build(in)
		require.NoError(t, err)
		assert.Equal(t, "a{x,y}", shape(roots))
		x := Find(roots, "a/x")
		assert.Equal(t, "3", x.ID)
		assert.Equal(t, int64(3), x.Size)
		assert.Equal(t, "go", x.Language)
	})
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name   string
		paths  []string
		bad    []string
		reason Reason
	}{
		{"scenario B double slash", []string{"a//b.txt"}, []string{"a//b.txt"}, ReasonEmptySegment},
		{"leading slash", []string{"/a.txt"}, []string{"/a.txt"}, ReasonEmptySegment},
		{"trailing slash", []string{"a/"}, []string{"a/"}, ReasonEmptySegment},
		{"empty path", []string{""}, []string{""}, ReasonEmptySegment},
		{"dot segment", []string{"a/./b"}, []string{"a/./b"}, ReasonRelativeSegment},
		{"dot dot segment", []string{"../b"}, []string{"../b"}, ReasonRelativeSegment},
		{"scenario D collision", []string{"a/b", "a/b/c"}, []string{"a/b"}, ReasonFileFolderCollision},
		{"collision in reverse order", []string{"a/b/c", "a/b"}, []string{"a/b"}, ReasonFileFolderCollision},
		{"root file collides with folder", []string{"a", "a/b"}, []string{"a"}, ReasonFileFolderCollision},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roots, err := Build(records(tc.paths...))
			require.Error(t, err)
			assert.Nil(t, roots)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.reason, verr.Reason)
			assert.Equal(t, tc.bad, InvalidPaths(err))
			assert.Contains(t, err.Error(), tc.bad[0])
		})
	}

	t.Run("reports every offending path", func(t *testing.T) {
		_, err := Build(records("ok.txt", "a//b", "/c", "d/e", "d"))
		require.Error(t, err)
		assert.Equal(t, []string{"a//b", "/c", "d"}, InvalidPaths(err))
	})
}

func TestBuildProperties(t *testing.T) {
	in := records(
		"README.md",
		"src/main.go",
		"src/internal/a/a.go",
		"src/internal/a/a_test.go",
		"src/internal/b/b.go",
		"docs/guide/intro.md",
		"docs/index.md",
		"Makefile",
	)

	t.Run("idempotent", func(t *testing.T) {
		first, err := Build(in)
		require.NoError(t, err)
		second, err := Build(in)
		require.NoError(t, err)
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.JSONEq(t, string(a), string(b))
	})

	t.Run("paths round trip", func(t *testing.T) {
		roots, err := Build(in)
		require.NoError(t, err)
		var check func(nodes []*Node, ancestors []string)
		check = func(nodes []*Node, ancestors []string) {
			for _, n := range nodes {
				want := Join(append(append([]string{}, ancestors...), n.Name)...)
				assert.Equal(t, want, n.Path)
				if n.IsDir() {
					for _, c := range n.Children {
						assert.True(t, strings.HasPrefix(c.Path, n.Path+Separator))
					}
					check(n.Children, append(append([]string{}, ancestors...), n.Name))
				}
			}
		}
		check(roots, nil)
	})

	t.Run("complete", func(t *testing.T) {
		roots, err := Build(in)
		require.NoError(t, err)
		_, files := Count(roots)
		assert.Equal(t, len(in), files)
		for _, rec := range in {
			n := Find(roots, rec.Path)
			require.NotNil(t, n, rec.Path)
			assert.Equal(t, KindFile, n.Kind)
			assert.Equal(t, rec.ID, n.ID)
		}
	})

	t.Run("siblings unique", func(t *testing.T) {
		roots, err := Build(in)
		require.NoError(t, err)
		var check func(nodes []*Node)
		check = func(nodes []*Node) {
			seen := map[string]bool{}
			for _, n := range nodes {
				assert.False(t, seen[n.Name], n.Path)
				seen[n.Name] = true
				check(n.Children)
			}
		}
		check(roots)
	})

	t.Run("folder de-duplication", func(t *testing.T) {
		var many []FileRecord
		for i := 0; i < 50; i++ {
			many = append(many, FileRecord{Path: fmt.Sprintf("a/b/c/file%d.txt", i)})
		}
		roots, err := Build(many)
		require.NoError(t, err)
		folders, files := Count(roots)
		assert.Equal(t, 3, folders)
		assert.Equal(t, 50, files)
	})
}

func TestNodeJSON(t *testing.T) {
	roots, err := Build([]FileRecord{{ID: "1", Path: "js/app.js", Size: 12, Language: "javascript"}})
	require.NoError(t, err)

	data, err := json.Marshal(roots)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"js","type":"folder","path":"js","children":[
		{"name":"app.js","type":"file","path":"js/app.js","id":"1","size":12,"language":"javascript"}]}]`, string(data))

	var decoded []*Node
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindFolder, decoded[0].Kind)
	assert.Equal(t, KindFile, decoded[0].Children[0].Kind)

	empty, err := json.Marshal(&Node{Name: "x", Kind: KindFolder, Path: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","type":"folder","path":"x","children":[]}`, string(empty))

	roots, err = Build([]FileRecord{{Path: "assets/.keep"}, {Path: "README"}})
	require.NoError(t, err)
	data, err = json.Marshal(roots)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"name":"assets","type":"folder","path":"assets","children":[
			{"name":".keep","type":"file","path":"assets/.keep","size":0}]},
		{"name":"README","type":"file","path":"README","size":0}]`, string(data))
}
