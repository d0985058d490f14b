package filetree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", Render(nil, RenderOptions{}))
		assert.Equal(t, "/\n", Render(nil, RenderOptions{Root: "/"}))
	})

	t.Run("insertion order", func(t *testing.T) {
		roots, err := Build(scenarioA())
		require.NoError(t, err)
		expected := strings.Join([]string{
			"site",
			"├── index.html",
			"├── css/",
			"│   ├── style.css",
			"│   └── theme/",
			"│       └── dark.css",
			"└── js/",
			"    └── app.js",
			"",
		}, "\n")
		assert.Equal(t, expected, Render(roots, RenderOptions{Root: "site", FolderSuffix: "/"}))
	})

	t.Run("sizes", func(t *testing.T) {
		roots, err := Build([]FileRecord{
			{Path: "index.html", Size: 2048},
			{Path: "img/logo.svg", Size: 512},
		})
		require.NoError(t, err)
		expected := strings.Join([]string{
			"├── index.html (2.0 kB)",
			"└── img",
			"    └── logo.svg (512 B)",
			"",
		}, "\n")
		assert.Equal(t, expected, Render(roots, RenderOptions{ShowSize: true}))
	})
}

func TestRenderSkipsNegativeSize(t *testing.T) {
	roots, err := Build([]FileRecord{{Path: "a.txt", Size: -5}, {Path: "b.txt", Size: 1536}})
	require.NoError(t, err)
	assert.Equal(t, "├── a.txt\n└── b.txt (1.5 kB)\n", Render(roots, RenderOptions{ShowSize: true}))
}
