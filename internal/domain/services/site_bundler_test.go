package services

import (
	"strings"
	"testing"
	"time"

	"flow-vce/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSite() *types.GeneratedSite {
	return &types.GeneratedSite{
		HTML: `<!DOCTYPE html><html lang="en"><head><title>old</title><style>.x{}</style></head><body class="b"><header>Top</header><main>Hi</main></body></html>`,
		CSS:  "main{color:red}",
		JS:   "console.log(1)",
		Metadata: types.SiteMetadata{
			Title:       `Coffee <b>Shop</b>`,
			Description: `Best "beans" & more`,
		},
		Assets: map[string]string{"logo.svg": "<svg/>", "assets/img/bg.svg": "<svg/>", "../escape.txt": "x"},
	}
}

func TestStripDocumentWrappers(t *testing.T) {
	assert.Equal(t, "<header>Top</header><main>Hi</main>", StripDocumentWrappers(sampleSite().HTML))
	assert.Equal(t, "<p>fragment</p>", StripDocumentWrappers("<p>fragment</p>"))
	assert.Equal(t, "<p>x</p>", StripDocumentWrappers("<HTML><BODY><p>x</p></BODY></HTML>"))
}

func TestComposeDocument(t *testing.T) {
	doc := ComposeDocument(sampleSite())

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>\n<html lang=\"en\">"))
	assert.Equal(t, 1, strings.Count(doc, "<html"))
	assert.Equal(t, 1, strings.Count(doc, "<body>"))
	assert.Contains(t, doc, "<title>Coffee Shop</title>")
	assert.Contains(t, doc, `content="Best &#34;beans&#34; &amp; more"`)
	assert.Contains(t, doc, "<style>\nmain{color:red}\n</style>")
	assert.Contains(t, doc, "<script>\nconsole.log(1)\n</script>")
	assert.Contains(t, doc, "<header>Top</header><main>Hi</main>")
	assert.NotContains(t, doc, "<title>old</title>")
}

func TestBundleFiles(t *testing.T) {
	files, err := BundleFiles(sampleSite())
	require.NoError(t, err)

	assert.Equal(t, "main{color:red}", string(files["styles.css"]))
	assert.Equal(t, "console.log(1)", string(files["script.js"]))
	assert.Contains(t, string(files["index.html"]), `<link rel="stylesheet" href="styles.css">`)
	assert.Contains(t, string(files["index.html"]), `<script src="script.js"></script>`)
	assert.Contains(t, files, "assets/logo.svg")
	assert.Contains(t, files, "assets/img/bg.svg")
	assert.Contains(t, files, "assets/escape.txt")
	assert.Len(t, files, 6)
}

func TestDownloadFileName(t *testing.T) {
	assert.Equal(t, "coffee-shop.html", DownloadFileName("Coffee  Shop"))
	assert.Equal(t, "my-site.html", DownloadFileName("  "))
	assert.Equal(t, "a-b.html", DownloadFileName("a/ b?"))
}

func TestGenerateSiteName(t *testing.T) {
	cases := map[string]string{
		"Create a portfolio for the photographer with gallery": "create-portfolio-photographer",
		"A modern coffee-shop!":                                "modern-coffee-shop",
		"an ai is ok":                                          "my-site",
		"":                                                     "my-site",
		"Café   bakery":                                        "caf-bakery",
	}
	for prompt, want := range cases {
		assert.Equal(t, want, GenerateSiteName(prompt), prompt)
	}
}

func TestEstimateGenerationTime(t *testing.T) {
	assert.Equal(t, 5*time.Second, EstimateGenerationTime("simple landing page"))
	assert.Equal(t, 7*time.Second, EstimateGenerationTime("An interactive page"))
	assert.Equal(t, 19*time.Second, EstimateGenerationTime("3D animation ecommerce dashboard, interactive"))
}

func TestValidateKeys(t *testing.T) {
	assert.True(t, ValidateClaudeAPIKey("sk-ant-api03-abcdefghijk"))
	assert.False(t, ValidateClaudeAPIKey("sk-ant-api03"))
	assert.False(t, ValidateClaudeAPIKey("sk-openai-abcdefghijklmnop"))

	assert.True(t, ValidatePrivateKey(strings.Repeat("aF09", 16)))
	assert.False(t, ValidatePrivateKey(strings.Repeat("a", 63)))
	assert.False(t, ValidatePrivateKey(strings.Repeat("g", 64)))
}
