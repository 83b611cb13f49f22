package bundler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/bundle"
)

func TestRuntimeModule(t *testing.T) {
	t.Run("client carries its options", func(t *testing.T) {
		src, err := runtimeModule("assetpack/hot/client?path=http%3A%2F%2Flocalhost%3A3000%2F__assetpack_hmr&reload=true")
		require.NoError(t, err)

		assert.NotContains(t, src, hotOptionsPlaceholder)
		assert.Contains(t, src, `"path":"http://localhost:3000/__assetpack_hmr"`)
		assert.Contains(t, src, `"reload":true`)
	})

	t.Run("only dev server", func(t *testing.T) {
		src, err := runtimeModule("assetpack/hot/only-dev-server")
		require.NoError(t, err)
		assert.Contains(t, src, "assetpack:hot-update")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := runtimeModule("assetpack/hot/missing")
		require.Error(t, err)
	})
}

func TestApplyRule(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, size int) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("a", size)), 0o600))
		return p
	}

	cfg := bundle.Config{Context: dir}
	sass := newSassCompiler("", zerolog.Nop())
	urlRule := func(limit string) bundle.Rule {
		return bundle.Rule{Use: []bundle.Step{{Loader: bundle.LoaderURL, Options: map[string]string{"prefix": "font/", "limit": limit}}}}
	}

	t.Run("url at the limit is inlined", func(t *testing.T) {
		res, err := applyRule(cfg, sass, urlRule("10"), write("small.woff", 10))
		require.NoError(t, err)
		assert.Equal(t, api.LoaderJS, res.Loader)
		assert.Contains(t, *res.Contents, `export default "data:font/woff;base64,`)
	})

	t.Run("url over the limit falls back to file", func(t *testing.T) {
		res, err := applyRule(cfg, sass, urlRule("10"), write("large.woff", 11))
		require.NoError(t, err)
		assert.Equal(t, api.LoaderFile, res.Loader)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := applyRule(cfg, sass, urlRule("lots"), write("bad.woff", 1))
		require.Error(t, err)
	})

	t.Run("style injects at runtime", func(t *testing.T) {
		rule := bundle.Rule{Use: []bundle.Step{{Loader: bundle.LoaderStyle}, {Loader: bundle.LoaderCSS}}}
		res, err := applyRule(cfg, sass, rule, write("app.css", 3))
		require.NoError(t, err)
		assert.Equal(t, api.LoaderJS, res.Loader)
		assert.Contains(t, *res.Contents, `document.createElement("style")`)
		assert.Contains(t, *res.Contents, `"aaa"`)
	})

	t.Run("extract keeps css", func(t *testing.T) {
		extract := cfg
		extract.Plugins = []bundle.Plugin{{Name: bundle.PluginExtractCSS}}
		rule := bundle.Rule{Use: []bundle.Step{{Loader: bundle.LoaderExtract}, {Loader: bundle.LoaderCSS}}}
		res, err := applyRule(extract, sass, rule, write("site.css", 3))
		require.NoError(t, err)
		assert.Equal(t, api.LoaderCSS, res.Loader)
		assert.Equal(t, "aaa", *res.Contents)
	})

	t.Run("extract without the extract-css plugin injects", func(t *testing.T) {
		rule := bundle.Rule{Use: []bundle.Step{{Loader: bundle.LoaderExtract}, {Loader: bundle.LoaderCSS}}}
		res, err := applyRule(cfg, sass, rule, write("plain.css", 3))
		require.NoError(t, err)
		assert.Equal(t, api.LoaderJS, res.Loader)
		assert.Contains(t, *res.Contents, `document.createElement("style")`)
	})

	t.Run("jsx", func(t *testing.T) {
		rule := bundle.Rule{Use: []bundle.Step{{Loader: bundle.LoaderJSX}}}
		res, err := applyRule(cfg, sass, rule, write("app.jsx", 1))
		require.NoError(t, err)
		assert.Equal(t, api.LoaderJSX, res.Loader)
		assert.Equal(t, dir, res.ResolveDir)
	})

	t.Run("unsupported loader", func(t *testing.T) {
		rule := bundle.Rule{Use: []bundle.Step{{Loader: "coffee"}}}
		_, err := applyRule(cfg, sass, rule, write("app.coffee", 1))
		require.ErrorContains(t, err, "coffee")
	})

	t.Run("missing file", func(t *testing.T) {
		rule := bundle.Rule{Use: []bundle.Step{{Loader: bundle.LoaderFile}}}
		_, err := applyRule(cfg, sass, rule, filepath.Join(dir, "nope.png"))
		require.Error(t, err)
	})
}

func TestWithoutHotRuntime(t *testing.T) {
	entries := []string{"react-hot-loader/patch", "assetpack/hot/client?reload=true", "assetpack/hot/only-dev-server", "/app/src/index.js"}
	assert.Equal(t, []string{"react-hot-loader/patch", "/app/src/index.js"}, withoutHotRuntime(entries))
}

func TestMimetype(t *testing.T) {
	assert.Equal(t, "image/svg+xml", mimetype("logo.svg", map[string]string{"mimetype": "image/svg+xml"}))
	assert.Equal(t, "font/woff2", mimetype("a.woff2", map[string]string{"prefix": "font/"}))
	assert.Equal(t, "application/octet-stream", mimetype("a.unknownext", nil))
}
