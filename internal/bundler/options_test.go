package bundler

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/rules"
)

func testConfig() bundle.Config {
	return bundle.Config{
		Target:  "web",
		Devtool: "source-map",
		Context: "/app/src",
		Entry:   []string{"/app/src/index.js"},
		Output: bundle.Output{
			Path:          "/app/static",
			Filename:      "[name].[hash]",
			ChunkFilename: "[name].[hash]",
			PublicPath:    "/static/",
		},
		Rules: []bundle.Rule{
			{Kind: rules.KindScript, Test: `\.jsx?$`, Use: []bundle.Step{{Loader: bundle.LoaderJSX, Options: map[string]string{"development": "true"}}}},
			{Kind: rules.KindRasterImage, Test: `\.png$`, Use: []bundle.Step{{Loader: bundle.LoaderFile, Options: map[string]string{"name": "img-[hash].[ext]"}}}},
		},
		Plugins: []bundle.Plugin{
			{Name: bundle.PluginDefine, Options: map[string]string{"process.env.NODE_ENV": `"development"`}},
		},
		Extensions: []string{".js", ".jsx"},
	}
}

func TestOptions(t *testing.T) {
	opts, err := Options(testConfig())
	require.NoError(t, err)

	assert.Equal(t, []api.EntryPoint{{InputPath: "assetpack-entry:main", OutputPath: "main"}}, opts.EntryPointsAdvanced)
	assert.True(t, opts.Bundle)
	assert.False(t, opts.Write)
	assert.True(t, opts.Metafile)
	assert.Equal(t, "/app/src", opts.AbsWorkingDir)
	assert.Equal(t, "/app/static", opts.Outdir)
	assert.Equal(t, "[name].[hash]", opts.EntryNames)
	assert.Equal(t, "img-[hash]", opts.AssetNames)
	assert.Equal(t, "/static/", opts.PublicPath)
	assert.Equal(t, api.SourceMapLinked, opts.Sourcemap)
	assert.Equal(t, api.PlatformBrowser, opts.Platform)
	assert.Equal(t, api.FormatIIFE, opts.Format)
	assert.Equal(t, []string{".js", ".jsx"}, opts.ResolveExtensions)
	assert.Equal(t, map[string]string{"process.env.NODE_ENV": `"development"`}, opts.Define)
	assert.True(t, opts.JSXDev)
	assert.False(t, opts.MinifyWhitespace)
}

func TestOptions_devtool(t *testing.T) {
	tests := []struct {
		devtool  string
		expected api.SourceMap
	}{
		{devtool: "source-map", expected: api.SourceMapLinked},
		{devtool: "inline-source-map", expected: api.SourceMapInline},
		{devtool: "hidden-source-map", expected: api.SourceMapExternal},
		{devtool: "", expected: api.SourceMapNone},
	}

	for _, tt := range tests {
		t.Run(tt.devtool, func(t *testing.T) {
			cfg := testConfig()
			cfg.Devtool = tt.devtool

			opts, err := Options(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, opts.Sourcemap)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Devtool = "eval"

		_, err := Options(cfg)
		require.ErrorContains(t, err, "eval")
	})
}

func TestOptions_target(t *testing.T) {
	cfg := testConfig()
	cfg.Target = "node"
	opts, err := Options(cfg)
	require.NoError(t, err)
	assert.Equal(t, api.PlatformNode, opts.Platform)

	cfg.Target = "electron"
	_, err = Options(cfg)
	require.Error(t, err)
}

func TestOptions_minify(t *testing.T) {
	cfg := testConfig()
	cfg.Plugins = append(cfg.Plugins, bundle.Plugin{
		Name:    bundle.PluginMinify,
		Options: map[string]string{"comments": "false", "sourceMap": "true"},
	})

	opts, err := Options(cfg)
	require.NoError(t, err)

	assert.True(t, opts.MinifyWhitespace)
	assert.True(t, opts.MinifyIdentifiers)
	assert.True(t, opts.MinifySyntax)
	assert.Equal(t, api.LegalCommentsNone, opts.LegalComments)
	assert.Equal(t, api.SourceMapLinked, opts.Sourcemap)
}

func TestOptions_assetNamesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Rules = nil

	opts, err := Options(cfg)
	require.NoError(t, err)
	assert.Equal(t, "[name].[hash]", opts.AssetNames)
	assert.False(t, opts.JSXDev)
}

func TestEntrySource(t *testing.T) {
	src := entrySource([]string{"babel-polyfill", "/app/src/index.js"})
	assert.Equal(t, "import \"babel-polyfill\";\nimport \"/app/src/index.js\";\n", src)
}
