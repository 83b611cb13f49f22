package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/settings"
)

func testSettings() settings.Settings {
	return settings.Settings{
		InlineLimit:     10000,
		FontInlineLimit: 5000,
		AssetNames:      "[name].[hash]",
	}
}

func TestBuild(t *testing.T) {
	dev := Build(testSettings(), false)
	prod := Build(testSettings(), true)

	t.Run("one rule per kind in fixed order", func(t *testing.T) {
		kinds := []string{
			KindScript, KindStylesheet, KindNestedStylesheet, KindFontEOT,
			KindRasterImage, KindFontWOFF, KindFontTTF, KindVectorImage,
		}
		for _, table := range [][]bundle.Rule{dev, prod} {
			require.Len(t, table, len(kinds))
			for i, kind := range kinds {
				assert.Equal(t, kind, table[i].Kind)
			}
		}
	})

	t.Run("stylesheets are injected in development", func(t *testing.T) {
		assert.Equal(t, []string{"style", "css"}, dev[1].Loaders())
		assert.Equal(t, []string{"style", "css", "sass"}, dev[2].Loaders())
	})

	t.Run("stylesheets are extracted in production", func(t *testing.T) {
		assert.Equal(t, []string{"extract", "css"}, prod[1].Loaders())
		assert.Equal(t, []string{"extract", "css", "sass"}, prod[2].Loaders())
	})

	t.Run("script chain follows the flavor", func(t *testing.T) {
		step, ok := dev[0].Step(bundle.LoaderJSX)
		require.True(t, ok)
		assert.Equal(t, "true", step.Options["development"])

		step, ok = prod[0].Step(bundle.LoaderJSX)
		require.True(t, ok)
		assert.Equal(t, "false", step.Options["development"])
	})

	t.Run("settings feed thresholds and names", func(t *testing.T) {
		s := testSettings()
		s.InlineLimit = 2048
		s.FontInlineLimit = 1024
		s.AssetNames = "assets/[name]-[hash]"
		table := Build(s, false)

		woff, _ := table[5].Step(bundle.LoaderURL)
		assert.Equal(t, "1024", woff.Options["limit"])
		assert.Equal(t, "font/", woff.Options["prefix"])

		svg, _ := table[7].Step(bundle.LoaderURL)
		assert.Equal(t, "2048", svg.Options["limit"])
		assert.Equal(t, "image/svg+xml", svg.Options["mimetype"])
		assert.Equal(t, "assets/[name]-[hash].[ext]", svg.Options["name"])

		img, _ := table[4].Step(bundle.LoaderFile)
		assert.Equal(t, "assets/[name]-[hash].[ext]", img.Options["name"])
	})
}

func TestMatch(t *testing.T) {
	table := Build(testSettings(), false)

	tests := []struct {
		path string
		kind string
	}{
		{path: "src/index.js", kind: KindScript},
		{path: "src/App.jsx", kind: KindScript},
		{path: "src/app.css", kind: KindStylesheet},
		{path: "src/theme.scss", kind: KindNestedStylesheet},
		{path: "src/theme.sass", kind: KindNestedStylesheet},
		{path: "fonts/icons.eot?v=4.7.0", kind: KindFontEOT},
		{path: "img/logo.PNG", kind: KindRasterImage},
		{path: "img/photo.jpeg", kind: KindRasterImage},
		{path: "fonts/icons.woff2", kind: KindFontWOFF},
		{path: "fonts/icons.ttf?v=1", kind: KindFontTTF},
		{path: "img/icon.svg", kind: KindVectorImage},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rule, ok := Match(table, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.kind, rule.Kind)
		})
	}

	t.Run("excluded scripts do not match", func(t *testing.T) {
		_, ok := Match(table, "node_modules/react/index.js")
		assert.False(t, ok)
	})

	t.Run("unknown extensions do not match", func(t *testing.T) {
		_, ok := Match(table, "README.md")
		assert.False(t, ok)
	})

	t.Run("first match wins", func(t *testing.T) {
		table := []bundle.Rule{
			{Kind: "first", Test: `\.css$`},
			{Kind: "second", Test: `\.css$`},
		}
		rule, ok := Match(table, "a.css")
		require.True(t, ok)
		assert.Equal(t, "first", rule.Kind)
	})

	t.Run("invalid patterns never match", func(t *testing.T) {
		_, ok := Match([]bundle.Rule{{Kind: "broken", Test: `(`}}, "a.css")
		assert.False(t, ok)
	})
}
