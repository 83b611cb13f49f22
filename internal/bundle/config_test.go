package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		arg      string
		expected Mode
	}{
		{arg: "build", expected: ModeBuild},
		{arg: "serve", expected: ModeServe},
		{arg: "", expected: ModeUnspecified},
		{arg: "Build", expected: ModeUnspecified},
		{arg: "watch", expected: ModeUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseMode(tt.arg))
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Config{
		Entry:   []string{"a.js"},
		Rules:   []Rule{{Kind: "script", Use: []Step{{Loader: LoaderJSX, Options: map[string]string{"development": "true"}}}}},
		Plugins: []Plugin{{Name: PluginHTML, Options: map[string]string{"title": "x"}}},
	}

	clone := cfg.Clone()
	clone.Entry[0] = "b.js"
	clone.Rules[0].Use[0].Options["development"] = "false"
	clone.Plugins[0].Options["title"] = "y"

	assert.Equal(t, "a.js", cfg.Entry[0])
	assert.Equal(t, "true", cfg.Rules[0].Use[0].Options["development"])
	assert.Equal(t, "x", cfg.Plugins[0].Options["title"])
}

func TestConfig_plugins(t *testing.T) {
	cfg := Config{Plugins: []Plugin{{Name: PluginDefine}, {Name: PluginMinify}, {Name: PluginMinify}}}

	assert.True(t, cfg.HasPlugin(PluginDefine))
	assert.False(t, cfg.HasPlugin(PluginHMR))
	assert.Equal(t, 2, cfg.CountPlugins(PluginMinify))
}

func TestConfig_Defines(t *testing.T) {
	cfg := Config{Plugins: []Plugin{
		{Name: PluginDefine, Options: map[string]string{"A": "1", "B": "1"}},
		{Name: PluginHTML, Options: map[string]string{"title": "x"}},
		{Name: PluginDefine, Options: map[string]string{"B": "2"}},
	}}

	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, cfg.Defines())
}

func TestConfig_IsZero(t *testing.T) {
	assert.True(t, Config{}.IsZero())
	assert.False(t, Config{Bail: true}.IsZero())
	assert.False(t, Config{Entry: []string{"a.js"}}.IsZero())
}
