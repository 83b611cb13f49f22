package rules

import (
	"regexp"
	"strconv"

	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/settings"
)

// Resource kinds, one rule each.
const (
	KindScript           = "script"
	KindStylesheet       = "stylesheet"
	KindNestedStylesheet = "nested-stylesheet"
	KindFontEOT          = "font-eot"
	KindRasterImage      = "raster-image"
	KindFontWOFF         = "font-woff"
	KindFontTTF          = "font-ttf"
	KindVectorImage      = "vector-image"
)

// Build returns the ordered rule table for the given flavor. Settings only
// feed the inline thresholds and the hashed asset name pattern.
func Build(s settings.Settings, production bool) []bundle.Rule {
	name := s.AssetNames + ".[ext]"

	return []bundle.Rule{
		{
			Kind:    KindScript,
			Test:    `\.jsx?$`,
			Exclude: `node_modules`,
			Use: []bundle.Step{
				{Loader: bundle.LoaderJSX, Options: map[string]string{"development": strconv.FormatBool(!production)}},
			},
		},
		{
			Kind: KindStylesheet,
			Test: `\.css$`,
			Use:  stylesheetChain(production),
		},
		{
			Kind: KindNestedStylesheet,
			Test: `\.s[ca]ss$`,
			Use:  append(stylesheetChain(production), sassStep(production)),
		},
		{
			Kind: KindFontEOT,
			Test: `\.eot(\?v=.*)?$`,
			Use:  []bundle.Step{fileStep(name)},
		},
		{
			Kind: KindRasterImage,
			Test: `(?i)\.(ico|png|gif|jpe?g)$`,
			Use:  []bundle.Step{fileStep(name)},
		},
		{
			Kind: KindFontWOFF,
			Test: `\.woff2?(\?v=.*)?$`,
			Use: []bundle.Step{
				{Loader: bundle.LoaderURL, Options: map[string]string{
					"prefix": "font/",
					"limit":  strconv.Itoa(s.FontInlineLimit),
					"name":   name,
				}},
			},
		},
		{
			Kind: KindFontTTF,
			Test: `\.ttf(\?v=.*)?$`,
			Use: []bundle.Step{
				{Loader: bundle.LoaderURL, Options: map[string]string{
					"mimetype": "application/octet-stream",
					"limit":    strconv.Itoa(s.InlineLimit),
					"name":     name,
				}},
			},
		},
		{
			Kind: KindVectorImage,
			Test: `\.svg(\?v=.*)?$`,
			Use: []bundle.Step{
				{Loader: bundle.LoaderURL, Options: map[string]string{
					"mimetype": "image/svg+xml",
					"limit":    strconv.Itoa(s.InlineLimit),
					"name":     name,
				}},
			},
		},
	}
}

// Development stylesheets are injected at runtime, production ones are
// extracted to a hashed file.
func stylesheetChain(production bool) []bundle.Step {
	if production {
		return []bundle.Step{{Loader: bundle.LoaderExtract}, {Loader: bundle.LoaderCSS}}
	}
	return []bundle.Step{{Loader: bundle.LoaderStyle}, {Loader: bundle.LoaderCSS}}
}

func sassStep(production bool) bundle.Step {
	if production {
		return bundle.Step{Loader: bundle.LoaderSass, Options: map[string]string{"style": "compressed"}}
	}
	return bundle.Step{Loader: bundle.LoaderSass, Options: map[string]string{"style": "expanded"}}
}

func fileStep(name string) bundle.Step {
	return bundle.Step{Loader: bundle.LoaderFile, Options: map[string]string{"name": name}}
}

// Match returns the first rule whose test matches path and whose exclude does
// not. Rules with invalid patterns never match.
func Match(rules []bundle.Rule, path string) (bundle.Rule, bool) {
	for _, r := range rules {
		if matches(r, path) {
			return r, true
		}
	}
	return bundle.Rule{}, false
}

func matches(r bundle.Rule, path string) bool {
	test, err := regexp.Compile(r.Test)
	if err != nil || !test.MatchString(path) {
		return false
	}
	if r.Exclude == "" {
		return true
	}
	exclude, err := regexp.Compile(r.Exclude)
	if err != nil {
		return false
	}
	return !exclude.MatchString(path)
}
