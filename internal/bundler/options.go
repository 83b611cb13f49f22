package bundler

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/rules"
)

const (
	entryNamespace   = "assetpack-entry"
	runtimeNamespace = "assetpack-runtime"

	// EntryName is the name of the single virtual entry module.
	EntryName = "main"
)

// Options translates a configuration into esbuild build options. Output is
// always kept in memory, callers decide what reaches the disk.
func Options(cfg bundle.Config, plugins ...api.Plugin) (api.BuildOptions, error) {
	sourcemap, err := sourcemap(cfg.Devtool)
	if err != nil {
		return api.BuildOptions{}, err
	}

	opts := api.BuildOptions{
		EntryPointsAdvanced: []api.EntryPoint{
			{InputPath: entryNamespace + ":" + EntryName, OutputPath: EntryName},
		},
		AbsWorkingDir:     cfg.Context,
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		Outdir:            cfg.Output.Path,
		EntryNames:        cfg.Output.Filename,
		ChunkNames:        cfg.Output.ChunkFilename,
		AssetNames:        assetNames(cfg.Rules),
		PublicPath:        cfg.Output.PublicPath,
		Sourcemap:         sourcemap,
		ResolveExtensions: cfg.Extensions,
		Define:            cfg.Defines(),
		JSX:               api.JSXAutomatic,
		JSXDev:            jsxDevelopment(cfg.Rules),
		LogLevel:          api.LogLevelSilent,
		Plugins:           plugins,
	}

	switch cfg.Target {
	case "web", "webworker", "":
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatIIFE
	case "node":
		opts.Platform = api.PlatformNode
		opts.Format = api.FormatCommonJS
	default:
		return api.BuildOptions{}, fmt.Errorf("unsupported target %q", cfg.Target)
	}

	if minify, ok := cfg.Plugin(bundle.PluginMinify); ok {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		if minify.Options["comments"] == "false" {
			opts.LegalComments = api.LegalCommentsNone
		}
		if minify.Options["sourceMap"] == "false" {
			opts.Sourcemap = api.SourceMapNone
		}
	}

	return opts, nil
}

func sourcemap(devtool string) (api.SourceMap, error) {
	switch devtool {
	case "source-map":
		return api.SourceMapLinked, nil
	case "inline-source-map":
		return api.SourceMapInline, nil
	case "hidden-source-map":
		return api.SourceMapExternal, nil
	case "":
		return api.SourceMapNone, nil
	default:
		return api.SourceMapNone, fmt.Errorf("unsupported devtool %q", devtool)
	}
}

// assetNames takes the name pattern of the first file emitting step. The
// extension is appended by esbuild.
func assetNames(table []bundle.Rule) string {
	for _, r := range table {
		for _, s := range r.Use {
			if s.Loader != bundle.LoaderFile && s.Loader != bundle.LoaderURL {
				continue
			}
			if name := strings.TrimSuffix(s.Options["name"], ".[ext]"); name != "" {
				return name
			}
		}
	}
	return "[name].[hash]"
}

func jsxDevelopment(table []bundle.Rule) bool {
	for _, r := range table {
		if r.Kind != rules.KindScript {
			continue
		}
		if s, ok := r.Step(bundle.LoaderJSX); ok {
			return s.Options["development"] == "true"
		}
	}
	return false
}
