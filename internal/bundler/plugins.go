package bundler

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/rules"
)

//go:embed runtime/*.js runtime/*.html
var runtimeFS embed.FS

const (
	hotOptionsPlaceholder = "__ASSETPACK_HOT_OPTIONS__"
	hotReconnect          = 1000
	hotModulePrefix       = "assetpack/hot/"
)

// entryPlugin serves the virtual entry module importing every configured
// entry in order. Hot runtime entries are dropped unless the hmr plugin is
// configured.
func entryPlugin(cfg bundle.Config) api.Plugin {
	entries := cfg.Entry
	if !cfg.HasPlugin(bundle.PluginHMR) {
		entries = withoutHotRuntime(entries)
	}

	return api.Plugin{
		Name: entryNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := entrySource(entries)
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: cfg.Context,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

func withoutHotRuntime(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e, hotModulePrefix) {
			out = append(out, e)
		}
	}
	return out
}

func entrySource(entries []string) string {
	var sb strings.Builder
	for _, e := range entries {
		quoted, _ := json.Marshal(e)
		fmt.Fprintf(&sb, "import %s;\n", quoted)
	}
	return sb.String()
}

// runtimePlugin serves the embedded hot update runtime modules.
func runtimePlugin(cfg bundle.Config) api.Plugin {
	return api.Plugin{
		Name: runtimeNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + hotModulePrefix},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, Namespace: runtimeNamespace}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: runtimeNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents, err := runtimeModule(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: cfg.Context,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

func runtimeModule(path string) (string, error) {
	name, rawQuery, _ := strings.Cut(path, "?")

	switch name {
	case "assetpack/hot/client":
		query, err := url.ParseQuery(rawQuery)
		if err != nil {
			return "", fmt.Errorf("invalid hot client options %q: %w", rawQuery, err)
		}
		reload, _ := strconv.ParseBool(query.Get("reload"))
		options, err := json.Marshal(map[string]any{
			"path":    query.Get("path"),
			"reload":  reload,
			"timeout": hotReconnect,
		})
		if err != nil {
			return "", err
		}
		src, err := runtimeFS.ReadFile("runtime/client.js")
		if err != nil {
			return "", err
		}
		return strings.Replace(string(src), hotOptionsPlaceholder, string(options), 1), nil
	case "assetpack/hot/only-dev-server":
		src, err := runtimeFS.ReadFile("runtime/only-dev-server.js")
		return string(src), err
	default:
		return "", fmt.Errorf("unknown runtime module %q", name)
	}
}

// rulesPlugin applies the rule table to every file the bundler loads. Files
// no rule matches fall through to the default loaders.
func rulesPlugin(cfg bundle.Config, sass *sassCompiler) api.Plugin {
	return api.Plugin{
		Name: "assetpack-rules",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					rule, ok := rules.Match(cfg.Rules, args.Path+args.Suffix)
					if !ok || len(rule.Use) == 0 {
						return api.OnLoadResult{}, nil
					}

					res, err := applyRule(cfg, sass, rule, args.Path)
					if err == nil {
						return res, nil
					}
					if cfg.Bail {
						return api.OnLoadResult{}, err
					}

					stub := ""
					return api.OnLoadResult{
						Contents: &stub,
						Loader:   api.LoaderJS,
						Warnings: []api.Message{{Text: err.Error()}},
					}, nil
				})
		},
	}
}

func applyRule(cfg bundle.Config, sass *sassCompiler, rule bundle.Rule, path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	contents := string(data)
	dir := filepath.Dir(path)

	switch first := rule.Use[0]; first.Loader {
	case bundle.LoaderJSX:
		return api.OnLoadResult{Contents: &contents, ResolveDir: dir, Loader: api.LoaderJSX}, nil

	case bundle.LoaderStyle, bundle.LoaderExtract:
		if step, ok := rule.Step(bundle.LoaderSass); ok {
			includes := []string{dir, filepath.Join(cfg.Context, "node_modules")}
			contents, err = sass.Compile(path, contents, step.Options["style"], includes)
			if err != nil {
				return api.OnLoadResult{}, err
			}
		}
		// extraction needs the extract-css plugin, otherwise styles are injected
		if first.Loader == bundle.LoaderStyle || !cfg.HasPlugin(bundle.PluginExtractCSS) {
			module := styleModule(path, contents)
			return api.OnLoadResult{Contents: &module, ResolveDir: dir, Loader: api.LoaderJS}, nil
		}
		return api.OnLoadResult{Contents: &contents, ResolveDir: dir, Loader: api.LoaderCSS}, nil

	case bundle.LoaderURL:
		limit, err := strconv.Atoi(first.Options["limit"])
		if err != nil {
			return api.OnLoadResult{}, fmt.Errorf("invalid inline limit %q: %w", first.Options["limit"], err)
		}
		if len(data) > limit {
			return api.OnLoadResult{Contents: &contents, ResolveDir: dir, Loader: api.LoaderFile}, nil
		}
		module := dataURLModule(mimetype(path, first.Options), data)
		return api.OnLoadResult{Contents: &module, ResolveDir: dir, Loader: api.LoaderJS}, nil

	case bundle.LoaderFile:
		return api.OnLoadResult{Contents: &contents, ResolveDir: dir, Loader: api.LoaderFile}, nil

	case bundle.LoaderCSS:
		return api.OnLoadResult{Contents: &contents, ResolveDir: dir, Loader: api.LoaderCSS}, nil

	default:
		return api.OnLoadResult{}, fmt.Errorf("unsupported loader %q for %s", first.Loader, path)
	}
}

func styleModule(path, css string) string {
	quotedCSS, _ := json.Marshal(css)
	quotedPath, _ := json.Marshal(filepath.Base(path))

	return fmt.Sprintf(`const css = %s;
if (typeof document !== "undefined") {
  const el = document.createElement("style");
  el.setAttribute("data-assetpack", %s);
  el.textContent = css;
  document.head.appendChild(el);
}
export default css;
`, quotedCSS, quotedPath)
}

func dataURLModule(mimetype string, data []byte) string {
	uri, _ := json.Marshal("data:" + mimetype + ";base64," + base64.StdEncoding.EncodeToString(data))
	return fmt.Sprintf("export default %s;\n", uri)
}

// mimetype prefers an explicit mimetype, then prefix+extension, then the
// system table.
func mimetype(path string, options map[string]string) string {
	ext := filepath.Ext(path)
	switch {
	case options["mimetype"] != "":
		return options["mimetype"]
	case options["prefix"] != "":
		return options["prefix"] + strings.TrimPrefix(ext, ".")
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
