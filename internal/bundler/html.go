package bundler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/assetpack/internal/bundle"
)

// BuildMetadata is the subset of the esbuild metafile needed to find the
// files a page loads.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Page is the data handed to the index template.
type Page struct {
	Title   string
	Scripts []string
	Styles  []string
}

// htmlPage renders index.html for the configured html plugin.
type htmlPage struct {
	filename  string
	title     string
	harddisk  bool
	tmpl      *template.Template
	workDir   string
	outDir    string
	publicURL string
}

func newHTMLPage(cfg bundle.Config) (*htmlPage, error) {
	plugin, ok := cfg.Plugin(bundle.PluginHTML)
	if !ok {
		return nil, nil
	}

	tmpl, err := loadTemplate(plugin.Options["template"])
	if err != nil {
		return nil, err
	}

	return &htmlPage{
		filename:  cond(plugin.Options["filename"] != "", plugin.Options["filename"], "index.html"),
		title:     plugin.Options["title"],
		harddisk:  cfg.HasPlugin(bundle.PluginHTMLHarddisk) && plugin.Options["alwaysWriteToDisk"] == "true",
		tmpl:      tmpl,
		workDir:   cfg.Context,
		outDir:    cfg.Output.Path,
		publicURL: cfg.Output.PublicPath,
	}, nil
}

func loadTemplate(templatePath string) (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	if templatePath == "" {
		return template.New("template.html").Funcs(funcs).ParseFS(runtimeFS, "runtime/template.html")
	}

	tmpl, err := template.New(filepath.Base(templatePath)).Funcs(funcs).ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load html template: %w", err)
	}
	return tmpl, nil
}

// Render produces the page for a finished build.
func (h *htmlPage) Render(metafile string) ([]byte, error) {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	scripts, styles, err := h.loadScripts(&metadata)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := h.tmpl.Execute(buf, Page{Title: h.title, Scripts: scripts, Styles: styles}); err != nil {
		return nil, fmt.Errorf("failed to render html template: %w", err)
	}
	return buf.Bytes(), nil
}

// loadScripts returns the ordered script URLs for the virtual entry and its
// static chunk imports, plus any extracted stylesheet.
func (h *htmlPage) loadScripts(metadata *BuildMetadata) ([]string, []string, error) {
	for outputPath, info := range metadata.Outputs {
		if info.EntryPoint != entryNamespace+":"+EntryName {
			continue
		}

		scripts := []string{h.url(outputPath)}
		visited := map[string]bool{outputPath: true}
		h.addDependencies(metadata, info, &scripts, visited)

		var styles []string
		if info.CSSBundle != "" {
			styles = append(styles, h.url(info.CSSBundle))
		}
		return scripts, styles, nil
	}

	return nil, nil, errors.New("entrypoint not found in metadata")
}

func (h *htmlPage) addDependencies(metadata *BuildMetadata, output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.Kind != "import-statement" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, h.url(imp.Path))

		if chunkInfo, exists := metadata.Outputs[imp.Path]; exists {
			h.addDependencies(metadata, chunkInfo, scripts, visited)
		}
	}
}

// url maps a metafile output path, relative to the working directory, to the
// URL the browser loads it from.
func (h *htmlPage) url(outputPath string) string {
	abs := filepath.Join(h.workDir, filepath.FromSlash(outputPath))
	rel, err := filepath.Rel(h.outDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(abs)
	}
	rel = filepath.ToSlash(rel)

	if h.publicURL == "" {
		return "/" + rel
	}
	if strings.HasSuffix(h.publicURL, "/") {
		return h.publicURL + rel
	}
	return path.Join(h.publicURL, rel)
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
