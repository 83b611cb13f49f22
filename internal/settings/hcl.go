package settings

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// hclOverride is the schema of build.config.hcl.
type hclOverride struct {
	ServeHost       *string           `hcl:"serve_host,optional"`
	ServePort       *int              `hcl:"serve_port,optional"`
	ServePubHost    *string           `hcl:"serve_pub_host,optional"`
	ServePubPort    *int              `hcl:"serve_pub_port,optional"`
	Globals         map[string]string `hcl:"globals,optional"`
	Entrypoint      *string           `hcl:"entrypoint,optional"`
	PublicPath      *string           `hcl:"public_path,optional"`
	OutputDir       *string           `hcl:"output_dir,optional"`
	Polyfill        *bool             `hcl:"polyfill,optional"`
	IndexHTML       hcl.Expression    `hcl:"index_html,optional"`
	HTMLTitle       *string           `hcl:"html_title,optional"`
	InlineLimit     *int              `hcl:"inline_limit,optional"`
	FontInlineLimit *int              `hcl:"font_inline_limit,optional"`
	AssetNames      *string           `hcl:"asset_names,optional"`
	SassBinary      *string           `hcl:"sass_binary,optional"`
	Postprocess     *postprocessBlock `hcl:"postprocess,block"`
}

type postprocessBlock struct {
	Body hcl.Body `hcl:",remain"`
}

func parseHCL(filename string, src []byte, ctx *hcl.EvalContext) (*Override, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var raw hclOverride
	if diags := gohcl.DecodeBody(file.Body, ctx, &raw); diags.HasErrors() {
		return nil, diags
	}

	indexHTML, err := decodeIndexHTML(raw.IndexHTML, ctx)
	if err != nil {
		return nil, err
	}

	override := &Override{
		ServeHost:       raw.ServeHost,
		ServePort:       raw.ServePort,
		ServePubHost:    raw.ServePubHost,
		ServePubPort:    raw.ServePubPort,
		Globals:         raw.Globals,
		Entrypoint:      raw.Entrypoint,
		PublicPath:      raw.PublicPath,
		OutputDir:       raw.OutputDir,
		Polyfill:        raw.Polyfill,
		IndexHTML:       indexHTML,
		HTMLTitle:       raw.HTMLTitle,
		InlineLimit:     raw.InlineLimit,
		FontInlineLimit: raw.FontInlineLimit,
		AssetNames:      raw.AssetNames,
		SassBinary:      raw.SassBinary,
	}

	if raw.Postprocess != nil {
		override.Postprocess = hclPostprocess(raw.Postprocess.Body, ctx)
	}

	return override, nil
}

// decodeIndexHTML accepts a bool or a template path. An empty path disables
// the page.
func decodeIndexHTML(expr hcl.Expression, ctx *hcl.EvalContext) (*IndexHTML, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, errors.New("index_html must be a known value")
	}

	switch val.Type() {
	case cty.Bool:
		return &IndexHTML{Enabled: val.True()}, nil
	case cty.String:
		tmpl := val.AsString()
		return &IndexHTML{Enabled: tmpl != "", Template: tmpl}, nil
	default:
		return nil, fmt.Errorf("index_html must be a bool or a template path, got %s", val.Type().FriendlyName())
	}
}

// evalContext exposes project facts and a small function library to
// override files.
func evalContext(dir string, pkg packageJSON) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project_dir": cty.StringVal(dir),
			"package": cty.ObjectVal(map[string]cty.Value{
				"name":    cty.StringVal(pkg.Name),
				"version": cty.StringVal(pkg.Version),
			}),
		},
		Functions: map[string]function.Function{
			"concat":     stdlib.ConcatFunc,
			"merge":      stdlib.MergeFunc,
			"upper":      stdlib.UpperFunc,
			"lower":      stdlib.LowerFunc,
			"format":     stdlib.FormatFunc,
			"join":       stdlib.JoinFunc,
			"coalesce":   stdlib.CoalesceFunc,
			"jsonencode": stdlib.JSONEncodeFunc,
			"env":        envFunc,
		},
	}
}

var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})
