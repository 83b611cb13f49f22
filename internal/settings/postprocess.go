package settings

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclPostprocess turns a postprocess block into a hook. Each attribute of the
// block is evaluated with `config` bound to the assembled configuration and the
// replacement is built from those attributes alone.
func hclPostprocess(body hcl.Body, parent *hcl.EvalContext) bundle.Postprocess {
	return func(cfg bundle.Config) (bundle.Config, bool) {
		out, ok, err := evalPostprocess(body, parent, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Postprocess failed, keeping assembled configuration")
			return cfg, false
		}
		return out, ok
	}
}

func evalPostprocess(body hcl.Body, parent *hcl.EvalContext, cfg bundle.Config) (bundle.Config, bool, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return bundle.Config{}, false, diags
	}

	current, err := configValue(cfg)
	if err != nil {
		return bundle.Config{}, false, err
	}

	ctx := parent.NewChild()
	ctx.Variables = map[string]cty.Value{"config": current}

	var out bundle.Config
	fields := configFields(&out)

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	replaced := false
	for _, name := range names {
		attr := attrs[name]

		target, ok := fields[name]
		if !ok {
			return bundle.Config{}, false, fmt.Errorf("%s: unsupported postprocess attribute %q", attr.Range, name)
		}

		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return bundle.Config{}, false, diags
		}
		if val.IsNull() {
			continue
		}

		ty, err := gocty.ImpliedType(target)
		if err != nil {
			return bundle.Config{}, false, err
		}
		val, err = convert.Convert(val, ty)
		if err != nil {
			return bundle.Config{}, false, fmt.Errorf("%s: %q: %w", attr.Range, name, err)
		}
		if err := gocty.FromCtyValue(val, target); err != nil {
			return bundle.Config{}, false, fmt.Errorf("%s: %q: %w", attr.Range, name, err)
		}
		replaced = true
	}

	return out, replaced, nil
}

// configValue converts a configuration to the value bound to `config`.
func configValue(cfg bundle.Config) (cty.Value, error) {
	ty, err := gocty.ImpliedType(cfg)
	if err != nil {
		return cty.NilVal, err
	}
	return gocty.ToCtyValue(cfg, ty)
}

func configFields(cfg *bundle.Config) map[string]any {
	return map[string]any{
		"target":     &cfg.Target,
		"devtool":    &cfg.Devtool,
		"context":    &cfg.Context,
		"entry":      &cfg.Entry,
		"output":     &cfg.Output,
		"rules":      &cfg.Rules,
		"plugins":    &cfg.Plugins,
		"extensions": &cfg.Extensions,
		"bail":       &cfg.Bail,
	}
}
