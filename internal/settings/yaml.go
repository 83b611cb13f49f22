package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlOverride is the schema of build.config.yaml. It has no postprocess
// hook since YAML cannot express one.
type yamlOverride struct {
	ServeHost       *string           `yaml:"serveHost"`
	ServePort       *int              `yaml:"servePort"`
	ServePubHost    *string           `yaml:"servePubHost"`
	ServePubPort    *int              `yaml:"servePubPort"`
	Globals         map[string]string `yaml:"globals"`
	Entrypoint      *string           `yaml:"entrypoint"`
	PublicPath      *string           `yaml:"publicPath"`
	OutputDir       *string           `yaml:"outputDir"`
	Polyfill        *bool             `yaml:"polyfill"`
	IndexHTML       yaml.Node         `yaml:"indexHtml"`
	HTMLTitle       *string           `yaml:"htmlTitle"`
	InlineLimit     *int              `yaml:"inlineLimit"`
	FontInlineLimit *int              `yaml:"fontInlineLimit"`
	AssetNames      *string           `yaml:"assetNames"`
	SassBinary      *string           `yaml:"sassBinary"`
}

func parseYAML(data []byte) (*Override, error) {
	var raw yamlOverride

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	indexHTML, err := decodeYAMLIndexHTML(&raw.IndexHTML)
	if err != nil {
		return nil, err
	}

	return &Override{
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
	}, nil
}

func decodeYAMLIndexHTML(node *yaml.Node) (*IndexHTML, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}

	switch node.Tag {
	case "!!bool":
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return nil, err
		}
		return &IndexHTML{Enabled: enabled}, nil
	case "!!str":
		return &IndexHTML{Enabled: node.Value != "", Template: node.Value}, nil
	default:
		return nil, fmt.Errorf("indexHtml must be a bool or a template path (line %d)", node.Line)
	}
}
