package filesystem

import (
	"bytes"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format pretty-prints structured content by file extension.
// It reports false when the extension is unknown or the content does not parse.
func Format(ext, content string) (string, bool) {
	switch strings.ToLower(ext) {
	case ".json":
		var v interface{}
		if err := sonic.UnmarshalString(content, &v); err != nil {
			return "", false
		}
		out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", false
		}
		return string(out) + "\n", true

	case ".yaml", ".yml":
		var v interface{}
		if err := yaml.Unmarshal([]byte(content), &v); err != nil {
			return "", false
		}
		out, err := yaml.MarshalWithOptions(v, yaml.Indent(2))
		if err != nil {
			return "", false
		}
		return string(out), true

	case ".toml":
		var v map[string]interface{}
		if err := toml.Unmarshal([]byte(content), &v); err != nil {
			return "", false
		}
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(v); err != nil {
			return "", false
		}
		return buf.String(), true
	}
	return "", false
}
