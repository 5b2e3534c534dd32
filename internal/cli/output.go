package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes value as JSON or YAML; text output is left to textFn.
// YAML keys follow the JSON field names and order.
func render(w io.Writer, format string, value interface{}, textFn func(w io.Writer) error) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case formatYAML:
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		node := &yaml.Node{}
		if err = yaml.Unmarshal(data, node); err != nil {
			return err
		}
		blockStyle(node)
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err = encoder.Encode(node); err != nil {
			return err
		}
		return encoder.Close()
	case formatText, "":
		return textFn(w)
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// blockStyle drops the flow and quoting styles inherited from JSON input.
func blockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		blockStyle(child)
	}
}
