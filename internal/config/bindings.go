package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"gesturekeys/internal/binding"
)

// BindingTable is an ordered channel-to-binding mapping. In YAML each entry
// is written as `channel: [device, action, threshold, mode]`; the mode may
// be omitted and defaults to single.
type BindingTable []binding.Entry

func (t BindingTable) clone() BindingTable {
	if t == nil {
		return nil
	}
	out := make(BindingTable, len(t))
	copy(out, t)
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler. Mapping order is preserved.
func (t *BindingTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*t = BindingTable{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: bindings must be a mapping of channel to [device, action, threshold, mode]", node.Line)
	}
	out := make(BindingTable, 0, len(node.Content)/2)
	seen := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		channel := strings.TrimSpace(keyNode.Value)
		b, err := decodeBinding(valueNode)
		if err != nil {
			return fmt.Errorf("line %d: channel %q: %w", valueNode.Line, channel, err)
		}
		entry := binding.Entry{Channel: channel, Binding: b}
		if idx, dup := seen[channel]; dup {
			out[idx] = entry
			continue
		}
		seen[channel] = len(out)
		out = append(out, entry)
	}
	*t = out
	return nil
}

func decodeBinding(node *yaml.Node) (binding.Binding, error) {
	if node.Kind != yaml.SequenceNode {
		return binding.Binding{}, fmt.Errorf("binding must be a sequence")
	}
	if n := len(node.Content); n != 3 && n != 4 {
		return binding.Binding{}, fmt.Errorf("binding needs 3 or 4 elements, got %d", n)
	}
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return binding.Binding{}, fmt.Errorf("binding elements must be scalars")
		}
	}
	threshold, err := strconv.ParseFloat(strings.TrimSpace(node.Content[2].Value), 64)
	if err != nil {
		return binding.Binding{}, fmt.Errorf("threshold %q: %w", node.Content[2].Value, err)
	}
	mode := binding.Single
	if len(node.Content) == 4 {
		mode = binding.Mode(strings.ToLower(strings.TrimSpace(node.Content[3].Value)))
	}
	return binding.Binding{
		Device:    binding.Device(strings.ToLower(strings.TrimSpace(node.Content[0].Value))),
		Action:    strings.TrimSpace(node.Content[1].Value),
		Threshold: threshold,
		Mode:      mode,
	}, nil
}

// MarshalYAML implements yaml.Marshaler, writing each binding as a flow
// sequence.
func (t BindingTable) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, entry := range t {
		b := entry.Binding
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entry.Channel},
			&yaml.Node{
				Kind:  yaml.SequenceNode,
				Tag:   "!!seq",
				Style: yaml.FlowStyle,
				Content: []*yaml.Node{
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(b.Device)},
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: b.Action},
					{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatThreshold(b.Threshold)},
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(b.Mode)},
				},
			},
		)
	}
	return node, nil
}

func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// MarshalJSON renders the table as an object of 4-element arrays for the
// control pipe status output.
func (t BindingTable) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, entry := range t {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, err := json.Marshal(entry.Channel)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal([]any{entry.Binding.Device, entry.Binding.Action, entry.Binding.Threshold, entry.Binding.Mode})
		if err != nil {
			return nil, err
		}
		sb.Write(key)
		sb.WriteByte(':')
		sb.Write(value)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}
