package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarshalJSON encodes the record as an object of item name to value list,
// keeping item order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.ItemNames() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		values, err := json.Marshal(r.items[name])
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(values)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of item name to value (or value list).
// Whole numbers decode as int.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected JSON object")
	}

	*r = Record{items: make(map[string][]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: item %s: %w", name, err)
		}
		r.ReplaceItemValue(name, fromJSON(raw))
	}
	_, err = dec.Token()
	return err
}

func fromJSON(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = fromJSON(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = fromJSON(v[k])
		}
		return v
	default:
		return value
	}
}

// MarshalYAML renders the record as an ordered mapping. Single-valued items
// are written as scalars.
func (r *Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range r.ItemNames() {
		values := r.items[name]
		var content any = values
		if len(values) == 1 {
			content = values[0]
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(content); err != nil {
			return nil, fmt.Errorf("item %s: %w", name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			valueNode,
		)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping of item name to value (or value list).
func (r *Record) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = value.Content[0]
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("record: expected YAML mapping at line %d", value.Line)
	}
	*r = Record{items: make(map[string][]any)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := strings.TrimSpace(value.Content[i].Value)
		var decoded any
		if err := value.Content[i+1].Decode(&decoded); err != nil {
			return fmt.Errorf("record: item %s: %w", name, err)
		}
		r.ReplaceItemValue(name, decoded)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
