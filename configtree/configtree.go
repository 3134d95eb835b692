// Package configtree implements a generic configuration tree loaded
// from YAML. Drivers look up directives by name at arbitrary nesting
// depth, the same way the original agent walked a libconfig setting
// tree, rather than binding configuration into one fixed Go struct.
package configtree

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Node is a single position in the configuration tree. A Node is
// either a scalar (int, string, bool), a list of Nodes, or a group
// mapping names to Nodes.
type Node struct {
	raw interface{}
}

// Load parses a YAML document into a root Node.
func Load(data []byte) (Node, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Node{}, fmt.Errorf("configtree: %w", err)
	}
	return Node{raw: normalize(raw)}, nil
}

// normalize converts yaml.v3's map[string]interface{} (and nested
// map[interface{}]interface{} on older decode paths) into a single
// consistent map[string]interface{} shape so lookups don't need to
// special-case key types.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// Sub returns the named child node, which may be a group, a list or a
// scalar. The second result is false if name is absent or n is not a
// group.
func (n Node) Sub(name string) (Node, bool) {
	m, ok := n.raw.(map[string]interface{})
	if !ok {
		return Node{}, false
	}
	v, ok := m[name]
	if !ok {
		return Node{}, false
	}
	return Node{raw: v}, true
}

// Children returns the elements of n when n is a list, in document
// order. It returns nil if n is not a list.
func (n Node) Children() []Node {
	l, ok := n.raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Node, len(l))
	for i, v := range l {
		out[i] = Node{raw: v}
	}
	return out
}

// Names returns the keys of n when n is a group, in no particular
// order. It returns nil if n is not a group.
func (n Node) Names() []string {
	m, ok := n.raw.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Int looks up an integer-valued child directive by name.
func (n Node) Int(name string) (int, bool) {
	sub, ok := n.Sub(name)
	if !ok {
		return 0, false
	}
	switch v := sub.raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// String looks up a string-valued child directive by name.
func (n Node) String(name string) (string, bool) {
	sub, ok := n.Sub(name)
	if !ok {
		return "", false
	}
	s, ok := sub.raw.(string)
	return s, ok
}

// Bool looks up a bool-valued child directive by name.
func (n Node) Bool(name string) (bool, bool) {
	sub, ok := n.Sub(name)
	if !ok {
		return false, false
	}
	b, ok := sub.raw.(bool)
	return b, ok
}

// IsZero reports whether n was ever assigned a value. A zero Node
// behaves as an empty group: every lookup on it fails.
func (n Node) IsZero() bool { return n.raw == nil }
