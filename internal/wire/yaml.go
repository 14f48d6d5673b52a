package wire

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

// DecodeYAMLFragments parses a YAML sequence of fragment mappings, applying
// the same shape rules as the JSON decoder. Either a bare sequence or a
// mapping with a fragments key is accepted.
func DecodeYAMLFragments(data []byte) ([]fragment.Input, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, shapeErr("$", "invalid YAML: %v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, shapeErr("$", "expected a sequence of fragments")
	}
	root := doc.Content[0]
	field := ""
	if root.Kind == yaml.MappingNode {
		seq := mappingValue(root, "fragments")
		if seq == nil {
			return nil, shapeErr("fragments", "missing required field")
		}
		root, field = seq, "fragments"
	}
	if root.Kind != yaml.SequenceNode {
		return nil, shapeErr(orRoot(field), "expected a sequence")
	}

	out := make([]fragment.Input, 0, len(root.Content))
	for i, item := range root.Content {
		in, err := decodeYAMLFragment(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func decodeYAMLFragment(node *yaml.Node, field string) (fragment.Input, error) {
	if node.Kind != yaml.MappingNode {
		return fragment.Input{}, shapeErr(field, "expected a mapping")
	}
	var (
		in  fragment.Input
		err error
	)
	if in.Path, err = yamlString(node, "path", field); err != nil {
		return fragment.Input{}, err
	}
	if in.Lines, err = yamlString(node, "lines", field); err != nil {
		return fragment.Input{}, err
	}
	if in.Body, err = yamlString(node, "body", field); err != nil {
		return fragment.Input{}, err
	}
	idxNode := mappingValue(node, "idx")
	if idxNode == nil || idxNode.ShortTag() == "!!null" {
		return fragment.Input{}, shapeErr(join(field, "idx"), "missing required field")
	}
	if idxNode.Kind != yaml.ScalarNode || idxNode.ShortTag() != "!!int" {
		return fragment.Input{}, shapeErr(join(field, "idx"), "expected an unsigned integer")
	}
	idx, perr := strconv.ParseUint(idxNode.Value, 0, 64)
	if perr != nil || idx > math.MaxUint32 {
		return fragment.Input{}, shapeErr(join(field, "idx"), "expected an unsigned integer, got %s", idxNode.Value)
	}
	in.Idx = uint32(idx)
	return in, nil
}

func yamlString(node *yaml.Node, key, parent string) (string, error) {
	value := mappingValue(node, key)
	if value == nil || value.ShortTag() == "!!null" {
		return "", shapeErr(join(parent, key), "missing required field")
	}
	if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!str" {
		return "", shapeErr(join(parent, key), "expected a string")
	}
	return value.Value, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
