// Package wire is the boundary adapter shared by every harpoon surface.
//
// It decodes raw JSON or YAML into engine inputs, rejecting anything that is
// not well shaped with a *ShapeError, and encodes results back out. The
// engine itself never sees unvalidated input.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

// DefaultMaxIterations caps cycles submitted through a boundary surface
// without an explicit max_iterations.
const DefaultMaxIterations = 100000

// CycleRequest is a decoded cycle submission. Nil pointers mean the field was
// omitted or null.
type CycleRequest struct {
	Fragments        []fragment.Input
	HygieneThreshold *float64
	MaxIterations    *int
}

// Resolve fills omitted fields from the surface defaults.
func (r CycleRequest) Resolve(defaultThreshold float64, defaultMaxIterations int) (float64, *int) {
	threshold := defaultThreshold
	if r.HygieneThreshold != nil {
		threshold = *r.HygieneThreshold
	}
	limit := defaultMaxIterations
	if r.MaxIterations != nil {
		limit = *r.MaxIterations
	}
	return threshold, &limit
}

// BodyRequest carries a single body for the standalone operations. Path is
// optional and only used for language detection.
type BodyRequest struct {
	Path string
	Body string
}

// CycleResponse is what surfaces return for a cycle run on behalf of a
// caller that wants an identifier and a summary next to the full result.
type CycleResponse struct {
	CycleID string               `json:"cycle_id,omitempty"`
	Summary fragment.Summary     `json:"summary"`
	Result  fragment.CycleResult `json:"result"`
}

// DecodeCycleRequest parses {"fragments": [...], "hygiene_threshold": n,
// "max_iterations": n}. Only fragments is required.
func DecodeCycleRequest(data []byte) (CycleRequest, error) {
	obj, err := decodeObject(data, "")
	if err != nil {
		return CycleRequest{}, err
	}
	rawFragments, ok := obj["fragments"]
	if !ok || isNull(rawFragments) {
		return CycleRequest{}, shapeErr("fragments", "missing required field")
	}
	fragments, err := decodeFragmentArray(rawFragments, "fragments")
	if err != nil {
		return CycleRequest{}, err
	}
	req := CycleRequest{Fragments: fragments}

	if raw, ok := obj["hygiene_threshold"]; ok && !isNull(raw) {
		v, err := decodeFloat(raw, "hygiene_threshold")
		if err != nil {
			return CycleRequest{}, err
		}
		req.HygieneThreshold = &v
	}
	if raw, ok := obj["max_iterations"]; ok && !isNull(raw) {
		v, err := decodeUint(raw, "max_iterations", math.MaxInt32)
		if err != nil {
			return CycleRequest{}, err
		}
		n := int(v)
		req.MaxIterations = &n
	}
	return req, nil
}

// DecodeFragments parses a bare JSON array of fragments.
func DecodeFragments(data []byte) ([]fragment.Input, error) {
	return decodeFragmentArray(bytes.TrimSpace(data), "")
}

// DecodeBodyRequest parses {"body": "...", "path": "..."}.
func DecodeBodyRequest(data []byte) (BodyRequest, error) {
	obj, err := decodeObject(data, "")
	if err != nil {
		return BodyRequest{}, err
	}
	var req BodyRequest
	if req.Body, err = requiredString(obj, "body", ""); err != nil {
		return BodyRequest{}, err
	}
	if raw, ok := obj["path"]; ok && !isNull(raw) {
		if req.Path, err = decodeString(raw, "path"); err != nil {
			return BodyRequest{}, err
		}
	}
	return req, nil
}

// EncodeResult renders a result with its field names as the wire contract
// defines them. Empty lists encode as [].
func EncodeResult(result fragment.CycleResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode cycle result: %w", err)
	}
	return data, nil
}

func decodeFragmentArray(raw json.RawMessage, field string) ([]fragment.Input, error) {
	var items []json.RawMessage
	if len(raw) == 0 || raw[0] != '[' {
		return nil, shapeErr(orRoot(field), "expected an array")
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, shapeErr(orRoot(field), "invalid JSON: %v", err)
	}
	out := make([]fragment.Input, 0, len(items))
	for i, item := range items {
		in, err := decodeFragment(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func decodeFragment(raw json.RawMessage, field string) (fragment.Input, error) {
	obj, err := decodeObject(raw, field)
	if err != nil {
		return fragment.Input{}, err
	}
	var in fragment.Input
	if in.Path, err = requiredString(obj, "path", field); err != nil {
		return fragment.Input{}, err
	}
	if in.Lines, err = requiredString(obj, "lines", field); err != nil {
		return fragment.Input{}, err
	}
	if in.Body, err = requiredString(obj, "body", field); err != nil {
		return fragment.Input{}, err
	}
	rawIdx, ok := obj["idx"]
	if !ok || isNull(rawIdx) {
		return fragment.Input{}, shapeErr(join(field, "idx"), "missing required field")
	}
	idx, err := decodeUint(rawIdx, join(field, "idx"), math.MaxUint32)
	if err != nil {
		return fragment.Input{}, err
	}
	in.Idx = uint32(idx)
	return in, nil
}

func decodeObject(raw []byte, field string) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, shapeErr(field, "expected an object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, shapeErr(field, "invalid JSON: %v", err)
	}
	return obj, nil
}

func requiredString(obj map[string]json.RawMessage, key, parent string) (string, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return "", shapeErr(join(parent, key), "missing required field")
	}
	return decodeString(raw, join(parent, key))
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", shapeErr(field, "expected a string")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", shapeErr(field, "invalid string: %v", err)
	}
	return s, nil
}

func decodeFloat(raw json.RawMessage, field string) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || !isNumber(raw) {
		return 0, shapeErr(field, "expected a number")
	}
	v, err := n.Float64()
	if err != nil {
		return 0, shapeErr(field, "invalid number: %v", err)
	}
	return v, nil
}

func decodeUint(raw json.RawMessage, field string, limit uint64) (uint64, error) {
	if !isNumber(raw) {
		return 0, shapeErr(field, "expected an unsigned integer")
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, shapeErr(field, "expected an unsigned integer, got %s", raw)
	}
	if v > limit {
		return 0, shapeErr(field, "value %d exceeds %d", v, limit)
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isNumber(raw json.RawMessage) bool {
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func orRoot(field string) string {
	if field == "" {
		return "$"
	}
	return field
}
