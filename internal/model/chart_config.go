package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ConfigVersionKey is the config key holding the chart schema version.
const ConfigVersionKey = "version"

// ErrMalformedConfig is returned when a chart's config is missing or is not
// a JSON object.
var ErrMalformedConfig = errors.New("malformed chart config")

// ChartConfig is the decoded form of a chart's config column. Values are
// kept as raw JSON so that keys this package does not interpret are written
// back unchanged.
type ChartConfig struct {
	fields map[string]json.RawMessage
}

// DecodeChartConfig parses raw as a JSON object. Empty input, null and any
// non-object value are rejected with an error wrapping ErrMalformedConfig.
func DecodeChartConfig(raw []byte) (ChartConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ChartConfig{}, fmt.Errorf("%w: config is empty", ErrMalformedConfig)
	}
	if trimmed[0] != '{' {
		return ChartConfig{}, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformedConfig, describeJSON(trimmed))
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return ChartConfig{}, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	return ChartConfig{fields: fields}, nil
}

// Version returns the config's version and whether it is present as an
// integer.
func (c ChartConfig) Version() (int, bool) {
	raw, ok := c.fields[ConfigVersionKey]
	if !ok || string(raw) == "null" {
		return 0, false
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// SetVersion assigns the version key, replacing any previous value.
func (c *ChartConfig) SetVersion(v int) {
	if c.fields == nil {
		c.fields = make(map[string]json.RawMessage)
	}
	c.fields[ConfigVersionKey] = json.RawMessage(strconv.Itoa(v))
}

// Get returns the raw value stored at key.
func (c ChartConfig) Get(key string) (json.RawMessage, bool) {
	v, ok := c.fields[key]
	return v, ok
}

// Keys returns the config keys in sorted order.
func (c ChartConfig) Keys() []string {
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode serializes the config back to a JSON object.
func (c ChartConfig) Encode() (json.RawMessage, error) {
	if c.fields == nil {
		return json.RawMessage(`{}`), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c.fields); err != nil {
		return nil, fmt.Errorf("encode chart config: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func describeJSON(b []byte) string {
	switch b[0] {
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
