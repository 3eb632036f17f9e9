package codec

import (
	"encoding/json"
	"fmt"
)

// TextOption adjusts how SaveText encodes a mapping.
type TextOption func(*textOptions)

type textOptions struct {
	prefix string
	indent string
}

// WithIndent enables multi-line output, as json.MarshalIndent.
func WithIndent(prefix, indent string) TextOption {
	return func(o *textOptions) {
		o.prefix = prefix
		o.indent = indent
	}
}

// LoadText reads a JSON object from path. A missing file returns an empty
// mapping.
func LoadText(path string) (map[string]any, error) {
	data, ok, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// SaveText replaces the file at path with the JSON encoding of data.
func SaveText(path string, data map[string]any, opts ...TextOption) error {
	encoded, err := EncodeText(data, opts...)
	if err != nil {
		return err
	}
	return writeFile(path, encoded)
}

// EncodeText returns the JSON encoding of data.
func EncodeText(data map[string]any, opts ...TextOption) ([]byte, error) {
	var o textOptions
	for _, opt := range opts {
		opt(&o)
	}

	if data == nil {
		data = map[string]any{}
	}

	var (
		encoded []byte
		err     error
	)
	if o.prefix != "" || o.indent != "" {
		encoded, err = json.MarshalIndent(data, o.prefix, o.indent)
	} else {
		encoded, err = json.Marshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return encoded, nil
}
