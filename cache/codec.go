package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Codec converts values to and from the raw string form kept in the row store.
type Codec interface {
	Marshal(v any) (string, error)
	Unmarshal(raw string, v any) error
	Name() string
}

// JSONCodec stores values as JSON text.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) (string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (JSONCodec) Unmarshal(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}

func (JSONCodec) Name() string { return "json" }

// MsgpackCodec stores values as msgpack. The raw value is binary and needs a
// binary-safe store column (all bundled stores are).
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) (string, error) {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (MsgpackCodec) Unmarshal(raw string, v any) error {
	return msgpack.Unmarshal([]byte(raw), v)
}

func (MsgpackCodec) Name() string { return "msgpack" }

// YAMLCodec stores values as YAML documents.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(v any) (string, error) {
	buf, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (YAMLCodec) Unmarshal(raw string, v any) error {
	return yaml.Unmarshal([]byte(raw), v)
}

func (YAMLCodec) Name() string { return "yaml" }

// CodecByName resolves "json", "msgpack" or "yaml" (case-insensitive).
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown codec %q", name)
	}
}
