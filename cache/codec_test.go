package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleObject struct {
	FirstName string   `json:"FirstName" msgpack:"FirstName" yaml:"FirstName"`
	LastName  string   `json:"LastName" msgpack:"LastName" yaml:"LastName"`
	Age       int      `json:"Age,omitempty" msgpack:"Age,omitempty" yaml:"Age,omitempty"`
	Tags      []string `json:"Tags,omitempty" msgpack:"Tags,omitempty" yaml:"Tags,omitempty"`
}

func TestCodecRoundTrip(t *testing.T) {
	values := []sampleObject{
		{FirstName: "jinga", LastName: "zamooga"},
		{FirstName: "", LastName: "ünïcødé", Age: 42, Tags: []string{"a", "b"}},
	}
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}, YAMLCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			for _, v := range values {
				raw, err := codec.Marshal(v)
				require.NoError(t, err)
				var out sampleObject
				require.NoError(t, codec.Unmarshal(raw, &out))
				assert.Equal(t, v, out)
			}
		})
	}
}

func TestCodecRejectsUnsupported(t *testing.T) {
	_, err := JSONCodec{}.Marshal(make(chan int))
	assert.Error(t, err)
	_, err = MsgpackCodec{}.Marshal(make(chan int))
	assert.Error(t, err)
}

func TestCodecRejectsGarbage(t *testing.T) {
	var out sampleObject
	assert.Error(t, JSONCodec{}.Unmarshal("{not json", &out))
	assert.Error(t, MsgpackCodec{}.Unmarshal("\xc1", &out))
	assert.Error(t, YAMLCodec{}.Unmarshal("FirstName: [unterminated", &out))
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "json"},
		{"json", "json"},
		{"MsgPack", "msgpack"},
		{"yaml", "yaml"},
		{"yml", "yaml"},
	}
	for _, tt := range tests {
		codec, err := CodecByName(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, codec.Name())
	}
	_, err := CodecByName("xml")
	assert.Error(t, err)
}
