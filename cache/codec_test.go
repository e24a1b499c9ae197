package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codecPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Tags  []string
}

func TestCodecRoundTripSmall(t *testing.T) {
	c := &Codec{Threshold: 1024}
	in := codecPayload{Name: "bank", Count: 3, Tags: []string{"a", "b"}}

	data, err := c.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, flagRaw, data[0])

	var out codecPayload
	require.NoError(t, c.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestCodecCompressesAboveThreshold(t *testing.T) {
	c := &Codec{Threshold: 64}
	in := codecPayload{Name: strings.Repeat("question text ", 100)}

	data, err := c.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, flagCompressed, data[0])
	assert.Less(t, len(data), len(in.Name))

	var out codecPayload
	require.NoError(t, c.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestCodecThresholdDisabled(t *testing.T) {
	c := &Codec{}
	data, err := c.Encode(strings.Repeat("x", 4096))
	require.NoError(t, err)
	assert.Equal(t, flagRaw, data[0])
}

func TestCodecDecodeRejectsCorruptEnvelopes(t *testing.T) {
	c := &Codec{Threshold: 64}
	var out codecPayload

	assert.ErrorIs(t, c.Decode(nil, &out), ErrSerialization)
	assert.ErrorIs(t, c.Decode([]byte{0x7f, '{', '}'}, &out), ErrSerialization)
	assert.ErrorIs(t, c.Decode([]byte{flagRaw, 'n', 'o'}, &out), ErrSerialization)
	assert.ErrorIs(t, c.Decode([]byte{flagCompressed, 0x01, 0x02}, &out), ErrSerialization)
}
