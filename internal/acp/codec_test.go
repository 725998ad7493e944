package acp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameReader_ReadsLines(t *testing.T) {
	r := newFrameReader(strings.NewReader("{\"a\":1}\n{\"b\":2}\n"))

	line, err := r.readFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line))

	line, err = r.readFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(line))
}

func TestFrameReader_OversizedFrameDiscardedAndContinues(t *testing.T) {
	oversized := strings.Repeat("x", MaxFrameBytes+10)
	input := oversized + "\n" + `{"ok":true}` + "\n"
	r := newFrameReader(strings.NewReader(input))

	_, err := r.readFrame()
	require.Error(t, err)
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)

	line, err := r.readFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(line))
}

func TestEncode_AppendsNewline(t *testing.T) {
	out, err := encode(OutboundMessage{Method: "prompt/send", Params: map[string]string{"text": "go"}})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(out, []byte("\n")))
	assert.Contains(t, string(out), `"method":"prompt/send"`)
}
