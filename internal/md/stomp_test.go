package md

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncode(t *testing.T) {
	f := NewFrame(CmdSubscribe, "id", "sub-0", "destination", "/topic/prices")
	assert.Equal(t, "SUBSCRIBE\ndestination:/topic/prices\nid:sub-0\n\n\x00", string(f.Encode()))
}

func TestDecodeMessageFrame(t *testing.T) {
	raw := "MESSAGE\ndestination:/topic/prices\ncontent-type:application/json\nsubscription:sub-0\nmessage-id:abc-1\n\n{\"symbol\":\"BTC-USD\",\"price\":1}\x00\n"
	f, err := DecodeFrame([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, CmdMessage, f.Command)
	assert.Equal(t, "/topic/prices", f.Headers["destination"])
	assert.Equal(t, "sub-0", f.Headers["subscription"])
	assert.JSONEq(t, `{"symbol":"BTC-USD","price":1}`, string(f.Body))
}

func TestDecodeFrameCRLF(t *testing.T) {
	f, err := DecodeFrame([]byte("CONNECTED\r\nversion:1.2\r\n\r\n\x00"))
	require.NoError(t, err)
	assert.Equal(t, CmdConnected, f.Command)
	assert.Equal(t, "1.2", f.Headers["version"])
	assert.Empty(t, f.Body)
}

func TestDecodeHeartbeat(t *testing.T) {
	_, err := DecodeFrame([]byte("\n"))
	assert.True(t, errors.Is(err, errEmptyFrame))
}

func TestHeaderEscapingRoundTrip(t *testing.T) {
	f := NewFrame(CmdError, "message", "bad: value\nline")
	decoded, err := DecodeFrame(f.Encode())
	require.NoError(t, err)
	assert.Equal(t, "bad: value\nline", decoded.Headers["message"])
}

func TestDecodeFrameRejectsMissingTerminator(t *testing.T) {
	_, err := DecodeFrame([]byte("MESSAGE\ndestination:/x"))
	assert.Error(t, err)
}
