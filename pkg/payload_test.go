package pin

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	f := NewFramer("")
	require.Equal(t, DefaultTag, f.Tag())

	fp := make([]byte, 32)
	payload, err := f.Frame(fp)
	require.NoError(t, err)
	require.Len(t, payload, 41)
	require.True(t, bytes.HasPrefix(payload, []byte("LEGALPIN:")))

	h, err := f.FrameHex([]byte{0xde, 0xad})
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString([]byte("LEGALPIN:"))+"dead", h)
}

func TestFrameRejectsBadFingerprints(t *testing.T) {
	f := NewFramer("X:")
	for _, fp := range [][]byte{nil, {}, make([]byte, 33), make([]byte, 64)} {
		_, err := f.Frame(fp)
		require.True(t, IsInvalidInputError(err), "len %d", len(fp))
		_, err = f.FrameHex(fp)
		require.True(t, IsInvalidInputError(err), "len %d", len(fp))
	}
	_, err := f.Frame([]byte{1})
	require.NoError(t, err)
	_, err = f.Frame(make([]byte, 32))
	require.NoError(t, err)
}

func TestUnframe(t *testing.T) {
	f := NewFramer("ACME:")
	fp := []byte("0123456789")
	payload, err := f.Frame(fp)
	require.NoError(t, err)

	got, ok := f.Unframe(payload)
	require.True(t, ok)
	require.Equal(t, fp, got)

	_, ok = NewFramer("").Unframe(payload)
	require.False(t, ok)
	_, ok = f.Unframe([]byte("ACME:"))
	require.False(t, ok)
}
