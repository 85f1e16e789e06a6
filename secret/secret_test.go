package secret

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testCipher(t *testing.T) *AES {
	t.Helper()
	a, err := NewAES(bytes.Repeat([]byte{0x42}, 32), bytes.Repeat([]byte{0x42}, 16))
	require.NoError(t, err)
	return a
}

func TestHashAndCheck(t *testing.T) {
	h, err := Hash("hunter2")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	require.Equal(t, HashCost, cost)

	require.True(t, Check("hunter2", h))
	require.False(t, Check("hunter3", h))
	require.False(t, Check("hunter2", "not a hash"))
}

func TestAESRoundTrip(t *testing.T) {
	a := testCipher(t)
	plain := []byte("8d487643-8a4c-4045-aa97-3498b7fa5e91")

	enc := a.Encode(plain)
	require.Zero(t, len(enc)%16)
	require.NotEqual(t, plain, enc[:len(plain)])

	dec, err := a.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, plain, dec)
}

func TestAESFullBlockGetsPaddingBlock(t *testing.T) {
	a := testCipher(t)
	enc := a.Encode(bytes.Repeat([]byte("x"), 16))
	require.Len(t, enc, 32)
}

func TestAESEmpty(t *testing.T) {
	a := testCipher(t)
	dec, err := a.Decode(a.Encode(nil))
	require.NoError(t, err)
	require.Empty(t, dec)
}

func TestAESDecodeRejectsGarbage(t *testing.T) {
	a := testCipher(t)
	_, err := a.Decode([]byte("short"))
	require.Error(t, err)
	_, err = a.Decode(nil)
	require.Error(t, err)
}

func TestAESString(t *testing.T) {
	a := testCipher(t)
	s := a.EncodeString("hello world")
	got, err := a.DecodeString(s)
	require.NoError(t, err)
	require.Equal(t, "hello world", got)

	_, err = a.DecodeString("%%%")
	require.Error(t, err)
}

func TestNewAESKeySizes(t *testing.T) {
	_, err := NewAES(make([]byte, 16), make([]byte, 16))
	require.ErrorIs(t, err, ErrKeySize)
	_, err = NewAES(make([]byte, 32), make([]byte, 8))
	require.ErrorIs(t, err, ErrIVSize)
}

func TestBase64(t *testing.T) {
	require.Equal(t, "aGVsbG8=", Base64Encode([]byte("hello")))
	b, err := Base64Decode("aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
	_, err = Base64Decode("not base64!")
	require.Error(t, err)
}
