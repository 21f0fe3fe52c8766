package messaging

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrypto(t *testing.T) EncryptionService {
	t.Helper()
	svc, err := NewEncryptionService("test-secret", "test-salt", 100000)
	require.NoError(t, err)
	return svc
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := newTestCrypto(t)

	cases := []struct {
		name      string
		plaintext string
	}{
		{"plain ascii", "see you at the gym at 6?"},
		{"unicode", "héllo wörld éè \U0001F4AA\U0001F3CB"},
		{"empty", ""},
		{"max length", strings.Repeat("a", 5000)},
		{"newlines and quotes", "line one\nline \"two\"\n\ttabbed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := svc.Encrypt(tc.plaintext)
			require.NoError(t, err)

			assert.NotEqual(t, tc.plaintext, encrypted.Ciphertext)
			assert.NotEmpty(t, encrypted.IV)
			assert.NotEmpty(t, encrypted.AuthTag)

			assert.Equal(t, tc.plaintext, svc.Decrypt(encrypted))
		})
	}
}

func TestEncryptProducesFreshIVs(t *testing.T) {
	svc := newTestCrypto(t)

	first, err := svc.Encrypt("same message")
	require.NoError(t, err)
	second, err := svc.Encrypt("same message")
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	svc := newTestCrypto(t)

	encrypted, err := svc.Encrypt("original message")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted.Ciphertext)
	require.NoError(t, err)
	raw[0] ^= 0xFF
	encrypted.Ciphertext = base64.StdEncoding.EncodeToString(raw)

	assert.Equal(t, ContentUnavailable, svc.Decrypt(encrypted))
}

func TestDecryptTamperedAuthTag(t *testing.T) {
	svc := newTestCrypto(t)

	encrypted, err := svc.Encrypt("original message")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted.AuthTag)
	require.NoError(t, err)
	raw[0] ^= 0xFF
	encrypted.AuthTag = base64.StdEncoding.EncodeToString(raw)

	assert.Equal(t, ContentUnavailable, svc.Decrypt(encrypted))
}

func TestDecryptWithWrongKey(t *testing.T) {
	svc := newTestCrypto(t)
	other, err := NewEncryptionService("different-secret", "test-salt", 100000)
	require.NoError(t, err)

	encrypted, err := svc.Encrypt("secret message")
	require.NoError(t, err)

	assert.Equal(t, ContentUnavailable, other.Decrypt(encrypted))
}

func TestDecryptMalformedInput(t *testing.T) {
	svc := newTestCrypto(t)

	cases := []struct {
		name    string
		content *EncryptedContent
	}{
		{"bad base64 ciphertext", &EncryptedContent{Ciphertext: "!!!", IV: "aaaa", AuthTag: "aaaa"}},
		{"bad base64 iv", &EncryptedContent{Ciphertext: "aaaa", IV: "!!!", AuthTag: "aaaa"}},
		{"bad base64 tag", &EncryptedContent{Ciphertext: "aaaa", IV: "aaaa", AuthTag: "!!!"}},
		{"wrong iv length", &EncryptedContent{
			Ciphertext: base64.StdEncoding.EncodeToString([]byte("data")),
			IV:         base64.StdEncoding.EncodeToString([]byte("short")),
			AuthTag:    base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, ContentUnavailable, svc.Decrypt(tc.content))
		})
	}
}

func TestDecryptLegacyPlaintext(t *testing.T) {
	svc := newTestCrypto(t)

	// Rows written before encryption have no IV or tag and pass through
	assert.Equal(t, "old plaintext message", svc.Decrypt(&EncryptedContent{
		Ciphertext: "old plaintext message",
	}))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("  hello  "))
	assert.Equal(t, "hello world", Sanitize("hello <b>world</b>"))
	assert.Equal(t, "alert(1)", Sanitize("<script>alert(1)</script>"))
	assert.Equal(t, "ab", Sanitize("a\x00b"))
	assert.Equal(t, "keep\nnewlines", Sanitize("keep\nnewlines"))
}
