package multipass

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/multipass/pkg/identity"
)

var testIdentity = identity.Identity{
	Email:     "a@b.com",
	FirstName: "A",
	LastName:  "B",
	NickName:  "A",
}

var testIssuedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewEncoder_BlankSecret(t *testing.T) {
	for _, secret := range []string{"", "   ", "\t\n"} {
		enc, err := NewEncoder(secret)
		assert.Nil(t, enc)
		assert.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestEncode_Scenario(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	tok, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)

	assert.NotEmpty(t, tok.Token)
	assert.False(t, strings.ContainsAny(tok.Token, " \t\r\n"))
	_, err = base64.StdEncoding.DecodeString(tok.Token)
	assert.NoError(t, err)

	mac := hmac.New(sha1.New, []byte("s3cr3t"))
	mac.Write([]byte(tok.Token))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), tok.Signature)

	payload, err := enc.Decode(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:05:00Z", payload.Expires)
	assert.Equal(t, "a@b.com", payload.Email)
	assert.Equal(t, "A", payload.FirstName)
	assert.Equal(t, "B", payload.LastName)
	assert.Equal(t, "A", payload.Nickname)
}

func TestEncode_Deterministic(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	first, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Token, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := enc.Encode(testIdentity, testIssuedAt)
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range results {
		assert.Equal(t, first, tok)
	}

	other, err := NewEncoder("s3cr3t")
	require.NoError(t, err)
	again, err := other.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestEncode_RoundTripWithIndependentDecrypt(t *testing.T) {
	secret := "another-secret"
	enc, err := NewEncoder(secret)
	require.NoError(t, err)

	tok, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(tok.Token)
	require.NoError(t, err)
	require.Zero(t, len(ciphertext)%aes.BlockSize)

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, []byte(InitializationVector)).CryptBlocks(plain, ciphertext)
	pad := int(plain[len(plain)-1])
	plain = plain[:len(plain)-pad]

	require.True(t, strings.HasPrefix(string(plain), InitializationVector))
	body := plain[len(InitializationVector):]

	expected, err := PlaintextJSON(testIdentity, testIssuedAt)
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(body))
	assert.Equal(t,
		`{"email":"a@b.com","expires":"2024-01-01T00:05:00Z","first_name":"A","last_name":"B","nickname":"A"}`,
		string(body))
}

func TestPayload_Keys(t *testing.T) {
	body, err := PlaintextJSON(testIdentity, testIssuedAt)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Len(t, fields, 5)
	for _, key := range []string{"email", "expires", "first_name", "last_name", "nickname"} {
		assert.Contains(t, fields, key)
	}
}

func TestPayload_HTMLCharactersNotEscaped(t *testing.T) {
	id := identity.Identity{Email: "x@y.com", FirstName: "Tom & Jerry", LastName: "<B>"}
	body, err := PlaintextJSON(id, testIssuedAt)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"first_name":"Tom & Jerry"`)
	assert.Contains(t, string(body), `"last_name":"<B>"`)
}

func TestNewPayload_ExpiresIsUTC(t *testing.T) {
	tests := []struct {
		name     string
		location string
	}{
		{name: "utc", location: "UTC"},
		{name: "new york", location: "America/New_York"},
		{name: "tokyo", location: "Asia/Tokyo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := time.LoadLocation(tt.location)
			if err != nil {
				t.Skipf("timezone data unavailable: %v", err)
			}
			issued := testIssuedAt.In(loc)

			p := NewPayload(testIdentity, issued)
			assert.Equal(t, "2024-01-01T00:05:00Z", p.Expires)

			expires, err := p.ExpiresAt()
			require.NoError(t, err)
			assert.Equal(t, TTL, expires.Sub(issued))
		})
	}
}

func TestNewPayload_NicknameFallsBackToFirstName(t *testing.T) {
	p := NewPayload(identity.Identity{Email: "e@x.com", FirstName: "Theodore", NickName: "  "}, testIssuedAt)
	assert.Equal(t, "Theodore", p.Nickname)

	p = NewPayload(identity.Identity{Email: "e@x.com", FirstName: "Theodore", NickName: "Ted"}, testIssuedAt)
	assert.Equal(t, "Ted", p.Nickname)
}

func TestNewPayload_TruncatesToSeconds(t *testing.T) {
	p := NewPayload(testIdentity, testIssuedAt.Add(1500*time.Millisecond))
	assert.Equal(t, "2024-01-01T00:05:01Z", p.Expires)
}

func TestVerify(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	tok, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)

	assert.True(t, enc.Verify(tok.Token, tok.Signature))
	assert.False(t, enc.Verify(tok.Token+"A", tok.Signature))
	assert.False(t, enc.Verify(tok.Token, "not base64!"))

	other, err := NewEncoder("different")
	require.NoError(t, err)
	assert.False(t, other.Verify(tok.Token, tok.Signature))
}

func TestDecodeSigned(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	tok, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)

	p, err := enc.DecodeSigned(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", p.Email)

	tok.Signature = enc.Sign("something else")
	_, err = enc.DecodeSigned(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_Malformed(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%"},
		{name: "partial block", token: base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Decode(tt.token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}

	tok, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)
	wrongKey, err := NewEncoder("wrong")
	require.NoError(t, err)
	_, err = wrongKey.Decode(tok.Token)
	assert.Error(t, err)
}

func TestRedirectURL(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	tok, err := enc.Encode(testIdentity, testIssuedAt)
	require.NoError(t, err)

	for _, base := range []string{"https://online.example.com", "https://online.example.com/"} {
		redirect, err := RedirectURL(base, tok)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(redirect, "https://online.example.com/sso?sso="))

		u, err := url.Parse(redirect)
		require.NoError(t, err)
		assert.Equal(t, "/sso", u.Path)
		assert.Equal(t, tok.Token, u.Query().Get("sso"))
		assert.Equal(t, tok.Signature, u.Query().Get("signature"))
		assert.NotContains(t, u.RawQuery, "+")
	}
}

func TestRedirectURL_Errors(t *testing.T) {
	_, err := RedirectURL("", Token{Token: "a", Signature: "b"})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = RedirectURL("https://online.example.com", Token{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestIssue(t *testing.T) {
	enc, err := NewEncoder("s3cr3t")
	require.NoError(t, err)

	redirect, err := enc.Issue("https://online.example.com", testIdentity, testIssuedAt)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	tok := Token{Token: u.Query().Get("sso"), Signature: u.Query().Get("signature")}
	p, err := enc.DecodeSigned(tok)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:05:00Z", p.Expires)
}

func TestPKCS7(t *testing.T) {
	for n := 0; n <= 2*aes.BlockSize; n++ {
		data := []byte(strings.Repeat("x", n))
		padded := pkcs7Pad(data, aes.BlockSize)
		assert.Zero(t, len(padded)%aes.BlockSize)
		assert.Greater(t, len(padded), n)

		out, err := pkcs7Unpad(padded, aes.BlockSize)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}

	_, err := pkcs7Unpad([]byte{1, 2, 3, 0}, aes.BlockSize)
	assert.ErrorIs(t, err, ErrMalformedToken)
}
