package multipass

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/platinummonkey/multipass/pkg/identity"
)

// InitializationVector is the fixed IV the receiving platform decrypts with.
// It is also prepended to the plaintext.
// TODO: rotate once the receiver accepts a per-token IV.
const InitializationVector = "OpenSSL for Ruby"

var (
	// ErrConfiguration means no token can be produced with the current settings
	ErrConfiguration = errors.New("multipass: configuration error")

	// ErrMalformedToken is returned by Decode for tokens it cannot open
	ErrMalformedToken = errors.New("multipass: malformed token")

	// ErrInvalidSignature is returned when a signature does not match its token
	ErrInvalidSignature = errors.New("multipass: invalid signature")
)

// Token is the pair sent to the receiving party
type Token struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// Encoder produces multipass tokens for a single shared secret. It holds
// no mutable state and is safe for concurrent use.
type Encoder struct {
	secret []byte
	key    []byte
	iv     []byte
}

// NewEncoder creates an encoder for secret. A blank secret is a
// configuration error.
func NewEncoder(secret string) (*Encoder, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: sso key is not set", ErrConfiguration)
	}

	key := sha256.Sum256([]byte(secret))
	return &Encoder{
		secret: []byte(secret),
		key:    key[:],
		iv:     []byte(InitializationVector),
	}, nil
}

// Encode builds the token and signature for id issued at issuedAt
func (e *Encoder) Encode(id identity.Identity, issuedAt time.Time) (Token, error) {
	body, err := marshalPayload(NewPayload(id, issuedAt))
	if err != nil {
		return Token{}, err
	}

	plaintext := make([]byte, 0, len(e.iv)+len(body))
	plaintext = append(plaintext, e.iv...)
	plaintext = append(plaintext, body...)

	ciphertext, err := e.encrypt(plaintext)
	if err != nil {
		return Token{}, err
	}

	token := stripWhitespace(base64.StdEncoding.EncodeToString(ciphertext))
	return Token{
		Token:     token,
		Signature: e.Sign(token),
	}, nil
}

// Sign returns base64(HMAC-SHA1(secret, token))
func (e *Encoder) Sign(token string) string {
	mac := hmac.New(sha1.New, e.secret)
	mac.Write([]byte(token))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches token
func (e *Encoder) Verify(token, signature string) bool {
	expected, err := base64.StdEncoding.DecodeString(e.Sign(token))
	if err != nil {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// Issue encodes id and returns the redirect URL for base
func (e *Encoder) Issue(base string, id identity.Identity, issuedAt time.Time) (string, error) {
	tok, err := e.Encode(id, issuedAt)
	if err != nil {
		return "", err
	}
	return RedirectURL(base, tok)
}

// RedirectURL appends /sso?sso=<token>&signature=<signature> to base
func RedirectURL(base string, tok Token) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("%w: redirect url is not set", ErrConfiguration)
	}
	if tok.Token == "" || tok.Signature == "" {
		return "", fmt.Errorf("%w: empty token", ErrConfiguration)
	}

	return strings.TrimSuffix(base, "/") +
		"/sso?sso=" + url.QueryEscape(tok.Token) +
		"&signature=" + url.QueryEscape(tok.Signature), nil
}

// Decode opens a token produced by Encode and returns its payload. The
// signature is not checked; use Verify for that.
func (e *Encoder) Decode(token string) (Payload, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	plaintext, err := e.decrypt(ciphertext)
	if err != nil {
		return Payload{}, err
	}
	if !bytes.HasPrefix(plaintext, e.iv) {
		return Payload{}, fmt.Errorf("%w: missing iv prefix", ErrMalformedToken)
	}

	var p Payload
	dec := json.NewDecoder(bytes.NewReader(plaintext[len(e.iv):]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return p, nil
}

// DecodeSigned verifies the signature and then decodes the token
func (e *Encoder) DecodeSigned(tok Token) (Payload, error) {
	if !e.Verify(tok.Token, tok.Signature) {
		return Payload{}, ErrInvalidSignature
	}
	return e.Decode(tok.Token)
}

// PlaintextJSON returns the JSON document Encode would encrypt for id
func PlaintextJSON(id identity.Identity, issuedAt time.Time) ([]byte, error) {
	return marshalPayload(NewPayload(id, issuedAt))
}

func marshalPayload(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// the receiver's serializer leaves <, > and & unescaped
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	body := bytes.TrimRight(buf.Bytes(), "\n")
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrConfiguration)
	}
	return body, nil
}

func (e *Encoder) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, e.iv).CryptBlocks(out, padded)
	return out, nil
}

func (e *Encoder) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrMalformedToken)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, e.iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrMalformedToken)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedToken)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformedToken)
		}
	}
	return data[:len(data)-n], nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
