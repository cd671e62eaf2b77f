// Package multipass builds the signed, encrypted single sign-on token
// ("multipass") consumed by the Church Online platform.
//
// # Wire format
//
// The payload is a JSON object with exactly five keys:
//
//	{"email":"...","expires":"2024-01-01T00:05:00Z","first_name":"...","last_name":"...","nickname":"..."}
//
// expires is the issuance time plus five minutes, in UTC, to the second.
//
// The plaintext fed to the cipher is the ASCII initialization vector
// followed by the JSON document. It is encrypted with AES-256-CBC and
// PKCS#7 padding, using SHA-256(secret) as the key and the fixed
// initialization vector "OpenSSL for Ruby". The ciphertext is base64
// encoded with all whitespace removed; that string is the token.
//
// The signature is base64(HMAC-SHA1(secret, token)), keyed with the raw
// secret rather than the derived key.
//
// Both values are query-escaped and appended to the redirect base:
//
//	<base>/sso?sso=<token>&signature=<signature>
//
// # Compatibility
//
// The fixed initialization vector, the IV prefix in the plaintext, and the
// reuse of the secret for both the key derivation and the HMAC are what the
// receiving platform expects. Changing any of them breaks interoperability.
//
// # Usage
//
//	enc, err := multipass.NewEncoder(cfg.SSOKey)
//	if err != nil {
//		return err // multipass.ErrConfiguration
//	}
//	redirect, err := enc.Issue(cfg.RedirectURL, person, time.Now())
package multipass
