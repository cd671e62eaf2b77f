// Package cli provides the multipass-cli operator commands.
//
// # Overview
//
// The commands help operators debug an SSO integration with the receiving
// site: build a token for a person, open a token captured from a redirect,
// and check a signature against the shared secret. create-login seeds a
// local password login for testing.
//
// # Commands
//
// encode: Build a token and signature
//
//	multipass-cli encode \
//		-key "$SSO_KEY" \
//		-email ted@example.org \
//		-first-name Theodore \
//		-redirect-url https://live.example.org
//
// decode: Print the payload of a token, checking the signature when given
//
//	multipass-cli decode -url 'https://live.example.org/sso?sso=...&signature=...'
//
// verify: Exit non-zero unless the signature matches
//
//	multipass-cli verify -token ... -signature ...
//
// create-login: Create a person and a bcrypt password login
//
//	multipass-cli create-login \
//		-database-url sqlite://multipass.db \
//		-username tdecker \
//		-email ted@example.org
//
// The secret may come from MULTIPASS_SSO_KEY instead of -key so it stays
// out of shell history. Results are printed to stdout; logs go to stderr.
package cli
