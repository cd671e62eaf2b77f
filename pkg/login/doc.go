// Package login dispatches a login request to one of its terminal
// outcomes.
//
// Each request is first offered to the provider registry as a possible
// return from a remote provider. Otherwise a form submission is checked
// against the local credential verifier, and a provider button starts a
// remote redirect. A successful login records the last login time,
// establishes a session, posts attendance and, when an SSO redirect is
// configured, issues a signed multipass redirect.
//
// The dispatcher never writes HTTP responses; callers translate the
// returned Outcome into redirects, cookies and messages.
package login
