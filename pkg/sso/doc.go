// Package sso holds the remote login providers.
//
// Every provider implements Adapter: a fixed two-step "redirect out, come
// back with proof" contract. BuildLoginURI starts the flow and stores a
// single-use state token namespaced to the provider ("<name>:<uuid>").
// When the browser returns, IsReturnCallback recognises the provider's
// markers and CompleteAuthentication validates them and yields the local
// username plus the return URL captured at the start.
//
// Three protocol adapters are provided:
//
//	OIDCAdapter    go-oidc discovery and ID token verification
//	OAuth2Adapter  authorization code flow plus a user info request
//	SAMLAdapter    gosaml2 AuthnRequest and posted assertion validation
//
// Registry collects the adapters. Only providers on the deployment
// allow-list that are active and need a remote redirect are offered:
//
//	registry := sso.NewRegistry([]string{"google"}, logger, adapters...)
//	for _, d := range registry.ListActive() {
//		fmt.Println(d.Name)
//	}
//
// State tokens live in a StateStore: RedisStateStore for clusters and
// MemoryStateStore (an expiring LRU) for a single node.
package sso
