package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/multipass/pkg/sso"
)

func TestDispatcher_LoginPage(t *testing.T) {
	registry := sso.NewRegistry([]string{"Google", "Okta"}, nil,
		&fakeAdapter{name: "Google", image: "/img/google.png"},
		&fakeAdapter{name: "Okta"},
		&fakeAdapter{name: "Facebook"},
	)
	f := newFixture(t, &Options{PromptMessage: "Welcome back", Registry: registry})

	page := f.dispatcher.LoginPage("/login/", "/groups?id=4")
	assert.Equal(t, "Welcome back", page.PromptMessage)
	assert.True(t, page.ShowNewAccount)
	assert.Equal(t, DefaultNewAccountText, page.NewAccountText)
	assert.Equal(t, "/NewAccount?returnurl=%2Fgroups%3Fid%3D4", page.NewAccountURL)
	assert.Equal(t, DefaultHelpURL, page.HelpURL)
	assert.True(t, page.HasRemoteProviders)

	require.Len(t, page.Providers, 2)
	assert.Equal(t, ProviderButton{
		Name:     "Google",
		ButtonID: "lbGoogleLogin",
		CSSClass: "btn btn-authenication google",
		ImageURL: "/img/google.png",
		LoginURL: "/login/Google?returnurl=%2Fgroups%3Fid%3D4",
	}, page.Providers[0])
	assert.Equal(t, "Okta", page.Providers[1].Text)
	assert.Empty(t, page.Providers[1].ImageURL)
}

func TestDispatcher_LoginPageWithoutProviders(t *testing.T) {
	f := newFixture(t, &Options{HideNewAccount: true, NewAccountText: "Sign up"})

	page := f.dispatcher.LoginPage("/login", "")
	assert.False(t, page.ShowNewAccount)
	assert.Equal(t, "Sign up", page.NewAccountText)
	assert.False(t, page.HasRemoteProviders)
	assert.Empty(t, page.Providers)
}

func TestDispatcher_NewAccountURL(t *testing.T) {
	f := newFixture(t, &Options{})
	assert.Equal(t, "/NewAccount", f.dispatcher.NewAccountURL(""))

	require.NoError(t, f.dispatcher.SetOptions(&Options{NewAccountURL: "/register?campus=1"}))
	assert.Equal(t, "/register?campus=1&returnurl=%2Fhome", f.dispatcher.NewAccountURL("/home"))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "https://www.example.org/ConfirmAccount", resolve("https://www.example.org", "/ConfirmAccount"))
	assert.Equal(t, "https://www.example.org/ConfirmAccount", resolve("https://www.example.org/", "ConfirmAccount"))
	assert.Equal(t, "https://id.example.org/confirm", resolve("https://www.example.org", "https://id.example.org/confirm"))
}
