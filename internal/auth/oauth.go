// internal/auth/oauth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
)

// Scopes requested when connecting an account: organization membership and repository
// contents, including private ones.
var Scopes = []string{"read:org", "repo"}

// Grant is what a completed authorization yields.
type Grant struct {
	AccessToken string
	Scopes      []string
	Profile     model.AccountProfile
}

// GitHubProvider runs the GitHub authorization code flow. The code is exchanged server to
// server; the access token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config
	api    *github.Client
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must match the callback URL
// registered for the OAuth app exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string, api *github.Client) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       Scopes,
			Endpoint:     oauthgithub.Endpoint,
		},
		api: api,
	}
}

// WithEndpoint replaces the authorization server, for GitHub Enterprise or tests.
func (p *GitHubProvider) WithEndpoint(ep oauth2.Endpoint) *GitHubProvider {
	p.config.Endpoint = ep
	return p
}

// AuthURL returns the URL to send the user to. state is echoed back on the callback and
// must be checked against the value stored in the browser.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token and snapshots the account
// profile it belongs to.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (Grant, error) {
	if code == "" {
		return Grant{}, errors.New("auth: authorization code not provided")
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	user, err := p.api.Session(token.AccessToken).AuthenticatedUser(ctx)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: fetching authenticated user: %w", err)
	}
	if user.GetID() == 0 {
		return Grant{}, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	return Grant{
		AccessToken: token.AccessToken,
		Scopes:      parseScopes(token.Extra("scope")),
		Profile: model.AccountProfile{
			ID:        user.GetID(),
			Login:     user.GetLogin(),
			Name:      user.GetName(),
			Email:     user.GetEmail(),
			AvatarURL: user.GetAvatarURL(),
			Company:   user.GetCompany(),
			Location:  user.GetLocation(),
		},
	}, nil
}

// parseScopes splits the granted scope list, which GitHub separates with commas.
func parseScopes(raw any) []string {
	s, _ := raw.(string)
	scopes := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			scopes = append(scopes, part)
		}
	}
	return scopes
}
