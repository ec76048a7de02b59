package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GitHubConfig defines a public type used by authcore APIs.
//
// GitHubConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// APIBaseURL overrides the GitHub API host, for GitHub Enterprise or
	// tests. Defaults to https://api.github.com.
	APIBaseURL string

	// Endpoint overrides the OAuth endpoints. Zero value means github.com.
	Endpoint oauth2.Endpoint
}

type githubStrategy struct {
	oauth   oauth2.Config
	apiBase string
}

// NewGitHub builds the GitHub federation strategy. GitHub issues classic,
// non-expiring access tokens, so Refresh is unsupported.
func NewGitHub(cfg GitHubConfig) Strategy {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.GitHub
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	return &githubStrategy{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		apiBase: apiBase,
	}
}

func (s *githubStrategy) Provider() Provider { return ProviderGitHub }

func (s *githubStrategy) AuthorizationURL(state, verifier string) string {
	return s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (s *githubStrategy) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	tok, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

func (s *githubStrategy) FetchProfile(ctx context.Context, token *Token) (*Profile, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, s.apiBase+"/user", token.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	profile := &Profile{
		Provider:  ProviderGitHub,
		Subject:   fmt.Sprintf("%d", user.ID),
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	}
	if profile.Name == "" {
		profile.Name = user.Login
	}

	// The public profile email is often unset; the emails endpoint lists
	// what the account actually verified.
	if profile.Email == "" {
		email, verified, err := s.primaryEmail(ctx, token.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
		}
		profile.Email = email
		profile.EmailVerified = verified
	} else {
		profile.EmailVerified = true
	}

	return profile, nil
}

func (s *githubStrategy) primaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, s.apiBase+"/user/emails", accessToken, &emails); err != nil {
		return "", false, err
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, emails[0].Verified, nil
	}
	return "", false, nil
}

func (s *githubStrategy) Refresh(context.Context, string) (*Token, error) {
	return nil, ErrRefreshNotSupported
}
