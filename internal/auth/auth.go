package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"smooshr/backend/internal/config"
	"smooshr/backend/pkg/models"
)

// APIKeyHeader carries a Smooshr API key.
const APIKeyHeader = "X-API-Key"

// PlaceholderToken is sent by clients that authenticate with an API key only.
const PlaceholderToken = "no-token"

// DevUser is the identity used when auth is bypassed in DEV.
var DevUser = models.User{
	ID:               "dev-user",
	Email:            "dev@localhost",
	IdentityProvider: "dev",
	GivenName:        "Dev",
	FamilyName:       "User",
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Provisioner turns verified identity claims into a stored user.
type Provisioner interface {
	Provision(ctx context.Context, claims models.User) (*models.User, error)
}

// KeyResolver returns the owner of an API key.
type KeyResolver interface {
	Resolve(ctx context.Context, key string) (*models.User, error)
}

// Auth contains configuration and helpers for performing OpenID Connect
// authentication against the configured issuer.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	users        Provisioner
	keys         KeyResolver
	logger       Logger
	devMode      bool
	authBypass   bool
}

// New creates a new Auth object using values from the application
// configuration. Unless auth is bypassed it contacts the issuer and prepares
// the token verifiers.
func New(ctx context.Context, cfg *config.Config, users Provisioner, keys KeyResolver, logger Logger) (*Auth, error) {
	shouldBypass := cfg.AuthBypassed()

	var oauth2Config *oauth2.Config
	var verifier *oidc.IDTokenVerifier
	var apiVerifier *oidc.IDTokenVerifier

	if !shouldBypass {
		if cfg.Auth.Issuer == "" || cfg.Auth.ClientID == "" ||
			cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
			return nil, errors.New("auth configuration is incomplete")
		}

		provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
		if err != nil {
			return nil, err
		}

		oauth2Config = &oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.Auth.RedirectURL,
			Scopes:       LoginScopes,
		}

		verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})

		// Access tokens are often issued for a different audience than the web client.
		apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}

	return &Auth{
		oauth2Config: oauth2Config,
		verifier:     verifier,
		apiVerifier:  apiVerifier,
		users:        users,
		keys:         keys,
		logger:       logger,
		devMode:      cfg.IsDev(),
		authBypass:   shouldBypass,
	}, nil
}

// LoginHandler initiates the OAuth2 authorization code flow. A random state
// value is stored in a cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		HttpOnly: true,
		Path:     "/",
		Secure:   !a.devMode,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler verifies the state parameter, exchanges the code for
// tokens, provisions the user and stores the raw ID token in a cookie.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	idToken, err := a.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}
	if _, err := a.provision(r.Context(), idToken); err != nil {
		a.logger.Error("failed to provision user at login", "error", err)
		http.Error(w, "failed to provision user", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
		Secure:   !a.devMode,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that resolves the calling user and stores it in
// the request context. Credentials are tried in order: API key header,
// bearer token, ID token cookie.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticate(r)
		if err != nil {
			var ae *authError
			if errors.As(err, &ae) {
				writeDetail(w, ae.status, ae.detail)
				return
			}
			a.logger.Error("failed to resolve user", "error", err)
			writeDetail(w, http.StatusInternalServerError, "failed to resolve user")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *Auth) authenticate(r *http.Request) (*models.User, error) {
	ctx := r.Context()
	if a.authBypass {
		return a.users.Provision(ctx, DevUser)
	}

	if key := r.Header.Get(APIKeyHeader); key != "" {
		user, err := a.keys.Resolve(ctx, key)
		if err != nil {
			a.logger.Debug("api key rejected", "error", err)
			return nil, &authError{http.StatusUnauthorized, "Invalid API key"}
		}
		return user, nil
	}

	var token *oidc.IDToken
	var err error
	authHeader := r.Header.Get("Authorization")
	if raw, ok := strings.CutPrefix(authHeader, "Bearer "); ok && raw != PlaceholderToken {
		token, err = a.apiVerifier.Verify(ctx, raw)
	} else {
		cookie, cerr := r.Cookie("id_token")
		if cerr != nil {
			return nil, &authError{http.StatusUnauthorized, "Not authenticated"}
		}
		token, err = a.verifier.Verify(ctx, cookie.Value)
	}
	if err != nil {
		return nil, &authError{http.StatusUnauthorized, "invalid token: " + err.Error()}
	}
	return a.provision(ctx, token)
}

// identityClaims covers the claim names used by the supported identity
// providers.
type identityClaims struct {
	OID        string   `json:"oid"`
	Subject    string   `json:"sub"`
	Emails     []string `json:"emails"`
	Email      string   `json:"email"`
	IDP        string   `json:"idp"`
	FamilyName string   `json:"family_name"`
	GivenName  string   `json:"given_name"`
}

func (c identityClaims) user(issuer string) models.User {
	u := models.User{
		ID:               c.OID,
		Email:            c.Email,
		IdentityProvider: c.IDP,
		FamilyName:       c.FamilyName,
		GivenName:        c.GivenName,
	}
	if u.ID == "" {
		u.ID = c.Subject
	}
	if len(c.Emails) > 0 {
		u.Email = c.Emails[0]
	}
	if u.IdentityProvider == "" {
		u.IdentityProvider = issuer
	}
	return u
}

func (a *Auth) provision(ctx context.Context, token *oidc.IDToken) (*models.User, error) {
	var claims identityClaims
	if err := token.Claims(&claims); err != nil {
		return nil, &authError{http.StatusUnauthorized, "failed to parse token claims"}
	}
	u := claims.user(token.Issuer)
	if u.ID == "" {
		return nil, &authError{http.StatusUnauthorized, "token has no subject"}
	}
	return a.users.Provision(ctx, u)
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type authError struct {
	status int
	detail string
}

func (e *authError) Error() string { return e.detail }

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
