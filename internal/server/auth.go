package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fyrsmithlabs/newsdeck/internal/config"
)

const (
	stateCookie = "newsdeck_oauth_state"
	userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// authenticator implements the Google OAuth login surface. User identity is
// read by the dashboard, never required: every route except the callback
// works without a session.
type authenticator struct {
	oauth      *oauth2.Config
	users      UserStore
	collection string
	cookieName string
	logger     *zap.Logger
}

func newAuthenticator(cfg *config.AuthConfig, users UserStore, collection string, logger *zap.Logger) *authenticator {
	return &authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret.Value(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		users:      users,
		collection: collection,
		cookieName: cfg.CookieName,
		logger:     logger,
	}
}

// handleLogin redirects to the provider with a fresh random state bound to a
// short-lived cookie.
func (a *authenticator) handleLogin(c echo.Context) error {
	state, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(10 * time.Minute / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusFound, a.oauth.AuthCodeURL(state))
}

// handleCallback exchanges the authorization code, reads the user profile,
// upserts the user record, and redirects home with a session cookie.
func (a *authenticator) handleCallback(c echo.Context) error {
	cookie, err := c.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		return echo.NewHTTPError(http.StatusBadRequest, "state mismatch")
	}

	ctx := c.Request().Context()
	token, err := a.oauth.Exchange(ctx, c.QueryParam("code"))
	if err != nil {
		a.logger.Warn("oauth exchange failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "login failed")
	}

	resp, err := a.oauth.Client(ctx, token).Get(userinfoURL)
	if err != nil {
		a.logger.Warn("userinfo fetch failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "login failed")
	}
	defer resp.Body.Close()

	var profile struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil || profile.Email == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "login failed")
	}

	if a.users != nil {
		if _, err := a.users.UpsertUser(ctx, a.collection, profile.Email, profile.Name); err != nil {
			// Login still succeeds; the record is a convenience.
			a.logger.Warn("user upsert failed",
				zap.String("email", profile.Email),
				zap.Error(err))
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     a.cookieName,
		Value:    profile.Email,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.SetCookie(&http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	return c.Redirect(http.StatusFound, "/")
}

// handleLogout clears the session cookie.
func (a *authenticator) handleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.Redirect(http.StatusFound, "/")
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
