package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateCookie  = "oauth_state"
)

// credentialVerifier checks a Google Identity Services credential.
// *idtoken.Validator satisfies it.
type credentialVerifier interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type GoogleAuthRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// NewGoogleOAuthConfig builds the code flow configuration.
func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// WithGoogle enables the Google sign-in routes.
func (h *AuthHandler) WithGoogle(cfg *oauth2.Config, verifier credentialVerifier) *AuthHandler {
	h.googleOAuth = cfg
	h.googleVerifier = verifier
	h.googleUserInfo = func(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
		return fetchGoogleUserInfo(ctx, cfg, token)
	}
	return h
}

func (h *AuthHandler) googleConfigured(c *gin.Context) bool {
	if h.googleOAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Google sign-in is not configured"})
		return false
	}
	return true
}

// GoogleAuthURL returns the consent page URL and remembers the state in a
// short-lived cookie.
func (h *AuthHandler) GoogleAuthURL(c *gin.Context) {
	if !h.googleConfigured(c) {
		return
	}

	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"url": h.googleOAuth.AuthCodeURL(state, oauth2.AccessTypeOnline)})
}

func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if !h.googleConfigured(c) {
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Authorization code missing"})
		return
	}
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid OAuth state"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	token, err := h.googleOAuth.Exchange(ctx, code)
	if err != nil {
		log.Printf("❌ Google OAuth token exchange failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "Failed to exchange authorization code"})
		return
	}

	info, err := h.googleUserInfo(ctx, token)
	if err != nil {
		log.Printf("❌ Failed to get user info from Google: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "Failed to get user information"})
		return
	}

	h.signInGoogleUser(ctx, c, *info)
}

// GoogleSignin accepts a credential from Google Identity Services.
func (h *AuthHandler) GoogleSignin(c *gin.Context) {
	if !h.googleConfigured(c) {
		return
	}

	var req GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	payload, err := h.googleVerifier.Validate(ctx, req.Credential, h.googleOAuth.ClientID)
	if err != nil {
		log.Printf("❌ Invalid Google credential: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid Google credential"})
		return
	}

	info := GoogleUserInfo{
		ID:      payload.Subject,
		Email:   stringClaim(payload.Claims, "email"),
		Name:    stringClaim(payload.Claims, "name"),
		Picture: stringClaim(payload.Claims, "picture"),
	}
	h.signInGoogleUser(ctx, c, info)
}

func (h *AuthHandler) signInGoogleUser(ctx context.Context, c *gin.Context, info GoogleUserInfo) {
	if info.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email not provided by Google"})
		return
	}

	user, err := h.users.UpsertGoogle(ctx, info.ID, info.Email, info.Name, info.Picture)
	if err != nil {
		logError(c, "GoogleAuth", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
		return
	}

	log.Printf("✅ Google authentication successful for: %s", info.Email)
	h.respondWithToken(c, http.StatusOK, user)
}

func fetchGoogleUserInfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*GoogleUserInfo, error) {
	resp, err := cfg.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if val, ok := claims[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
