package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/config"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Handler struct {
	db           *gorm.DB
	tokens       *Tokens
	googleConfig *oauth2.Config
	frontendURL  string
	activity     *activitylog.Logger
}

func NewHandler(db *gorm.DB, cfg *config.Config, activity *activitylog.Logger) *Handler {
	googleConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}

	return &Handler{
		db:           db,
		tokens:       NewTokens(cfg.JWTSecret),
		googleConfig: googleConfig,
		frontendURL:  cfg.FrontendURL,
		activity:     activity,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	TokenPair
	User database.User `json:"user"`
}

type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *Handler) respondWithTokens(c *gin.Context, status int, user database.User) {
	pair, err := h.tokens.Issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue tokens"})
		return
	}
	c.JSON(status, AuthResponse{TokenPair: pair, User: user})
}

// Login authenticates a user with email/password
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Store").
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}

	access.Set(c, access.Principal{UserID: user.ID, Role: user.Role, StoreID: user.StoreID})
	h.activity.Record(c, "login", "user", &user.ID, user.StoreID, nil)

	h.respondWithTokens(c, http.StatusOK, user)
}

// RefreshToken generates new tokens from a refresh token
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Store").First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}

	h.respondWithTokens(c, http.StatusOK, user)
}

// GetMe returns the current user's info
func (h *Handler) GetMe(c *gin.Context) {
	p := access.FromContext(c)

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Store").First(&user, "id = ?", p.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

// GoogleLogin redirects to Google OAuth consent screen
func (h *Handler) GoogleLogin(c *gin.Context) {
	if h.googleConfig.ClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	// state doubles as the CSRF token
	state := uuid.New().String()
	c.SetCookie("oauth_state", state, 300, "/", "", false, true)

	c.Redirect(http.StatusTemporaryRedirect, h.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback signs in a provisioned user after Google consent.
// Accounts are never created here; an admin must add the user first.
func (h *Handler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	storedState, err := c.Cookie("oauth_state")
	if err != nil || state != storedState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state parameter"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No authorization code"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := h.googleConfig.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange token"})
		return
	}

	userInfo, err := h.getGoogleUserInfo(ctx, token)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get user info"})
		return
	}
	if !userInfo.VerifiedEmail {
		c.JSON(http.StatusForbidden, gin.H{"error": "Google account email is not verified"})
		return
	}

	user, err := h.findGoogleUser(c.Request.Context(), userInfo)
	if err != nil {
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/login?error=not_provisioned")
		return
	}

	pair, err := h.tokens.Issue(*user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue tokens"})
		return
	}

	access.Set(c, access.Principal{UserID: user.ID, Role: user.Role, StoreID: user.StoreID})
	h.activity.Record(c, "login", "user", &user.ID, user.StoreID, gin.H{"provider": "google"})

	// tokens travel in the query because the frontend lives on another origin
	redirectURL := fmt.Sprintf("%s/auth/callback?access_token=%s&refresh_token=%s",
		h.frontendURL, url.QueryEscape(pair.AccessToken), url.QueryEscape(pair.RefreshToken))
	c.Redirect(http.StatusTemporaryRedirect, redirectURL)
}

// findGoogleUser matches by Google id first, then links an existing account by email
func (h *Handler) findGoogleUser(ctx context.Context, info *GoogleUserInfo) (*database.User, error) {
	db := h.db.WithContext(ctx)

	var user database.User
	err := db.Where("google_id = ?", info.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Where("email = ?", strings.ToLower(info.Email)).First(&user).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&user).Update("google_id", info.ID).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, errors.New("account is disabled")
	}
	return &user, nil
}

func (h *Handler) getGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	resp, err := h.googleConfig.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var userInfo GoogleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, err
	}

	return &userInfo, nil
}
