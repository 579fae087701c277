package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"memories/auth"
	"memories/database"
	"memories/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) (*models.User, error)
	UpsertGoogle(ctx context.Context, googleID, email, name, avatar string) (*models.User, error)
}

// AuthHandler serves the /user routes. Google sign-in is enabled by
// WithGoogle.
type AuthHandler struct {
	users  userStore
	tokens *auth.TokenManager

	googleOAuth    *oauth2.Config
	googleVerifier credentialVerifier
	googleUserInfo func(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error)
}

func NewAuthHandler(users userStore, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type SignupRequest struct {
	FirstName       string `json:"firstName" binding:"required"`
	LastName        string `json:"lastName"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	_, err := h.users.FindByEmail(ctx, req.Email)
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists."})
		return
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		logError(c, "Signup", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
		return
	}

	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Passwords don't match."})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logError(c, "Signup", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
		return
	}
	hashed := string(hashedPassword)

	user, err := h.users.Insert(ctx, &models.User{
		Name:         strings.TrimSpace(req.FirstName + " " + req.LastName),
		Email:        req.Email,
		PasswordHash: &hashed,
		AuthProvider: "email",
	})
	if errors.Is(err, database.ErrEmailTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists."})
		return
	}
	if err != nil {
		logError(c, "Signup", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User doesn't exist."})
		return
	}
	if err != nil {
		logError(c, "Signin", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
		return
	}

	// Google-only accounts have no password.
	if user.PasswordHash == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials."})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials."})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.tokens.Issue(user.ID.Hex(), user.Email, user.Name)
	if err != nil {
		logError(c, "Auth", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
		return
	}

	c.JSON(status, gin.H{"result": user, "token": token})
}
