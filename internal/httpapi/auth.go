package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/velahub/signalcore/internal/middleware"
)

// loginRequest/loginResponse mirror core_backend/login_routes.py's demo
// login endpoint: any non-empty username/password pair succeeds and mints a
// bearer token. This is a development convenience, not a credential store.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
}

// login only produces a token the rest of the API will accept when the
// deployment is running the HS256 verifier; it has no way to mint anything
// a JWKS-backed verifier would trust.
func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	userID := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": req.Username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(a.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.secretKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		UserID:      userID,
		Username:    req.Username,
	})
}

func (a *API) me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": claims.Subject,
		"name":    claims.Name,
		"email":   claims.Email,
		"scope":   claims.Scope,
	})
}
