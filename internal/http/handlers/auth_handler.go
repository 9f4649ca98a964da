package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"urlguard/internal/auth"
	"urlguard/internal/logging"
	"urlguard/internal/models"
)

// LoginHandler authenticates the user and returns JWT
func LoginHandler(db *gorm.DB, jwtSecret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		email := strings.TrimSpace(strings.ToLower(input.Email))
		if err := db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if user.Status != models.UserActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "account suspended"})
			return
		}

		tokenString, err := auth.IssueToken(jwtSecret, user, ttl)
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("issue token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}

		c.SetCookie(auth.TokenCookie, tokenString, int(ttl.Seconds()), "/", "", false, true)

		c.JSON(http.StatusOK, gin.H{
			"token": tokenString,
			"user": gin.H{
				"id":           user.ID,
				"email":        user.Email,
				"name":         user.Name,
				"is_superuser": user.IsSuperuser,
			},
		})
	}
}

// LogoutHandler clears the token cookie.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(auth.TokenCookie, "", -1, "/", "", false, true)
		c.Status(http.StatusNoContent)
	}
}
