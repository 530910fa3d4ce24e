package app

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/NemoPS/youtube-comments-analyzer/auth"

	"github.com/gin-gonic/gin"
)

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Me returns the authenticated user's profile and credit balance.
func Me(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	if db == nil {
		c.JSON(http.StatusOK, gin.H{
			"id":      claims.Subject,
			"email":   claims.Email(),
			"credits": 0,
		})
		return
	}

	profile, err := getProfileByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = UpsertProfileFromClaims(c.Request.Context(), claims)
			profile, err = getProfileByID(c.Request.Context(), claims.Subject)
		}
		if err != nil {
			log.Printf("load profile failed user=%s err=%v", claims.Subject, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         profile.ID,
		"username":   profile.Username,
		"email":      profile.Email,
		"avatar_url": profile.AvatarURL,
		"credits":    profile.Credits,
	})
}
