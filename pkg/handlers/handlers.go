package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/theaterverein/crewplan-api-go/pkg/auth"
	"github.com/theaterverein/crewplan-api-go/pkg/availability"
	"github.com/theaterverein/crewplan-api-go/pkg/booking"
	"github.com/theaterverein/crewplan-api-go/pkg/database"
	"github.com/theaterverein/crewplan-api-go/pkg/generator"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
	"github.com/theaterverein/crewplan-api-go/pkg/ranking"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB          *gorm.DB
	Store       *database.Store
	Validator   *availability.Validator
	Ranker      *ranking.Ranker
	Coordinator *booking.Coordinator
	Generator   *generator.Generator
}

// AuthMiddleware verifies the JWT token and resolves the acting member
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		actor, err := h.Store.PersonByID(c.Request.Context(), claims.PersonID)
		if err != nil || actor == nil || !actor.Active {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown member"})
			c.Abort()
			return
		}

		c.Set("actor", actor)
		c.Next()
	}
}

func (h *Handler) actor(c *gin.Context) *models.Person {
	raw, exists := c.Get("actor")
	if !exists {
		return nil
	}
	actor, _ := raw.(*models.Person)
	return actor
}

// Login handles member authentication
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := auth.Login(h.DB, input.Email, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// ValidateRegistration reports whether the acting member may register for a
// shift; an empty error list means the registration may proceed.
func (h *Handler) ValidateRegistration(c *gin.Context) {
	shiftID := c.Param("id")
	errs, err := h.Validator.ValidateRegistration(c.Request.Context(), h.actor(c), shiftID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"eligible": len(errs) == 0,
		"errors":   errs,
	})
}

// Book books the acting member into a shift, falling back to the waitlist.
func (h *Handler) Book(c *gin.Context) {
	actor := h.actor(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	shiftID := c.Param("id")

	result := h.Coordinator.Book(c.Request.Context(), shiftID, actor.ID)
	if !result.Success {
		c.JSON(http.StatusConflict, result)
		return
	}
	if result.Status == models.StatusWaitlisted {
		if pos, err := booking.WaitlistPosition(c.Request.Context(), h.Store, shiftID, actor.ID); err == nil {
			c.JSON(http.StatusCreated, gin.H{
				"success":           true,
				"status":            result.Status,
				"assignment_id":     result.AssignmentID,
				"waitlist_position": pos,
			})
			return
		}
	}
	c.JSON(http.StatusCreated, result)
}

// Suggestions returns ranked candidates for a shift.
func (h *Handler) Suggestions(c *gin.Context) {
	shiftID := c.Param("id")
	scores, err := h.Ranker.Suggest(c.Request.Context(), shiftID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not rank candidates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shift_id":   shiftID,
		"candidates": scores,
	})
}

// Waitlist returns a shift's FIFO waitlist.
func (h *Handler) Waitlist(c *gin.Context) {
	shiftID := c.Param("id")
	entries, err := booking.Waitlist(c.Request.Context(), h.Store, shiftID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load waitlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shift_id": shiftID,
		"waitlist": entries,
	})
}

// PreviewProposals generates assignment proposals from a production's cast.
func (h *Handler) PreviewProposals(c *gin.Context) {
	productionID := c.Param("id")
	result, err := h.Generator.Preview(c.Request.Context(), productionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ConfirmProposals bulk-writes the accepted proposals.
func (h *Handler) ConfirmProposals(c *gin.Context) {
	productionID := c.Param("id")
	var input struct {
		Proposals []models.Proposal       `json:"proposals" binding:"required"`
		Status    models.AssignmentStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.Generator.Confirm(c.Request.Context(), productionID, input.Proposals, input.Status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "confirmation failed"})
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
