package lifecycle

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bidmaster/auction-api/internal/gateway"
	"github.com/bidmaster/auction-api/internal/types"
	"github.com/bidmaster/auction-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the admin lifecycle endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for lifecycle endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateItemHandler handles POST requests to list a new item.
func (h *GinHandlers) CreateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		item, err := h.service.CreateItem(actorFrom(c), input)
		if err != nil {
			respondLifecycleError(c, err)
			return
		}
		response.Success(c, item)
	}
}

// UpdateItemHandler handles PUT requests to edit an item.
func (h *GinHandlers) UpdateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		item, err := h.service.UpdateItem(actorFrom(c), c.Param("item_id"), input)
		if err != nil {
			respondLifecycleError(c, err)
			return
		}
		response.Success(c, item)
	}
}

// DeleteItemHandler handles DELETE requests for an item.
func (h *GinHandlers) DeleteItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeleteItem(actorFrom(c), c.Param("item_id")); err != nil {
			respondLifecycleError(c, err)
			return
		}
		response.Success(c, gin.H{"deleted": c.Param("item_id")})
	}
}

// StartBiddingHandler handles POST requests to open bidding on an item.
func (h *GinHandlers) StartBiddingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := h.service.StartBidding(actorFrom(c), c.Param("item_id"))
		if err != nil {
			respondLifecycleError(c, err)
			return
		}
		response.Success(c, item)
	}
}

// FinalizeHandler handles POST requests to close all expired items now.
func (h *GinHandlers) FinalizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		closed, err := h.service.FinalizeExpired(actorFrom(c))
		if err != nil {
			respondLifecycleError(c, err)
			return
		}
		response.Success(c, gin.H{"closed": closed})
	}
}

// GetLogsHandler handles GET requests for the audit trail.
func (h *GinHandlers) GetLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := h.service.GetLogs()
		response.Handle(c, logs, err)
	}
}

// GetWinnersHandler handles GET requests for awarded winners.
func (h *GinHandlers) GetWinnersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		winners, err := h.service.GetWinners()
		response.Handle(c, winners, err)
	}
}

// GetUsersHandler handles GET requests for the user roster.
func (h *GinHandlers) GetUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.service.GetUsers()
		response.Handle(c, users, err)
	}
}

func actorFrom(c *gin.Context) types.User {
	return types.User{
		UserID: c.GetString("userID"),
		Name:   c.GetString("userName"),
		Role:   types.Role(c.GetString("userRole")),
	}
}

func respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrItemNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, gateway.ErrConflict):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, "operation could not be completed")
	}
}
