package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shareit-platform/service-booking/internal/application"
	"github.com/shareit-platform/service-booking/internal/platform/middleware"
	"github.com/shareit-platform/service-booking/internal/platform/response"
)

// BookingUseCases is the slice of the booking service the HTTP layer calls.
type BookingUseCases interface {
	AddBooking(ctx context.Context, requesterID int64, req application.CreateBookingRequest) (*application.BookingDTO, error)
	ChangeStatus(ctx context.Context, actorID, bookingID int64, approve bool) (*application.BookingDTO, error)
	GetBooking(ctx context.Context, actorID, bookingID int64) (*application.BookingDTO, error)
	ListForBooker(ctx context.Context, actorID int64, state string, from, size int) ([]application.BookingDTO, error)
	ListForOwner(ctx context.Context, actorID int64, state string, from, size int) ([]application.BookingDTO, error)
	ItemBookingSummary(ctx context.Context, actorID, itemID int64) (*application.ItemBookingSummaryDTO, error)
	HasCompletedBooking(ctx context.Context, userID, itemID int64) (*application.CompletedBookingDTO, error)
}

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service BookingUseCases
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service BookingUseCases) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/v1")
	api.Use(middleware.SharerUserMiddleware())

	bookings := api.Group("/bookings")
	{
		bookings.POST("", h.AddBooking)
		bookings.GET("", h.ListForBooker)
		bookings.GET("/owner", h.ListForOwner)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", h.ChangeStatus)
	}

	items := api.Group("/items/:id/bookings")
	{
		items.GET("/summary", h.ItemBookingSummary)
		items.GET("/completed", h.HasCompletedBooking)
	}
}

// AddBooking handles POST /api/v1/bookings.
func (h *BookingHandler) AddBooking(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AddBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ChangeStatus handles PATCH /api/v1/bookings/:id?approved=true|false.
func (h *BookingHandler) ChangeStatus(c *gin.Context) {
	bookingID, ok := pathID(c, "invalid booking ID")
	if !ok {
		return
	}
	approved, err := strconv.ParseBool(c.Query("approved"))
	if err != nil {
		response.BadRequest(c, "query parameter 'approved' must be true or false")
		return
	}

	userID, _ := middleware.GetUserID(c)
	result, err := h.service.ChangeStatus(c.Request.Context(), userID, bookingID, approved)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "invalid booking ID")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)
	result, err := h.service.GetBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListForBooker handles GET /api/v1/bookings.
func (h *BookingHandler) ListForBooker(c *gin.Context) {
	h.list(c, h.service.ListForBooker)
}

// ListForOwner handles GET /api/v1/bookings/owner.
func (h *BookingHandler) ListForOwner(c *gin.Context) {
	h.list(c, h.service.ListForOwner)
}

type listFunc func(ctx context.Context, actorID int64, state string, from, size int) ([]application.BookingDTO, error)

func (h *BookingHandler) list(c *gin.Context, fn listFunc) {
	state, from, size, ok := parseListQuery(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)
	result, err := fn(c.Request.Context(), userID, state, from, size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ItemBookingSummary handles GET /api/v1/items/:id/bookings/summary.
func (h *BookingHandler) ItemBookingSummary(c *gin.Context) {
	itemID, ok := pathID(c, "invalid item ID")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)
	result, err := h.service.ItemBookingSummary(c.Request.Context(), userID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// HasCompletedBooking handles GET /api/v1/items/:id/bookings/completed.
func (h *BookingHandler) HasCompletedBooking(c *gin.Context) {
	itemID, ok := pathID(c, "invalid item ID")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)
	result, err := h.service.HasCompletedBooking(c.Request.Context(), userID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func pathID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, message)
		return 0, false
	}
	return id, true
}

// parseListQuery extracts state, from and size with the defaults ALL, 0 and 10.
// Range checks are left to the service.
func parseListQuery(c *gin.Context) (string, int, int, bool) {
	state := c.DefaultQuery("state", "ALL")

	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil {
		response.BadRequest(c, "query parameter 'from' must be an integer")
		return "", 0, 0, false
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil {
		response.BadRequest(c, "query parameter 'size' must be an integer")
		return "", 0, 0, false
	}

	return state, from, size, true
}
