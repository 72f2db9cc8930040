package handlers

import (
	"net/http"
	"time"

	"questrent/services/booking"
	"questrent/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the admin read/update surface over the booking
// engine.
type BookingHandler struct {
	Store     *booking.ReservationStore
	Lifecycle *booking.LifecycleService
	Logger    *zap.Logger
}

func NewBookingHandler(store *booking.ReservationStore, lifecycle *booking.LifecycleService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Store: store, Lifecycle: lifecycle, Logger: logger}
}

// statusFromError maps booking-engine error codes onto HTTP statuses.
func statusFromError(err error) int {
	switch {
	case booking.HasCode(err, booking.CodeNotFound):
		return http.StatusNotFound
	case booking.HasCode(err, booking.CodeCapacityExceeded):
		return http.StatusConflict
	case booking.HasCode(err, booking.CodeInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetAllBookings handles GET /api/bookings.
func (h *BookingHandler) GetAllBookings(c *gin.Context) {
	bookings, err := h.Lifecycle.AllReservations(c.Request.Context(), 100)
	if err != nil {
		h.Logger.Error("failed to list bookings", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "failed to list bookings", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetActiveBookings handles GET /api/bookings/active.
func (h *BookingHandler) GetActiveBookings(c *gin.Context) {
	bookings, err := h.Lifecycle.ActiveReservations(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.Logger.Error("failed to list active bookings", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "failed to list active bookings", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetMonthlyStats handles GET /api/bookings/stats?month=2026-08.
// Without a month parameter it reports the current month.
func (h *BookingHandler) GetMonthlyStats(c *gin.Context) {
	month := time.Now().UTC()
	if raw := c.Query("month"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01", raw, time.UTC)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid month", "expected format 2006-01")
			return
		}
		month = parsed
	}

	stats, err := h.Lifecycle.MonthlyStats(c.Request.Context(), month)
	if err != nil {
		h.Logger.Error("failed to compute monthly stats", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "failed to compute stats", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":   month.Format("2006-01"),
		"count":   stats.Count,
		"revenue": stats.Revenue,
	})
}

// UpdateBookingStatus handles PUT /api/bookings/:id/status.
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	id := c.Param("id")
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	if err := h.Store.UpdateStatus(c.Request.Context(), id, input.Status); err != nil {
		utils.JSONError(c, statusFromError(err), "failed to update booking status", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteBooking handles DELETE /api/bookings/:id.
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	id := c.Param("id")
	if err := h.Store.Delete(c.Request.Context(), id); err != nil {
		utils.JSONError(c, statusFromError(err), "failed to delete booking", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
