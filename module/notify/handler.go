package notify

import (
	"net/http"

	"RProject/middleware"
	"RProject/middleware/security"
	"RProject/module/notify/service"

	"github.com/gin-gonic/gin"
)

// Handler exposes the notification REST surface.
type Handler struct {
	ledger *service.Ledger
}

func NewHandler(ledger *service.Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) Register(r gin.IRoutes, rt *middleware.Routes) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.GET(r, "/api/notifications", h.List, auth)
	rt.GET(r, "/api/notifications/unread-count", h.UnreadCount, auth)
	rt.POST(r, "/api/notifications/:id/read", h.MarkRead, auth)
	rt.POST(r, "/api/notifications/read-all", h.MarkAllRead, auth)
	rt.POST(r, "/api/device-tokens", h.RegisterDevice, auth)
}

func (h *Handler) List(c *gin.Context) {
	rows, err := h.ledger.ListForUser(c.Request.Context(), security.Username(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": rows})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.ledger.UnreadCount(c.Request.Context(), security.Username(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.ledger.MarkRead(c.Request.Context(), c.Param("id"), security.Username(c)); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	if err := h.ledger.MarkAllRead(c.Request.Context(), security.Username(c)); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type registerDeviceReq struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if err := h.ledger.RegisterDevice(c.Request.Context(), security.Username(c), req.Token); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
