package chat

import (
	"net/http"
	"strconv"

	"RProject/middleware"
	"RProject/middleware/security"
	"RProject/module/chat/service"

	"github.com/gin-gonic/gin"
)

// Handler exposes the chat REST surface. The WS gateway covers the live
// path; these endpoints serve history, room management, and clients that
// cannot hold a socket open.
type Handler struct {
	rooms *service.RoomService
	msgs  *service.MessageService
}

func NewHandler(rooms *service.RoomService, msgs *service.MessageService) *Handler {
	return &Handler{rooms: rooms, msgs: msgs}
}

func (h *Handler) Register(r gin.IRoutes, rt *middleware.Routes) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.GET(r, "/api/chats", h.ListRooms, auth)
	rt.POST(r, "/api/chats/private", h.CreateDirect, auth)
	rt.POST(r, "/api/chats/group", h.CreateGroup, auth)
	rt.GET(r, "/api/chats/:id/messages", h.PageMessages, auth)
	rt.POST(r, "/api/chats/:id/messages", h.SendMessage, auth)
	rt.POST(r, "/api/chats/:id/read", h.MarkRead, auth)
	rt.PATCH(r, "/api/messages/:id", h.EditMessage, auth)
	rt.DELETE(r, "/api/messages/:id", h.DeleteMessage, auth)
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRoomsForUser(c.Request.Context(), security.Username(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": rooms})
}

type createDirectReq struct {
	Username string `json:"username" binding:"required"`
}

func (h *Handler) CreateDirect(c *gin.Context) {
	var req createDirectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	room, err := h.rooms.GetOrCreateDirect(c.Request.Context(), security.Username(c), req.Username)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type createGroupReq struct {
	Name    string   `json:"name"`
	Members []string `json:"members" binding:"required"`
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req createGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	room, err := h.rooms.CreateGroup(c.Request.Context(), security.Username(c), req.Members, req.Name)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) PageMessages(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	msgs, next, err := h.msgs.Page(c.Request.Context(),
		c.Param("id"), security.Username(c), c.Query("cursor"), pageSize)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "nextCursor": next})
}

type sendMessageReq struct {
	Body   string `json:"body"`
	ReelID string `json:"reelId"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	msg, err := h.msgs.Append(c.Request.Context(),
		c.Param("id"), security.Username(c), req.Body, req.ReelID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type markReadReq struct {
	Ts int64 `json:"ts"` // 0 means "now"
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if err := h.rooms.MarkRead(c.Request.Context(), c.Param("id"), security.Username(c), req.Ts); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type editMessageReq struct {
	Body string `json:"body" binding:"required"`
}

func (h *Handler) EditMessage(c *gin.Context) {
	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	msg, err := h.msgs.Edit(c.Request.Context(), c.Param("id"), req.Body, security.Username(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	msg, err := h.msgs.SoftDelete(c.Request.Context(), c.Param("id"), security.Username(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
