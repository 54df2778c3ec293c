package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"RProject/logger"
	chatservice "RProject/module/chat/service"
	userservice "RProject/module/user/service"
	"RProject/service/metrics"
	"RProject/service/storage"
	"RProject/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	sendQueueSize  = 256
	writeWait      = 5 * time.Second
	opTimeout      = 10 * time.Second
	presenceTTL    = 90 * time.Second
	presenceRenews = 30 * time.Second
)

// TokenVerifier turns a bearer credential into a verified identity email.
type TokenVerifier interface {
	Verify(token string) (email string, err error)
}

// Server owns the WebSocket endpoint: it upgrades, authenticates,
// registers the session and drives the per-connection read/write loops.
// Business frames go straight to the chat services with the session's
// user passed explicitly.
type Server struct {
	mgr      *ConnManager
	verifier TokenVerifier
	users    userservice.Directory
	msgs     *chatservice.MessageService
	rooms    *chatservice.RoomService
	presence *storage.Presence
}

func NewServer(mgr *ConnManager, verifier TokenVerifier, users userservice.Directory,
	msgs *chatservice.MessageService, rooms *chatservice.RoomService, presence *storage.Presence) *Server {
	return &Server{
		mgr:      mgr,
		verifier: verifier,
		users:    users,
		msgs:     msgs,
		rooms:    rooms,
		presence: presence,
	}
}

func (s *Server) Mgr() *ConnManager { return s.mgr }

// HandleWS upgrades /ws?token=<jwt>. The token is verified before the
// session joins the registry; an unauthenticated socket never sees a
// single event frame.
func (s *Server) HandleWS(c *gin.Context) {
	email, err := s.verifier.Verify(c.Query("token"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
	user, err := s.users.GetByEmail(ctx, email)
	cancel()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error user=%s: %v", user.Username, err)
		return
	}

	client := NewClient(uuid.NewString(), user.Username, ws, sendQueueSize)
	if !s.mgr.Add(client) {
		logger.Warnf("[ws] session limit reached user=%s", user.Username)
		closeQuiet(ws)
		return
	}
	metrics.WSSessions.Inc()
	s.presenceOnline(client)

	done := make(chan struct{})
	go s.writePump(client, done)
	s.readLoop(client)

	// ---- teardown: registry first, then the cross-node view ----
	s.mgr.Remove(client.ConnID)
	metrics.WSSessions.Dec()
	s.presenceOffline(client)
	close(done)
}

func (s *Server) readLoop(client *Client) {
	ws := client.WS
	renew := time.Now().Add(presenceRenews)
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed user=%s conn=%s", client.Username, client.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout user=%s conn=%s", client.Username, client.ConnID)
			} else {
				logger.Infof("[ws] read err user=%s conn=%s: %v", client.Username, client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame user=%s sample=%q: %v", client.Username, sample, perr)
			continue
		}

		s.mgr.Heartbeat(client.ConnID)
		if now := time.Now(); now.After(renew) {
			s.presenceOnline(client)
			renew = now.Add(presenceRenews)
		}

		s.handleFrame(client, frame)
	}
}

func (s *Server) handleFrame(client *Client, frame *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	switch frame.Type {
	case FramePing:
		s.enqueue(client, BuildServerFrame(FramePong, nil))
		return

	case FrameSend:
		var p *SendPayload
		if p, err = DecodePayload[SendPayload](frame); err == nil {
			_, err = s.msgs.Append(ctx, p.RoomID, client.Username, p.Body, p.ReelID)
		}

	case FrameEdit:
		var p *EditPayload
		if p, err = DecodePayload[EditPayload](frame); err == nil {
			_, err = s.msgs.Edit(ctx, p.MessageID, p.Body, client.Username)
		}

	case FrameDelete:
		var p *DeletePayload
		if p, err = DecodePayload[DeletePayload](frame); err == nil {
			_, err = s.msgs.SoftDelete(ctx, p.MessageID, client.Username)
		}

	case FrameMarkRead:
		var p *MarkReadPayload
		if p, err = DecodePayload[MarkReadPayload](frame); err == nil {
			err = s.rooms.MarkRead(ctx, p.RoomID, client.Username, p.Ts)
		}

	default:
		logger.Infof("[ws] no handler for frame type=%s user=%s", frame.Type, client.Username)
		return
	}

	if err != nil {
		var codeErr errs.CodeError
		if errors.As(err, &codeErr) {
			s.enqueue(client, BuildErrorFrame(codeErr.Code, codeErr.Msg))
		} else {
			logger.Errorf("[ws] frame type=%s user=%s: %v", frame.Type, client.Username, err)
			s.enqueue(client, BuildErrorFrame(errs.ServerInternalError, "internal error"))
		}
	}
}

// writePump is the only goroutine writing to the socket.
func (s *Server) writePump(client *Client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload, ok := <-client.Send:
			if !ok {
				return
			}
			_ = client.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err user=%s conn=%s: %v", client.Username, client.ConnID, err)
				return
			}
		}
	}
}

func (s *Server) enqueue(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		logger.Warnf("[ws] send queue full user=%s conn=%s", client.Username, client.ConnID)
	}
}

func (s *Server) presenceOnline(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.presence.SessionOnline(ctx, client.Username, client.ConnID, presenceTTL); err != nil {
		logger.Warnf("[ws] presence online user=%s: %v", client.Username, err)
	}
}

func (s *Server) presenceOffline(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.presence.SessionOffline(ctx, client.Username, client.ConnID); err != nil {
		logger.Warnf("[ws] presence offline user=%s: %v", client.Username, err)
	}
}
