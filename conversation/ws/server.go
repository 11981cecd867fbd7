package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	chatbotservice "github.com/AntoinePinto/docu-talk/chatbot/service"
	"github.com/AntoinePinto/docu-talk/conversation/service"
	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/stream"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Frame is one event on the socket; the same sequence the SSE stream carries,
// as tagged JSON.
type Frame struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// askFrame is the single request a client sends after connecting.
type askFrame struct {
	ChatbotID      string `json:"chatbot_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Model          string `json:"model"`
}

// Server streams ask sessions over a websocket as an alternative to SSE.
type Server struct {
	chats      *service.ChatService
	chatbots   *chatbotservice.ChatbotService
	jwtService *jwt.Service
	logger     *logger.Logger
}

func NewServer(chats *service.ChatService, chatbots *chatbotservice.ChatbotService, jwtService *jwt.Service, logger *logger.Logger) *Server {
	return &Server{chats: chats, chatbots: chatbots, jwtService: jwtService, logger: logger}
}

// Handle upgrades the connection, reads one ask frame and streams the answer
// back as fragment, credits and done frames.
func (s *Server) Handle(c *gin.Context) {
	token := c.Query("token")
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	userID := claims.Email

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	var req askFrame
	if err := conn.ReadJSON(&req); err != nil {
		s.writeFrame(conn, Frame{Type: "error", Content: "invalid request frame"})
		return
	}

	// net/http never cancels the request context of a hijacked connection,
	// so the session must be cancelled explicitly when the socket breaks.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := s.chatbots.CheckAccess(ctx, req.ChatbotID, userID, false); err != nil {
		s.writeFrame(conn, Frame{Type: "error", Content: err.Error()})
		return
	}

	events := make(chan stream.Event, stream.DefaultBuffer)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- s.chats.StreamAsk(ctx, service.AskRequest{
			ChatbotID:      req.ChatbotID,
			ConversationID: req.ConversationID,
			Message:        req.Message,
			Model:          req.Model,
			UserID:         userID,
		}, events)
	}()

	writeErr := pumpFrames(cancel, events, func(frame Frame) error {
		return s.writeFrame(conn, frame)
	})
	if writeErr != nil {
		s.logger.Warn("WebSocket write failed", "error", writeErr.Error())
	}
	err = <-done
	if writeErr != nil {
		return
	}
	if err != nil {
		s.writeFrame(conn, Frame{Type: "error", Content: err.Error()})
		return
	}
	s.writeFrame(conn, Frame{Type: "done"})
}

// pumpFrames writes each event as a frame. A failed write cancels the
// session and keeps draining events until the producer observes the
// cancellation and closes the channel; stopping early would leave the
// producer blocked on a full buffer forever.
func pumpFrames(cancel context.CancelFunc, events <-chan stream.Event, write func(Frame) error) error {
	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue
		}
		if err := write(frameFor(ev)); err != nil {
			writeErr = err
			cancel()
		}
	}
	return writeErr
}

func frameFor(ev stream.Event) Frame {
	switch e := ev.(type) {
	case stream.Fragment:
		return Frame{Type: "fragment", Content: e.Text}
	case stream.CreditNotice:
		return Frame{Type: "credits", Content: map[string]float64{"consumed_credits": e.ConsumedCredits}}
	case stream.StageArtifact:
		return Frame{Type: "artifact", Content: e.Fields}
	default:
		return Frame{Type: "unknown"}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// RegisterRoutes mounts the websocket endpoint.
func RegisterRoutes(r *gin.Engine, server *Server) {
	r.GET("/ws/ask", server.Handle)
}
