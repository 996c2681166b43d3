package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/middleware"
	"github.com/stemsi/exstem-ems/internal/service"
	ws "github.com/stemsi/exstem-ems/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a running attempt over a WebSocket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempt/stream?token=
// Pushes a tick every countdown second and the graded result on submission.
// Accepts answer, goto, submit and ping actions.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	p := middleware.GetPrincipal(c)

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("student", p.Username).Logger()

	// Subscribe before reading the state so no event falls in between.
	events, unsubscribe := h.sessionService.Subscribe(p.Username)
	defer unsubscribe()

	view, err := h.sessionService.Get(p)
	if err != nil {
		conn.WriteError("no active attempt")
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Attempt: view})
	wsLog.Info().Str("exam_id", view.ExamID).Msg("Student connected")

	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(done)
		h.forward(conn, events, stop)
	}()

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		select {
		case <-done:
			// The attempt ended; nothing more to accept.
			return
		default:
		}
		h.dispatch(c, conn, wsLog, p, &msg)
	}
}

// forward relays attempt events until the attempt ends or stop closes.
func (h *WSHandler) forward(conn *ws.Conn, events <-chan service.Event, stop <-chan struct{}) {
	for {
		var ev service.Event
		select {
		case <-stop:
			return
		case ev = <-events:
		}
		switch ev.Type {
		case service.EventTick:
			conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: ev.Remaining})
		case service.EventGraded:
			conn.WriteTyped(ws.GradedResponse{
				Event:  ws.EventGraded,
				Status: "completed",
				Score:  ev.Result.Score,
				Result: ev.Result,
			})
			conn.Close()
			return
		case service.EventEnded:
			conn.WriteTyped(ws.EndedResponse{Event: ws.EventEnded})
			conn.Close()
			return
		}
	}
}

func (h *WSHandler) dispatch(c *gin.Context, conn *ws.Conn, wsLog zerolog.Logger, p *service.Principal, msg *ws.RequestPayload) {
	var (
		view *service.AttemptView
		err  error
	)
	switch msg.Action {
	case ws.ActionPing:
		conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionAnswer:
		if msg.Option == nil {
			conn.WriteError("option is required")
			return
		}
		view, err = h.sessionService.Answer(p, msg.Position, *msg.Option)
	case ws.ActionGoTo:
		if msg.Position == nil {
			conn.WriteError("position is required")
			return
		}
		view, err = h.sessionService.GoTo(p, *msg.Position)
	case ws.ActionSubmit:
		// The graded event is delivered through the subscription.
		if _, err := h.sessionService.Submit(c.Request.Context(), p); err != nil {
			wsLog.Error().Err(err).Msg("Submit failed")
			conn.WriteError("submit failed")
		}
		return
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		conn.WriteError("unknown action: " + string(msg.Action))
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPosition):
			conn.WriteError("position out of range")
		case errors.Is(err, service.ErrNoActiveAttempt), errors.Is(err, service.ErrAttemptSubmitted):
			conn.WriteError("attempt is over")
		default:
			wsLog.Error().Err(err).Msg("Action failed")
			conn.WriteError("action failed")
		}
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Attempt: view})
}
