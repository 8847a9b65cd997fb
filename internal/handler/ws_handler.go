package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/docexam/docexam-backend/internal/middleware"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/docexam/docexam-backend/internal/service"
	ws "github.com/docexam/docexam-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// statePushInterval paces the countdown pushes to connected clients.
const statePushInterval = time.Second

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

// WSHandler streams a live session over WebSocket: autosave in, countdown
// and terminal events out.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket for autosave, view tracking, and live countdown.
// All writes happen on this goroutine; the reader goroutine only feeds a
// channel, so the connection never sees interleaved frames.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := context.Background()
	ownerID := claims.OwnerID

	meta, err := h.sessionService.GetLiveMeta(ctx, sessionID)
	if err != nil {
		ws.WriteError(conn, "session not found")
		return
	}
	if meta.OwnerID != ownerID {
		ws.WriteError(conn, "session does not belong to the caller")
		return
	}

	wsLog := h.log.With().
		Int("owner_id", ownerID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Client connected")

	// A session already terminal just gets its outcome replayed.
	if meta.Status.Terminal() {
		h.pushTerminal(ctx, conn, wsLog, sessionID, ownerID, meta.Status, false)
		return
	}

	readCh := make(chan ws.RequestPayload)
	go func() {
		defer close(readCh)
		for {
			var msg ws.RequestPayload
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			readCh <- msg
		}
	}()

	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-readCh:
			if !ok {
				return
			}
			if done := h.dispatch(ctx, conn, wsLog, sessionID, ownerID, &msg); done {
				return
			}

		case <-ticker.C:
			if done := h.pushState(ctx, conn, wsLog, sessionID, ownerID); done {
				return
			}
		}
	}
}

// dispatch handles one client message. Returns true when the connection
// should close (the session reached a terminal state).
func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, ownerID int, msg *ws.RequestPayload) bool {
	switch msg.Action {
	case ws.ActionPing:
		ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		return false

	case ws.ActionView:
		qid, ok := parseQID(conn, msg.QID)
		if !ok {
			return false
		}
		// View markers are fire-and-forget; a session that just stopped
		// accepting them is not worth an error frame.
		if err := h.sessionService.MarkViewed(ctx, sessionID, ownerID, qid); err != nil {
			wsLog.Debug().Err(err).Str("q_id", msg.QID).Msg("View marker dropped")
		}
		return false

	case ws.ActionAutosave:
		qid, ok := parseQID(conn, msg.QID)
		if !ok {
			return false
		}
		if msg.Answer == "" {
			ws.WriteError(conn, "ans is required")
			return false
		}
		if err := h.sessionService.SubmitAnswer(ctx, sessionID, ownerID, qid, msg.Answer); err != nil {
			wsLog.Warn().Err(err).Str("q_id", msg.QID).Msg("Autosave rejected")
			ws.WriteError(conn, "save failed: "+err.Error())
			return false
		}
		ws.WriteTyped(conn, ws.SavedEvent{Event: ws.EventSaved, QID: msg.QID})
		return false

	case ws.ActionSubmit:
		result, err := h.sessionService.SubmitSession(ctx, sessionID, ownerID)
		if err != nil {
			wsLog.Error().Err(err).Msg("Submit over WebSocket failed")
			ws.WriteError(conn, "submit failed: "+err.Error())
			return true
		}
		writeGraded(conn, result)
		return true

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		ws.WriteError(conn, "unknown action: "+string(msg.Action))
		return false
	}
}

// pushState sends the periodic countdown, detecting expiry and terminal
// transitions along the way. Returns true when the connection should close.
func (h *WSHandler) pushState(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, ownerID int) bool {
	meta, err := h.sessionService.GetLiveMeta(ctx, sessionID)
	if err != nil {
		wsLog.Error().Err(err).Msg("State poll failed")
		return false
	}

	switch {
	case meta.Status.Terminal():
		h.pushTerminal(ctx, conn, wsLog, sessionID, ownerID, meta.Status, false)
		return true

	case meta.Status == model.SessionStatusActive && !time.Now().Before(meta.Deadline):
		// Deadline just passed on our watch. Trigger the auto-submit and
		// replay the outcome; racing the sweeper here is harmless.
		if err := h.sessionService.ExpireSession(ctx, sessionID); err != nil {
			wsLog.Error().Err(err).Msg("Expiry over WebSocket failed")
		}
		h.pushTerminal(ctx, conn, wsLog, sessionID, ownerID, model.SessionStatusCompleted, true)
		return true

	default:
		remaining := int(time.Until(meta.Deadline).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		ws.WriteTyped(conn, ws.StateEvent{
			Event:            ws.EventState,
			Status:           string(meta.Status),
			RemainingSeconds: remaining,
		})
		return false
	}
}

// pushTerminal replays the terminal outcome: expired marker first when the
// deadline drove the finish, then the graded result or the failure.
func (h *WSHandler) pushTerminal(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, ownerID int, status model.SessionStatus, expired bool) {
	if expired {
		ws.WriteTyped(conn, ws.ExpiredEvent{Event: ws.EventExpired})
	}
	if status == model.SessionStatusFailed {
		ws.WriteError(conn, "session failed during grading")
		return
	}

	result, err := h.sessionService.GetResult(ctx, sessionID, ownerID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Result replay failed")
		ws.WriteError(conn, "result unavailable: "+err.Error())
		return
	}
	writeGraded(conn, result)
}

func writeGraded(conn *websocket.Conn, result *model.GradeResult) {
	ws.WriteTyped(conn, ws.GradedEvent{
		Event:            ws.EventGraded,
		ScorePercent:     result.ScorePercent,
		CorrectCount:     result.CorrectCount,
		TotalCount:       result.TotalCount,
		CompletionReason: string(result.CompletionReason),
	})
}

// parseQID validates the question id format before it reaches any Redis key.
func parseQID(conn *websocket.Conn, raw string) (uuid.UUID, bool) {
	if raw == "" {
		ws.WriteError(conn, "q_id is required")
		return uuid.Nil, false
	}
	qid, err := uuid.Parse(raw)
	if err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return uuid.Nil, false
	}
	return qid, true
}
