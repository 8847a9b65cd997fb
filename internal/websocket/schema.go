package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionView     Action = "view"
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single client message shape. QID and Answer are
// only meaningful for view/autosave actions.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventSaved   Event = "saved"
	EventGraded  Event = "graded"
	EventExpired Event = "expired"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// StateEvent is the periodic countdown push. RemainingSeconds comes from
// the server clock; clients must not run their own timer as authority.
type StateEvent struct {
	Event            Event  `json:"event"`
	Status           string `json:"status"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// SavedEvent acknowledges one autosaved answer.
type SavedEvent struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

// GradedEvent carries the terminal outcome.
type GradedEvent struct {
	Event            Event   `json:"event"`
	ScorePercent     float64 `json:"score_percent"`
	CorrectCount     int     `json:"correct_count"`
	TotalCount       int     `json:"total_count"`
	CompletionReason string  `json:"completion_reason"`
}

// ExpiredEvent tells the client the deadline fired server-side. A graded
// event follows once the auto-submit finishes.
type ExpiredEvent struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
