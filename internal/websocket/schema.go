package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionGoTo   Action = "goto"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload is every client message. Fields not used by the action
// are ignored.
type RequestPayload struct {
	Action   Action `json:"action"`
	Position *int   `json:"position,omitempty"`
	Option   *int   `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventState  Event = "state"
	EventTick   Event = "tick"
	EventGraded Event = "graded"
	EventEnded  Event = "ended"
	EventPong   Event = "pong"
)

// StateResponse carries the full attempt view after a change.
type StateResponse struct {
	Event   Event       `json:"event"`
	Attempt interface{} `json:"attempt"`
}

// TickResponse is pushed once per countdown second.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// GradedResponse is the last message of a submitted attempt.
type GradedResponse struct {
	Event  Event       `json:"event"`
	Status string      `json:"status"`
	Score  float64     `json:"score"`
	Result interface{} `json:"result"`
}

// EndedResponse is sent when the attempt stops without a result.
type EndedResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
