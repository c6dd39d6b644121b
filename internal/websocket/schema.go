package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventCompleted Event = "completed"
	EventPong      Event = "pong"
)

// CompletedResponse notifies monitoring teachers that a student finished a
// submission.
type CompletedResponse struct {
	Event        Event   `json:"event"`
	SubmissionID string  `json:"submission_id"`
	AuthorID     int     `json:"author_id"`
	Score        float64 `json:"score"`
	CompletedOn  string  `json:"completed_on"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
