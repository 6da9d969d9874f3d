// coach/utils/types/chat.go
package types

type ChatRequest struct {
	Content string `json:"content"`
}

// RenderedTurn is a visible turn as the chat screen shows it.
type RenderedTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Length    int    `json:"length"`
	Display   string `json:"display"`
	HTML      string `json:"html"`
}

type ExportNotice struct {
	OK      bool   `json:"ok"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

type ChatResponse struct {
	Turns  []RenderedTurn `json:"turns"`
	Export *ExportNotice  `json:"export,omitempty"`
}

// Event types pushed over the chat websocket.
const (
	EventPending = "pending"
	EventTurns   = "turns"
	EventExport  = "export"
	EventError   = "error"
)

type ChatEvent struct {
	Type    string         `json:"type"`
	Turns   []RenderedTurn `json:"turns,omitempty"`
	Export  *ExportNotice  `json:"export,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ExportSummary is one row of a user's export history.
type ExportSummary struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
	Rows      int    `json:"rows"`
	CreatedAt string `json:"created_at"`
}
