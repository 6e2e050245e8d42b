package genie

// Message status values reported by the Genie API. Anything else is
// treated as in flight; the poller only distinguishes COMPLETED.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"

	// StatusUnknown is substituted when a poll response carries no status.
	StatusUnknown = "UNKNOWN"
)

// startConversationRequest is the POST body for start-conversation.
type startConversationRequest struct {
	Content string `json:"content"`
}

// StartConversationResponse identifies the conversation the service
// opened for one question. Both ids are required for polling.
type StartConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// MessageResponse is the poll target: the remote service mutates Status,
// the client only observes it.
type MessageResponse struct {
	Status      string       `json:"status"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a tagged variant on a completed message: exactly one of
// Text or Query is expected to be present.
type Attachment struct {
	AttachmentID string           `json:"attachment_id"`
	Text         *TextAttachment  `json:"text,omitempty"`
	Query        *QueryAttachment `json:"query,omitempty"`
}

// TextAttachment carries a plain string answer.
type TextAttachment struct {
	Content string `json:"content"`
}

// QueryAttachment describes a generated query whose tabular result
// requires one further fetch.
type QueryAttachment struct {
	Description string `json:"description"`
}

// queryResultResponse wraps the tabular result of a query attachment.
// Row 0 of DataArray holds column names; remaining rows are data.
type queryResultResponse struct {
	StatementResponse struct {
		Result struct {
			DataArray [][]any `json:"data_array"`
		} `json:"result"`
	} `json:"statement_response"`
}
