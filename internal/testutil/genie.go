package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// GenieServer is an in-process fake of the Genie REST endpoints used by
// the client. It serves a fixed conversation and can be configured to
// report IN_PROGRESS a number of times before completing.
type GenieServer struct {
	*httptest.Server

	mu        sync.Mutex
	pollCount int

	// PendingPolls is how many GET message calls return IN_PROGRESS
	// before the message completes.
	PendingPolls int

	// Message is the completed message payload returned once
	// PendingPolls is exhausted.
	Message map[string]any

	// QueryResult is returned by the query-result endpoint.
	QueryResult map[string]any
}

// NewGenieServer starts a fake Genie API for the given space.
// The caller owns the returned server; Close is registered as a cleanup.
func NewGenieServer(t *testing.T, spaceID string) *GenieServer {
	t.Helper()

	gs := &GenieServer{
		Message: map[string]any{
			"status": "COMPLETED",
			"attachments": []map[string]any{
				{"attachment_id": "a-1", "text": map[string]any{"content": "Hello"}},
			},
		},
	}

	base := "/api/2.0/genie/spaces/" + spaceID
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+base+"/start-conversation", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"conversation_id": "c-1", "message_id": "m-1"})
	})
	mux.HandleFunc("GET "+base+"/conversations/c-1/messages/m-1", func(w http.ResponseWriter, _ *http.Request) {
		gs.mu.Lock()
		gs.pollCount++
		pending := gs.pollCount <= gs.PendingPolls
		gs.mu.Unlock()

		if pending {
			writeJSON(w, map[string]any{"status": "IN_PROGRESS"})
			return
		}
		writeJSON(w, gs.Message)
	})
	mux.HandleFunc("GET "+base+"/conversations/c-1/messages/m-1/attachments/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, gs.QueryResult)
	})

	gs.Server = httptest.NewServer(mux)
	t.Cleanup(gs.Close)
	return gs
}

// PollCount reports how many message-status GETs the server has seen.
func (gs *GenieServer) PollCount() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.pollCount
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
