package genie

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbgenie/dbgenie/internal/log"
)

// fakeAPI is a scripted transport. Poll responses are consumed in order;
// the last one repeats once the script runs out.
type fakeAPI struct {
	mu sync.Mutex

	startResp *Response
	startErr  error

	pollResps []*Response
	pollErr   error

	resultResp *Response
	resultErr  error

	startCalls  int
	pollCalls   int
	resultCalls int
}

func (f *fakeAPI) StartConversation(_ context.Context, _ string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startResp, f.startErr
}

func (f *fakeAPI) GetMessage(_ context.Context, _, _ string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	idx := f.pollCalls - 1
	if idx >= len(f.pollResps) {
		idx = len(f.pollResps) - 1
	}
	return f.pollResps[idx], nil
}

func (f *fakeAPI) GetQueryResult(_ context.Context, _, _, _ string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	return f.resultResp, f.resultErr
}

func ok(body string) *Response {
	return &Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

const startOK = `{"conversation_id":"c-1","message_id":"m-1"}`

func newTestPoller(t *testing.T, api transport, retries int) *Poller {
	t.Helper()
	p, err := NewPoller(api, 0, retries, log.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewPoller_Validation(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	logger := log.NewNop()

	_, err := NewPoller(nil, 0, 1, logger)
	assert.ErrorContains(t, err, "transport is required")

	_, err = NewPoller(api, -time.Second, 1, logger)
	assert.ErrorContains(t, err, "wait must be >= 0")

	_, err = NewPoller(api, 0, 0, logger)
	assert.ErrorContains(t, err, "max retries must be > 0")

	_, err = NewPoller(api, 0, 1, nil)
	assert.ErrorContains(t, err, "logger is required")
}

func TestPoller_TextAttachment(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{
			"status": "COMPLETED",
			"attachments": [{"attachment_id": "a-1", "text": {"content": "Hello"}}]
		}`)},
	}

	text, failure := newTestPoller(t, api, 3).Run(context.Background(), "hi")
	require.Nil(t, failure)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, 1, api.startCalls)
	assert.Equal(t, 1, api.pollCalls)
	assert.Zero(t, api.resultCalls)
}

func TestPoller_TextAttachment_EmptyContentDefault(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{
			"status": "COMPLETED",
			"attachments": [{"attachment_id": "a-1", "text": {}}]
		}`)},
	}

	text, failure := newTestPoller(t, api, 3).Run(context.Background(), "hi")
	require.Nil(t, failure)
	assert.Empty(t, text)
}

func TestPoller_QueryAttachment(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{
			"status": "COMPLETED",
			"attachments": [{"attachment_id": "a-1", "query": {"description": "Row counts per table"}}]
		}`)},
		resultResp: ok(`{"statement_response":{"result":{"data_array":[["a","b"],["x","y"],["xx","yy"]]}}}`),
	}

	text, failure := newTestPoller(t, api, 3).Run(context.Background(), "counts")
	require.Nil(t, failure)

	assert.True(t, strings.HasPrefix(text, "Row counts per table\n\n"))
	assert.Contains(t, text, "a  | b ")
	assert.Contains(t, text, "Total rows: 2")
	assert.Equal(t, 1, api.resultCalls)
}

func TestPoller_QueryAttachment_FetchFailureDegrades(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{
			"status": "COMPLETED",
			"attachments": [{"attachment_id": "a-1", "query": {"description": "Row counts"}}]
		}`)},
		resultErr: errors.New("connection reset"),
	}

	text, failure := newTestPoller(t, api, 3).Run(context.Background(), "counts")
	// A result-retrieval failure must not discard the description.
	require.Nil(t, failure)
	assert.Equal(t, "Row counts\n\nError retrieving results: connection reset", text)
}

func TestPoller_QueryAttachment_Non200ResultDegrades(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{
			"status": "COMPLETED",
			"attachments": [{"attachment_id": "a-1", "query": {"description": "D"}}]
		}`)},
		resultResp: &Response{StatusCode: http.StatusForbidden, Body: []byte(`{"error":"denied"}`)},
	}

	text, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.Nil(t, failure)
	assert.True(t, strings.HasPrefix(text, "D\n\nError retrieving results: "))
	assert.Contains(t, text, "403")
}

func TestPoller_SubmitTransportFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{startErr: errors.New("dial tcp: connection refused")}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureTransport, failure.Kind)
	assert.Contains(t, failure.Message, "Error with Genie:")
	assert.Contains(t, failure.Message, "connection refused")
}

func TestPoller_SubmitNon200(t *testing.T) {
	t.Parallel()

	t.Run("json error payload", func(t *testing.T) {
		t.Parallel()
		api := &fakeAPI{
			startResp: &Response{
				StatusCode: http.StatusForbidden,
				Body:       []byte(`{"error_code":"PERMISSION_DENIED","message":"no access"}`),
			},
		}

		_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
		require.NotNil(t, failure)
		assert.Equal(t, FailureHTTP, failure.Kind)
		assert.Contains(t, failure.Message, "Error with Genie:")
		assert.Contains(t, failure.Message, "PERMISSION_DENIED")
		assert.Zero(t, api.pollCalls)
	})

	t.Run("raw text payload", func(t *testing.T) {
		t.Parallel()
		api := &fakeAPI{
			startResp: &Response{StatusCode: http.StatusBadGateway, Body: []byte("upstream unavailable")},
		}

		_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
		require.NotNil(t, failure)
		assert.Equal(t, FailureHTTP, failure.Kind)
		assert.Contains(t, failure.Message, "upstream unavailable")
	})
}

func TestPoller_SubmitDecodeFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{startResp: ok(`{not json`)}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureDecode, failure.Kind)
	assert.Contains(t, failure.Message, "Genie JSON decode error on POST response:")
}

func TestPoller_MissingIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing message_id", `{"conversation_id":"c-1"}`},
		{"missing conversation_id", `{"message_id":"m-1"}`},
		{"both empty", `{"conversation_id":"","message_id":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := &fakeAPI{startResp: ok(tt.body)}

			_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
			require.NotNil(t, failure)
			assert.Equal(t, FailureMissingIDs, failure.Kind)
			assert.Contains(t, failure.Message, "Missing conversation_id or message_id")
			// No polling GET may be attempted after this failure.
			assert.Zero(t, api.pollCalls)
		})
	}
}

func TestPoller_TimeoutAfterExactBudget(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{"status":"IN_PROGRESS"}`)},
	}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureTimeout, failure.Kind)
	assert.Contains(t, failure.Message, "did not complete after 3 retries")
	assert.Equal(t, 3, api.pollCalls, "exactly max_retries GET calls")
}

func TestPoller_MissingStatusKeepsPolling(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{
			ok(`{}`), // no status field: treated as UNKNOWN, not terminal
			ok(`{"status":"EXECUTING_QUERY"}`),
			ok(`{"status":"COMPLETED","attachments":[{"attachment_id":"a-1","text":{"content":"done"}}]}`),
		},
	}

	text, failure := newTestPoller(t, api, 5).Run(context.Background(), "q")
	require.Nil(t, failure)
	assert.Equal(t, "done", text)
	assert.Equal(t, 3, api.pollCalls)
}

func TestPoller_PollDecodeFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`<html>gateway timeout</html>`)},
	}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureDecode, failure.Kind)
	assert.Contains(t, failure.Message, "poll response")
}

func TestPoller_PollTransportFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollErr:   errors.New("read: connection reset by peer"),
	}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureTransport, failure.Kind)
}

func TestPoller_NoAttachments(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{"status":"COMPLETED","attachments":[]}`)},
	}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureNoAttachments, failure.Kind)
	assert.Contains(t, failure.Message, "No attachments found")
}

func TestPoller_MissingAttachmentID(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{"status":"COMPLETED","attachments":[{"text":{"content":"x"}}]}`)},
	}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureNoAttachmentID, failure.Kind)
	assert.Contains(t, failure.Message, "No attachment_id found")
}

func TestPoller_UndecodableAttachment(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{"status":"COMPLETED","attachments":[{"attachment_id":"a-1"}]}`)},
	}

	_, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureBadAttachment, failure.Kind)
	assert.Contains(t, failure.Message, "Failed to decode Genie results")
}

// TestPoller_FirstAttachmentOnly: later attachments are ignored by design.
func TestPoller_FirstAttachmentOnly(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{
			"status": "COMPLETED",
			"attachments": [
				{"attachment_id": "a-1", "text": {"content": "first"}},
				{"attachment_id": "a-2", "text": {"content": "second"}}
			]
		}`)},
	}

	text, failure := newTestPoller(t, api, 3).Run(context.Background(), "q")
	require.Nil(t, failure)
	assert.Equal(t, "first", text)
}

func TestPoller_CancellationDuringSleep(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{"status":"IN_PROGRESS"}`)},
	}

	p, err := NewPoller(api, time.Minute, 5, log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, failure := p.Run(ctx, "q")
	require.NotNil(t, failure)
	assert.Equal(t, FailureCanceled, failure.Kind)
	assert.ErrorIs(t, failure, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must abort the sleep")
	assert.Equal(t, 1, api.pollCalls)
}

// TestPoller_ConcurrentRunsIndependent: two runs share nothing but the
// transport; each owns its own conversation and budget.
func TestPoller_ConcurrentRunsIndependent(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		startResp: ok(startOK),
		pollResps: []*Response{ok(`{"status":"COMPLETED","attachments":[{"attachment_id":"a-1","text":{"content":"answer"}}]}`)},
	}
	p := newTestPoller(t, api, 3)

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text, failure := p.Run(context.Background(), fmt.Sprintf("q-%d", i))
			if failure == nil {
				results[i] = text
			}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, "answer", r, "run %d", i)
	}
	assert.Equal(t, 4, api.startCalls)
}
