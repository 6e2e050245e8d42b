package genie

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dbgenie/dbgenie/internal/log"
)

// transport is the protocol surface the poller needs. *Client implements
// it; tests substitute scripted fakes.
type transport interface {
	StartConversation(ctx context.Context, content string) (*Response, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*Response, error)
	GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*Response, error)
}

// FailureKind classifies the terminal failure of one query run.
type FailureKind int

// Failure kinds, one per error class in the protocol.
const (
	// FailureTransport: the remote service was unreachable or the HTTP
	// layer failed mid-request.
	FailureTransport FailureKind = iota

	// FailureHTTP: submission returned a non-200 status.
	FailureHTTP

	// FailureDecode: a response body was not valid JSON.
	FailureDecode

	// FailureMissingIDs: submission succeeded but conversation_id or
	// message_id was absent.
	FailureMissingIDs

	// FailureTimeout: the retry budget ran out before COMPLETED.
	FailureTimeout

	// FailureNoAttachments: the completed message carried no attachments.
	FailureNoAttachments

	// FailureNoAttachmentID: the first attachment had no attachment_id.
	FailureNoAttachmentID

	// FailureBadAttachment: the first attachment carried neither a text
	// nor a query payload.
	FailureBadAttachment

	// FailureCanceled: the caller's context was canceled mid-run.
	FailureCanceled
)

// String returns the failure kind name for logging.
func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureHTTP:
		return "http"
	case FailureDecode:
		return "decode"
	case FailureMissingIDs:
		return "missing_ids"
	case FailureTimeout:
		return "timeout"
	case FailureNoAttachments:
		return "no_attachments"
	case FailureNoAttachmentID:
		return "no_attachment_id"
	case FailureBadAttachment:
		return "bad_attachment"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Failure is a terminal failure of one query run. Message is built at the
// boundary nearest the cause and is ready to show to the end user.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error // underlying cause, nil for protocol-level failures
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return f.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}

// state enumerates the poller's state machine.
type state int

const (
	stateSubmitting state = iota
	statePolling
	stateRetrieving
)

// Poller drives one question from submission to a terminal outcome.
// It keeps no state across runs: each Run opens a fresh conversation and
// owns its own retry budget, so concurrent runs are independent.
type Poller struct {
	api     transport
	wait    time.Duration
	retries int
	logger  log.Logger
}

// NewPoller creates a poller with a fixed polling cadence and retry
// budget. The cadence is flat; there is no backoff or jitter.
func NewPoller(api transport, wait time.Duration, maxRetries int, logger log.Logger) (*Poller, error) {
	if api == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if wait < 0 {
		return nil, fmt.Errorf("wait must be >= 0, got %v", wait)
	}
	if maxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be > 0, got %d", maxRetries)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Poller{api: api, wait: wait, retries: maxRetries, logger: logger}, nil
}

// Run executes the submit/poll/retrieve state machine for one question.
// On success it returns the display string; otherwise a Failure carrying
// a user-ready diagnostic. It never returns both.
func (p *Poller) Run(ctx context.Context, question string) (string, *Failure) {
	var (
		ids  StartConversationResponse
		last MessageResponse
	)

	st := stateSubmitting
	for {
		switch st {
		case stateSubmitting:
			if f := p.submit(ctx, question, &ids); f != nil {
				return "", p.fail(f)
			}
			st = statePolling

		case statePolling:
			if f := p.pollUntilComplete(ctx, ids, &last); f != nil {
				return "", p.fail(f)
			}
			st = stateRetrieving

		case stateRetrieving:
			text, f := p.retrieve(ctx, ids, last)
			if f != nil {
				return "", p.fail(f)
			}
			p.logger.Debug("genie query completed",
				"conversation_id", ids.ConversationID,
				"message_id", ids.MessageID)
			return text, nil
		}
	}
}

// fail logs a terminal failure and passes it through.
func (p *Poller) fail(f *Failure) *Failure {
	p.logger.Warn("genie query failed", "kind", f.Kind.String(), "message", f.Message, "error", f.Err)
	return f
}

// submit posts the question and extracts the conversation identifiers.
func (p *Poller) submit(ctx context.Context, question string, ids *StartConversationResponse) *Failure {
	resp, err := p.api.StartConversation(ctx, question)
	if err != nil {
		return &Failure{
			Kind:    FailureTransport,
			Message: fmt.Sprintf("Error with Genie: %v", err),
			Err:     err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &Failure{
			Kind:    FailureHTTP,
			Message: fmt.Sprintf("Error with Genie: %s", errorPayload(resp.Body)),
		}
	}

	if err := json.Unmarshal(resp.Body, ids); err != nil {
		return &Failure{
			Kind:    FailureDecode,
			Message: fmt.Sprintf("Genie JSON decode error on POST response: %v", err),
			Err:     err,
		}
	}

	if ids.ConversationID == "" || ids.MessageID == "" {
		return &Failure{
			Kind:    FailureMissingIDs,
			Message: "Genie Missing conversation_id or message_id in the response.",
		}
	}

	p.logger.Debug("genie conversation started",
		"conversation_id", ids.ConversationID,
		"message_id", ids.MessageID)
	return nil
}

// pollUntilComplete polls the message until COMPLETED or the retry budget
// is exhausted. Each attempt is one GET followed by a fixed sleep when the
// message is still in flight; only one poll is in flight at a time.
func (p *Poller) pollUntilComplete(ctx context.Context, ids StartConversationResponse, last *MessageResponse) *Failure {
	for attempt := 1; attempt <= p.retries; attempt++ {
		resp, err := p.api.GetMessage(ctx, ids.ConversationID, ids.MessageID)
		if err != nil {
			return &Failure{
				Kind:    FailureTransport,
				Message: fmt.Sprintf("Error with Genie: %v", err),
				Err:     err,
			}
		}

		if err := json.Unmarshal(resp.Body, last); err != nil {
			return &Failure{
				Kind:    FailureDecode,
				Message: fmt.Sprintf("Genie JSON decode error on poll response: %v", err),
				Err:     err,
			}
		}

		status := last.Status
		if status == "" {
			status = StatusUnknown
		}

		p.logger.Debug("genie poll",
			"attempt", attempt,
			"max_retries", p.retries,
			"status", status)

		if status == StatusCompleted {
			return nil
		}

		if f := p.sleep(ctx); f != nil {
			return f
		}
	}

	return &Failure{
		Kind:    FailureTimeout,
		Message: fmt.Sprintf("Genie query did not complete after %d retries.", p.retries),
	}
}

// sleep blocks for one polling interval, honoring cancellation.
func (p *Poller) sleep(ctx context.Context) *Failure {
	if p.wait <= 0 {
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}
		return nil
	}

	timer := time.NewTimer(p.wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return canceled(ctx.Err())
	}
}

func canceled(err error) *Failure {
	return &Failure{
		Kind:    FailureCanceled,
		Message: fmt.Sprintf("Genie query canceled: %v", err),
		Err:     err,
	}
}

// retrieve inspects the completed message's first attachment and produces
// the display string. Later attachments are intentionally ignored.
func (p *Poller) retrieve(ctx context.Context, ids StartConversationResponse, last MessageResponse) (string, *Failure) {
	if len(last.Attachments) == 0 {
		return "", &Failure{
			Kind:    FailureNoAttachments,
			Message: "No attachments found in the Genie response.",
		}
	}

	att := last.Attachments[0]
	if att.AttachmentID == "" {
		return "", &Failure{
			Kind:    FailureNoAttachmentID,
			Message: "No attachment_id found in the first Genie attachment.",
		}
	}

	switch {
	case att.Text != nil:
		return att.Text.Content, nil

	case att.Query != nil:
		desc := att.Query.Description
		table, err := p.fetchQueryResult(ctx, ids, att.AttachmentID)
		if err != nil {
			// Partial success: the description was already obtained and a
			// result-retrieval failure must not discard it.
			return desc + "\n\nError retrieving results: " + err.Error(), nil
		}
		return desc + "\n\n" + table, nil

	default:
		return "", &Failure{
			Kind:    FailureBadAttachment,
			Message: "Error: Failed to decode Genie results from the attachment.",
		}
	}
}

// fetchQueryResult retrieves and formats the tabular result behind a
// query attachment. Any error here degrades to partial success upstream.
func (p *Poller) fetchQueryResult(ctx context.Context, ids StartConversationResponse, attachmentID string) (string, error) {
	resp, err := p.api.GetQueryResult(ctx, ids.ConversationID, ids.MessageID, attachmentID)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query-result returned status %d", resp.StatusCode)
	}

	var qr queryResultResponse
	if err := json.Unmarshal(resp.Body, &qr); err != nil {
		return "", fmt.Errorf("decoding query result: %w", err)
	}

	return FormatDataArray(qr.StatementResponse.Result.DataArray), nil
}

// errorPayload renders a non-200 response body for display: the decoded
// JSON error when the body is decodable, otherwise the raw text.
func errorPayload(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if compact, err := json.Marshal(decoded); err == nil {
			return string(compact)
		}
	}
	return string(body)
}
