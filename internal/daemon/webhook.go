package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"slackscribe/internal/api"
	"slackscribe/internal/logging"
	"slackscribe/internal/metrics"
	"slackscribe/internal/pipeline"
	"slackscribe/internal/publish"
	"slackscribe/internal/result"
	"slackscribe/internal/services"
)

const correlationHeader = "X-Correlation-Id"

type webhookHandler interface {
	Handle(ctx context.Context, body []byte, contentType string) pipeline.Outcome
}

type errorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type duplicateResponse struct {
	Duplicate   bool             `json:"duplicate"`
	Fingerprint string           `json:"fingerprint"`
	Status      string           `json:"status"`
	ProcessedAt string           `json:"processed_at,omitempty"`
	Result      *result.Combined `json:"result,omitempty"`
}

type processedResponse struct {
	result.Combined
	Fingerprint string          `json:"fingerprint"`
	Receipt     publish.Receipt `json:"receipt"`
}

func (s *apiServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reader := r.Body
	if s.maxBody > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.Event(metrics.OutcomeRejected)
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large", Kind: "format"})
			return
		}
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	if s.signingSecret != "" {
		if err := verifySlackSignature(s.signingSecret, r.Header, body, s.now()); err != nil {
			s.metrics.Event(metrics.OutcomeUnverified)
			logging.WarnWithContext(s.log(), "webhook signature rejected", "signature_rejected",
				logging.String(logging.FieldErrorHint, "check server.signing_secret matches the Slack app"),
				logging.String("remote_addr", r.RemoteAddr),
				logging.Error(err),
			)
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature", Kind: services.Kind(err)})
			return
		}
	}

	// The pipeline must finish and record its outcome even if the sender
	// hangs up; its own timeout bounds the work.
	ctx := context.WithoutCancel(r.Context())
	if id := strings.TrimSpace(r.Header.Get(correlationHeader)); id != "" {
		ctx = services.WithCorrelationID(ctx, id)
	}
	out := s.handler.Handle(ctx, body, r.Header.Get("Content-Type"))
	if out.CorrelationID != "" {
		w.Header().Set(correlationHeader, out.CorrelationID)
	}
	status, payload := OutcomeResponse(out)
	s.writeJSON(w, status, payload)
}

// OutcomeResponse maps a pipeline outcome onto an HTTP status and JSON body.
// The webhook and the process command share it.
func OutcomeResponse(out pipeline.Outcome) (int, any) {
	switch out.Kind {
	case pipeline.OutcomeChallenge:
		return http.StatusOK, map[string]string{"challenge": out.Challenge}
	case pipeline.OutcomeFormatError:
		return http.StatusBadRequest, errorResponse{
			Error:         errorMessage(out.Err, "malformed payload"),
			Kind:          "format",
			CorrelationID: out.CorrelationID,
		}
	case pipeline.OutcomeUnsupported:
		return http.StatusUnprocessableEntity, errorResponse{
			Error:         errorMessage(out.Err, "unsupported file type"),
			Kind:          "classification",
			Reason:        out.Classification.Reason,
			CorrelationID: out.CorrelationID,
		}
	case pipeline.OutcomeDuplicate:
		resp := duplicateResponse{Duplicate: true, Fingerprint: out.Fingerprint, Result: out.PriorResult}
		if out.Prior != nil {
			resp.Status = string(out.Prior.Status)
			resp.ProcessedAt = api.ProcessedAt(*out.Prior)
		}
		return http.StatusOK, resp
	case pipeline.OutcomeProcessed:
		return http.StatusOK, processedResponse{Combined: out.Result, Fingerprint: out.Fingerprint, Receipt: out.Receipt}
	default:
		return http.StatusInternalServerError, errorResponse{
			Error:         errorMessage(out.Err, "internal error"),
			CorrelationID: out.CorrelationID,
		}
	}
}

func errorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
