// Package engine orchestrates the analysis request lifecycle:
// entitlement, validation, the tracking record, the bounded model-call
// retry, and result persistence.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"talentworth/internal/config"
	"talentworth/internal/domain"
	"talentworth/internal/events"
	"talentworth/internal/llm"
	"talentworth/internal/repo"
	"talentworth/internal/validate"
)

// ModelClient is the external analysis model. Implementations classify
// failures as *llm.TimeoutError, *llm.ParseError or *llm.UpstreamError.
type ModelClient interface {
	Analyze(ctx context.Context, input domain.AnalysisInput) (llm.Output, error)
}

type Engine struct {
	DB          *sql.DB
	Repo        repo.Repo
	Events      events.Writer
	Model       ModelClient
	Logger      *slog.Logger
	Now         func() time.Time
	MaxAttempts int
}

func New(db *sql.DB, cfg *config.Config, model ModelClient, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := 2
	if cfg != nil && cfg.Model.MaxAttempts > 0 {
		maxAttempts = cfg.Model.MaxAttempts
	}
	return Engine{
		DB:          db,
		Repo:        repo.Repo{DB: db},
		Events:      events.Writer{DB: db},
		Model:       model,
		Logger:      logger,
		Now:         time.Now,
		MaxAttempts: maxAttempts,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Analyze runs one analysis request to a terminal state. Preconditions
// (entitlement, validation) produce no side effects; once the tracking
// record exists every exit path moves it to completed or failed.
func (e Engine) Analyze(ctx context.Context, ownerID string, raw validate.RawInput) (domain.AnalysisResult, error) {
	if err := e.CheckEntitlement(ctx, ownerID); err != nil {
		return domain.AnalysisResult{}, err
	}

	input, fieldErrs := validate.Input(raw)
	if len(fieldErrs) > 0 {
		return domain.AnalysisResult{}, &ValidationError{Fields: fieldErrs}
	}

	req := domain.AnalysisRequest{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		JobTitle:          input.JobTitle,
		YearsOfExperience: input.YearsOfExperience,
		Skills:            input.Skills,
		Achievements:      input.Achievements,
		Education:         input.Education,
		Status:            domain.StatusProcessing,
		CreatedAt:         e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAnalysisRequest(ctx, req); err != nil {
		return domain.AnalysisResult{}, &InfraError{Op: "insert analysis request", Err: err}
	}
	e.appendEvent(ctx, "analysis.requested", "analysis_request", req.ID, ownerID, events.EventPayload{
		"job_title": req.JobTitle,
	})

	out, err := e.callModel(ctx, req.ID, input)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	result := domain.AnalysisResult{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		OwnerID:   ownerID,
		Salary: domain.SalaryRange{
			Min: int(math.Round(out.SalaryRange.Min)),
			Mid: int(math.Round(out.SalaryRange.Mid)),
			Max: int(math.Round(out.SalaryRange.Max)),
		},
		CompanyTypes:    out.CompanyTypes,
		Strengths:       out.Strengths,
		SampleSize:      int(math.Round(out.SampleSize)),
		ConfidenceScore: out.ConfidenceScore,
		RawResponse:     out.Raw,
		CreatedAt:       e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAnalysisResult(ctx, result); err != nil {
		// The model output is not retried, only logged: never re-spend
		// an external call to retry a local write.
		e.Logger.Error("result write failed after successful model call",
			"request_id", req.ID, "error", err, "model_output", out.Raw)
		e.markFailed(ctx, req.ID)
		return domain.AnalysisResult{}, &InfraError{Op: "insert analysis result", RequestID: req.ID, Err: err}
	}

	// Best-effort: the result exists and is retrievable even if the
	// request's status flag lags.
	if err := e.Repo.UpdateAnalysisRequestStatus(ctx, req.ID, domain.StatusCompleted); err != nil {
		e.Logger.Error("final status update failed", "request_id", req.ID, "error", err)
	}
	e.appendEvent(ctx, "analysis.completed", "analysis_request", req.ID, ownerID, events.EventPayload{
		"result_id":  result.ID,
		"salary_mid": result.Salary.Mid,
	})
	return result, nil
}

// callModel applies the attempt budget: timeouts and parse failures
// retry once, upstream failures never. The tracking record is marked
// failed before any error is returned.
func (e Engine) callModel(ctx context.Context, requestID string, input domain.AnalysisInput) (llm.Output, error) {
	maxAttempts := e.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	for attempt := 1; ; attempt++ {
		out, err := e.Model.Analyze(ctx, input)
		if err == nil {
			err = checkOutput(out)
			if err == nil {
				return out, nil
			}
			// Schema strict mode should have rejected this upstream;
			// treat it like a parse failure and give the model one
			// more chance.
			err = &llm.ParseError{Err: err}
		}
		last := attempt >= maxAttempts

		switch err.(type) {
		case *llm.TimeoutError:
			e.Logger.Warn("model attempt timed out", "request_id", requestID, "attempt", attempt)
			if last {
				e.markFailed(ctx, requestID)
				return llm.Output{}, &ModelTimeoutError{RequestID: requestID}
			}
		case *llm.ParseError:
			e.Logger.Warn("model attempt unparsable", "request_id", requestID, "attempt", attempt, "error", err)
			if last {
				e.markFailed(ctx, requestID)
				return llm.Output{}, &ModelParseError{RequestID: requestID}
			}
		default:
			status := 0
			if upstream, ok := err.(*llm.UpstreamError); ok {
				status = upstream.Status
			}
			e.Logger.Error("model attempt failed upstream", "request_id", requestID, "attempt", attempt, "error", err)
			e.markFailed(ctx, requestID)
			return llm.Output{}, &ModelUpstreamError{RequestID: requestID, Status: status}
		}
	}
}

// checkOutput re-validates semantic completeness of a schema-conforming
// payload before anything is persisted.
func checkOutput(out llm.Output) error {
	if len(out.Strengths) != 3 {
		return fmt.Errorf("expected exactly 3 strengths, got %d", len(out.Strengths))
	}
	if len(out.CompanyTypes) != 3 {
		return fmt.Errorf("expected exactly 3 company types, got %d", len(out.CompanyTypes))
	}
	seen := map[string]bool{}
	for _, ct := range out.CompanyTypes {
		seen[ct.Type] = true
	}
	for _, required := range []string{domain.CompanyStartup, domain.CompanyMidsize, domain.CompanyEnterprise} {
		if !seen[required] {
			return fmt.Errorf("company types missing %q", required)
		}
	}
	if out.ConfidenceScore < 0 || out.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %v out of [0,1]", out.ConfidenceScore)
	}
	return nil
}

func (e Engine) markFailed(ctx context.Context, requestID string) {
	if err := e.Repo.UpdateAnalysisRequestStatus(ctx, requestID, domain.StatusFailed); err != nil {
		e.Logger.Error("failed to mark request failed", "request_id", requestID, "error", err)
	}
	e.appendEvent(ctx, "analysis.failed", "analysis_request", requestID, "", nil)
}

func (e Engine) appendEvent(ctx context.Context, evtType, entityKind, entityID, ownerID string, payload events.EventPayload) {
	if ownerID == "" {
		ownerID = "system"
	}
	if err := e.Events.Append(ctx, evtType, entityKind, entityID, ownerID, payload); err != nil {
		e.Logger.Warn("event append failed", "type", evtType, "entity_id", entityID, "error", err)
	}
}

// GetAnalysis returns a request and, when present, its result. Both
// are owner-scoped.
func (e Engine) GetAnalysis(ctx context.Context, ownerID, requestID string) (domain.AnalysisRequest, *domain.AnalysisResult, error) {
	req, err := e.Repo.GetAnalysisRequest(ctx, requestID)
	if err != nil {
		return domain.AnalysisRequest{}, nil, err
	}
	if req.OwnerID != ownerID {
		return domain.AnalysisRequest{}, nil, repo.ErrNotFound
	}
	result, err := e.Repo.GetAnalysisResultByRequest(ctx, requestID)
	if err == repo.ErrNotFound {
		return req, nil, nil
	}
	if err != nil {
		return domain.AnalysisRequest{}, nil, err
	}
	return req, &result, nil
}

// ListAnalyses returns the owner's requests, newest first.
func (e Engine) ListAnalyses(ctx context.Context, ownerID string, limit int) ([]domain.AnalysisRequest, error) {
	return e.Repo.ListAnalysisRequests(ctx, ownerID, limit)
}
