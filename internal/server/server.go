// Package server exposes the analysis API over HTTP: chi routing, huma
// typed operations, bearer auth, and CORS scoped to the configured
// frontend origin.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"talentworth/internal/engine"
	"talentworth/internal/jobs"
	"talentworth/internal/repo"
	"talentworth/internal/validate"
)

// Config for the HTTP API handler.
type Config struct {
	Engine        engine.Engine
	BasePath      string
	AllowedOrigin string
	Auth          AuthConfig
	Logger        *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"analysis request not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope of the read endpoints.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// analysisError is the flat error body of the analysis operation, the
// shape the frontend consumes: message, optional machine code, the full
// field-error set, and the tracking request id when one exists.
type analysisError struct {
	status      int
	Message     string                `json:"error"`
	Code        string                `json:"code,omitempty"`
	FieldErrors []validate.FieldError `json:"fieldErrors,omitempty"`
	RequestID   string                `json:"requestId,omitempty"`
}

func (e *analysisError) GetStatus() int { return e.status }
func (e *analysisError) Error() string  { return e.Message }

// New returns an HTTP handler exposing the analysis API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return origin == cfg.AllowedOrigin || strings.HasPrefix(origin, "http://localhost")
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))

	hcfg := huma.DefaultConfig("Talentworth API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAnalyses(group, cfg.Engine, logger)
	registerMe(group, cfg.Engine)
	registerCatalog(group)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// analysisStatusError maps engine failures onto the analysis error
// contract: 403 SUBSCRIPTION_REQUIRED, 400 with every field error, 500
// infrastructure, 502 upstream/parse and 504 timeout with the tracking
// request id.
func analysisStatusError(err error) huma.StatusError {
	var vErr *engine.ValidationError
	if errors.As(err, &vErr) {
		return &analysisError{
			status:      http.StatusBadRequest,
			Message:     "input validation failed",
			FieldErrors: vErr.Fields,
		}
	}
	if errors.Is(err, engine.ErrNotEntitled) {
		return &analysisError{
			status:  http.StatusForbidden,
			Message: "premium subscription required",
			Code:    "SUBSCRIPTION_REQUIRED",
		}
	}
	var lookupErr *engine.EntitlementLookupError
	if errors.As(err, &lookupErr) {
		return &analysisError{
			status:  http.StatusInternalServerError,
			Message: "profile lookup failed",
		}
	}
	var infraErr *engine.InfraError
	if errors.As(err, &infraErr) {
		return &analysisError{
			status:    http.StatusInternalServerError,
			Message:   "analysis could not be saved",
			RequestID: infraErr.RequestID,
		}
	}
	var timeoutErr *engine.ModelTimeoutError
	if errors.As(err, &timeoutErr) {
		return &analysisError{
			status:    http.StatusGatewayTimeout,
			Message:   "analysis timed out, please try again later",
			RequestID: timeoutErr.RequestID,
		}
	}
	var parseErr *engine.ModelParseError
	if errors.As(err, &parseErr) {
		return &analysisError{
			status:    http.StatusBadGateway,
			Message:   "analysis response could not be parsed, please try again later",
			RequestID: parseErr.RequestID,
		}
	}
	var upstreamErr *engine.ModelUpstreamError
	if errors.As(err, &upstreamErr) {
		return &analysisError{
			status:    http.StatusBadGateway,
			Message:   "analysis failed, please try again later",
			RequestID: upstreamErr.RequestID,
		}
	}
	return &analysisError{status: http.StatusInternalServerError, Message: "internal error"}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAnalyses(api huma.API, e engine.Engine, logger *slog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "create-analysis",
		Method:      http.MethodPost,
		Path:        "/analyses",
		Summary:     "Run a market-value analysis",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusGatewayTimeout,
		},
	}, func(ctx context.Context, input *struct {
		Body AnalyzeRequest `json:"body"`
	}) (*struct {
		Body AnalyzeResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		result, err := e.Analyze(ctx, userID, input.Body.raw())
		if err != nil {
			statusErr := analysisStatusError(err)
			if statusErr.GetStatus() >= http.StatusInternalServerError {
				logger.Error("analysis failed", "user_id", userID, "error", err)
			}
			return nil, statusErr
		}
		return &struct {
			Body AnalyzeResponse `json:"body"`
		}{Body: analyzeResponse(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-analyses",
		Method:      http.MethodGet,
		Path:        "/analyses",
		Summary:     "List own analysis requests",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"200"`
	}) (*struct {
		Body []AnalysisRequestResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reqs, err := e.ListAnalyses(ctx, userID, input.Limit)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "could not list analyses", nil)
		}
		out := make([]AnalysisRequestResponse, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, requestResponse(r))
		}
		return &struct {
			Body []AnalysisRequestResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-analysis",
		Method:      http.MethodGet,
		Path:        "/analyses/{id}",
		Summary:     "Get one analysis request with its result",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AnalysisDetailResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, result, err := e.GetAnalysis(ctx, userID, input.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "analysis request not found", nil)
		}
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "could not load analysis", nil)
		}
		detail := AnalysisDetailResponse{Request: requestResponse(req)}
		if result != nil {
			resp := analyzeResponse(*result)
			detail.Result = &resp
		}
		return &struct {
			Body AnalysisDetailResponse `json:"body"`
		}{Body: detail}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get own profile",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProfile(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "profile not found", nil)
		}
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "could not load profile", nil)
		}
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: ProfileResponse{
			ID:                    p.ID,
			Name:                  p.Name,
			Email:                 p.Email,
			SubscriptionStatus:    p.SubscriptionStatus,
			SubscriptionExpiresAt: p.SubscriptionExpiresAt,
		}}, nil
	})
}

func registerCatalog(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-job-roles",
		Method:      http.MethodGet,
		Path:        "/catalog/jobs",
		Summary:     "List supported job roles and education levels",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Roles           []jobs.Role `json:"roles"`
			EducationLevels []string    `json:"education_levels"`
		} `json:"body"`
	}, error) {
		resp := &struct {
			Body struct {
				Roles           []jobs.Role `json:"roles"`
				EducationLevels []string    `json:"education_levels"`
			} `json:"body"`
		}{}
		resp.Body.Roles = jobs.Roles
		resp.Body.EducationLevels = jobs.EducationLevels
		return resp, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join("/", basePath, "health"):       true,
		path.Join("/", basePath, "catalog/jobs"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Talentworth API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({ url: %q, dom_id: "#swagger-ui" });
      };
    </script>
  </body>
</html>`, specURL)
}
