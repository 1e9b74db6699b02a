package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"talentworth/internal/config"
	"talentworth/internal/db"
	"talentworth/internal/domain"
	"talentworth/internal/engine"
	"talentworth/internal/llm"
	"talentworth/internal/migrate"
	"talentworth/internal/server"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

// modelContent is a schema-conforming analysis payload the fake model
// endpoint returns.
const modelContent = `{
  "salaryRange": {"min": 4800.4, "mid": 6200.5, "max": 7899.6},
  "companyTypes": [
    {"type": "startup", "matchLevel": "high", "description": "빠른 성장 환경에 적합"},
    {"type": "midsize", "matchLevel": "medium", "description": "안정적인 성장 단계"},
    {"type": "enterprise", "matchLevel": "low", "description": "대규모 조직 경험 부족"}
  ],
  "strengths": [
    {"title": "클라우드 역량", "description": "AWS 실무 경험", "percentile": 20},
    {"title": "데이터 처리", "description": "SQL 기반 분석", "percentile": 30},
    {"title": "경력 안정성", "description": "5년 연속 경력", "percentile": 25}
  ],
  "sampleSize": 1200,
  "confidenceScore": 0.8
}`

func completionEnvelope(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return body
}

func newTestServer(t *testing.T, modelHandler http.HandlerFunc, timeoutSeconds int) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	modelSrv := httptest.NewServer(modelHandler)

	cfg := config.Default()
	cfg.Model.Endpoint = modelSrv.URL
	cfg.Model.TimeoutSeconds = timeoutSeconds
	client := llm.NewClient(cfg.Model, "test-key")
	e := engine.New(conn, cfg, client, nil)

	handler, err := server.New(server.Config{
		Engine:        e,
		BasePath:      "/v0",
		AllowedOrigin: "https://app.talentworth.example",
		Auth:          server.AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			modelSrv.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func okModel(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(modelContent))
	}
}

func seedProfile(t *testing.T, e engine.Engine, id, status string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	err := e.Repo.UpsertProfile(context.Background(), domain.Profile{
		ID:                 id,
		Name:               "Tester",
		Email:              "tester@example.com",
		SubscriptionStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func issueToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := server.IssueToken(testSecret, userID, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func validBody() map[string]any {
	return map[string]any{
		"jobTitle":          "backend",
		"yearsOfExperience": 5,
		"skills":            []string{"SQL", "AWS"},
		"education":         "대졸",
	}
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAnalyzeRequiresAuth(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(), nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(),
		authHeader("not-a-token"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 for garbage token, got %d", res.StatusCode)
	}
}

func TestAnalyzeSubscriptionRequired(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	seedProfile(t, srv.Engine, "u-free", domain.SubscriptionFree)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(),
		authHeader(issueToken(t, "u-free")))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403, got %d: %s", res.StatusCode, data)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Code != "SUBSCRIPTION_REQUIRED" {
		t.Fatalf("want code SUBSCRIPTION_REQUIRED, got %s", data)
	}
}

func TestAnalyzeValidationErrors(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)

	body := validBody()
	body["jobTitle"] = "astronaut"
	body["yearsOfExperience"] = 40
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", body,
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d: %s", res.StatusCode, data)
	}
	var errBody struct {
		FieldErrors []struct {
			Field string `json:"field"`
		} `json:"fieldErrors"`
	}
	if err := json.Unmarshal(data, &errBody); err != nil {
		t.Fatalf("unmarshal error body: %v: %s", err, data)
	}
	if len(errBody.FieldErrors) != 2 {
		t.Fatalf("want 2 field errors, got %s", data)
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(),
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", res.StatusCode, data)
	}
	var body struct {
		RequestID   string `json:"requestId"`
		ResultID    string `json:"resultId"`
		SalaryRange struct {
			Min int `json:"min"`
			Mid int `json:"mid"`
			Max int `json:"max"`
		} `json:"salaryRange"`
		CompanyTypes []struct {
			Type string `json:"type"`
		} `json:"companyTypes"`
		Strengths       []any   `json:"strengths"`
		SampleSize      int     `json:"sampleSize"`
		ConfidenceScore float64 `json:"confidenceScore"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v: %s", err, data)
	}
	if body.RequestID == "" || body.ResultID == "" {
		t.Fatalf("missing ids: %s", data)
	}
	if body.SalaryRange.Min != 4800 || body.SalaryRange.Mid != 6201 || body.SalaryRange.Max != 7900 {
		t.Fatalf("salary not rounded: %+v", body.SalaryRange)
	}
	if len(body.CompanyTypes) != 3 || len(body.Strengths) != 3 {
		t.Fatalf("cardinalities wrong: %s", data)
	}
	types := map[string]bool{}
	for _, ct := range body.CompanyTypes {
		types[ct.Type] = true
	}
	if !types["startup"] || !types["midsize"] || !types["enterprise"] {
		t.Fatalf("company types incomplete: %s", data)
	}

	// Round-trip: the detail endpoint serves the persisted values.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/analyses/"+body.RequestID, nil,
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get analysis: want 200, got %d: %s", res.StatusCode, data)
	}
	var detail struct {
		Request struct {
			Status string `json:"status"`
		} `json:"request"`
		Result *struct {
			SalaryRange struct {
				Min int `json:"min"`
				Mid int `json:"mid"`
				Max int `json:"max"`
			} `json:"salaryRange"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v: %s", err, data)
	}
	if detail.Request.Status != "completed" {
		t.Fatalf("request status %q, want completed", detail.Request.Status)
	}
	if detail.Result == nil || detail.Result.SalaryRange != body.SalaryRange {
		t.Fatalf("persisted salary differs from response: %s", data)
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "provider down", http.StatusInternalServerError)
	}, 30)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(),
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("want 502, got %d: %s", res.StatusCode, data)
	}
	if calls != 1 {
		t.Fatalf("upstream failure must not retry, got %d calls", calls)
	}
	var body struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.RequestID == "" {
		t.Fatalf("502 must reference request id: %s", data)
	}
	req, err := srv.Engine.Repo.GetAnalysisRequest(context.Background(), body.RequestID)
	if err != nil || req.Status != domain.StatusFailed {
		t.Fatalf("request not failed: %v %q", err, req.Status)
	}
}

func TestAnalyzeParseFailureRetriesThen502(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(completionEnvelope("not json"))
	}, 30)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(),
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("want 502, got %d: %s", res.StatusCode, data)
	}
	if calls != 2 {
		t.Fatalf("parse failure should retry once, got %d calls", calls)
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 1)
	defer close(release)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(),
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d: %s", res.StatusCode, data)
	}
	if calls != 2 {
		t.Fatalf("timeout should retry once, got %d calls", calls)
	}
	var body struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.RequestID == "" {
		t.Fatalf("504 must reference request id: %s", data)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v0/analyses", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("preflight status %d", res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin %q", got)
	}
	allowed := strings.ToLower(res.Header.Get("Access-Control-Allow-Headers"))
	if !strings.Contains(allowed, "authorization") {
		t.Fatalf("allow-headers %q", allowed)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v0/analyses", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be allowed, got %q", got)
	}
}

func TestGetMe(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil,
		authHeader(issueToken(t, "u1")))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", res.StatusCode, data)
	}
	var body struct {
		ID                 string `json:"id"`
		SubscriptionStatus string `json:"subscription_status"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.ID != "u1" || body.SubscriptionStatus != domain.SubscriptionPremium {
		t.Fatalf("unexpected profile: %s", data)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/catalog/jobs", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", res.StatusCode, data)
	}
	var body struct {
		Roles           []struct{ ID string } `json:"roles"`
		EducationLevels []string              `json:"education_levels"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Roles) != 16 || len(body.EducationLevels) != 6 {
		t.Fatalf("catalog sizes wrong: %d roles, %d education levels", len(body.Roles), len(body.EducationLevels))
	}
}

func TestListAnalyses(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	seedProfile(t, srv.Engine, "u1", domain.SubscriptionPremium)
	token := issueToken(t, "u1")

	for i := 0; i < 2; i++ {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/analyses", validBody(), authHeader(token))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("analyze %d: %d %s", i, res.StatusCode, data)
		}
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/analyses", nil, authHeader(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", res.StatusCode, data)
	}
	var list []struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal: %v: %s", err, data)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 requests, got %d", len(list))
	}
	for _, item := range list {
		if item.Status != "completed" {
			t.Fatalf("unexpected status %q", item.Status)
		}
	}
}

func TestOpenAPIIsPublic(t *testing.T) {
	srv := newTestServer(t, okModel(t), 30)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", res.StatusCode, data)
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	if _, ok := doc.Paths["/v0/analyses"]; !ok {
		t.Fatalf("analyses path missing from document")
	}
}
