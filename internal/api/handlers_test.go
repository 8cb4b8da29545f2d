package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/RishiKendai/aegis-local/internal/config"
	"github.com/RishiKendai/aegis-local/internal/corpus"
	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/RishiKendai/aegis-local/internal/plagiarism"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeCorpus struct {
	docs corpus.Corpus
	err  error
}

func (f *fakeCorpus) Load(ctx context.Context) (corpus.Corpus, error) {
	return f.docs, f.err
}

type fakeQueue struct {
	mu          sync.Mutex
	submissions []*models.Submission
	err         error
}

func (q *fakeQueue) Enqueue(ctx context.Context, submission *models.Submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.submissions = append(q.submissions, submission)
	return nil
}

type fakeStatusStore struct {
	mu    sync.Mutex
	steps map[string]models.Step
}

func (s *fakeStatusStore) UpdateStatus(ctx context.Context, checkID string, step models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[checkID] = step
	return nil
}

func (s *fakeStatusStore) GetStatus(ctx context.Context, checkID string) (models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[checkID]
	if !ok {
		return "", plagiarism.ErrUnknownCheck
	}
	return step, nil
}

type fakeReportReader struct {
	reports   map[string]*models.CheckReport
	err       error
	lastLimit int64
}

func (r *fakeReportReader) GetReportByCheckID(ctx context.Context, checkID string) (*models.CheckReport, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.reports[checkID], nil
}

func (r *fakeReportReader) GetReportsBySubmissionID(ctx context.Context, submissionID string, limit int64) ([]*models.CheckReport, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.lastLimit = limit
	var out []*models.CheckReport
	for _, report := range r.reports {
		if report.SubmissionID == submissionID {
			out = append(out, report)
		}
	}
	return out, nil
}

type testServer struct {
	router  *gin.Engine
	corpus  *fakeCorpus
	queue   *fakeQueue
	status  *fakeStatusStore
	reports *fakeReportReader
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		JWTSecret:         testSecret,
		JWTIssuer:         "aegis",
		RateLimitRPS:      100,
		MaxConcurrentSync: 2,
		MaxTextBytes:      64,
	}
	ts := &testServer{
		corpus: &fakeCorpus{docs: corpus.Corpus{
			{ID: "docA", Text: "the quick brown fox"},
			{ID: "docB", Text: "completely unrelated text about cars"},
		}},
		queue:   &fakeQueue{},
		status:  &fakeStatusStore{steps: map[string]models.Step{}},
		reports: &fakeReportReader{reports: map[string]*models.CheckReport{}},
	}
	ts.router = SetupRoutes(ctx, cfg, Dependencies{
		Corpus:  ts.corpus,
		Queue:   ts.queue,
		Status:  ts.status,
		Reports: ts.reports,
	})
	return ts
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validToken(t *testing.T) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"iss":     "aegis",
		"api_key": "tester",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func Test_Health(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func Test_Score(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{Text: "The quick brown fox!"}, validToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	var report models.CheckReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 100, report.TokenSet.Score)
	assert.Equal(t, "docA", report.TokenSet.Source)
	assert.Equal(t, 100, report.Fingerprint.Score)
	assert.Equal(t, "docA", report.Source)
	assert.Equal(t, models.RiskNearCopy, report.Risk)
	assert.Equal(t, 2, report.CorpusSize)
}

func Test_Score_EmptyCorpus(t *testing.T) {
	ts := newTestServer(t)
	ts.corpus.docs = corpus.Corpus{}

	w := ts.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{Text: "anything"}, validToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	var report models.CheckReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, models.SimilarityResult{}, report.TokenSet)
	assert.Equal(t, models.SimilarityResult{}, report.Fingerprint)
	assert.Equal(t, plagiarism.MaxDistance, report.Distance)
}

func Test_Score_TextTooLarge(t *testing.T) {
	ts := newTestServer(t)

	text := string(bytes.Repeat([]byte("a"), 65))
	w := ts.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{Text: text}, validToken(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TEXT", decodeError(t, w).Code)
}

func Test_Score_CorpusUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.corpus.err = fmt.Errorf("failed to read corpus: %w", corpus.ErrStorageUnavailable)

	w := ts.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{Text: "fox"}, validToken(t))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "CORPUS_UNAVAILABLE", decodeError(t, w).Code)
}

func Test_Score_Unauthorized(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", signToken(t, "other", jwt.MapClaims{"iss": "aegis"})},
		{"wrong issuer", signToken(t, testSecret, jwt.MapClaims{"iss": "someone-else"})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{
			"iss": "aegis",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/score", models.ScoreRequest{Text: "fox"}, tt.token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Code)
		})
	}
}

func Test_SubmitCheck(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/checks", models.CheckRequest{
		SubmissionID: "sub-1",
		Text:         "the quick brown fox",
	}, validToken(t))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp models.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StepQueued, resp.Step)
	assert.NotEmpty(t, resp.CheckID)

	require.Len(t, ts.queue.submissions, 1)
	assert.Equal(t, resp.CheckID, ts.queue.submissions[0].CheckID)
	assert.Equal(t, "sub-1", ts.queue.submissions[0].SubmissionID)
	assert.Equal(t, models.StepQueued, ts.status.steps[resp.CheckID])
}

func Test_SubmitCheck_MissingText(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/checks", models.CheckRequest{SubmissionID: "sub-1"}, validToken(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.queue.submissions)
}

func Test_SubmitCheck_QueueUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.err = errors.New("redis down")

	w := ts.do(t, http.MethodPost, "/api/v1/checks", models.CheckRequest{Text: "fox"}, validToken(t))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "QUEUE_UNAVAILABLE", decodeError(t, w).Code)
}

func Test_GetCheck(t *testing.T) {
	ts := newTestServer(t)
	ts.reports.reports["done"] = &models.CheckReport{
		CheckID: "done",
		Score:   91,
		Source:  "docA",
		Status:  models.StepCompleted,
	}
	ts.status.steps["pending"] = models.StepScoring

	t.Run("completed", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/checks/done", nil, validToken(t))
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.CheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.StepCompleted, resp.Step)
		require.NotNil(t, resp.Report)
		assert.Equal(t, 91, resp.Report.Score)
	})

	t.Run("pending", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/checks/pending", nil, validToken(t))
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.CheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.StepScoring, resp.Step)
		assert.Nil(t, resp.Report)
	})

	t.Run("unknown", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/checks/missing", nil, validToken(t))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "CHECK_NOT_FOUND", decodeError(t, w).Code)
	})
}

func Test_GetCheck_ReportStoreError(t *testing.T) {
	ts := newTestServer(t)
	ts.reports.err = errors.New("mongo down")

	w := ts.do(t, http.MethodGet, "/api/v1/checks/any", nil, validToken(t))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.Equal(t, "Failed to get report", resp.Error)
}

func Test_ListCorpus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/corpus", nil, validToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Documents []models.CorpusEntry `json:"documents"`
		Count     int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []models.CorpusEntry{
		{ID: "docA", Chars: 19},
		{ID: "docB", Chars: 36},
	}, resp.Documents)
}

func Test_ListSubmissionChecks(t *testing.T) {
	ts := newTestServer(t)
	ts.reports.reports["c1"] = &models.CheckReport{CheckID: "c1", SubmissionID: "sub-1", Status: models.StepCompleted}
	ts.reports.reports["c2"] = &models.CheckReport{CheckID: "c2", SubmissionID: "sub-2", Status: models.StepCompleted}

	w := ts.do(t, http.MethodGet, "/api/v1/submissions/sub-1/checks?limit=500", nil, validToken(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(maxHistoryLimit), ts.reports.lastLimit)

	var resp struct {
		SubmissionID string                `json:"submissionId"`
		Reports      []*models.CheckReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sub-1", resp.SubmissionID)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "c1", resp.Reports[0].CheckID)

	empty := ts.do(t, http.MethodGet, "/api/v1/submissions/nobody/checks", nil, validToken(t))
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Equal(t, int64(defaultHistoryLimit), ts.reports.lastLimit)
	assert.Contains(t, empty.Body.String(), `"reports":[]`)

	bad := ts.do(t, http.MethodGet, "/api/v1/submissions/sub-1/checks?limit=zero", nil, validToken(t))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}
