package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"

	"github.com/juanmh10/RAG-AWS/internal/ai"
	"github.com/juanmh10/RAG-AWS/internal/blob"
	"github.com/juanmh10/RAG-AWS/internal/indexstore"
	"github.com/juanmh10/RAG-AWS/internal/ledger"
	"github.com/juanmh10/RAG-AWS/internal/quota"
	"github.com/juanmh10/RAG-AWS/internal/session"
	"github.com/juanmh10/RAG-AWS/internal/worker"
)

type stubExtractor struct {
	pages []string
	err   error
}

func (s *stubExtractor) Extract(context.Context, []byte) ([]string, error) {
	return s.pages, s.err
}

type stubEmbedder struct{}

func (stubEmbedder) Model() string { return "stub" }

func (stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, 4)
	for i, r := range text {
		vec[i%4] += float64(r % 61)
	}
	return vec, nil
}

type stubCompleter struct {
	answer string
	err    error
}

func (s *stubCompleter) Generate(context.Context, []*schema.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type testServer struct {
	router    *gin.Engine
	extractor *stubExtractor
	completer *stubCompleter
}

func newTestServer(t *testing.T, maxWords int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	artifacts := blob.NewMemoryStore()
	extractor := &stubExtractor{pages: []string{"the answer to everything is forty two"}}
	completer := &stubCompleter{answer: "forty two"}

	svc := session.NewService(
		blob.NewMemoryStore(),
		indexstore.New(artifacts, nil),
		ledger.New(artifacts),
		quota.NewTracker(quota.NewMemoryBackend(), maxWords),
		extractor,
		stubEmbedder{},
		completer,
		worker.NewManager(16, time.Minute, nil),
		session.Options{ChunkSize: 1000, ChunkOverlap: 150, TopK: 6},
		nil,
	)

	router := gin.New()
	NewHandler(svc, nil).RegisterRoutes(router)
	return &testServer{router: router, extractor: extractor, completer: completer}
}

func doRequest(t *testing.T, router *gin.Engine, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(t, router, req, cookies)
}

func doUpload(t *testing.T, router *gin.Engine, filename string, content []byte, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return doRequest(t, router, req, cookies)
}

func assertStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("status %d, want %d (body %s)", resp.Code, want, resp.Body.String())
	}
}

func decodeJSON(t *testing.T, data []byte, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode json: %v (%s)", err, data)
	}
}

// pdfBytes sniffs as application/pdf.
func pdfBytes() []byte {
	return []byte("%PDF-1.4\nfake document body for tests\n%%EOF")
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	ts := newTestServer(t, 10000)

	resp := doJSONRequest(t, ts.router, http.MethodGet, "/status", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	cookies := resp.Result().Cookies()
	var sessionCk *http.Cookie
	for _, ck := range cookies {
		if ck.Name == sessionCookieName {
			sessionCk = ck
		}
	}
	if sessionCk == nil || sessionCk.Value == "" {
		t.Fatal("expected a session cookie on first contact")
	}

	// A returning client keeps its cookie.
	resp = doRequest(t, ts.router, httptest.NewRequest(http.MethodGet, "/status", nil), []*http.Cookie{sessionCk})
	assertStatus(t, resp, http.StatusOK)
	for _, ck := range resp.Result().Cookies() {
		if ck.Name == sessionCookieName {
			t.Fatalf("cookie reissued for a returning client: %v", ck)
		}
	}
}

func TestUploadStatusChatFlow(t *testing.T) {
	ts := newTestServer(t, 10000)

	// Status before any upload.
	resp := doJSONRequest(t, ts.router, http.MethodGet, "/status", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	ck := resp.Result().Cookies()
	var body struct {
		Status   string `json:"status"`
		Filename string `json:"filename"`
		Answer   string `json:"answer"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != "none" {
		t.Fatalf("expected status none, got %q", body.Status)
	}

	// Chat before upload is rejected.
	resp = doJSONRequest(t, ts.router, http.MethodPost, "/chat", map[string]string{"question": "hello"}, ck)
	assertStatus(t, resp, http.StatusConflict)

	// Upload, then the session is ready.
	resp = doUpload(t, ts.router, "paper.pdf", pdfBytes(), ck)
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, ts.router, http.MethodGet, "/status", nil, ck)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != ledger.StatusReady || body.Filename != "paper.pdf" {
		t.Fatalf("unexpected status body: %s", resp.Body.String())
	}

	// Ask a question.
	resp = doJSONRequest(t, ts.router, http.MethodPost, "/chat", map[string]string{"question": "what is the answer"}, ck)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Answer != "forty two" {
		t.Fatalf("unexpected answer %q", body.Answer)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t, 10000)
	resp := doUpload(t, ts.router, "image.png", []byte("\x89PNG\r\n\x1a\nbinary"), nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadRequiresFile(t *testing.T) {
	ts := newTestServer(t, 10000)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := doRequest(t, ts.router, req, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadExtractionFailure(t *testing.T) {
	ts := newTestServer(t, 10000)
	ts.extractor.pages = nil
	ts.extractor.err = errors.New("pdf parser exploded")

	resp := doUpload(t, ts.router, "bad.pdf", pdfBytes(), nil)
	assertStatus(t, resp, http.StatusInternalServerError)

	// The failure is visible through /status.
	ck := resp.Result().Cookies()
	resp = doJSONRequest(t, ts.router, http.MethodGet, "/status", nil, ck)
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != ledger.StatusError || body.Message == "" {
		t.Fatalf("expected error status with message, got %s", resp.Body.String())
	}
}

func TestChatValidation(t *testing.T) {
	ts := newTestServer(t, 10000)

	resp := doJSONRequest(t, ts.router, http.MethodPost, "/chat", map[string]string{"question": "   "}, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp = doRequest(t, ts.router, req, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestChatQuotaExceeded(t *testing.T) {
	ts := newTestServer(t, 3)

	resp := doUpload(t, ts.router, "doc.pdf", pdfBytes(), nil)
	assertStatus(t, resp, http.StatusOK)
	ck := resp.Result().Cookies()

	// First exchange passes the gate and overdraws the 3 word budget.
	resp = doJSONRequest(t, ts.router, http.MethodPost, "/chat", map[string]string{"question": "what is the answer"}, ck)
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, ts.router, http.MethodPost, "/chat", map[string]string{"question": "again"}, ck)
	assertStatus(t, resp, http.StatusRequestEntityTooLarge)

	// The purge that quota exhaustion triggers resets the session.
	resp = doJSONRequest(t, ts.router, http.MethodGet, "/status", nil, ck)
	var body struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != "none" {
		t.Fatalf("expected purged session, got %s", resp.Body.String())
	}
}

func TestChatModelBackendDown(t *testing.T) {
	ts := newTestServer(t, 10000)

	resp := doUpload(t, ts.router, "doc.pdf", pdfBytes(), nil)
	assertStatus(t, resp, http.StatusOK)
	ck := resp.Result().Cookies()

	ts.completer.err = ai.ErrCompletionUnavailable

	resp = doJSONRequest(t, ts.router, http.MethodPost, "/chat", map[string]string{"question": "anything"}, ck)
	assertStatus(t, resp, http.StatusBadGateway)
}

func TestCleanupEndpoint(t *testing.T) {
	ts := newTestServer(t, 10000)

	resp := doUpload(t, ts.router, "doc.pdf", pdfBytes(), nil)
	assertStatus(t, resp, http.StatusOK)
	ck := resp.Result().Cookies()

	resp = doRequest(t, ts.router, httptest.NewRequest(http.MethodPost, "/cleanup", nil), ck)
	assertStatus(t, resp, http.StatusNoContent)

	resp = doJSONRequest(t, ts.router, http.MethodGet, "/status", nil, ck)
	var body struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != "none" {
		t.Fatalf("expected status none after cleanup, got %s", resp.Body.String())
	}

	// Cleanup of an already clean session is fine.
	resp = doRequest(t, ts.router, httptest.NewRequest(http.MethodPost, "/cleanup", nil), ck)
	assertStatus(t, resp, http.StatusNoContent)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 10000)
	resp := doRequest(t, ts.router, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assertStatus(t, resp, http.StatusOK)
}
