package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"shook/internal/config"
	"shook/internal/deployment"
	"shook/internal/event"
	"shook/internal/history"
	"shook/internal/hook"
)

const (
	testSecret = "test-secret-at-least-32-chars-long-here"
	testGUID   = "72d3162e-cc78-11e3-81ab-4c9367dc0958"
	pingBody   = `{"zen":"keep it logically awesome."}`
)

// fakeSubmitter records submitted targets and answers with a fixed result.
type fakeSubmitter struct {
	mu      sync.Mutex
	targets []deployment.Target
	result  deployment.Result
	err     error
	hold    chan struct{} // when set, results wait for it to close
}

func (f *fakeSubmitter) Submit(t deployment.Target) (<-chan deployment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.targets = append(f.targets, t)
	ch := make(chan deployment.Result, 1)
	if f.hold == nil {
		ch <- f.result
		return ch, nil
	}
	go func() {
		<-f.hold
		ch <- f.result
	}()
	return ch, nil
}

func (f *fakeSubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.targets)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.ServerConfig {
	t.Helper()
	cfg := &config.ServerConfig{
		Username:     "deploy",
		RepoPath:     t.TempDir(),
		SystemName:   "app",
		UpdateEvents: []event.Kind{event.KindPush},
		Addr:         config.TCP("127.0.0.1:0"),
	}
	cfg.ApplyDefaults()
	return cfg
}

func setupTestServer(t *testing.T, sub Submitter) *Server {
	t.Helper()
	server, err := NewServer(Options{
		Config:     testConfig(t),
		Secret:     testSecret,
		Dispatcher: sub,
		Logger:     quietLogger(),
		TestMode:   true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func setupServerWithHistory(t *testing.T, sub Submitter) (*Server, *history.History) {
	t.Helper()
	hist, err := history.NewHistory(filepath.Join(t.TempDir(), "shook.db"))
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	server, err := NewServer(Options{
		Config:     testConfig(t),
		Secret:     testSecret,
		Dispatcher: sub,
		History:    hist,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server, hist
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "event", "testdata", name))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return data
}

// webhookRequest builds a signed delivery. A header value of "" removes it.
func webhookRequest(eventName string, body []byte, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(hook.HeaderEvent, eventName)
	req.Header.Set(hook.HeaderDelivery, testGUID)
	req.Header.Set(hook.HeaderSignature256, hook.Sign([]byte(testSecret), hook.SHA256, body))
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	return req
}

func serve(server *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandleWebhook_EventNotInUpdateEvents(t *testing.T) {
	sub := &fakeSubmitter{}
	server := setupTestServer(t, sub)

	rr := serve(server, webhookRequest("ping", []byte(pingBody), nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if sub.calls() != 0 {
		t.Errorf("Expected no deploy for ping, got %d", sub.calls())
	}
	if rr.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", rr.Body.String())
	}
}

func TestHandleWebhook_PushDeploys(t *testing.T) {
	sub := &fakeSubmitter{result: deployment.Result{Report: &deployment.Report{Duration: time.Second}}}
	server := setupTestServer(t, sub)

	rr := serve(server, webhookRequest("push", readFixture(t, "push.json"), nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if sub.calls() != 1 {
		t.Fatalf("Expected 1 deploy, got %d", sub.calls())
	}
	if got := sub.targets[0]; got.SystemName != "app" || got.Branch != "main" || got.Remote != "origin" {
		t.Errorf("Unexpected target: %+v", got)
	}
}

func TestHandleWebhook_DeployFailure(t *testing.T) {
	stepErr := &deployment.StepError{Step: deployment.StepPull, ExitCode: 1}
	sub := &fakeSubmitter{result: deployment.Result{Report: &deployment.Report{}, Err: stepErr}}
	server := setupTestServer(t, sub)

	rr := serve(server, webhookRequest("push", readFixture(t, "push.json"), nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
}

func TestHandleWebhook_QueueFull(t *testing.T) {
	sub := &fakeSubmitter{err: deployment.ErrQueueFull}
	server := setupTestServer(t, sub)

	rr := serve(server, webhookRequest("push", readFixture(t, "push.json"), nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}
}

func TestHandleWebhook_Rejections(t *testing.T) {
	body := []byte(pingBody)
	good := hook.Sign([]byte(testSecret), hook.SHA256, body)
	flipped := good[:len(good)-1] + string("0123456789abcdef"[(strings.IndexByte("0123456789abcdef", good[len(good)-1])+1)%16])

	tests := []struct {
		name           string
		eventName      string
		body           []byte
		headers        map[string]string
		expectedStatus int
	}{
		{
			name:           "wrong secret",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{hook.HeaderSignature256: hook.Sign([]byte("wrong"), hook.SHA256, body)},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "flipped digit",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{hook.HeaderSignature256: flipped},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unsigned with secret configured",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{hook.HeaderSignature256: ""},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "sha256 wins over valid sha1",
			eventName:      "ping",
			body:           body,
			headers: map[string]string{
				hook.HeaderSignature:    hook.Sign([]byte(testSecret), hook.SHA1, body),
				hook.HeaderSignature256: flipped,
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed signature",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{hook.HeaderSignature256: "sha256=zz"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing event header",
			eventName:      "",
			body:           body,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing delivery header",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{hook.HeaderDelivery: ""},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "delivery is not a uuid",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{hook.HeaderDelivery: "not-a-uuid"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unsupported content type",
			eventName:      "ping",
			body:           body,
			headers:        map[string]string{"Content-Type": "text/plain"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown event",
			eventName:      "not_an_event",
			body:           body,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "payload does not match event",
			eventName:      "push",
			body:           []byte(`{"ref":"refs/heads/main"}`),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			server := setupTestServer(t, sub)

			req := webhookRequest(tt.eventName, tt.body, tt.headers)
			if tt.eventName == "" {
				req.Header.Del(hook.HeaderEvent)
			}
			rr := serve(server, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if sub.calls() != 0 {
				t.Errorf("Expected no deploy, got %d", sub.calls())
			}
		})
	}
}

func TestHandleWebhook_PayloadTooLarge(t *testing.T) {
	server := setupTestServer(t, &fakeSubmitter{})
	server.Reader.MaxBytes = 16

	rr := serve(server, webhookRequest("ping", []byte(pingBody), nil))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
}

func TestHandleWebhook_NoSecretSkipsVerification(t *testing.T) {
	sub := &fakeSubmitter{}
	server, err := NewServer(Options{
		Config:     testConfig(t),
		Dispatcher: sub,
		Logger:     quietLogger(),
		TestMode:   true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	rr := serve(server, webhookRequest("ping", []byte(pingBody), map[string]string{hook.HeaderSignature256: ""}))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	// A signature without a secret to check it against is a server fault.
	rr = serve(server, webhookRequest("ping", []byte(pingBody), nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
}

func TestHandleWebhook_FormEncoded(t *testing.T) {
	sub := &fakeSubmitter{result: deployment.Result{Report: &deployment.Report{}}}
	server := setupTestServer(t, sub)

	body := []byte("payload=" + url.QueryEscape(string(readFixture(t, "push.json"))))
	req := webhookRequest("push", body, map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	rr := serve(server, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if sub.calls() != 1 {
		t.Errorf("Expected 1 deploy, got %d", sub.calls())
	}
}

func TestHandleWebhook_RequestEndsBeforeDeploy(t *testing.T) {
	hold := make(chan struct{})
	sub := &fakeSubmitter{hold: hold, result: deployment.Result{Report: &deployment.Report{}}}
	server, hist := setupServerWithHistory(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	req := webhookRequest("push", readFixture(t, "push.json"), nil).WithContext(ctx)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- serve(server, req) }()

	for sub.calls() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	rr := <-done
	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", rr.Code)
	}

	close(hold)
	deadline := time.Now().Add(5 * time.Second)
	for {
		latest, err := hist.Latest(context.Background())
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if latest != nil && latest.Outcome == history.OutcomeDeployed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("deploy outcome never recorded, latest=%+v", latest)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleWebhook_RecordsHistory(t *testing.T) {
	stepErr := &deployment.StepError{Step: deployment.StepRestart, ExitCode: 3}
	sub := &fakeSubmitter{result: deployment.Result{Report: &deployment.Report{}, Err: stepErr}}
	server, hist := setupServerWithHistory(t, sub)

	serve(server, webhookRequest("ping", []byte(pingBody), nil))
	serve(server, webhookRequest("ping", []byte(pingBody), map[string]string{hook.HeaderSignature256: "sha256=00"}))
	serve(server, webhookRequest("push", readFixture(t, "push.json"), nil))

	recent, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recent))
	}

	failed, rejected, skipped := recent[0], recent[1], recent[2]
	if skipped.Outcome != history.OutcomeSkipped || skipped.Event != "ping" || skipped.StatusCode != 200 {
		t.Errorf("Unexpected skipped record: %+v", skipped)
	}
	if rejected.Outcome != history.OutcomeRejected || rejected.StatusCode != 401 || rejected.ErrorMessage == nil {
		t.Errorf("Unexpected rejected record: %+v", rejected)
	}
	if failed.Outcome != history.OutcomeFailed || failed.StatusCode != 500 || failed.ExitCode == nil || *failed.ExitCode != 3 {
		t.Errorf("Unexpected failed record: %+v", failed)
	}
	if failed.GUID != testGUID || failed.ConfigFingerprint != server.Fingerprint {
		t.Errorf("Unexpected identity on record: %+v", failed)
	}
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, &fakeSubmitter{})

	rr := serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var response map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &response)

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", response["status"])
	}
	if response["system_name"] != "app" {
		t.Errorf("Expected system_name 'app', got %v", response["system_name"])
	}
	events, ok := response["update_events"].([]interface{})
	if !ok || len(events) != 1 || events[0] != "push" {
		t.Errorf("Expected update_events [push], got %v", response["update_events"])
	}
}

func TestHandleStatus_TestMode(t *testing.T) {
	server := setupTestServer(t, &fakeSubmitter{})

	rr := serve(server, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 (test mode), got %d", rr.Code)
	}

	var response map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &response)

	if response["error"] != "History not available in test mode" {
		t.Errorf("Expected test mode error, got %v", response)
	}
}

func TestHandleStatus_Success(t *testing.T) {
	server, hist := setupServerWithHistory(t, &fakeSubmitter{})

	duration := 1.5
	if _, err := hist.Record(context.Background(), &history.DeliveryRecord{
		GUID:            testGUID,
		Event:           "push",
		Outcome:         history.OutcomeDeployed,
		StatusCode:      200,
		DurationSeconds: &duration,
	}); err != nil {
		t.Fatalf("Failed to record delivery: %v", err)
	}

	rr := serve(server, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var response map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &response)

	if response["system_name"] != "app" {
		t.Errorf("Expected system_name 'app', got %v", response["system_name"])
	}
	if response["latest_delivery"] == nil {
		t.Error("Expected latest_delivery to be present")
	}
	if recent, ok := response["recent_deliveries"].([]interface{}); !ok || len(recent) != 1 {
		t.Errorf("Expected 1 recent delivery, got %v", response["recent_deliveries"])
	}
}

func TestNewServer_Errors(t *testing.T) {
	if _, err := NewServer(Options{Dispatcher: &fakeSubmitter{}}); err == nil {
		t.Error("Expected error without config")
	}
	if _, err := NewServer(Options{Config: testConfig(t)}); err == nil {
		t.Error("Expected error without dispatcher")
	}

	cfg := testConfig(t)
	cfg.PreRestartCommand = `echo "unterminated`
	if _, err := NewServer(Options{Config: cfg, Dispatcher: &fakeSubmitter{}}); err == nil {
		t.Error("Expected error for unparseable pre_restart_command")
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"too large", hook.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"secret missing", hook.ErrSecretMissing, http.StatusInternalServerError},
		{"mismatch", hook.ErrSignatureMismatch, http.StatusUnauthorized},
		{"required", hook.ErrSignatureRequired, http.StatusUnauthorized},
		{"parse", hook.ErrSignatureParse, http.StatusBadRequest},
		{"missing header", hook.ErrMissingHeader, http.StatusBadRequest},
		{"content type", hook.ErrUnsupportedContentType, http.StatusBadRequest},
		{"decode", &event.DecodeError{Path: "push.ref", Msg: "missing field"}, http.StatusBadRequest},
		{"unknown kind", &event.UnknownKindError{Name: "nope"}, http.StatusBadRequest},
		{"queue full", deployment.ErrQueueFull, http.StatusServiceUnavailable},
		{"closed", deployment.ErrClosed, http.StatusServiceUnavailable},
		{"pull failed", &deployment.StepError{Step: deployment.StepPull}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
