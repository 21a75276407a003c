package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shaiso/dispatch-engine/internal/dispatcher"
	"github.com/shaiso/dispatch-engine/internal/domain"
	"github.com/shaiso/dispatch-engine/internal/eventbus"
	"github.com/shaiso/dispatch-engine/internal/queue"
	"github.com/shaiso/dispatch-engine/internal/ratelimit"
	"github.com/shaiso/dispatch-engine/internal/registry"
)

func newTestHandler(t *testing.T) (*Handler, *queue.Store, *registry.Registry, chi.Router) {
	t.Helper()

	bus := eventbus.New(nil)
	q := queue.New(queue.Config{DefaultMaxAttempts: 3, Bus: bus})
	reg := registry.New(bus)
	bucket := ratelimit.NewBucket(50, 50, ratelimit.RealClock)

	disp := dispatcher.New(dispatcher.Config{
		Queue:       q,
		Registry:    reg,
		RateLimiter: bucket,
		Bus:         bus,
	})

	h := NewHandler(Config{
		Queue:       q,
		Dispatcher:  disp,
		Registry:    reg,
		RateLimiter: bucket,
	})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, q, reg, r
}

func doRequest(r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Enqueue_Created(t *testing.T) {
	_, _, _, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/queue/enqueue", EnqueueRequest{
		URL:      "https://example.com/image.png",
		Priority: "high",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var dr DataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dr); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandler_Enqueue_BadRequest(t *testing.T) {
	_, _, _, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/queue/enqueue", EnqueueRequest{URL: ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_GetQueueItem_NotFound(t *testing.T) {
	_, _, _, r := newTestHandler(t)

	rec := doRequest(r, http.MethodGet, "/queue/item/"+"00000000-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_GetQueueItem_Found(t *testing.T) {
	_, q, _, r := newTestHandler(t)

	job, err := q.Enqueue(domain.Payload{URL: "https://example.com/a.png"}, domain.PriorityNormal, 0, "corr-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rec := doRequest(r, http.MethodGet, "/queue/item/"+job.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CancelQueueItem_NotCancellable(t *testing.T) {
	_, q, _, r := newTestHandler(t)

	job, _ := q.Enqueue(domain.Payload{URL: "https://example.com/a.png"}, domain.PriorityNormal, 0, "")
	popped := q.Pop()
	if popped == nil || popped.ID != job.ID {
		t.Fatal("expected to pop the only job")
	}
	q.MarkProcessing(popped, "ext-1")

	rec := doRequest(r, http.MethodDelete, "/queue/item/"+job.ID.String(), nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_QueueStatus_Shape(t *testing.T) {
	_, _, _, r := newTestHandler(t)

	rec := doRequest(r, http.MethodGet, "/queue/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var dr DataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dr); err != nil {
		t.Fatalf("decode: %v", err)
	}

	raw, err := json.Marshal(dr.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var status QueueStatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.LaneDepths == nil {
		t.Fatal("expected lane_depths to be present")
	}
}

func TestHandler_ListSessions(t *testing.T) {
	_, _, reg, r := newTestHandler(t)

	session := &domain.ExtensionSession{
		ID:          "ext-1",
		Status:      domain.SessionConnected,
		ConnectedAt: time.Now(),
	}
	if err := reg.Register(session, &stubSender{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	rec := doRequest(r, http.MethodGet, "/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var lr ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lr.Total != 1 {
		t.Fatalf("expected 1 session, got %d", lr.Total)
	}
}

func TestHandler_Drain_NoContent(t *testing.T) {
	_, _, _, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/admin/drain", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

type stubSender struct{}

func (stubSender) Send(frame any) error            { return nil }
func (stubSender) Close(code int, reason string) error { return nil }
