package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prestige-dev/prestige/internal/problems"
)

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{ID: "test", hub: hub, send: make(chan *Event, 4)}
	hub.Register(client)

	// Registration goes through the hub goroutine.
	deadline := time.After(2 * time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	hub.Broadcast(&Event{Type: EventTypeSystem, Content: "hello"})

	select {
	case event := <-client.send:
		if event.Type != EventTypeSystem || event.Content != "hello" {
			t.Errorf("event = %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestHubDropsStalledClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	// An unbuffered channel nobody reads stalls on the first broadcast.
	client := &Client{ID: "stalled", hub: hub, send: make(chan *Event)}
	hub.Register(client)

	deadline := time.After(2 * time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	hub.Broadcast(&Event{Type: EventTypeSystem, Content: "hello"})

	deadline = time.After(2 * time.Second)
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("stalled client was never removed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPublishCommandAndIntegration(t *testing.T) {
	s := NewServer(0, nil, false)
	go s.hub.Run()
	defer s.hub.Stop()

	client := &Client{ID: "test", hub: s.hub, send: make(chan *Event, 4)}
	s.hub.Register(client)

	deadline := time.After(2 * time.Second)
	for s.hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.PublishCommand("session-1", "rebuild")
	s.PublishIntegration("session-1", "stripe")

	for _, want := range []struct{ eventType, content string }{
		{EventTypeCommand, "rebuild"},
		{EventTypeIntegration, "stripe"},
	} {
		select {
		case event := <-client.send:
			if event.Type != want.eventType || event.Content != want.content {
				t.Errorf("event = %+v, want type %s content %s", event, want.eventType, want.content)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s event never arrived", want.eventType)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := NewServer(0, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestReportEndpoint(t *testing.T) {
	s := NewServer(0, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before report = %d", rec.Code)
	}

	report := problems.NewReport("/project", []problems.Problem{
		{File: "a.ts", Line: 1, Column: 1, Message: "broken", Severity: problems.SeverityError},
	})
	s.PublishReport("session-1", report)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status after report = %d", rec.Code)
	}

	var got problems.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalErrors != 1 || len(got.Problems) != 1 {
		t.Errorf("report = %+v", got)
	}
}
