package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hochfrequenz/regression-orchestrator/internal/config"
)

func TestSlackNotifier_Send(t *testing.T) {
	var got SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:   "nv_small sanity regression: REGRESSION_COMPLETE",
		Message: "All selected tests passed.",
		Type:    NotifySuccess,
		RunDir:  "nv_small_2024-03-09_07-05-01",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got.Text != "nv_small sanity regression: REGRESSION_COMPLETE" {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("Attachments = %d, want 1", len(got.Attachments))
	}
	if got.Attachments[0].Title != "nv_small_2024-03-09_07-05-01" {
		t.Errorf("Attachment title = %q, want run dir", got.Attachments[0].Title)
	}
	if got.Attachments[0].Color != "good" {
		t.Errorf("Attachment color = %q, want good", got.Attachments[0].Color)
	}
}

func TestSlackMessage_ToJSON(t *testing.T) {
	payload, err := newSlackMessage(Notification{
		Title:  "nv_small all regression: TREE_BUILD_FAIL",
		Type:   NotifyError,
		RunDir: "nv_small_2024-03-09_07-05-01",
	}).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var msg SlackMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments = %d, want 1", len(msg.Attachments))
	}
	if msg.Attachments[0].Color != "danger" {
		t.Errorf("Color = %q, want danger", msg.Attachments[0].Color)
	}
	if msg.Attachments[0].Footer != "Regression Orchestrator" {
		t.Errorf("Footer = %q", msg.Attachments[0].Footer)
	}
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if err := NewSlackNotifier(server.URL).Send(Notification{Title: "x"}); err == nil {
		t.Error("Send should fail on non-200 response")
	}
}

func TestSlackNotifier_Disabled(t *testing.T) {
	if err := NewSlackNotifier("").Send(Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}
}

func TestNotificationTypeColors(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		got := SlackColor(tt.typ)
		if got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	var called []string

	mock1 := &mockNotifier{name: "mock1", calls: &called}
	mock2 := &mockNotifier{name: "mock2", calls: &called, err: errors.New("webhook down")}
	mock3 := &mockNotifier{name: "mock3", calls: &called}

	err := NewMultiNotifier(mock1, mock2, mock3).Send(Notification{Title: "Test"})

	if len(called) != 3 {
		t.Errorf("Expected 3 calls, got %d", len(called))
	}
	if err == nil {
		t.Error("expected the failing notifier's error")
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(config.NotificationsConfig{}).(NoopNotifier); !ok {
		t.Error("New with nothing enabled should return NoopNotifier")
	}

	n := New(config.NotificationsConfig{SlackWebhook: "http://example.invalid/hook"})
	if _, ok := n.(*MultiNotifier); !ok {
		t.Errorf("New with webhook = %T, want *MultiNotifier", n)
	}
}

func TestAppleScriptEscapesQuotes(t *testing.T) {
	got := appleScript(Notification{Title: `say "hi"`, Message: `a\b`})
	want := `display notification "a\\b" with title "say \"hi\""`
	if got != want {
		t.Errorf("appleScript = %q, want %q", got, want)
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
	err   error
}

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}
