package email

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSigningLink(t *testing.T) {
	got := SigningLink("https://app.example.com/", "agr-1")
	want := "https://app.example.com/sign/agr-1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBodies_IncludeParties(t *testing.T) {
	review := ReviewRequestBody("Jane Doe", "Alex Creator", "Freelance Web Development", "https://app.example.com/sign/agr-1")
	for _, want := range []string{"Jane Doe", "Alex Creator", "Freelance Web Development", "https://app.example.com/sign/agr-1"} {
		if !strings.Contains(review, want) {
			t.Errorf("review body missing %q", want)
		}
	}

	rejection := RejectionNoticeBody("Alex Creator", "Jane Doe", "Freelance Web Development")
	if !strings.Contains(rejection, "rejected") || !strings.Contains(rejection, "Jane Doe") {
		t.Errorf("rejection body missing expected content: %s", rejection)
	}
}

func TestBodies_FootersShareRegister(t *testing.T) {
	const footer = "This is an automated message. Please do not reply."
	bodies := map[string]string{
		"review":    ReviewRequestBody("Jane Doe", "Alex Creator", "Freelance Web Development", "https://app.example.com/sign/agr-1"),
		"signed":    SignedCopyBody("Jane Doe", "Freelance Web Development"),
		"rejection": RejectionNoticeBody("Alex Creator", "Jane Doe", "Freelance Web Development"),
	}
	for name, body := range bodies {
		if !strings.Contains(body, footer) {
			t.Errorf("%s body missing standard footer", name)
		}
	}
}

func TestBrevoDispatcher_Send(t *testing.T) {
	var captured brevoRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := NewBrevoDispatcher("test-key", "Digital Agreement", "noreply@example.com", slog.New(slog.DiscardHandler))
	d.endpoint = srv.URL

	ok := d.Send(context.Background(), Message{
		To:      "jane@example.com",
		Subject: "Agreement for Review",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{
			{Filename: "agreement.pdf", Content: []byte("%PDF-fake"), ContentType: "application/pdf"},
		},
	})
	if !ok {
		t.Fatal("expected send to succeed")
	}
	if apiKey != "test-key" {
		t.Errorf("expected api-key header, got %q", apiKey)
	}
	if len(captured.To) != 1 || captured.To[0].Email != "jane@example.com" {
		t.Errorf("unexpected recipients: %+v", captured.To)
	}
	if len(captured.Attachment) != 1 || captured.Attachment[0].Name != "agreement.pdf" {
		t.Errorf("unexpected attachments: %+v", captured.Attachment)
	}
}

func TestBrevoDispatcher_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"invalid_parameter"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewBrevoDispatcher("test-key", "Digital Agreement", "noreply@example.com", slog.New(slog.DiscardHandler))
	d.endpoint = srv.URL

	if d.Send(context.Background(), Message{To: "jane@example.com"}) {
		t.Fatal("expected send to report failure on 4xx")
	}
}

func TestBrevoDispatcher_MissingKey(t *testing.T) {
	d := NewBrevoDispatcher("", "Digital Agreement", "noreply@example.com", slog.New(slog.DiscardHandler))
	if d.Send(context.Background(), Message{To: "jane@example.com"}) {
		t.Fatal("expected send to fail without an api key")
	}
}
