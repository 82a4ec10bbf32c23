package voip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewTwilioGatewayRequiresCredentials(t *testing.T) {
	if _, err := NewTwilioGateway(Config{AccountSID: "AC1", AuthToken: "tok"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTwilioGatewayCall(t *testing.T) {
	type captured struct {
		path, user, pass, to, from, twiml string
	}
	got := make(chan captured, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		user, pass, _ := r.BasicAuth()
		got <- captured{
			path:  r.URL.Path,
			user:  user,
			pass:  pass,
			to:    r.PostForm.Get("To"),
			from:  r.PostForm.Get("From"),
			twiml: r.PostForm.Get("Twiml"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA1","status":"queued"}`))
	}))
	defer server.Close()

	gateway, err := NewTwilioGateway(Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000",
		BaseURL:    server.URL,
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if err := gateway.Call(context.Background(), "+15551234", "Smoke <kitchen> & hall"); err != nil {
		t.Fatalf("call: %v", err)
	}

	req := <-got
	if req.path != "/2010-04-01/Accounts/AC123/Calls.json" {
		t.Fatalf("unexpected path %s", req.path)
	}
	if req.user != "AC123" || req.pass != "secret" {
		t.Fatalf("unexpected basic auth %s:%s", req.user, req.pass)
	}
	if req.to != "+15551234" || req.from != "+15550000" {
		t.Fatalf("unexpected numbers to=%s from=%s", req.to, req.from)
	}
	want := "<Response><Say>Smoke &lt;kitchen&gt; &amp; hall</Say></Response>"
	if req.twiml != want {
		t.Fatalf("expected twiml %q, got %q", want, req.twiml)
	}
}

func TestTwilioGatewayErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer server.Close()

	gateway, err := NewTwilioGateway(Config{AccountSID: "AC1", AuthToken: "bad", FromNumber: "+1", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if err := gateway.Call(context.Background(), "+15551234", "hi"); err == nil {
		t.Fatalf("expected error for 401")
	}
}

func TestTwilioGatewayHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	gateway, err := NewTwilioGateway(Config{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+1", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := gateway.Call(ctx, "+15551234", "hi"); err == nil {
		t.Fatalf("expected context deadline error")
	}
}
