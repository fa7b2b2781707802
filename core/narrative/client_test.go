package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if contentType := r.Header.Get("Content-Type"); contentType != "application/json" {
			t.Errorf("expected json content type, got %q", contentType)
		}

		var request Request
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if request.Option != "2" {
			t.Errorf("expected option id 2, got %q", request.Option)
		}
		if request.History != "主角：为什么" {
			t.Errorf("unexpected history: %q", request.History)
		}

		json.NewEncoder(w).Encode(Reply{
			Text:    "故事继续",
			Speaker: "同伴",
			Options: []Option{{ID: "1", Text: "前进"}, {ID: "2", Text: "后退"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	reply, err := client.Generate(context.Background(), Request{
		Option:  "2",
		History: "主角：为什么",
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}

	if reply.Text != "故事继续" || reply.Speaker != "同伴" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(reply.Options) != 2 || reply.Options[1].Text != "后退" {
		t.Fatalf("unexpected options: %+v", reply.Options)
	}
}

func TestClientGenerateOmitsEmptyFields(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Reply{Text: "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Generate(context.Background(), Request{Prompt: "你好吗"}); err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}

	if _, ok := received["option"]; ok {
		t.Fatalf("expected empty option to be omitted, got %v", received)
	}
	if _, ok := received["history"]; ok {
		t.Fatalf("expected empty history to be omitted, got %v", received)
	}
	if received["prompt"] != "你好吗" {
		t.Fatalf("expected prompt carried, got %v", received)
	}
}

func TestClientGenerateNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Generate(context.Background(), Request{Prompt: "为什么"}); err == nil {
		t.Fatalf("expected an error for a non-OK status")
	}
}

func TestClientGenerateUnreachableEndpoint(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if _, err := client.Generate(context.Background(), Request{Prompt: "为什么"}); err == nil {
		t.Fatalf("expected an error for an unreachable endpoint")
	}
}
