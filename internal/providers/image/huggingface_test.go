package image

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHuggingFaceFallsThroughDeprecatedEndpoints(t *testing.T) {
	imageData := []byte("png-bytes")
	deprecated := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Model runwayml/stable-diffusion-v1-5 is no longer supported"}`))
	}))
	defer deprecated.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(imageData)
	}))
	defer working.Close()

	p := NewHuggingFaceProvider(HuggingFaceOptions{
		APIKey:    "hf_test",
		Endpoints: []string{deprecated.URL + "/models/old/model", working.URL + "/models/new/model"},
	})
	img, err := p.Generate(context.Background(), GenerateInput{Prompt: "fox", Mode: ModeTextToImage})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Base64 != base64.StdEncoding.EncodeToString(imageData) {
		t.Fatalf("unexpected image payload")
	}
	if img.MIME != "image/jpeg" {
		t.Fatalf("mime = %q", img.MIME)
	}
	if img.Model != "huggingface/new/model" {
		t.Fatalf("model = %q", img.Model)
	}
}

func TestHuggingFaceAllEndpointsDeprecated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(HuggingFaceOptions{
		APIKey:    "hf_test",
		Endpoints: []string{server.URL + "/models/a", server.URL + "/models/b"},
	})
	_, err := p.Generate(context.Background(), GenerateInput{Prompt: "fox", Mode: ModeTextToImage})
	if KindOf(err) != KindModelUnavailable {
		t.Fatalf("kind = %q, want model_unavailable (%v)", KindOf(err), err)
	}
}

func TestHuggingFaceAuthErrorStopsFallthrough(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(HuggingFaceOptions{
		APIKey:    "hf_bad",
		Endpoints: []string{server.URL + "/models/a", server.URL + "/models/b"},
	})
	_, err := p.Generate(context.Background(), GenerateInput{Prompt: "fox", Mode: ModeTextToImage})
	if KindOf(err) != KindAuth {
		t.Fatalf("kind = %q, want auth (%v)", KindOf(err), err)
	}
	if calls != 1 {
		t.Fatalf("auth failure must not try further endpoints, got %d calls", calls)
	}
}

func TestHuggingFaceModelLoading(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is currently loading","estimated_time":20.5}`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(HuggingFaceOptions{
		APIKey:    "hf_test",
		Endpoints: []string{server.URL + "/models/a"},
	})
	_, err := p.Generate(context.Background(), GenerateInput{Prompt: "fox", Mode: ModeTextToImage})
	if err == nil || KindOf(err) != KindUnknown {
		t.Fatalf("expected loading error, got %v", err)
	}
}

func TestHuggingFaceNotConfigured(t *testing.T) {
	p := NewHuggingFaceProvider(HuggingFaceOptions{})
	if p.Configured() {
		t.Fatal("empty key must not count as configured")
	}
	_, err := p.Generate(context.Background(), GenerateInput{Prompt: "fox"})
	if KindOf(err) != KindNotConfigured {
		t.Fatalf("kind = %q, want not_configured", KindOf(err))
	}
}
