package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/skypro1111/voxsql/internal/audio"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{SampleRate: 16000}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
	if _, err := NewClient(Config{Endpoint: "http://localhost"}); err == nil {
		t.Error("Expected error for missing sample rate")
	}
}

func TestClientTranscribe(t *testing.T) {
	var received atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		expected := map[string]string{
			"model":               "whisper-large",
			"response_format":     "verbose_json",
			"temperature":         "0",
			"beam_size":           "5",
			"no_speech_threshold": "0.6",
			"language":            "en",
		}
		for key, want := range expected {
			if got := r.FormValue(key); got != want {
				t.Errorf("Expected %s=%q, got %q", key, want, got)
			}
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected file field: %v", err)
			return
		}
		defer file.Close()

		samples, info, err := audio.DecodeWAV(file)
		if err != nil {
			t.Errorf("Failed to decode uploaded WAV: %v", err)
			return
		}
		if info.SampleRate != 16000 || len(samples) != 8000 {
			t.Errorf("Expected 8000 samples at 16000 Hz, got %d at %d", len(samples), info.SampleRate)
		}
		received.Store(true)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"text": "show orders",
			"segments": []map[string]any{
				{"text": " show orders", "start": 0.0, "end": 0.5, "avg_logprob": -0.25, "no_speech_prob": 0.05},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint:   server.URL,
		APIKey:     "secret",
		Model:      "whisper-large",
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	opts := DefaultOptions()
	opts.Language = "en"

	segments, err := client.Transcribe(context.Background(), make([]float32, 8000), opts)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if !received.Load() {
		t.Fatal("Expected server to receive the upload")
	}
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != " show orders" || segments[0].AvgLogprob != -0.25 || segments[0].NoSpeechProb != 0.05 {
		t.Errorf("Unexpected segment: %+v", segments[0])
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Expected 1 successful request, got %+v", stats)
	}
}

func TestClientPlainTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL, SampleRate: 16000})

	segments, err := client.Transcribe(context.Background(), make([]float32, 160), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "hello" {
		t.Errorf("Expected a single text segment, got %+v", segments)
	}
}

func TestClientNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL, SampleRate: 16000, MaxRetries: 3})

	_, err := client.Transcribe(context.Background(), make([]float32, 160), DefaultOptions())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", statusErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 attempt for a 4xx response, got %d", calls.Load())
	}
	if client.GetStats().FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", client.GetStats().FailedRequests)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"ok","segments":[{"text":"ok","avg_logprob":-0.1,"no_speech_prob":0.1}]}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL, SampleRate: 16000, MaxRetries: 1})

	segments, err := client.Transcribe(context.Background(), make([]float32, 160), DefaultOptions())
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if len(segments) != 1 {
		t.Errorf("Expected 1 segment, got %d", len(segments))
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls.Load())
	}
	if client.GetStats().TotalRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", client.GetStats().TotalRetries)
	}
}
