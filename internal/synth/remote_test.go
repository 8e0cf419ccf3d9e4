package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/markdown"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSettings() Settings {
	return Settings{
		TargetLanguageCode:  "hi-IN",
		Speaker:             "shubh",
		Pace:                1.1,
		SpeechSampleRate:    48000,
		Model:               "bulbul:v3",
		EnablePreprocessing: true,
	}
}

func testChunk(id int, kind markdown.ChunkKind, text string) markdown.ContentChunk {
	return markdown.ContentChunk{ID: id, Kind: kind, Text: text, CharCount: len([]rune(text)), LoudnessBoost: 1.0}
}

func newRemote(t *testing.T, baseURL, apiKey string) *RemoteSynth {
	t.Helper()
	return NewRemoteSynth(config.SynthConfig{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		CallTimeoutMS: 5000,
	}, testLogger())
}

func TestRemoteSynthSuccess(t *testing.T) {
	audio := []byte("fake-pcm-data-of-some-length")
	var captured remotePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("api-subscription-key") != "secret" {
			t.Errorf("missing credential header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"audios": []string{base64.StdEncoding.EncodeToString(audio)},
		})
	}))
	t.Cleanup(srv.Close)

	s := newRemote(t, srv.URL, "secret")
	res, cs := s.Synthesize(context.Background(), testChunk(3, markdown.KindParagraph, "Namaste duniya."), testSettings())

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Err)
	}
	if string(res.Audio) != string(audio) {
		t.Fatal("audio bytes mismatch")
	}
	if res.DurationMS != len(audio)/96 {
		t.Fatalf("duration estimate %d, want %d", res.DurationMS, len(audio)/96)
	}
	if captured.Pace != 1.1 {
		t.Fatalf("paragraph pace %v, want 1.1", captured.Pace)
	}
	if !cs.Success || cs.ChunkID != 3 || cs.BytesSent == 0 || cs.BytesReceived == 0 {
		t.Fatalf("unexpected call stat: %+v", cs)
	}
	if cs.CharactersSent != len([]rune("Namaste duniya.")) {
		t.Fatalf("characters sent %d", cs.CharactersSent)
	}
}

func TestRemoteSynthHeadingPace(t *testing.T) {
	var captured remotePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{"audios": []string{base64.StdEncoding.EncodeToString([]byte("x"))}})
	}))
	t.Cleanup(srv.Close)

	s := newRemote(t, srv.URL, "secret")
	settings := testSettings()
	settings.Pace = 1.1
	s.Synthesize(context.Background(), testChunk(0, markdown.KindHeading1, "Title"), settings)
	if captured.Pace != 1.0 {
		t.Fatalf("heading pace %v, want 1.0", captured.Pace)
	}

	settings.Pace = 0.9
	s.Synthesize(context.Background(), testChunk(0, markdown.KindHeading2, "Title"), settings)
	if captured.Pace != 0.9 {
		t.Fatalf("heading pace floor %v, want 0.9", captured.Pace)
	}
}

func TestRemoteSynthNotConfigured(t *testing.T) {
	s := newRemote(t, "http://unused", "")
	res, cs := s.Synthesize(context.Background(), testChunk(1, markdown.KindParagraph, "text"), testSettings())

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Err, "not configured") {
		t.Fatalf("error %q should mention configuration", res.Err)
	}
	if cs.BytesSent != 0 || cs.BytesReceived != 0 || cs.Success {
		t.Fatalf("unexpected call stat: %+v", cs)
	}
}

func TestRemoteSynthHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	s := newRemote(t, srv.URL, "secret")
	res, cs := s.Synthesize(context.Background(), testChunk(0, markdown.KindParagraph, "text"), testSettings())

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Err, "429") {
		t.Fatalf("error %q should carry status", res.Err)
	}
	if cs.Success || cs.BytesReceived == 0 {
		t.Fatalf("unexpected call stat: %+v", cs)
	}
}

func TestRemoteSynthNoAudioInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"audios": []string{}})
	}))
	t.Cleanup(srv.Close)

	s := newRemote(t, srv.URL, "secret")
	res, cs := s.Synthesize(context.Background(), testChunk(0, markdown.KindParagraph, "text"), testSettings())

	if res.Success {
		t.Fatal("2xx without audio payload must not be treated as success")
	}
	if !strings.Contains(res.Err, "no audio") {
		t.Fatalf("unexpected error: %q", res.Err)
	}
	if cs.Success {
		t.Fatalf("unexpected call stat: %+v", cs)
	}
}

func TestRemoteSynthTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	s := newRemote(t, srv.URL, "secret")
	res, cs := s.Synthesize(context.Background(), testChunk(0, markdown.KindParagraph, "text"), testSettings())

	if res.Success {
		t.Fatal("expected transport failure")
	}
	if cs.BytesReceived != 0 {
		t.Fatalf("no response was received, stat: %+v", cs)
	}
	if cs.BytesSent == 0 {
		t.Fatalf("payload size should still be recorded, stat: %+v", cs)
	}
}

func TestMockSynthDeterministic(t *testing.T) {
	m := NewMockSynth(48000)
	chunk := testChunk(0, markdown.KindParagraph, "hello world")
	a, _ := m.Synthesize(context.Background(), chunk, testSettings())
	b, _ := m.Synthesize(context.Background(), chunk, testSettings())
	if !a.Success || !b.Success {
		t.Fatal("expected success")
	}
	if len(a.Audio) != len(b.Audio) {
		t.Fatal("mock output not deterministic")
	}
}

func TestMockSynthFailures(t *testing.T) {
	m := NewMockSynth(48000)
	m.FailChunks = map[int]bool{2: true}
	res, cs := m.Synthesize(context.Background(), testChunk(2, markdown.KindParagraph, "x"), testSettings())
	if res.Success || cs.Success {
		t.Fatal("expected configured failure")
	}
}
