package cobalt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/snapfetch/snapfetch/internal/media"
)

func newTestStrategy(t *testing.T, apiURL string) *Strategy {
	t.Helper()
	staging, err := media.NewStaging(nil, t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("new staging: %v", err)
	}
	return New(nil, staging, Config{BaseURL: apiURL})
}

func TestAttemptTunnel(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/media.mp4", func(w http.ResponseWriter, r *http.Request) {
		if ref := r.Header.Get("Referer"); ref != "https://www.tiktok.com/@u/video/1" {
			t.Errorf("referer = %q, want the original page url", ref)
		}
		w.Write([]byte("tunnel bytes"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.DownloadMode != "auto" {
			t.Errorf("downloadMode = %q, want auto", req.DownloadMode)
		}
		json.NewEncoder(w).Encode(apiResponse{
			Status:   "tunnel",
			URL:      srv.URL + "/media.mp4",
			Filename: "clip.mp4",
		})
	})

	s := newTestStrategy(t, srv.URL)
	artifact, err := s.Attempt(context.Background(), media.Request{
		URL:         "https://www.tiktok.com/@u/video/1",
		Platform:    media.PlatformTikTok,
		ContentType: media.ContentVideo,
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	data, err := os.ReadFile(artifact.LocalPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "tunnel bytes" {
		t.Fatal("artifact content mismatch")
	}
	if !strings.HasSuffix(artifact.LocalPath, ".mp4") {
		t.Fatalf("extension not taken from provider filename: %s", artifact.LocalPath)
	}
}

func TestAttemptAudioMode(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/audio.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp3 bytes"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.DownloadMode != "audio" {
			t.Errorf("downloadMode = %q, want audio", req.DownloadMode)
		}
		if req.AudioBitrate != "192" {
			t.Errorf("audioBitrate = %q, want 192", req.AudioBitrate)
		}
		json.NewEncoder(w).Encode(apiResponse{
			Status: "redirect",
			URL:    srv.URL + "/audio.mp3",
		})
	})

	s := newTestStrategy(t, srv.URL)
	artifact, err := s.Attempt(context.Background(), media.Request{
		URL:         "https://www.youtube.com/watch?v=a",
		Platform:    media.PlatformYouTube,
		ContentType: media.ContentAudio,
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if !strings.HasSuffix(artifact.LocalPath, ".mp3") {
		t.Fatalf("audio artifact should carry mp3 extension: %s", artifact.LocalPath)
	}
}

func TestAttemptPickerTakesFirstItem(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/first.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first photo"))
	})
	mux.HandleFunc("/second.jpg", func(w http.ResponseWriter, r *http.Request) {
		t.Error("second picker item should never be fetched")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{
			Status: "picker",
			Picker: []pickerItem{
				{Type: "photo", URL: srv.URL + "/first.jpg"},
				{Type: "photo", URL: srv.URL + "/second.jpg"},
			},
		})
	})

	s := newTestStrategy(t, srv.URL)
	artifact, err := s.Attempt(context.Background(), media.Request{
		URL:         "https://www.instagram.com/p/Cabc/",
		Platform:    media.PlatformInstagram,
		ContentType: media.ContentImage,
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	data, _ := os.ReadFile(artifact.LocalPath)
	if string(data) != "first photo" {
		t.Fatal("picker should stage its first item")
	}
	if !strings.HasSuffix(artifact.LocalPath, ".jpg") {
		t.Fatalf("photo picker item should stage as jpg: %s", artifact.LocalPath)
	}
}

func TestAttemptErrorStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		resp apiResponse
		kind media.Kind
		code string
	}{
		{"structured refusal", apiResponse{Status: "error", Error: &apiError{Code: "error.api.rate_exceeded"}}, media.KindRemoteRejected, "error.api.rate_exceeded"},
		{"missing content", apiResponse{Status: "error", Error: &apiError{Code: "error.api.content.video.unavailable"}}, media.KindNotFound, "error.api.content.video.unavailable"},
		{"empty picker", apiResponse{Status: "picker"}, media.KindNotFound, ""},
		{"unknown status", apiResponse{Status: "surprise"}, media.KindNetwork, ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.resp)
			}))
			defer srv.Close()

			s := newTestStrategy(t, srv.URL)
			_, err := s.Attempt(context.Background(), media.Request{
				URL: "https://youtu.be/x", Platform: media.PlatformYouTube, ContentType: media.ContentVideo,
			})
			if media.KindOf(err) != tc.kind {
				t.Fatalf("kind = %q, want %q (err: %v)", media.KindOf(err), tc.kind, err)
			}
			var typed *media.Error
			if tc.code != "" {
				if !asMediaError(err, &typed) || typed.Code != tc.code {
					t.Fatalf("code not preserved: %v", err)
				}
			}
		})
	}
}

func asMediaError(err error, target **media.Error) bool {
	e := media.Normalize(err)
	if e == nil {
		return false
	}
	*target = e
	return true
}

func TestAttemptUnreachableInstance(t *testing.T) {
	t.Parallel()

	s := newTestStrategy(t, "http://127.0.0.1:1")
	_, err := s.Attempt(context.Background(), media.Request{
		URL: "https://youtu.be/x", Platform: media.PlatformYouTube, ContentType: media.ContentVideo,
	})
	if media.KindOf(err) != media.KindNetwork {
		t.Fatalf("kind = %q, want %q", media.KindOf(err), media.KindNetwork)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cobalt":{"version":"10"}}`))
	}))
	defer srv.Close()

	if err := newTestStrategy(t, srv.URL).Verify(context.Background()); err != nil {
		t.Fatalf("verify against a live instance: %v", err)
	}

	if err := newTestStrategy(t, "http://127.0.0.1:1").Verify(context.Background()); err == nil {
		t.Fatal("verify should fail for an unreachable instance")
	}
}
