package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/snapfetch/snapfetch/internal/media"
)

func newTestStrategy(t *testing.T, infoHandler http.HandlerFunc) (*Strategy, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/info/", infoHandler)

	staging, err := media.NewStaging(nil, t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("new staging: %v", err)
	}
	s := New(nil, staging, 5*time.Second)
	s.infoURL = srv.URL + "/info/%s"
	return s, srv
}

func TestShortcodePattern(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want string
	}{
		{"https://www.instagram.com/p/Cxyz12_-a/", "Cxyz12_-a"},
		{"https://www.instagram.com/reel/DEf456/?igsh=x", "DEf456"},
		{"https://www.instagram.com/tv/GHi789", "GHi789"},
		{"https://www.instagram.com/username/", ""},
	}
	for _, tc := range cases {
		match := shortcodePattern.FindStringSubmatch(tc.url)
		if tc.want == "" {
			if match != nil {
				t.Fatalf("%s: expected no match, got %v", tc.url, match)
			}
			continue
		}
		if match == nil || match[1] != tc.want {
			t.Fatalf("%s: shortcode = %v, want %q", tc.url, match, tc.want)
		}
	}
}

func TestAttemptVideoPost(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	s, server := newTestStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"media_type":2,"video_versions":[{"url":"` + srv.URL + `/video.mp4"}]}]}`))
	})
	srv = server
	server.Config.Handler.(*http.ServeMux).HandleFunc("/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("reel bytes"))
	})

	artifact, err := s.Attempt(context.Background(), media.Request{
		URL:         "https://www.instagram.com/reel/Cabc123/",
		Platform:    media.PlatformInstagram,
		ContentType: media.ContentVideo,
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if artifact.ContentType != media.ContentVideo {
		t.Fatalf("content type = %q, want video", artifact.ContentType)
	}
	data, _ := os.ReadFile(artifact.LocalPath)
	if string(data) != "reel bytes" {
		t.Fatal("artifact content mismatch")
	}
}

func TestAttemptCarouselTakesFirstItem(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	s, server := newTestStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"media_type":8,"carousel_media":[` +
			`{"media_type":1,"image_versions2":{"candidates":[{"url":"` + srv.URL + `/lead.jpg"}]}},` +
			`{"media_type":2,"video_versions":[{"url":"` + srv.URL + `/second.mp4"}]}` +
			`]}]}`))
	})
	srv = server
	mux := server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("/lead.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("lead image"))
	})
	mux.HandleFunc("/second.mp4", func(w http.ResponseWriter, r *http.Request) {
		t.Error("carousel should stop at its first item")
	})

	artifact, err := s.Attempt(context.Background(), media.Request{
		URL:         "https://www.instagram.com/p/Ccar123/",
		Platform:    media.PlatformInstagram,
		ContentType: media.ContentImage,
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if artifact.ContentType != media.ContentImage {
		t.Fatalf("content type = %q, want image", artifact.ContentType)
	}
	data, _ := os.ReadFile(artifact.LocalPath)
	if string(data) != "lead image" {
		t.Fatal("carousel lead item content mismatch")
	}
}

func TestAttemptFailureModes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
		url     string
		kind    media.Kind
	}{
		{
			"no shortcode",
			func(w http.ResponseWriter, r *http.Request) {},
			"https://www.instagram.com/someuser/",
			media.KindUnsupported,
		},
		{
			"post gone",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			"https://www.instagram.com/p/Cgone/",
			media.KindNotFound,
		},
		{
			"rate limited",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			"https://www.instagram.com/p/Crate/",
			media.KindRemoteRejected,
		},
		{
			"login wall html",
			func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>log in</html>")) },
			"https://www.instagram.com/p/Cwall/",
			media.KindRemoteRejected,
		},
		{
			"empty items",
			func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"items":[]}`)) },
			"https://www.instagram.com/p/Cempty/",
			media.KindNotFound,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestStrategy(t, tc.handler)
			_, err := s.Attempt(context.Background(), media.Request{
				URL: tc.url, Platform: media.PlatformInstagram, ContentType: media.ContentVideo,
			})
			if media.KindOf(err) != tc.kind {
				t.Fatalf("kind = %q, want %q (err: %v)", media.KindOf(err), tc.kind, err)
			}
		})
	}
}
