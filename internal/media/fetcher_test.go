package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestFetcher(t *testing.T, strategies ...Strategy) (*Fetcher, *Staging) {
	t.Helper()
	staging, err := NewStaging(nil, t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("new staging: %v", err)
	}
	chain := NewChain(nil, NewRegistry(strategies...))
	return NewFetcher(nil, chain, staging), staging
}

// writeArtifact is a strategy body that stages a real file, the way a
// production strategy would.
func writeArtifact(staging *Staging, content string) func(ctx context.Context, req Request) (Artifact, error) {
	return func(ctx context.Context, req Request) (Artifact, error) {
		name := staging.NameFor(req.Platform, req.ContentType, DefaultExtension(req.ContentType))
		path := staging.Path(name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Artifact{}, err
		}
		return Artifact{LocalPath: path}, nil
	}
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var staging *Staging
	strategy := videoStrategy("direct", 5, nil)
	fetcher, st := newTestFetcher(t, strategy)
	staging = st
	strategy.attempt = writeArtifact(staging, "video bytes")

	artifact, err := fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if artifact.Platform != PlatformTikTok || artifact.ContentType != ContentVideo {
		t.Fatalf("classification not carried onto artifact: %+v", artifact)
	}
	if artifact.SizeBytes != int64(len("video bytes")) {
		t.Fatalf("size = %d, want %d", artifact.SizeBytes, len("video bytes"))
	}
	if artifact.Strategy != "direct" {
		t.Fatalf("strategy = %q, want %q", artifact.Strategy, "direct")
	}
}

func TestFetchUnknownPlatform(t *testing.T) {
	t.Parallel()

	strategy := videoStrategy("never", 1, succeedWith("/tmp/x"))
	fetcher, _ := newTestFetcher(t, strategy)

	_, err := fetcher.Fetch(context.Background(), "https://example.org/clip", "")
	if KindOf(err) != KindUnsupported {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindUnsupported)
	}
	if strategy.calls != 0 {
		t.Fatal("no strategy should run for an unknown platform")
	}
}

func TestFetchDesiredTypeOverride(t *testing.T) {
	t.Parallel()

	var got ContentType
	audio := &fakeStrategy{
		desc: Descriptor{
			Name:         "audio-only",
			Platforms:    []Platform{PlatformYouTube},
			ContentTypes: []ContentType{ContentAudio},
			Priority:     5,
		},
	}
	fetcher, staging := newTestFetcher(t, audio)
	audio.attempt = func(ctx context.Context, req Request) (Artifact, error) {
		got = req.ContentType
		return writeArtifact(staging, "mp3 bytes")(ctx, req)
	}

	_, err := fetcher.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc", ContentAudio)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != ContentAudio {
		t.Fatalf("request content type = %q, want %q", got, ContentAudio)
	}
}

func TestFetchRejectsUnsupportedDesiredType(t *testing.T) {
	t.Parallel()

	strategy := videoStrategy("video", 1, nil)
	fetcher, staging := newTestFetcher(t, strategy)
	strategy.attempt = writeArtifact(staging, "reel bytes")

	// Instagram has no audio surface; the desired override is ignored
	// and the inferred video type does not match it either.
	artifact, err := fetcher.Fetch(context.Background(), "https://www.instagram.com/reel/Cabc/", ContentAudio)
	if err != nil {
		t.Fatalf("override for an unsupported type should fall back, got %v", err)
	}
	if artifact.ContentType != ContentVideo {
		t.Fatalf("content type = %q, want the inferred %q", artifact.ContentType, ContentVideo)
	}
}

func TestFetchMissingArtifactBecomesFailure(t *testing.T) {
	t.Parallel()

	liar := videoStrategy("liar", 5, succeedWith("/nonexistent/handle.mp4"))
	fetcher, _ := newTestFetcher(t, liar)

	_, err := fetcher.Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", "")
	if KindOf(err) != KindAllFailed {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindAllFailed)
	}
}

func TestFetchResolvesShortLink(t *testing.T) {
	t.Parallel()

	var seenURL string
	strategy := videoStrategy("direct", 5, nil)
	fetcher, staging := newTestFetcher(t, strategy)
	strategy.attempt = func(ctx context.Context, req Request) (Artifact, error) {
		seenURL = req.URL
		return writeArtifact(staging, "resolved")(ctx, req)
	}

	canonical := "https://www.tiktok.com/@user/video/7300000000000000000"
	fetcher.resolver = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			rec := httptest.NewRecorder()
			if r.Host == "vm.tiktok.com" {
				rec.Header().Set("Location", canonical)
				rec.WriteHeader(http.StatusFound)
			}
			resp := rec.Result()
			resp.Request = r
			return resp, nil
		}),
	}

	artifact, err := fetcher.Fetch(context.Background(), "https://vm.tiktok.com/ZMabc/", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if seenURL != canonical {
		t.Fatalf("strategy saw %q, want the resolved %q", seenURL, canonical)
	}
	if artifact.Platform != PlatformTikTok {
		t.Fatalf("platform = %q, want %q", artifact.Platform, PlatformTikTok)
	}
}

func TestFetchResolvesSingleHopOnly(t *testing.T) {
	t.Parallel()

	var seenURL string
	strategy := videoStrategy("direct", 5, nil)
	fetcher, staging := newTestFetcher(t, strategy)
	strategy.attempt = func(ctx context.Context, req Request) (Artifact, error) {
		seenURL = req.URL
		return writeArtifact(staging, "one hop")(ctx, req)
	}

	firstHop := "https://www.tiktok.com/t/ZTabc/"
	fetcher.resolver.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		switch r.Host {
		case "vm.tiktok.com":
			rec.Header().Set("Location", firstHop)
			rec.WriteHeader(http.StatusFound)
		case "www.tiktok.com":
			// A second redirect the resolver must not follow.
			rec.Header().Set("Location", "https://www.tiktok.com/@user/video/7300000000000000001")
			rec.WriteHeader(http.StatusFound)
		}
		resp := rec.Result()
		resp.Request = r
		return resp, nil
	})

	if _, err := fetcher.Fetch(context.Background(), "https://vm.tiktok.com/ZMabc/", ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if seenURL != firstHop {
		t.Fatalf("strategy saw %q, want the first hop %q", seenURL, firstHop)
	}
}

func TestFetchProceedsWhenResolutionFails(t *testing.T) {
	t.Parallel()

	var seenURL string
	strategy := videoStrategy("direct", 5, nil)
	fetcher, staging := newTestFetcher(t, strategy)
	strategy.attempt = func(ctx context.Context, req Request) (Artifact, error) {
		seenURL = req.URL
		return writeArtifact(staging, "fallback")(ctx, req)
	}
	fetcher.resolver = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, context.DeadlineExceeded
		}),
	}

	short := "https://vt.tiktok.com/ZSxyz/"
	if _, err := fetcher.Fetch(context.Background(), short, ""); err != nil {
		t.Fatalf("fetch should proceed with the original url, got %v", err)
	}
	if seenURL != short {
		t.Fatalf("strategy saw %q, want the original %q", seenURL, short)
	}
}
