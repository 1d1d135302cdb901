package media

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Fetcher is the single entry point for turning a user-supplied URL
// into a local artifact. It classifies the URL, resolves short links,
// and delegates extraction to the strategy chain.
type Fetcher struct {
	chain    *Chain
	staging  *Staging
	resolver *http.Client
	logger   *slog.Logger
}

// NewFetcher wires the fetcher. The resolver client follows a single
// redirect hop with a short timeout; failure to resolve a short link is
// not fatal.
func NewFetcher(log *slog.Logger, chain *Chain, staging *Staging) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		chain:   chain,
		staging: staging,
		resolver: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// One hop resolves the shortener; anything past that
				// is the platform's own redirect maze.
				if len(via) > 1 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: log.With(slog.String("service", "fetcher")),
	}
}

// Fetch classifies rawURL, picks the effective content type, runs the
// strategy chain, and verifies the resulting artifact exists on disk.
// desired overrides the inferred content type when the platform
// supports it; pass "" to take the classifier's inference.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, desired ContentType) (Artifact, error) {
	cls := Classify(rawURL)
	if cls.Platform == PlatformUnknown {
		return Artifact{}, Unsupported("unrecognized url")
	}

	effectiveURL := rawURL
	if cls.NeedsResolve {
		if resolved := f.resolveShortLink(ctx, rawURL); resolved != "" {
			effectiveURL = resolved
			cls = Classify(resolved)
			if cls.Platform == PlatformUnknown {
				return Artifact{}, Unsupported("short link resolved to unrecognized url")
			}
		}
	}

	ct := cls.ContentType
	if desired != "" && cls.Platform.Supports(desired) {
		ct = desired
	}
	if !cls.Platform.Supports(ct) {
		return Artifact{}, Unsupported(string(cls.Platform) + " does not support " + string(ct))
	}

	artifact, err := f.chain.Run(ctx, Request{
		URL:         effectiveURL,
		Platform:    cls.Platform,
		ContentType: ct,
	})
	if err != nil {
		return Artifact{}, err
	}

	info, statErr := os.Stat(artifact.LocalPath)
	if statErr != nil || info.Size() == 0 {
		f.logger.Error("artifact missing after successful extraction",
			slog.String("path", artifact.LocalPath),
			slog.String("strategy", artifact.Strategy))
		_ = f.staging.Remove(artifact.LocalPath)
		return Artifact{}, AllFailed([]*Error{
			Errorf(KindNetwork, "strategy %s reported success but produced no artifact", artifact.Strategy),
		})
	}
	artifact.SizeBytes = info.Size()
	return artifact, nil
}

// resolveShortLink follows redirects of a shortened URL and returns the
// final location, or "" when resolution fails. Errors are logged only:
// the original URL still stands a chance with the strategies.
func (f *Fetcher) resolveShortLink(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", BrowserUserAgent)

	resp, err := f.resolver.Do(req)
	if err != nil {
		f.logger.Warn("short link resolution failed", slog.String("url", rawURL), slog.Any("error", err))
		return ""
	}
	defer resp.Body.Close()

	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	final := resp.Request.URL.String()
	if final == rawURL {
		return ""
	}
	f.logger.Debug("short link resolved", slog.String("from", rawURL), slog.String("to", final))
	return final
}
