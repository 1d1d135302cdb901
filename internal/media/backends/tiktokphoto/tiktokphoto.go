// Package tiktokphoto extracts still images from TikTok photo posts,
// which the video-oriented backends cannot serve. It scrapes the post
// page: first the rehydration state blob, then image tags, then a set
// of known URL patterns in the raw markup.
package tiktokphoto

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/snapfetch/snapfetch/internal/media"
)

// rehydrationScriptID is the DOM id of the JSON state blob TikTok
// embeds in every page.
const rehydrationScriptID = "__UNIVERSAL_DATA_FOR_REHYDRATION__"

// maxSearchDepth bounds the recursive walk through the state blob.
const maxSearchDepth = 15

// maxCandidates caps how many image URLs the walk collects.
const maxCandidates = 20

// imageURLFields are the JSON keys known to carry photo URLs in the
// rehydration state.
var imageURLFields = map[string]bool{
	"imageURL":     true,
	"imageUrl":     true,
	"coverUrl":     true,
	"cover":        true,
	"urlList":      true,
	"displayImage": true,
}

// markupPatterns match photo CDN URLs directly in the page source, in
// the order they should be trusted.
var markupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"imageUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"coverUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`<img[^>]+src="(https://[^"]*tiktokcdn[^"]*photo[^"]*)"`),
	regexp.MustCompile(`<img[^>]+src="(https://p1[6-9]-[^"]+)"`),
}

// Strategy scrapes TikTok photo posts.
type Strategy struct {
	staging *media.Staging
	client  *http.Client
	logger  *slog.Logger
}

// New builds the TikTok photo strategy.
func New(log *slog.Logger, staging *media.Staging, timeout time.Duration) *Strategy {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Strategy{
		staging: staging,
		client:  &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("strategy", "tiktok_photo")),
	}
}

func (s *Strategy) Descriptor() media.Descriptor {
	return media.Descriptor{
		Name:         "tiktok_photo",
		Platforms:    []media.Platform{media.PlatformTikTok},
		ContentTypes: []media.ContentType{media.ContentImage},
		Priority:     80,
	}
}

// Attempt loads the post page, collects image URL candidates, and
// stages the first one that actually serves an image.
func (s *Strategy) Attempt(ctx context.Context, req media.Request) (media.Artifact, error) {
	page, err := s.fetchPage(ctx, req.URL)
	if err != nil {
		return media.Artifact{}, err
	}

	candidates := s.collectCandidates(page)
	if len(candidates) == 0 {
		return media.Artifact{}, media.Errorf(media.KindNotFound, "no photo candidates in post page")
	}

	var attempts []*media.Error
	for _, candidate := range candidates {
		if err := s.verifyImage(ctx, candidate); err != nil {
			attempts = append(attempts, media.Normalize(err))
			continue
		}
		ext := media.ExtensionFor("", candidate, media.ContentImage)
		name := s.staging.NameFor(req.Platform, media.ContentImage, ext)
		header := http.Header{}
		header.Set("Referer", req.URL)
		header.Set("User-Agent", media.BrowserUserAgent)

		path, size, err := s.staging.Download(ctx, candidate, header, name)
		if err != nil {
			attempts = append(attempts, media.Normalize(err))
			continue
		}
		return media.Artifact{LocalPath: path, ContentType: media.ContentImage, SizeBytes: size}, nil
	}
	return media.Artifact{}, media.AllFailed(attempts)
}

// fetchPage downloads the post markup with browser-like headers; TikTok
// serves a stub page to clients it does not recognize.
func (s *Strategy) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", media.Errorf(media.KindNetwork, "build page request: %w", err)
	}
	req.Header.Set("User-Agent", media.BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", media.Normalize(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", media.Errorf(media.KindNotFound, "post page not found")
	}
	if resp.StatusCode != http.StatusOK {
		return "", media.Errorf(media.KindNetwork, "post page answered %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", media.Normalize(err)
	}
	return string(raw), nil
}

// collectCandidates gathers image URLs from the rehydration blob, the
// DOM, and finally the raw markup, deduplicated in discovery order.
func (s *Strategy) collectCandidates(page string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(url string) {
		// URLs lifted out of JSON embedded in the markup keep their
		// escaped slashes.
		url = strings.ReplaceAll(url, `\/`, "/")
		if !strings.HasPrefix(url, "http") || seen[url] {
			return
		}
		seen[url] = true
		out = append(out, url)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		if blob := doc.Find("script#" + rehydrationScriptID).Text(); blob != "" {
			var state any
			if err := json.Unmarshal([]byte(blob), &state); err == nil {
				for _, url := range searchImageURLs(state, 0) {
					add(url)
				}
			}
		}
		doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			if strings.Contains(src, "tiktokcdn") && strings.Contains(src, "photo") {
				add(src)
			}
		})
	}

	for _, pattern := range markupPatterns {
		for _, match := range pattern.FindAllStringSubmatch(page, -1) {
			add(match[1])
		}
	}
	return out
}

// searchImageURLs walks the decoded rehydration state and collects
// values under the known image fields. Depth and result count are both
// capped; the blob can be deeply self-referential.
func searchImageURLs(node any, depth int) []string {
	if depth > maxSearchDepth {
		return nil
	}
	var out []string
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			if imageURLFields[key] {
				switch val := child.(type) {
				case string:
					out = append(out, val)
				case []any:
					for _, item := range val {
						if s, ok := item.(string); ok {
							out = append(out, s)
						}
					}
				default:
					// "imageURL" is often an object wrapping the
					// real urlList.
					out = append(out, searchImageURLs(child, depth+1)...)
				}
				if len(out) >= maxCandidates {
					return out[:maxCandidates]
				}
				continue
			}
			out = append(out, searchImageURLs(child, depth+1)...)
			if len(out) >= maxCandidates {
				return out[:maxCandidates]
			}
		}
	case []any:
		for _, child := range v {
			out = append(out, searchImageURLs(child, depth+1)...)
			if len(out) >= maxCandidates {
				return out[:maxCandidates]
			}
		}
	}
	return out
}

// verifyImage checks that the candidate actually serves image content
// before committing to a full download.
func (s *Strategy) verifyImage(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", media.BrowserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return media.Errorf(media.KindNotFound, "candidate answered %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return media.Errorf(media.KindNotFound, "candidate is %q, not an image", ct)
	}
	return nil
}
