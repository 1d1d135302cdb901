// Package instagram implements a direct Instagram extraction strategy.
// It recovers the post shortcode from the URL, queries the public media
// info endpoint, and stages the best candidate rendition.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/snapfetch/snapfetch/internal/media"
)

// shortcodePattern matches the post identifier in /p/, /reel/ and /tv/
// URL forms.
var shortcodePattern = regexp.MustCompile(`/(?:p|reel|tv)/([A-Za-z0-9_-]+)`)

// Instagram media_type values.
const (
	mediaTypeImage    = 1
	mediaTypeVideo    = 2
	mediaTypeCarousel = 8
)

// Strategy fetches Instagram posts without an intermediary service.
type Strategy struct {
	staging *media.Staging
	client  *http.Client
	logger  *slog.Logger
	// infoURL is the media info endpoint template, parameterized for
	// tests.
	infoURL string
}

// New builds the Instagram strategy.
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
		logger:  log.With(slog.String("strategy", "instagram")),
		infoURL: "https://www.instagram.com/p/%s/?__a=1&__d=dis",
	}
}

func (s *Strategy) Descriptor() media.Descriptor {
	return media.Descriptor{
		Name:         "instagram",
		Platforms:    []media.Platform{media.PlatformInstagram},
		ContentTypes: []media.ContentType{media.ContentVideo, media.ContentImage},
		Priority:     75,
	}
}

type infoResponse struct {
	Items []mediaItem `json:"items"`
}

type mediaItem struct {
	MediaType     int         `json:"media_type"`
	VideoVersions []rendition `json:"video_versions"`
	ImageVersions struct {
		Candidates []rendition `json:"candidates"`
	} `json:"image_versions2"`
	CarouselMedia []mediaItem `json:"carousel_media"`
}

type rendition struct {
	URL string `json:"url"`
}

// Attempt resolves the post, picks the rendition matching the requested
// content type, and stages it. Carousels collapse to their first item.
func (s *Strategy) Attempt(ctx context.Context, req media.Request) (media.Artifact, error) {
	match := shortcodePattern.FindStringSubmatch(req.URL)
	if match == nil {
		return media.Artifact{}, media.Unsupported("no instagram post id in url")
	}
	shortcode := match[1]

	item, err := s.mediaInfo(ctx, shortcode)
	if err != nil {
		return media.Artifact{}, err
	}
	if item.MediaType == mediaTypeCarousel {
		if len(item.CarouselMedia) == 0 {
			return media.Artifact{}, media.Errorf(media.KindNotFound, "carousel %s has no items", shortcode)
		}
		item = &item.CarouselMedia[0]
	}

	mediaURL, ct, err := pickRendition(item)
	if err != nil {
		return media.Artifact{}, err
	}

	ext := media.ExtensionFor("", mediaURL, ct)
	name := s.staging.NameFor(req.Platform, ct, ext)
	header := http.Header{}
	header.Set("Referer", "https://www.instagram.com/")

	path, size, err := s.staging.Download(ctx, mediaURL, header, name)
	if err != nil {
		return media.Artifact{}, err
	}
	return media.Artifact{LocalPath: path, ContentType: ct, SizeBytes: size}, nil
}

// mediaInfo fetches and decodes the post metadata.
func (s *Strategy) mediaInfo(ctx context.Context, shortcode string) (*mediaItem, error) {
	url := s.postInfoURL(shortcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, media.Errorf(media.KindNetwork, "build info request: %w", err)
	}
	req.Header.Set("User-Agent", media.BrowserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, media.Normalize(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, media.Errorf(media.KindNotFound, "post %s not found", shortcode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, media.RemoteRejected("instagram_rate_limited")
	case resp.StatusCode != http.StatusOK:
		return nil, media.Errorf(media.KindNetwork, "instagram info endpoint answered %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, media.Normalize(err)
	}
	var info infoResponse
	if err := json.Unmarshal(raw, &info); err != nil {
		// A login wall serves HTML with a 200.
		return nil, media.RemoteRejected("instagram_login_wall")
	}
	if len(info.Items) == 0 {
		return nil, media.Errorf(media.KindNotFound, "post %s has no media items", shortcode)
	}
	return &info.Items[0], nil
}

func (s *Strategy) postInfoURL(shortcode string) string {
	return fmt.Sprintf(s.infoURL, shortcode)
}

// pickRendition selects the media URL and actual content type of the
// item. The post itself decides whether it is a video or an image; the
// requested type only steered strategy selection.
func pickRendition(item *mediaItem) (string, media.ContentType, error) {
	switch item.MediaType {
	case mediaTypeVideo:
		if len(item.VideoVersions) == 0 {
			return "", "", media.Errorf(media.KindNotFound, "video post has no renditions")
		}
		return item.VideoVersions[0].URL, media.ContentVideo, nil
	case mediaTypeImage:
		if len(item.ImageVersions.Candidates) == 0 {
			return "", "", media.Errorf(media.KindNotFound, "image post has no renditions")
		}
		return item.ImageVersions.Candidates[0].URL, media.ContentImage, nil
	default:
		return "", "", media.Errorf(media.KindNotFound, "unhandled media_type %d", item.MediaType)
	}
}
