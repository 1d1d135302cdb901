// Package cobalt implements an extraction strategy backed by a cobalt
// API instance. Cobalt hands back either a tunnel URL to stream from or
// a picker of direct media URLs.
package cobalt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/snapfetch/snapfetch/internal/media"
)

// Config carries the cobalt instance settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Strategy talks to one cobalt instance.
type Strategy struct {
	cfg     Config
	staging *media.Staging
	client  *http.Client
	logger  *slog.Logger
}

// New builds the cobalt strategy for the configured instance.
func New(log *slog.Logger, staging *media.Staging, cfg Config) *Strategy {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Strategy{
		cfg:     cfg,
		staging: staging,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  log.With(slog.String("strategy", "cobalt")),
	}
}

func (s *Strategy) Descriptor() media.Descriptor {
	return media.Descriptor{
		Name:         "cobalt",
		Platforms:    []media.Platform{media.PlatformYouTube, media.PlatformTikTok, media.PlatformInstagram},
		ContentTypes: []media.ContentType{media.ContentVideo, media.ContentImage, media.ContentAudio},
		Priority:     50,
	}
}

type apiRequest struct {
	URL           string `json:"url"`
	DownloadMode  string `json:"downloadMode"`
	VideoQuality  string `json:"videoQuality"`
	AudioFormat   string `json:"audioFormat"`
	AudioBitrate  string `json:"audioBitrate"`
	FilenameStyle string `json:"filenameStyle"`
}

type apiResponse struct {
	Status   string       `json:"status"`
	URL      string       `json:"url"`
	Filename string       `json:"filename"`
	Picker   []pickerItem `json:"picker"`
	Error    *apiError    `json:"error"`
}

type pickerItem struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type apiError struct {
	Code string `json:"code"`
}

// Attempt asks cobalt for the media and streams the answer into the
// staging area. A picker response takes its first entry; multi-item
// carousels collapse to the lead item.
func (s *Strategy) Attempt(ctx context.Context, req media.Request) (media.Artifact, error) {
	resp, err := s.call(ctx, req)
	if err != nil {
		return media.Artifact{}, err
	}

	switch resp.Status {
	case "tunnel", "redirect":
		return s.stage(ctx, req, resp.URL, resp.Filename)
	case "picker":
		if len(resp.Picker) == 0 {
			return media.Artifact{}, media.Errorf(media.KindNotFound, "cobalt picker is empty")
		}
		item := resp.Picker[0]
		name := resp.Filename
		if name == "" {
			name = "item" + pickerExtension(item.Type)
		}
		return s.stage(ctx, req, item.URL, name)
	case "error":
		code := "unknown"
		if resp.Error != nil && resp.Error.Code != "" {
			code = resp.Error.Code
		}
		if strings.Contains(code, "content") || strings.Contains(code, "fetch.empty") {
			return media.Artifact{}, &media.Error{Kind: media.KindNotFound, Code: code}
		}
		return media.Artifact{}, media.RemoteRejected(code)
	default:
		return media.Artifact{}, media.Errorf(media.KindNetwork, "cobalt answered with status %q", resp.Status)
	}
}

// call performs the JSON POST to the cobalt instance.
func (s *Strategy) call(ctx context.Context, req media.Request) (*apiResponse, error) {
	payload := apiRequest{
		URL:           req.URL,
		DownloadMode:  downloadMode(req.ContentType),
		VideoQuality:  "1080",
		AudioFormat:   "mp3",
		AudioBitrate:  "192",
		FilenameStyle: "basic",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, media.Errorf(media.KindNetwork, "encode cobalt request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, media.Errorf(media.KindNetwork, "build cobalt request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Api-Key "+s.cfg.APIKey)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, media.Normalize(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, media.Normalize(err)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, media.Errorf(media.KindNetwork, "decode cobalt response (http %d): %w", httpResp.StatusCode, err)
	}
	return &resp, nil
}

// stage streams the cobalt-provided URL to disk. Cobalt tunnels check
// the Referer, so the original page URL is forwarded.
func (s *Strategy) stage(ctx context.Context, req media.Request, mediaURL, providerName string) (media.Artifact, error) {
	if mediaURL == "" {
		return media.Artifact{}, media.Errorf(media.KindNetwork, "cobalt returned no media url")
	}
	ext := media.ExtensionFor(providerName, mediaURL, req.ContentType)
	name := s.staging.NameFor(req.Platform, req.ContentType, ext)

	header := http.Header{}
	header.Set("Referer", req.URL)

	path, size, err := s.staging.Download(ctx, mediaURL, header, name)
	if err != nil {
		return media.Artifact{}, err
	}
	s.logger.Debug("cobalt staged media",
		slog.String("path", path),
		slog.Int64("bytes", size),
	)
	return media.Artifact{LocalPath: path, SizeBytes: size}, nil
}

func downloadMode(ct media.ContentType) string {
	switch ct {
	case media.ContentAudio:
		return "audio"
	default:
		return "auto"
	}
}

// pickerExtension maps a picker item type to a filename extension.
func pickerExtension(itemType string) string {
	switch itemType {
	case "photo":
		return ".jpg"
	case "gif":
		return ".gif"
	default:
		return ".mp4"
	}
}

var _ media.Strategy = (*Strategy)(nil)

// Verify reports whether the configured instance is reachable. Used at
// startup to log a clear warning instead of failing the first user.
func (s *Strategy) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("cobalt instance unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
