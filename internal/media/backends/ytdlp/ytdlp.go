// Package ytdlp wraps the yt-dlp subprocess as an extraction strategy.
// It is the highest-priority video and audio backend for every
// supported platform.
package ytdlp

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/snapfetch/snapfetch/internal/media"
)

const (
	// videoFormat prefers an mp4 container so chat clients can play
	// the result inline without remuxing.
	videoFormat  = "best[ext=mp4]/best"
	audioFormat  = "mp3"
	audioQuality = "192K"
)

// Strategy shells out to yt-dlp and stages its output file.
type Strategy struct {
	staging *media.Staging
	timeout time.Duration
	logger  *slog.Logger
}

// New builds the yt-dlp strategy. timeout bounds one subprocess run.
func New(log *slog.Logger, staging *media.Staging, timeout time.Duration) *Strategy {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Strategy{
		staging: staging,
		timeout: timeout,
		logger:  log.With(slog.String("strategy", "ytdlp")),
	}
}

func (s *Strategy) Descriptor() media.Descriptor {
	return media.Descriptor{
		Name:         "ytdlp",
		Platforms:    []media.Platform{media.PlatformYouTube, media.PlatformTikTok, media.PlatformInstagram},
		ContentTypes: []media.ContentType{media.ContentVideo, media.ContentAudio},
		Priority:     100,
	}
}

// Attempt runs yt-dlp with an output template in the staging area and
// locates whatever file the subprocess produced. yt-dlp picks the final
// extension itself, so the template leaves it open and the result is
// found by prefix.
func (s *Strategy) Attempt(ctx context.Context, req media.Request) (media.Artifact, error) {
	base := strings.TrimSuffix(s.staging.NameFor(req.Platform, req.ContentType, "tmp"), ".tmp")
	template := s.staging.Path(base + ".%(ext)s")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dl := ytdlp.New().
		NoPlaylist().
		SocketTimeout(30).
		Output(template)

	if req.ContentType == media.ContentAudio {
		dl = dl.ExtractAudio().AudioFormat(audioFormat).AudioQuality(audioQuality)
	} else {
		dl = dl.Format(videoFormat)
	}

	if _, err := dl.Run(ctx, req.URL); err != nil {
		s.removeOutputs(base)
		return media.Artifact{}, classifyRunError(err)
	}

	path, err := s.findOutput(base)
	if err != nil {
		return media.Artifact{}, err
	}
	return media.Artifact{LocalPath: path}, nil
}

// findOutput locates the single file yt-dlp wrote for this run.
func (s *Strategy) findOutput(base string) (string, error) {
	matches, err := filepath.Glob(s.staging.Path(base + ".*"))
	if err != nil || len(matches) == 0 {
		return "", media.Errorf(media.KindNetwork, "yt-dlp produced no output for %s", base)
	}
	if len(matches) > 1 {
		// Intermediate files can survive a crashed postprocessor;
		// keep the first and drop the rest.
		for _, extra := range matches[1:] {
			_ = os.Remove(extra)
		}
	}
	return matches[0], nil
}

func (s *Strategy) removeOutputs(base string) {
	matches, _ := filepath.Glob(s.staging.Path(base + ".*"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			s.logger.Warn("remove yt-dlp leftover failed", slog.String("path", m), slog.Any("error", err))
		}
	}
}

// classifyRunError maps yt-dlp subprocess failures onto the extraction
// taxonomy using the messages yt-dlp is known to emit.
func classifyRunError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "this post is unavailable"),
		strings.Contains(msg, "404"):
		return media.NewError(media.KindNotFound, err)
	case strings.Contains(msg, "unsupported url"):
		return media.NewError(media.KindUnsupported, err)
	case strings.Contains(msg, "sign in"), strings.Contains(msg, "login required"):
		return &media.Error{Kind: media.KindRemoteRejected, Code: "ytdlp_auth"}
	default:
		return media.Normalize(err)
	}
}
