package media

import "strings"

// Classification is the pure result of matching a URL against the known
// platform host patterns. NeedsResolve marks short-link forms whose
// canonical URL must be recovered before ID-based strategies run.
type Classification struct {
	Platform     Platform
	ContentType  ContentType
	NeedsResolve bool
}

// Classify maps a raw URL onto a platform and a default content type.
// It is pure and never performs network calls; unknown inputs
// (including malformed URLs and empty strings) classify as
// PlatformUnknown, which is a valid terminal state rather than an error.
func Classify(rawURL string) Classification {
	url := strings.ToLower(strings.TrimSpace(rawURL))

	switch {
	case strings.Contains(url, "youtube.com"), strings.Contains(url, "youtu.be"):
		return Classification{
			Platform:    PlatformYouTube,
			ContentType: inferYouTubeType(url),
		}
	case strings.Contains(url, "tiktok.com"):
		return Classification{
			Platform:     PlatformTikTok,
			ContentType:  inferTikTokType(url),
			NeedsResolve: isTikTokShortLink(url),
		}
	case strings.Contains(url, "instagram.com"), strings.Contains(url, "ig.me"):
		return Classification{
			Platform:    PlatformInstagram,
			ContentType: inferInstagramType(url),
		}
	}
	return Classification{Platform: PlatformUnknown, ContentType: ContentVideo}
}

// audioHints are the URL keywords that advise an audio default for
// YouTube links. Advisory only; the caller may override.
var audioHints = []string{"music", "song", "audio", "playlist"}

func inferYouTubeType(url string) ContentType {
	for _, hint := range audioHints {
		if strings.Contains(url, hint) {
			return ContentAudio
		}
	}
	return ContentVideo
}

func inferTikTokType(url string) ContentType {
	if strings.Contains(url, "/photo/") || strings.Contains(url, "/photos/") {
		return ContentImage
	}
	return ContentVideo
}

func inferInstagramType(url string) ContentType {
	if strings.Contains(url, "/stories/") {
		return ContentImage
	}
	return ContentVideo
}

// isTikTokShortLink matches the vm./vt. share-link subdomains that hide
// the numeric video ID behind a redirect.
func isTikTokShortLink(url string) bool {
	return strings.Contains(url, "vm.tiktok.com") || strings.Contains(url, "vt.tiktok.com")
}
