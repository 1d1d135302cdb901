// Package media implements URL classification and the prioritized
// strategy chain that turns a social-platform URL into a local file.
package media

// Platform identifies the source service a URL belongs to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformUnknown   Platform = "unknown"
)

// ContentType classifies the kind of media being fetched.
type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
)

// Artifact is a fully materialized local file plus its metadata.
// Ownership transfers to the caller on return; the fetcher never
// touches the path again after a successful Fetch.
type Artifact struct {
	LocalPath   string
	Platform    Platform
	ContentType ContentType
	SizeBytes   int64
	Strategy    string
}

// Request carries one extraction attempt through the chain.
type Request struct {
	URL         string
	Platform    Platform
	ContentType ContentType
}

// supportedTypes lists the content types each platform can yield.
var supportedTypes = map[Platform][]ContentType{
	PlatformYouTube:   {ContentVideo, ContentAudio},
	PlatformTikTok:    {ContentVideo, ContentAudio, ContentImage},
	PlatformInstagram: {ContentVideo, ContentImage},
}

// Supports reports whether the platform can yield the given content type.
func (p Platform) Supports(ct ContentType) bool {
	for _, t := range supportedTypes[p] {
		if t == ct {
			return true
		}
	}
	return false
}
