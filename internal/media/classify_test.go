package media

import "testing"

func TestClassifyPlatforms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		url      string
		platform Platform
		ct       ContentType
		resolve  bool
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube, ContentVideo, false},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", PlatformYouTube, ContentVideo, false},
		{"youtube music hint", "https://music.youtube.com/watch?v=abc", PlatformYouTube, ContentAudio, false},
		{"tiktok video", "https://www.tiktok.com/@user/video/7300000000000000000", PlatformTikTok, ContentVideo, false},
		{"tiktok photo", "https://www.tiktok.com/@user/photo/7300000000000000000", PlatformTikTok, ContentImage, false},
		{"tiktok vm short link", "https://vm.tiktok.com/ZMabcdef/", PlatformTikTok, ContentVideo, true},
		{"tiktok vt short link", "https://vt.tiktok.com/ZSabcdef/", PlatformTikTok, ContentVideo, true},
		{"instagram reel", "https://www.instagram.com/reel/Cxyz123/", PlatformInstagram, ContentVideo, false},
		{"instagram story", "https://www.instagram.com/stories/user/123/", PlatformInstagram, ContentImage, false},
		{"unknown host", "https://example.com/video.mp4", PlatformUnknown, ContentVideo, false},
		{"empty", "", PlatformUnknown, ContentVideo, false},
		{"garbage", "not a url at all", PlatformUnknown, ContentVideo, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tc.url)
			if got.Platform != tc.platform {
				t.Fatalf("platform = %q, want %q", got.Platform, tc.platform)
			}
			if got.ContentType != tc.ct {
				t.Fatalf("content type = %q, want %q", got.ContentType, tc.ct)
			}
			if got.NeedsResolve != tc.resolve {
				t.Fatalf("needs resolve = %v, want %v", got.NeedsResolve, tc.resolve)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	url := "https://www.tiktok.com/@user/video/123"
	first := Classify(url)
	for i := 0; i < 10; i++ {
		if got := Classify(url); got != first {
			t.Fatalf("classification changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestPlatformSupports(t *testing.T) {
	t.Parallel()

	if !PlatformYouTube.Supports(ContentAudio) {
		t.Fatal("youtube should support audio")
	}
	if PlatformYouTube.Supports(ContentImage) {
		t.Fatal("youtube should not support image")
	}
	if !PlatformTikTok.Supports(ContentImage) {
		t.Fatal("tiktok should support image")
	}
	if PlatformInstagram.Supports(ContentAudio) {
		t.Fatal("instagram should not support audio")
	}
	if PlatformUnknown.Supports(ContentVideo) {
		t.Fatal("unknown platform should support nothing")
	}
}
