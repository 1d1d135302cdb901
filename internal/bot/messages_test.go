package bot

import (
	"strings"
	"testing"

	"github.com/snapfetch/snapfetch/internal/media"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
)

func TestExtractURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		text      string
		wantURL   string
		wantAudio bool
	}{
		{"bare link", "https://youtu.be/abc", "https://youtu.be/abc", false},
		{"link with chatter", "check this out https://www.tiktok.com/@u/video/1 so funny",
			"https://www.tiktok.com/@u/video/1", false},
		{"audio prefix", "audio https://youtu.be/abc", "https://youtu.be/abc", true},
		{"mp3 prefix", "mp3 please https://youtu.be/abc", "https://youtu.be/abc", true},
		{"audio mentioned after", "https://youtu.be/abc as audio", "https://youtu.be/abc", false},
		{"no link", "hello there", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			url, audio := extractURL(tc.text)
			if url != tc.wantURL {
				t.Fatalf("url = %q, want %q", url, tc.wantURL)
			}
			if audio != tc.wantAudio {
				t.Fatalf("audio = %v, want %v", audio, tc.wantAudio)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		err     error
		keyword string
	}{
		{"unsupported", media.Unsupported("nope"), "can't download"},
		{"not found", media.Errorf(media.KindNotFound, "gone"), "gone, private"},
		{"remote rejected", media.RemoteRejected("error.api"), "refused"},
		{"timeout", media.Errorf(media.KindTimeout, "slow"), "too long"},
		{"all failed transient", media.AllFailed([]*media.Error{
			{Kind: media.KindTimeout}, {Kind: media.KindNetwork},
		}), "temporary"},
		{"all failed permanent", media.AllFailed([]*media.Error{
			{Kind: media.KindNotFound}, {Kind: media.KindRemoteRejected}, {Kind: media.KindNotFound},
		}), "Every method"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := errorMessage(tc.err)
			if !strings.Contains(got, tc.keyword) {
				t.Fatalf("message %q does not contain %q", got, tc.keyword)
			}
		})
	}
}

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	free := subscriptions.SpecFor(subscriptions.PlanFree)
	msg := statusMessage(free, subscriptions.Subscription{Plan: subscriptions.PlanFree}, 3)
	if !strings.Contains(msg, "3 of 5") {
		t.Fatalf("free status missing quota: %q", msg)
	}
	if strings.Contains(msg, "expires") {
		t.Fatalf("free status should not mention expiry: %q", msg)
	}

	pro := subscriptions.SpecFor(subscriptions.PlanPro)
	msg = statusMessage(pro, subscriptions.Subscription{Plan: subscriptions.PlanPro}, 12)
	if !strings.Contains(msg, "unlimited") {
		t.Fatalf("pro status missing unlimited marker: %q", msg)
	}
}

func TestPlanLine(t *testing.T) {
	t.Parallel()

	free := planLine(subscriptions.SpecFor(subscriptions.PlanFree))
	if !strings.Contains(free, "5 downloads/day") {
		t.Fatalf("free line = %q", free)
	}
	basic := planLine(subscriptions.SpecFor(subscriptions.PlanBasic))
	if !strings.Contains(basic, "$2.99/month") {
		t.Fatalf("basic line = %q", basic)
	}
}
