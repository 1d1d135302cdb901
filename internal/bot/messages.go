package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/snapfetch/snapfetch/internal/media"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
)

const (
	msgWelcome = "Send me a YouTube, TikTok, or Instagram link and I'll fetch the media for you.\n\n" +
		"Commands:\n" +
		"/subscribe - see plans\n" +
		"/status - your plan and usage\n" +
		"/promo <code> - redeem a promo code\n" +
		"/help - how to use the bot"

	msgHelp = "Paste a link to download:\n" +
		"• YouTube video or music\n" +
		"• TikTok video or photo post\n" +
		"• Instagram reel or post\n\n" +
		"Prefix a YouTube link with \"audio\" to get an mp3.\n" +
		"Free accounts get 5 downloads per day; /subscribe lifts the limit."

	msgRateLimited = "Easy there - you're sending links faster than I can fetch them. Give it a minute."
	msgNoURL       = "That doesn't look like a link I can handle. Send a YouTube, TikTok, or Instagram URL."
	msgWorking     = "On it, fetching your media..."
)

// urlPattern finds the first http(s) URL in a message.
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// extractURL pulls the first URL out of the message text and reports
// whether the user asked for audio.
func extractURL(text string) (url string, wantAudio bool) {
	url = urlPattern.FindString(text)
	if url == "" {
		return "", false
	}
	prefix := strings.ToLower(strings.TrimSpace(strings.Split(text, url)[0]))
	wantAudio = strings.Contains(prefix, "audio") || strings.Contains(prefix, "mp3")
	return url, wantAudio
}

// errorMessage maps an extraction failure onto the reply the user sees.
func errorMessage(err error) string {
	switch media.KindOf(err) {
	case media.KindUnsupported:
		return "I can't download from that link. I support YouTube, TikTok, and Instagram."
	case media.KindNotFound:
		return "That content seems to be gone, private, or region-locked."
	case media.KindRemoteRejected:
		return "The platform refused to hand the media over. This sometimes clears up; try again later."
	case media.KindTimeout:
		return "That took too long to download. Try again in a moment."
	default:
		if media.Transient(err) {
			return "Something went wrong on the way, but it looks temporary. Try again."
		}
		return "I couldn't download that one. Every method I have failed."
	}
}

// captionFor labels delivered media with its source platform.
func captionFor(p media.Platform) string {
	switch p {
	case media.PlatformYouTube:
		return "Downloaded from YouTube"
	case media.PlatformTikTok:
		return "Downloaded from TikTok"
	case media.PlatformInstagram:
		return "Downloaded from Instagram"
	default:
		return ""
	}
}

// quotaMessage is shown when a free user runs out of daily downloads.
func quotaMessage(spec subscriptions.Spec) string {
	return fmt.Sprintf(
		"You've used all %d free downloads for today. The counter resets at midnight UTC.\n\n"+
			"Use /subscribe to remove the limit.",
		spec.DailyDownloads,
	)
}

// sizeMessage is shown when an artifact exceeds the plan's ceiling.
func sizeMessage(sizeBytes int64, spec subscriptions.Spec) string {
	return fmt.Sprintf(
		"This file is %d MB, above the %d MB limit of your %s plan. /subscribe to raise the ceiling.",
		sizeBytes>>20, spec.MaxFileMB, spec.Title,
	)
}

// statusMessage renders /status.
func statusMessage(spec subscriptions.Spec, sub subscriptions.Subscription, usedToday int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", spec.Title)
	if spec.DailyDownloads > 0 {
		fmt.Fprintf(&b, "Downloads today: %d of %d\n", usedToday, spec.DailyDownloads)
	} else {
		fmt.Fprintf(&b, "Downloads today: %d (unlimited)\n", usedToday)
	}
	fmt.Fprintf(&b, "Max file size: %d MB\n", spec.MaxFileMB)
	if !sub.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "Renews/expires: %s\n", sub.ExpiresAt.Format("2006-01-02"))
	}
	return b.String()
}

// planLine renders one catalog row for the /subscribe keyboard text.
func planLine(spec subscriptions.Spec) string {
	if !spec.Paid() {
		return fmt.Sprintf("%s - %d downloads/day, files up to %d MB", spec.Title, spec.DailyDownloads, spec.MaxFileMB)
	}
	return fmt.Sprintf("%s - %s/month, unlimited downloads, files up to %d MB", spec.Title, spec.Price(), spec.MaxFileMB)
}
