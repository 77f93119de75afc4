package presence

import (
	"strings"
	"testing"
	"time"

	"tools.zach/dev/traktcord/internal/discord"
)

func TestBuildActivity_Movie(t *testing.T) {
	snap := movieSnap(10 * time.Minute)
	snap.PosterURL = "https://image.tmdb.org/t/p/w600_and_h900_bestv2/heat.jpg"

	start := baseTime.Add(-10 * time.Minute)
	end := start.Add(170 * time.Minute)
	act := buildActivity(snap, start, end)

	if act.Type != discord.TypeWatching {
		t.Errorf("type = %d, want %d", act.Type, discord.TypeWatching)
	}
	if act.Details != "Heat (1995)" {
		t.Errorf("details = %q", act.Details)
	}
	if act.State != "8.5 ⭐" {
		t.Errorf("state = %q", act.State)
	}
	if act.Assets == nil {
		t.Fatal("missing assets")
	}
	if act.Assets.LargeImage != snap.PosterURL {
		t.Errorf("large image = %q", act.Assets.LargeImage)
	}
	if act.Assets.SmallImage != "trakt" || act.Assets.SmallText != "Trakt.tv" {
		t.Errorf("small asset = %q/%q", act.Assets.SmallImage, act.Assets.SmallText)
	}
	if act.Timestamps == nil {
		t.Fatal("missing timestamps")
	}
	if act.Timestamps.Start != start.Unix() || act.Timestamps.End != end.Unix() {
		t.Errorf("timestamps = %d..%d", act.Timestamps.Start, act.Timestamps.End)
	}

	if len(act.Buttons) != 2 {
		t.Fatalf("buttons = %d, want 2", len(act.Buttons))
	}
	if act.Buttons[0].Label != "IMDB" || act.Buttons[0].URL != "https://www.imdb.com/title/tt0113277" {
		t.Errorf("imdb button = %+v", act.Buttons[0])
	}
	if act.Buttons[1].Label != "Trakt" || act.Buttons[1].URL != "https://trakt.tv/movies/heat-1995" {
		t.Errorf("trakt button = %+v", act.Buttons[1])
	}
}

func TestBuildActivity_Episode(t *testing.T) {
	snap := episodeSnap(3 * time.Minute)

	act := buildActivity(snap, baseTime.Add(-3*time.Minute), baseTime.Add(41*time.Minute))

	if act.Details != "The Expanse" {
		t.Errorf("details = %q", act.Details)
	}
	if act.State != "S2E5 - Home" {
		t.Errorf("state = %q", act.State)
	}
	if act.Assets.LargeImage != fallbackShowAsset {
		t.Errorf("large image = %q, want the show fallback", act.Assets.LargeImage)
	}
	// Episode links go through the show, not the episode.
	if len(act.Buttons) != 2 {
		t.Fatalf("buttons = %d, want 2", len(act.Buttons))
	}
	if act.Buttons[1].URL != "https://trakt.tv/shows/the-expanse" {
		t.Errorf("trakt button url = %q", act.Buttons[1].URL)
	}
}

func TestBuildActivity_ButtonsOmittedWithoutIDs(t *testing.T) {
	snap := movieSnap(0)
	snap.IMDB = ""
	snap.Slug = ""

	act := buildActivity(snap, baseTime, baseTime.Add(170*time.Minute))
	if len(act.Buttons) != 0 {
		t.Errorf("buttons = %+v, want none", act.Buttons)
	}

	snap.Slug = "heat-1995"
	act = buildActivity(snap, baseTime, baseTime.Add(170*time.Minute))
	if len(act.Buttons) != 1 || act.Buttons[0].Label != "Trakt" {
		t.Errorf("buttons = %+v, want only the trakt link", act.Buttons)
	}
}

func TestBuildActivity_NoEndWithoutRuntime(t *testing.T) {
	act := buildActivity(movieSnap(0), baseTime, time.Time{})
	if act.Timestamps == nil {
		t.Fatal("missing timestamps")
	}
	if act.Timestamps.Start != baseTime.Unix() {
		t.Errorf("start = %d", act.Timestamps.Start)
	}
	if act.Timestamps.End != 0 {
		t.Errorf("end = %d, want omitted", act.Timestamps.End)
	}
}

func TestBuildActivity_NoTimestamps(t *testing.T) {
	act := buildActivity(movieSnap(0), time.Time{}, time.Time{})
	if act.Timestamps != nil {
		t.Errorf("timestamps = %+v, want nil", act.Timestamps)
	}
}

func TestDetailsLine(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want string
	}{
		{"movie with year", &Snapshot{Kind: KindMovie, Title: "Heat", Year: 1995}, "Heat (1995)"},
		{"movie without year", &Snapshot{Kind: KindMovie, Title: "Heat"}, "Heat"},
		{"episode", &Snapshot{Kind: KindEpisode, Title: "Home", ShowTitle: "The Expanse"}, "The Expanse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detailsLine(tt.snap); got != tt.want {
				t.Errorf("detailsLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateLine(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want string
	}{
		{"movie rated", &Snapshot{Kind: KindMovie, Rating: 8.45123}, "8.5 ⭐"},
		{"movie unrated", &Snapshot{Kind: KindMovie}, ""},
		{"episode", &Snapshot{Kind: KindEpisode, Season: 2, Number: 5, Title: "Home"}, "S2E5 - Home"},
		{"episode untitled", &Snapshot{Kind: KindEpisode, Season: 2, Number: 5}, "S2E5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stateLine(tt.snap); got != tt.want {
				t.Errorf("stateLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLargeImage_FallbackAssets(t *testing.T) {
	if got := largeImage(&Snapshot{Kind: KindMovie}); got != fallbackMovieAsset {
		t.Errorf("movie fallback = %q", got)
	}
	if got := largeImage(&Snapshot{Kind: KindEpisode}); got != fallbackShowAsset {
		t.Errorf("show fallback = %q", got)
	}
	if got := largeImage(&Snapshot{Kind: KindMovie, PosterURL: "https://example.test/p.jpg"}); got != "https://example.test/p.jpg" {
		t.Errorf("poster = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short"); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}

	exact := strings.Repeat("a", maxFieldLen)
	if got := truncate(exact); got != exact {
		t.Error("string at the limit was modified")
	}

	long := strings.Repeat("a", maxFieldLen+40)
	got := truncate(long)
	if runes := []rune(got); len(runes) != maxFieldLen {
		t.Errorf("truncated length = %d runes, want %d", len(runes), maxFieldLen)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated string %q lacks the ellipsis", got)
	}

	// Multi-byte titles must not be cut mid-rune.
	wide := strings.Repeat("映", maxFieldLen+5)
	got = truncate(wide)
	if runes := []rune(got); len(runes) != maxFieldLen {
		t.Errorf("wide truncated length = %d runes, want %d", len(runes), maxFieldLen)
	}
	if strings.Contains(got, "�") {
		t.Error("truncation produced a replacement rune")
	}
}
