package presence

import (
	"fmt"
	"time"

	"tools.zach/dev/traktcord/internal/discord"
)

// maxFieldLen is Discord's limit for the details and state strings.
const maxFieldLen = 128

// Static asset keys uploaded to the Discord applications, shown when no
// poster could be resolved.
const (
	fallbackMovieAsset = "movies"
	fallbackShowAsset  = "shows"
)

// buildActivity renders a snapshot into the activity Discord displays.
// start and end anchor the countdown; end may be zero when the runtime
// is unknown.
func buildActivity(s *Snapshot, start, end time.Time) *discord.Activity {
	act := &discord.Activity{
		Type:    discord.TypeWatching,
		Details: truncate(detailsLine(s)),
		State:   truncate(stateLine(s)),
		Assets: &discord.Assets{
			LargeImage: largeImage(s),
			SmallImage: "trakt",
			SmallText:  "Trakt.tv",
		},
	}

	if !start.IsZero() {
		ts := &discord.Timestamps{Start: start.Unix()}
		if !end.IsZero() {
			ts.End = end.Unix()
		}
		act.Timestamps = ts
	}

	if s.IMDB != "" {
		act.Buttons = append(act.Buttons, discord.Button{
			Label: "IMDB",
			URL:   "https://www.imdb.com/title/" + s.IMDB,
		})
	}
	if s.Slug != "" {
		act.Buttons = append(act.Buttons, discord.Button{
			Label: "Trakt",
			URL:   fmt.Sprintf("https://trakt.tv/%s/%s", mediaSegment(s.Kind), s.Slug),
		})
	}

	return act
}

// Describe returns the title and detail lines for the status surface,
// matching what the presence card shows.
func Describe(s *Snapshot) (title, detail string) {
	if s == nil {
		return "", ""
	}
	return truncate(detailsLine(s)), truncate(stateLine(s))
}

// detailsLine is the first text row: the movie title with its year, or
// the show title for episodes.
func detailsLine(s *Snapshot) string {
	if s.Kind == KindEpisode {
		return s.ShowTitle
	}
	if s.Year > 0 {
		return fmt.Sprintf("%s (%d)", s.Title, s.Year)
	}
	return s.Title
}

// stateLine is the second text row: the community rating for movies, the
// episode position for episodes.
func stateLine(s *Snapshot) string {
	if s.Kind == KindEpisode {
		if s.Title == "" {
			return fmt.Sprintf("S%dE%d", s.Season, s.Number)
		}
		return fmt.Sprintf("S%dE%d - %s", s.Season, s.Number, s.Title)
	}
	if s.Rating > 0 {
		return fmt.Sprintf("%.1f ⭐", s.Rating)
	}
	return ""
}

func largeImage(s *Snapshot) string {
	if s.PosterURL != "" {
		return s.PosterURL
	}
	if s.Kind == KindEpisode {
		return fallbackShowAsset
	}
	return fallbackMovieAsset
}

// mediaSegment is the trakt.tv URL path segment for a media kind.
func mediaSegment(kind string) string {
	if kind == KindEpisode {
		return "shows"
	}
	return "movies"
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxFieldLen {
		return text
	}
	return string(runes[:maxFieldLen-1]) + "…"
}
