package presence

import (
	"fmt"
	"time"

	"tools.zach/dev/traktcord/internal/trakt"
)

// Media kinds a snapshot can carry.
const (
	KindMovie   = "movie"
	KindEpisode = "episode"
)

// Snapshot is one normalized poll of the watch status: what is playing,
// how far in, and everything the payload needs to render it. Title
// fields hold the display strings (possibly localized); Rating and
// PosterURL are filled in by the caller before the snapshot reaches the
// state machine.
type Snapshot struct {
	Kind   string
	Paused bool

	// Elapsed is the position inside the item; Runtime is its total
	// length, zero when unknown.
	Elapsed time.Duration
	Runtime time.Duration

	Title     string
	Year      int
	ShowTitle string
	Season    int
	Number    int

	TraktID   int
	Slug      string
	IMDB      string
	TMDB      int
	Rating    float64
	PosterURL string
}

// FromWatching normalizes a watching response into a snapshot. It
// returns nil when the response is nil or carries a media type the
// payload cannot render.
func FromWatching(w *trakt.Watching, now time.Time) *Snapshot {
	if w == nil {
		return nil
	}

	s := &Snapshot{Paused: w.Paused()}
	switch {
	case w.Type == "movie" && w.Movie != nil:
		s.Kind = KindMovie
		s.Title = w.Movie.Title
		s.Year = w.Movie.Year
		s.TraktID = w.Movie.IDs.Trakt
		s.Slug = w.Movie.IDs.Slug
		s.IMDB = w.Movie.IDs.IMDB
		s.TMDB = w.Movie.IDs.TMDB
	case w.Type == "episode" && w.Episode != nil && w.Show != nil:
		s.Kind = KindEpisode
		s.Title = w.Episode.Title
		s.ShowTitle = w.Show.Title
		s.Season = w.Episode.Season
		s.Number = w.Episode.Number
		s.TraktID = w.Episode.IDs.Trakt
		s.Slug = w.Show.IDs.Slug
		s.IMDB = w.Show.IDs.IMDB
		s.TMDB = w.Show.IDs.TMDB
	default:
		return nil
	}

	runtime := w.Runtime()
	if runtime < 0 {
		runtime = 0
	}
	s.Runtime = runtime

	// A checkin whose window outlived the runtime reports a stale
	// started_at; the end of the window is trustworthy, so anchor on it.
	start := w.StartedAt
	if window := w.ExpiresAt.Sub(w.StartedAt); runtime > 0 && window > runtime {
		start = w.ExpiresAt.Add(-runtime)
	}

	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	if runtime > 0 && elapsed > runtime {
		elapsed = runtime
	}
	s.Elapsed = elapsed

	return s
}

// Progress returns how far into the item playback is, as a percentage
// clamped to [0,100]. Zero when the runtime is unknown.
func (s *Snapshot) Progress() float64 {
	if s.Runtime <= 0 {
		return 0
	}
	p := float64(s.Elapsed) / float64(s.Runtime) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Identity names the playback session. Two snapshots with the same
// identity continue one session; any difference starts a new one. The
// kind prefix keeps a movie and an episode distinct even when numeric
// IDs collide, and the slug stands in for the title so a localized
// title arriving mid-session does not restart it.
func (s *Snapshot) Identity() string {
	if s.Kind == KindEpisode {
		return fmt.Sprintf("episode/%d/%s/%dx%d", s.TraktID, s.Slug, s.Season, s.Number)
	}
	return fmt.Sprintf("movie/%d/%s", s.TraktID, s.Slug)
}
