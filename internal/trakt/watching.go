package trakt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

// IDs carries the cross-database identifiers Trakt attaches to an item.
// Unused databases are zero.
type IDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

// Movie as returned inside a watching response. Runtime is minutes.
type Movie struct {
	Title   string `json:"title"`
	Year    int    `json:"year"`
	IDs     IDs    `json:"ids"`
	Runtime int    `json:"runtime"`
}

// Show as returned inside a watching response.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Episode as returned inside a watching response. Runtime is minutes.
type Episode struct {
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	IDs     IDs    `json:"ids"`
	Runtime int    `json:"runtime"`
}

// Watching is a 200 answer from the watching endpoint. Type selects which
// of the media fields are set: "movie" fills Movie, "episode" fills Show
// and Episode.
type Watching struct {
	ExpiresAt time.Time `json:"expires_at"`
	StartedAt time.Time `json:"started_at"`
	Action    string    `json:"action"`
	Type      string    `json:"type"`
	Movie     *Movie    `json:"movie,omitempty"`
	Show      *Show     `json:"show,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
}

// Paused reports whether the player has the item paused rather than
// playing.
func (w *Watching) Paused() bool {
	return w.Action == "paused"
}

// Runtime returns the item length, falling back to the started/expires
// window when Trakt omitted the runtime field.
func (w *Watching) Runtime() time.Duration {
	minutes := 0
	switch {
	case w.Type == "episode" && w.Episode != nil:
		minutes = w.Episode.Runtime
	case w.Movie != nil:
		minutes = w.Movie.Runtime
	}
	if minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return w.ExpiresAt.Sub(w.StartedAt)
}

// ///////////////////////////////////////////////

// Watching fetches what username is playing right now. It returns nil
// when nothing is playing. A rejected token yields ErrUnauthorized and a
// 429 yields a RateLimitError.
func (c *Client) Watching(ctx context.Context, username, accessToken string) (*Watching, error) {
	path := "/users/" + url.PathEscape(username) + "/watching"
	resp, err := c.do(ctx, http.MethodGet, path, accessToken, nil)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var w Watching
		if err := decodeBody(resp, &w); err != nil {
			return nil, err
		}
		return &w, nil
	case http.StatusNoContent:
		drain(resp.Body)
		return nil, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		drain(resp.Body)
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		after := retryAfter(resp)
		drain(resp.Body)
		return nil, &RateLimitError{RetryAfter: after}
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("watching request: unexpected status %d", resp.StatusCode)
	}
}

// Ratings is the community rating summary of an item.
type Ratings struct {
	Rating       float64        `json:"rating"`
	Votes        int            `json:"votes"`
	Distribution map[string]int `json:"distribution"`
}

// MovieRating returns the community rating of a movie on the 0-10 scale,
// or 0 when the lookup fails. Results are cached for the process
// lifetime, failures only briefly, so steady-state polling costs no
// requests.
func (c *Client) MovieRating(ctx context.Context, slug string) float64 {
	return c.rating(ctx, "movies", slug)
}

// ShowRating returns the community rating of a show, with the same
// caching as MovieRating.
func (c *Client) ShowRating(ctx context.Context, slug string) float64 {
	return c.rating(ctx, "shows", slug)
}

func (c *Client) rating(ctx context.Context, kind, slug string) float64 {
	if slug == "" {
		return 0
	}
	key := kind + "/" + slug
	if hit, ok := c.ratings.Get(key); ok {
		return hit.(float64)
	}
	r, err := c.fetchRatings(ctx, kind, slug)
	if err != nil {
		c.ratings.Set(key, float64(0), ratingRetryCooldown)
		return 0
	}
	c.ratings.Set(key, r.Rating, cache.NoExpiration)
	return r.Rating
}

func (c *Client) fetchRatings(ctx context.Context, kind, slug string) (*Ratings, error) {
	path := "/" + kind + "/" + url.PathEscape(slug) + "/ratings"
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, fmt.Errorf("ratings request: unexpected status %d", resp.StatusCode)
	}
	var r Ratings
	if err := decodeBody(resp, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
