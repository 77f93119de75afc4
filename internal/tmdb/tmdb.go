// Package tmdb resolves artwork and localized titles from The Movie
// Database. Every lookup degrades to a zero value instead of an error:
// presence rendering must never fail because poster art is missing.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the public TMDB API endpoint.
const DefaultBaseURL = "https://api.themoviedb.org"

// posterBaseURL prefixes the file paths returned by the images endpoints.
const posterBaseURL = "https://image.tmdb.org/t/p/w600_and_h900_bestv2"

// missRetryCooldown is how long a failed lookup is remembered before the
// next attempt. Successful lookups live for the process lifetime.
const missRetryCooldown = 10 * time.Minute

// Client looks up posters and localized titles. A client with an empty
// API key is valid and answers every lookup with the fallback, so
// callers never branch on whether TMDB is configured.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *retryablehttp.Client
	cache    *cache.Cache
	group    singleflight.Group
}

// NewClient returns a client. language selects localized titles and may
// be empty to keep the titles Trakt reported. baseURL overrides the
// public endpoint and is empty outside tests.
func NewClient(apiKey, language, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = 10 * time.Second
	c.RetryMax = 2
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		language: language,
		http:     c,
		cache:    cache.New(cache.NoExpiration, 0),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// ///////////////////////////////////////////////
// Posters
// ///////////////////////////////////////////////

// MoviePoster returns the URL of the primary poster of a movie, or ""
// when TMDB has none or the lookup fails.
func (c *Client) MoviePoster(ctx context.Context, tmdbID int) string {
	if tmdbID <= 0 {
		return ""
	}
	return c.poster(ctx, "/3/movie/"+strconv.Itoa(tmdbID)+"/images")
}

// SeasonPoster returns the URL of the primary poster of a show season,
// or "" when TMDB has none or the lookup fails.
func (c *Client) SeasonPoster(ctx context.Context, tmdbID, season int) string {
	if tmdbID <= 0 {
		return ""
	}
	path := fmt.Sprintf("/3/tv/%d/season/%d/images", tmdbID, season)
	return c.poster(ctx, path)
}

func (c *Client) poster(ctx context.Context, path string) string {
	if !c.Enabled() {
		return ""
	}
	if hit, ok := c.cache.Get(path); ok {
		return hit.(string)
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		var images struct {
			Posters []struct {
				FilePath string `json:"file_path"`
			} `json:"posters"`
		}
		if err := c.get(ctx, path, false, &images); err != nil {
			return "", err
		}
		if len(images.Posters) == 0 {
			return "", nil
		}
		return posterBaseURL + images.Posters[0].FilePath, nil
	})
	if err != nil {
		c.cache.Set(path, "", missRetryCooldown)
		return ""
	}
	poster := v.(string)
	c.cache.Set(path, poster, cache.NoExpiration)
	return poster
}

// ///////////////////////////////////////////////
// Localized titles
// ///////////////////////////////////////////////

// MovieTitle returns the movie title in the configured language, or
// fallback when no language is set or the lookup fails.
func (c *Client) MovieTitle(ctx context.Context, tmdbID int, fallback string) string {
	if tmdbID <= 0 {
		return fallback
	}
	return c.title(ctx, "/3/movie/"+strconv.Itoa(tmdbID), fallback)
}

// ShowTitle returns the show name in the configured language, or
// fallback when no language is set or the lookup fails.
func (c *Client) ShowTitle(ctx context.Context, tmdbID int, fallback string) string {
	if tmdbID <= 0 {
		return fallback
	}
	return c.title(ctx, "/3/tv/"+strconv.Itoa(tmdbID), fallback)
}

// EpisodeTitle returns the episode name in the configured language, or
// fallback when no language is set or the lookup fails.
func (c *Client) EpisodeTitle(ctx context.Context, tmdbID, season, episode int, fallback string) string {
	if tmdbID <= 0 {
		return fallback
	}
	path := fmt.Sprintf("/3/tv/%d/season/%d/episode/%d", tmdbID, season, episode)
	return c.title(ctx, path, fallback)
}

func (c *Client) title(ctx context.Context, path, fallback string) string {
	if !c.Enabled() || c.language == "" {
		return fallback
	}
	if hit, ok := c.cache.Get(path); ok {
		if s := hit.(string); s != "" {
			return s
		}
		return fallback
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		var details struct {
			Title string `json:"title"`
			Name  string `json:"name"`
		}
		if err := c.get(ctx, path, true, &details); err != nil {
			return "", err
		}
		if details.Title != "" {
			return details.Title, nil
		}
		return details.Name, nil
	})
	if err != nil {
		c.cache.Set(path, "", missRetryCooldown)
		return fallback
	}
	title := v.(string)
	c.cache.Set(path, title, cache.NoExpiration)
	if title == "" {
		return fallback
	}
	return title
}

// ///////////////////////////////////////////////

// get issues an authenticated lookup. TMDB v3 takes the key as a query
// parameter; localized endpoints also take the language.
func (c *Client) get(ctx context.Context, path string, localized bool, v any) error {
	query := url.Values{"api_key": {c.apiKey}}
	if localized && c.language != "" {
		query.Set("language", c.language)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
