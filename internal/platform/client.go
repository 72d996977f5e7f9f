// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

var (
	// ErrTransient marks network failures, timeouts and 5xx responses.
	// The client retries these internally; once retries are exhausted the
	// caller abandons the batch and logs it.
	ErrTransient = errors.New("transient platform error")

	// ErrMalformed marks responses that could not be decoded and 4xx
	// rejections other than quota. Never retried.
	ErrMalformed = errors.New("malformed platform response")

	// ErrRemoteQuota marks 403/429 rejections. The local ledger normally
	// prevents these; when one arrives anyway the call is not retried.
	ErrRemoteQuota = errors.New("platform rejected call: remote quota")
)

// Client is the sole external I/O surface the discovery core consumes.
// Every method maps to exactly one ledger operation; callers charge the
// ledger before invoking it.
type Client interface {
	// SearchVideos runs a keyword search ordered newest-first. Results
	// are partial records (HasDetails false).
	SearchVideos(ctx context.Context, query string, publishedAfter time.Time, maxResults int) ([]RawVideo, error)

	// GetTrending lists the most-popular chart for one category.
	// Results are full records.
	GetTrending(ctx context.Context, categoryID string, maxResults int) ([]RawVideo, error)

	// GetChannelUploads lists a channel's uploads newer than since,
	// newest-first. Results are partial records.
	GetChannelUploads(ctx context.Context, channelID string, since time.Time, maxResults int) ([]RawVideo, error)

	// GetVideoDetails hydrates up to 50 video ids per call. Unknown ids
	// are silently absent from the result.
	GetVideoDetails(ctx context.Context, videoIDs []string) ([]RawVideo, error)
}

// maxDetailsPerCall is the platform's hard cap on ids per details call.
const maxDetailsPerCall = 50

// HTTPClient talks to the platform's v3 REST API. All methods are safe
// for concurrent use; a shared limiter paces requests across callers.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a platform client from validated configuration.
func NewHTTPClient(cfg config.PlatformConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		region:  cfg.Region,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
	}
}

// SearchVideos implements Client.
func (c *HTTPClient) SearchVideos(ctx context.Context, query string, publishedAfter time.Time, maxResults int) ([]RawVideo, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("safeSearch", "none")
	if c.region != "" {
		params.Set("regionCode", c.region)
	}
	if !publishedAfter.IsZero() {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	var resp searchResponse
	if err := c.doGet(ctx, "search", "/search", params, &resp); err != nil {
		return nil, err
	}

	videos := make([]RawVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			metrics.PlatformMalformedItems.WithLabelValues("item").Inc()
			continue
		}
		videos = append(videos, RawVideo{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  item.Snippet.PublishedAt,
			ThumbnailURL: item.Snippet.Thumbnails.best(),
		})
	}
	return videos, nil
}

// GetTrending implements Client.
func (c *HTTPClient) GetTrending(ctx context.Context, categoryID string, maxResults int) ([]RawVideo, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("chart", "mostPopular")
	params.Set("maxResults", strconv.Itoa(maxResults))
	if categoryID != "" {
		params.Set("videoCategoryId", categoryID)
	}
	if c.region != "" {
		params.Set("regionCode", c.region)
	}

	var resp videosResponse
	if err := c.doGet(ctx, "trending", "/videos", params, &resp); err != nil {
		return nil, err
	}
	return c.videosFromItems(resp.Items), nil
}

// GetChannelUploads implements Client.
//
// Uploads live in the channel's canonical uploads playlist. For the
// standard "UC" channel id form the playlist id is derived locally;
// anything else costs one extra resolution round-trip.
func (c *HTTPClient) GetChannelUploads(ctx context.Context, channelID string, since time.Time, maxResults int) ([]RawVideo, error) {
	playlistID, err := c.uploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(maxResults))

	var resp playlistItemsResponse
	if err := c.doGet(ctx, "channel_uploads", "/playlistItems", params, &resp); err != nil {
		return nil, err
	}

	videos := make([]RawVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		videoID := item.ContentDetails.VideoID
		if videoID == "" {
			videoID = item.Snippet.ResourceID.VideoID
		}
		if videoID == "" {
			metrics.PlatformMalformedItems.WithLabelValues("item").Inc()
			continue
		}
		publishedAt := item.ContentDetails.VideoPublishedAt
		// Private and deleted uploads stay listed without a publish
		// time. Nothing downstream can use them.
		if publishedAt.IsZero() {
			continue
		}
		if !since.IsZero() && publishedAt.Before(since) {
			continue
		}
		ownerID := item.Snippet.VideoOwnerChannelID
		if ownerID == "" {
			ownerID = channelID
		}
		ownerTitle := item.Snippet.VideoOwnerChannelTitle
		if ownerTitle == "" {
			ownerTitle = item.Snippet.ChannelTitle
		}
		videos = append(videos, RawVideo{
			VideoID:      videoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    ownerID,
			ChannelTitle: ownerTitle,
			PublishedAt:  publishedAt,
			ThumbnailURL: item.Snippet.Thumbnails.best(),
		})
	}
	return videos, nil
}

// GetVideoDetails implements Client.
func (c *HTTPClient) GetVideoDetails(ctx context.Context, videoIDs []string) ([]RawVideo, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	if len(videoIDs) > maxDetailsPerCall {
		return nil, fmt.Errorf("video details: %d ids exceeds per-call cap of %d", len(videoIDs), maxDetailsPerCall)
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", strings.Join(videoIDs, ","))

	var resp videosResponse
	if err := c.doGet(ctx, "video_details", "/videos", params, &resp); err != nil {
		return nil, err
	}
	return c.videosFromItems(resp.Items), nil
}

// uploadsPlaylistID maps a channel id to its uploads playlist id.
func (c *HTTPClient) uploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	if strings.HasPrefix(channelID, "UC") && len(channelID) > 2 {
		return "UU" + channelID[2:], nil
	}

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", channelID)

	var resp channelsResponse
	if err := c.doGet(ctx, "channel_details", "/channels", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", fmt.Errorf("channel %s: %w: no uploads playlist", channelID, ErrMalformed)
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

func (c *HTTPClient) videosFromItems(items []videoItemJSON) []RawVideo {
	videos := make([]RawVideo, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			metrics.PlatformMalformedItems.WithLabelValues("item").Inc()
			continue
		}

		seconds, ok := ParseDuration(item.ContentDetails.Duration)
		if !ok && item.ContentDetails.Duration != "" {
			metrics.PlatformMalformedItems.WithLabelValues("duration").Inc()
			logging.Warn().
				Str("video_id", item.ID).
				Str("duration", item.ContentDetails.Duration).
				Msg("Unparseable video duration, recording zero")
		}

		videos = append(videos, RawVideo{
			VideoID:         item.ID,
			Title:           item.Snippet.Title,
			Description:     item.Snippet.Description,
			ChannelID:       item.Snippet.ChannelID,
			ChannelTitle:    item.Snippet.ChannelTitle,
			PublishedAt:     item.Snippet.PublishedAt,
			DurationSeconds: seconds,
			ViewCount:       parseCount(item.ID, "viewCount", item.Statistics.ViewCount),
			LikeCount:       parseCount(item.ID, "likeCount", item.Statistics.LikeCount),
			CommentCount:    parseCount(item.ID, "commentCount", item.Statistics.CommentCount),
			Tags:            item.Snippet.Tags,
			ThumbnailURL:    item.Snippet.Thumbnails.best(),
			CategoryID:      item.Snippet.CategoryID,
			HasDetails:      true,
		})
	}
	return videos
}

// doGet performs one rate-limited GET with retry on transient failures.
// 429 and 403 responses are never retried.
func (c *HTTPClient) doGet(ctx context.Context, operation, path string, params url.Values, out any) error {
	start := time.Now()
	err := c.doGetInner(ctx, operation, path, params, out)
	metrics.RecordPlatformCall(operation, resultLabel(err), time.Since(start))
	return err
}

func (c *HTTPClient) doGetInner(ctx context.Context, operation, path string, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	delay := c.retryBase

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.PlatformRetries.WithLabelValues(operation).Inc()
			logging.Warn().
				Err(lastErr).
				Str("operation", operation).
				Int("attempt", attempt).
				Int("max_retries", c.maxRetries).
				Dur("delay", delay).
				Msg("Retrying platform call")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.roundTrip(ctx, operation, reqURL, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s: retries exhausted: %w", operation, lastErr)
}

// roundTrip performs a single HTTP exchange and classifies the outcome.
func (c *HTTPClient) roundTrip(ctx context.Context, operation, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %w", operation, ErrTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w: %w", operation, ErrMalformed, err)
		}
		return nil

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		reason := errorReason(resp.Body)
		logging.Error().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("reason", reason).
			Msg("Platform rejected call")
		return fmt.Errorf("%s: status %d (%s): %w", operation, resp.StatusCode, reason, ErrRemoteQuota)

	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: status %d: %w", operation, resp.StatusCode, ErrTransient)

	default:
		reason := errorReason(resp.Body)
		return fmt.Errorf("%s: status %d (%s): %w", operation, resp.StatusCode, reason, ErrMalformed)
	}
}

// errorReason extracts the platform's machine-readable error reason from
// a failed response body, falling back to a body prefix.
func errorReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "unknown"
	}

	var envelope errorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if len(envelope.Error.Errors) > 0 && envelope.Error.Errors[0].Reason != "" {
			return envelope.Error.Errors[0].Reason
		}
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}

	snippet := strings.TrimSpace(string(raw))
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	return snippet
}

// parseCount decodes the platform's string-typed statistics counters.
// Absent counters (hidden like counts, disabled comments) decode as zero
// without noise; garbage is counted and logged.
func parseCount(videoID, field, s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		metrics.PlatformMalformedItems.WithLabelValues("statistics").Inc()
		logging.Warn().
			Str("video_id", videoID).
			Str("field", field).
			Str("value", s).
			Msg("Unparseable statistics counter, recording zero")
		return 0
	}
	return n
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRemoteQuota):
		return "quota"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

// Wire shapes for the platform's v3 JSON responses. Statistics counters
// arrive as decimal strings.

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippetJSON `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []videoItemJSON `json:"items"`
}

type videoItemJSON struct {
	ID             string      `json:"id"`
	Snippet        snippetJSON `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}

type playlistItemsResponse struct {
	Items []struct {
		Snippet struct {
			Title        string         `json:"title"`
			Description  string         `json:"description"`
			ChannelTitle string         `json:"channelTitle"`
			Thumbnails   thumbnailsJSON `json:"thumbnails"`
			ResourceID   struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
			VideoOwnerChannelID    string `json:"videoOwnerChannelId"`
			VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
		} `json:"snippet"`
		ContentDetails struct {
			VideoID          string    `json:"videoId"`
			VideoPublishedAt time.Time `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type snippetJSON struct {
	PublishedAt  time.Time      `json:"publishedAt"`
	ChannelID    string         `json:"channelId"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ChannelTitle string         `json:"channelTitle"`
	CategoryID   string         `json:"categoryId"`
	Tags         []string       `json:"tags"`
	Thumbnails   thumbnailsJSON `json:"thumbnails"`
}

type thumbnailsJSON struct {
	High    *thumbnailJSON `json:"high"`
	Medium  *thumbnailJSON `json:"medium"`
	Default *thumbnailJSON `json:"default"`
}

type thumbnailJSON struct {
	URL string `json:"url"`
}

// best falls through high, medium, default.
func (t thumbnailsJSON) best() string {
	switch {
	case t.High != nil && t.High.URL != "":
		return t.High.URL
	case t.Medium != nil && t.Medium.URL != "":
		return t.Medium.URL
	case t.Default != nil:
		return t.Default.URL
	default:
		return ""
	}
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
