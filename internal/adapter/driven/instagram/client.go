package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/fitflow/internal/adapter/driven/httpx"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MediaSource = (*Client)(nil)

// mediaEnvelope is the response shape of the media listing endpoints.
type mediaEnvelope struct {
	Meta struct {
		Code         int    `json:"code"`
		ErrorMessage string `json:"error_message"`
	} `json:"meta"`
	Data []mediaEntry `json:"data"`
}

type mediaEntry struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Images struct {
		StandardResolution struct {
			URL string `json:"url"`
		} `json:"standard_resolution"`
	} `json:"images"`
}

// Client implements driven.MediaSource against the Instagram v1 API.
type Client struct {
	apiBaseURL string
	httpClient *http.Client
}

// NewClient creates a Client that reads listings below apiBaseURL.
func NewClient(httpClient *http.Client, apiBaseURL string) *Client {
	return &Client{apiBaseURL: apiBaseURL, httpClient: httpClient}
}

// listingPath returns the listing followed for kind.
func listingPath(kind model.InputType) (string, error) {
	switch kind {
	case model.InputTypePhoto:
		return "users/self/media/recent", nil
	case model.InputTypeLike:
		return "users/self/media/liked", nil
	default:
		return "", fmt.Errorf("%w: unknown input type %q", model.ErrConfiguration, kind)
	}
}

// Latest returns the most recent item of the listing.
func (c *Client) Latest(ctx context.Context, creds model.Credentials, kind model.InputType) (model.MediaItem, bool, error) {
	items, err := c.list(ctx, creds, kind, url.Values{"count": {"1"}})
	if err != nil {
		return model.MediaItem{}, false, err
	}
	if len(items) == 0 {
		return model.MediaItem{}, false, nil
	}
	return items[0], true, nil
}

// Since returns the items newer than sinceID. Uploaded media is filtered
// server-side with min_id; the liked listing has no such filter and returns
// its default page.
func (c *Client) Since(ctx context.Context, creds model.Credentials, kind model.InputType, sinceID string) ([]model.MediaItem, error) {
	params := url.Values{}
	if kind == model.InputTypePhoto && sinceID != "" {
		params.Set("min_id", sinceID)
	}
	return c.list(ctx, creds, kind, params)
}

// Download fetches the media body at mediaURL.
func (c *Client) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	if mediaURL == "" {
		return nil, fmt.Errorf("%w: media item has no url", model.ErrData)
	}
	body, err := httpx.Get(ctx, c.httpClient, mediaURL)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	return body, nil
}

func (c *Client) list(ctx context.Context, creds model.Credentials, kind model.InputType, params url.Values) ([]model.MediaItem, error) {
	if !creds.Authorized() {
		return nil, model.ErrNotAuthorized
	}

	path, err := listingPath(kind)
	if err != nil {
		return nil, err
	}
	params.Set("access_token", creds.AccessToken)

	scoped := httpx.WithCacheScope(ctx, creds.AccessToken)
	body, err := httpx.Get(scoped, c.httpClient, c.apiBaseURL+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("instagram %s: %w", path, err)
	}

	var env mediaEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding instagram %s: %w", model.ErrData, path, err)
	}
	if env.Meta.Code != 0 && env.Meta.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", model.ErrTransient, &model.ProviderError{
			StatusCode: env.Meta.Code,
			Body:       env.Meta.ErrorMessage,
		})
	}

	items := make([]model.MediaItem, 0, len(env.Data))
	for _, e := range env.Data {
		items = append(items, model.MediaItem{
			ID:       e.ID,
			Type:     e.Type,
			MediaURL: e.Images.StandardResolution.URL,
		})
	}
	return items, nil
}
