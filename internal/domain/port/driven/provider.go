package driven

import (
	"context"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// FitbitAPI issues authenticated reads against the Fitbit user API.
type FitbitAPI interface {
	// Query fetches the resource at path (relative to the current user, e.g.
	// "badges.json") and returns the decoded JSON body.
	Query(ctx context.Context, creds model.Credentials, path string) (any, error)
}

// MediaSource lists and downloads media from a provider's "recent items"
// endpoints. Listings are ordered newest-first.
type MediaSource interface {
	// Latest returns the single most recent item. ok is false when the
	// listing is empty.
	Latest(ctx context.Context, creds model.Credentials, kind model.InputType) (item model.MediaItem, ok bool, err error)

	// Since returns the items newer than sinceID. Providers that cannot
	// filter server-side return their default page; the caller trims it.
	Since(ctx context.Context, creds model.Credentials, kind model.InputType, sinceID string) ([]model.MediaItem, error)

	// Download fetches the media body at url.
	Download(ctx context.Context, url string) ([]byte, error)
}
