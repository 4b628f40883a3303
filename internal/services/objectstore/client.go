// Package objectstore writes thumbnail and proof images to object storage
// and derives their public URLs.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"entryway/internal/draft"
	"entryway/internal/services"
	"entryway/internal/textutil"
)

// HTTPDoer describes the HTTP client used by the storage service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs bearer-authenticated object writes.
type Client struct {
	baseURL       string
	publicBaseURL string
	client        HTTPDoer
}

// New constructs a storage client. publicBaseURL falls back to baseURL when
// empty.
func New(baseURL, publicBaseURL string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	publicBaseURL = strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if publicBaseURL == "" {
		publicBaseURL = baseURL
	}
	return &Client{baseURL: baseURL, publicBaseURL: publicBaseURL, client: client}
}

// ObjectPath builds the storage key {contestID}/[{userID}/]{randomID}-{name}.
// The random prefix avoids collisions between concurrent submitters without a
// locking protocol; the name is sanitized for key safety.
func ObjectPath(contestID, userID, fileName string) string {
	segments := make([]string, 0, 3)
	segments = append(segments, textutil.SanitizeToken(contestID))
	if strings.TrimSpace(userID) != "" {
		segments = append(segments, textutil.SanitizeToken(userID))
	}
	segments = append(segments, fmt.Sprintf("%s-%s", uuid.NewString(), textutil.SanitizeFileName(fileName)))
	return strings.Join(segments, "/")
}

// PublicURL derives the public URL for an object path. No network round trip
// is involved.
func (c *Client) PublicURL(objectPath string) string {
	return c.publicBaseURL + "/" + strings.TrimLeft(objectPath, "/")
}

// Put uploads file to objectPath using the bearer token. Writes are
// create-only: a path collision is rejected, never overwritten. The stage
// label feeds error detail so thumbnail and proof failures read distinctly.
func (c *Client) Put(ctx context.Context, stage, objectPath, token string, file *draft.File) error {
	if file == nil || file.Open == nil {
		return services.Wrap(services.ErrGeneric, stage, "upload", "no file handle", nil)
	}

	source, err := file.Open()
	if err != nil {
		return services.Wrap(services.ErrGeneric, stage, "upload", "open file", err)
	}
	defer source.Close()

	url := c.baseURL + "/" + strings.TrimLeft(objectPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, source)
	if err != nil {
		return services.Wrap(services.ErrGeneric, stage, "upload", "build storage request", err)
	}
	req.ContentLength = file.Size
	req.Header.Set("Content-Type", file.MIME)
	req.Header.Set("If-None-Match", "*")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTransport, stage, "upload", "timed out waiting for storage", err)
		}
		return services.Wrap(services.ErrTransport, stage, "upload", "no response from storage", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		return services.Wrap(services.ErrRejection, stage, "upload",
			fmt.Sprintf("object %s already exists (%d)", objectPath, resp.StatusCode), nil)
	default:
		return services.Wrap(services.ErrRejection, stage, "upload",
			fmt.Sprintf("storage returned %d", resp.StatusCode), nil)
	}
}
