// Package ticket calls the upload-ticket endpoint that issues one-time video
// upload targets and asset identifiers.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"entryway/internal/services"
)

// HTTPDoer describes the HTTP client used by the ticket service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ticket is a one-time upload grant: the raw upload target plus the asset
// identifier the registration payload must carry unmodified.
type Ticket struct {
	UploadTarget string
	AssetID      string
}

// Client requests upload tickets.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   HTTPDoer
}

// New constructs a ticket client. timeoutSeconds bounds each request; zero
// leaves the transport default in place.
func New(endpoint string, timeoutSeconds int, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		client:   client,
	}
}

type ticketRequest struct {
	DurationLimitSeconds int `json:"durationLimitSeconds"`
}

type ticketResponse struct {
	UploadTarget string `json:"uploadTarget"`
	AssetID      string `json:"assetId"`
	Error        string `json:"error"`
}

// Request asks for an upload ticket with the given maximum duration. A
// response missing either the upload target or the asset identifier is a
// malformed precondition, reported as a generic failure rather than a
// transport one.
func (c *Client) Request(ctx context.Context, durationLimitSeconds int) (*Ticket, error) {
	body, err := json.Marshal(ticketRequest{DurationLimitSeconds: durationLimitSeconds})
	if err != nil {
		return nil, services.Wrap(services.ErrGeneric, "video", "ticket", "encode ticket request", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrGeneric, "video", "ticket", "build ticket request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTransport, "video", "ticket",
				fmt.Sprintf("timed out after %s", c.timeout), err)
		}
		return nil, services.Wrap(services.ErrTransport, "video", "ticket", "no response from ticket endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, services.Wrap(services.ErrRejection, "video", "ticket",
			fmt.Sprintf("ticket endpoint returned %d", resp.StatusCode), nil)
	}

	var decoded ticketResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrGeneric, "video", "ticket", "decode ticket response", err)
	}
	if strings.TrimSpace(decoded.Error) != "" {
		return nil, services.Wrap(services.ErrGeneric, "video", "ticket", decoded.Error, nil)
	}
	if strings.TrimSpace(decoded.UploadTarget) == "" || strings.TrimSpace(decoded.AssetID) == "" {
		return nil, services.Wrap(services.ErrGeneric, "video", "ticket", "ticket response is missing the upload target or asset id", nil)
	}

	return &Ticket{
		UploadTarget: strings.TrimSpace(decoded.UploadTarget),
		AssetID:      strings.TrimSpace(decoded.AssetID),
	}, nil
}
