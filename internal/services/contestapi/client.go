// Package contestapi talks to the contest/submission API: submission
// registration, quota counts, and contest metadata.
package contestapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"entryway/internal/services"
)

// HTTPDoer describes the HTTP client used by the contest API service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BonusEntryPayload is one bonus proof inside a registration payload.
type BonusEntryPayload struct {
	BonusConfigID string `json:"bonusConfigId"`
	SNSURL        string `json:"snsUrl,omitempty"`
	ProofImageURL string `json:"proofImageUrl,omitempty"`
}

// RegistrationPayload is the fully assembled submission the final stage posts.
type RegistrationPayload struct {
	ContestID         string              `json:"contestId"`
	AssetID           string              `json:"assetId"`
	ThumbnailURL      string              `json:"thumbnailUrl"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	ProductionProcess string              `json:"productionProcess"`
	AITools           []string            `json:"aiTools,omitempty"`
	BonusEntries      []BonusEntryPayload `json:"bonusEntries,omitempty"`
	AgreementFlag     bool                `json:"agreementFlag"`
}

// BonusConfig is one bonus-scoring configuration item of a contest.
type BonusConfig struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	RequiresURL bool   `json:"requiresUrl"`
}

// Contest is the metadata the pipeline consumes from the contest provider.
type Contest struct {
	ID                string        `json:"id"`
	MaxPerUser        int           `json:"maxPerUser"`
	AllowedExtensions []string      `json:"allowedExtensions"`
	BonusConfigs      []BonusConfig `json:"bonusConfigs"`
}

// Client calls the contest API with a bearer token supplied per request by
// the session layer.
type Client struct {
	baseURL string
	client  HTTPDoer
}

// New constructs a contest API client.
func New(baseURL string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

type registrationResponse struct {
	SubmissionID string `json:"submissionId"`
	ErrorCode    string `json:"errorCode"`
	Message      string `json:"message"`
}

// RegisterSubmission posts the assembled payload and returns the
// server-issued submission id. Specific statuses map to pre-classified
// categories: 409 duplicate, 410 contest closed, 403 deadline passed,
// 401 auth expired. Any other non-2xx is generic. No automatic retry.
func (c *Client) RegisterSubmission(ctx context.Context, token string, payload RegistrationPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrGeneric, "submission", "register", "encode registration payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrGeneric, "submission", "register", "build registration request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTransport, "submission", "register", "timed out waiting for the contest API", err)
		}
		return "", services.Wrap(services.ErrTransport, "submission", "register", "no response from the contest API", err)
	}
	defer resp.Body.Close()

	decoded := decodeRegistration(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if strings.TrimSpace(decoded.SubmissionID) == "" {
			return "", services.Wrap(services.ErrGeneric, "submission", "register", "registration response is missing the submission id", nil)
		}
		return decoded.SubmissionID, nil
	}

	message := strings.TrimSpace(decoded.Message)
	if message == "" {
		message = fmt.Sprintf("contest API returned %d", resp.StatusCode)
	}
	return "", services.Wrap(markerForStatus(resp.StatusCode), "submission", "register", message, nil)
}

func decodeRegistration(body io.Reader) registrationResponse {
	var decoded registrationResponse
	_ = json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&decoded)
	return decoded
}

func markerForStatus(status int) error {
	switch status {
	case http.StatusConflict:
		return services.ErrDuplicate
	case http.StatusGone:
		return services.ErrContestClosed
	case http.StatusForbidden:
		return services.ErrDeadlinePassed
	case http.StatusUnauthorized:
		return services.ErrAuthExpired
	default:
		return services.ErrGeneric
	}
}

type countResponse struct {
	Count int `json:"count"`
}

// CountSubmissions returns the caller's existing submission count for the
// contest. Read-only; used by the advisory quota guard.
func (c *Client) CountSubmissions(ctx context.Context, token, userID, contestID string) (int, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("contestId", contestID)
	endpoint := fmt.Sprintf("%s/submissions/count?%s", c.baseURL, query.Encode())

	var decoded countResponse
	if err := c.getJSON(ctx, "quota", endpoint, token, &decoded); err != nil {
		return 0, err
	}
	return decoded.Count, nil
}

// ContestMetadata fetches the contest's configuration: per-user maximum,
// allowed file extensions, and bonus-config list.
func (c *Client) ContestMetadata(ctx context.Context, token, contestID string) (*Contest, error) {
	endpoint := fmt.Sprintf("%s/contests/%s", c.baseURL, url.PathEscape(contestID))

	var decoded Contest
	if err := c.getJSON(ctx, "contest", endpoint, token, &decoded); err != nil {
		return nil, err
	}
	if strings.TrimSpace(decoded.ID) == "" {
		decoded.ID = contestID
	}
	return &decoded, nil
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrGeneric, "preparing", operation, "build request", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "preparing", operation, "no response from the contest API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return services.Wrap(services.ErrAuthExpired, "preparing", operation, "contest API returned 401", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrRejection, "preparing", operation,
			fmt.Sprintf("contest API returned %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return services.Wrap(services.ErrGeneric, "preparing", operation, "decode response", err)
	}
	return nil
}
