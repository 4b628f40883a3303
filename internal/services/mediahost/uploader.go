// Package mediahost performs the raw video upload against the one-time
// target issued by the ticket endpoint, reporting byte-level progress.
package mediahost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"entryway/internal/draft"
	"entryway/internal/services"
)

// HTTPDoer describes the HTTP client used by the uploader.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProgressFunc receives the upload percentage, floor(sent/total*100).
type ProgressFunc func(percent int)

// Uploader streams multipart uploads to a ticket's upload target.
type Uploader struct {
	timeout time.Duration
	client  HTTPDoer
}

// New constructs an uploader. timeoutSeconds is the hard per-upload ceiling;
// zero leaves the transport default in place.
func New(timeoutSeconds int, client HTTPDoer) *Uploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Uploader{
		timeout: time.Duration(timeoutSeconds) * time.Second,
		client:  client,
	}
}

// Upload sends file to target as a multipart form submission. Any 2xx counts
// as success. Non-2xx responses are rejections carrying the numeric status;
// network failures and the timeout ceiling report as distinct transport
// reasons so "no response" and a 500 are never confused.
func (u *Uploader) Upload(ctx context.Context, target string, file *draft.File, progress ProgressFunc) error {
	if file == nil || file.Open == nil {
		return services.Wrap(services.ErrGeneric, "video", "upload", "no file handle", nil)
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	source, err := file.Open()
	if err != nil {
		return services.Wrap(services.ErrGeneric, "video", "upload", "open video file", err)
	}
	defer source.Close()

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	counted := &countingReader{
		source:   source,
		total:    file.Size,
		progress: progress,
	}

	go func() {
		part, err := form.CreateFormFile("file", file.Name)
		if err != nil {
			writer.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, counted); err != nil {
			writer.CloseWithError(err)
			return
		}
		writer.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		return services.Wrap(services.ErrGeneric, "video", "upload", "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTransport, "video", "upload",
				fmt.Sprintf("timed out after %s", u.timeout), err)
		}
		return services.Wrap(services.ErrTransport, "video", "upload", "no response from upload target", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrRejection, "video", "upload",
			fmt.Sprintf("upload target returned %d", resp.StatusCode), nil)
	}

	if progress != nil {
		progress(100)
	}
	return nil
}

// countingReader reports percentage as bytes flow through it.
type countingReader struct {
	source   io.Reader
	total    int64
	sent     int64
	last     int
	progress ProgressFunc
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.source.Read(p)
	if n > 0 && r.total > 0 && r.progress != nil {
		r.sent += int64(n)
		percent := int(r.sent * 100 / r.total)
		if percent > 100 {
			percent = 100
		}
		if percent != r.last {
			r.last = percent
			r.progress(percent)
		}
	}
	return n, err
}
