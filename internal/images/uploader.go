// Package images validates chat image uploads and forwards them to the
// object-storage service that serves them back to clients.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"quizroom/pkg/types"
)

// DefaultMaxBytes matches the upload cap enforced client-side.
const DefaultMaxBytes = 3 << 20

// Uploader pushes validated images to the storage collaborator.
type Uploader struct {
	baseURL  string
	maxBytes int64
	client   *http.Client
}

// NewUploader builds an uploader against the storage base URL. maxBytes
// at or below zero falls back to DefaultMaxBytes.
func NewUploader(baseURL string, maxBytes int64) (*Uploader, error) {
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Uploader{
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// MaxBytes reports the configured size cap.
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload validates the payload (size, sniffed content type) and sends
// it to the storage service. The sniffed type wins over whatever the
// client claimed.
func (u *Uploader) Upload(ctx context.Context, filename string, data []byte) (*types.UploadResult, error) {
	if int64(len(data)) > u.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), u.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrNotAnImage
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, detected.String())
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrStorageUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result types.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrStorageUnavailable, err)
	}
	if result.ImageURL == "" {
		return nil, fmt.Errorf("%w: response missing imageUrl", ErrStorageUnavailable)
	}

	return &result, nil
}
