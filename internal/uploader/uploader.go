// Package uploader wraps the external asset host that stores avatar
// images. The host accepts a file and returns a stable public URL; nothing
// else about it matters to the rest of the service.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Uploader accepts a file and returns the stable URL where it was stored.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// HTTPUploader posts files to an HTTP asset host as multipart/form-data and
// expects a JSON body of the shape {"success":bool,"url":string}.
type HTTPUploader struct {
	Endpoint string
	Client   *http.Client
}

// New builds an HTTPUploader for the given endpoint.
func New(endpoint string) *HTTPUploader {
	return &HTTPUploader{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Upload sends the file under the "image" form field and returns the URL
// reported by the host.
func (u *HTTPUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("asset host unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset host returned status %d", resp.StatusCode)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("asset host response malformed: %w", err)
	}
	if !out.Success || out.URL == "" {
		return "", fmt.Errorf("asset host rejected upload: %s", out.Message)
	}
	return out.URL, nil
}
