package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrInvalidCID   = errors.New("invalid_cid")
	ErrUploadFailed = errors.New("content_upload_failed")
	ErrNotFound     = errors.New("content_not_found")
)

// Backend is a content-addressed blob store.
type Backend interface {
	Add(ctx context.Context, name string, r io.Reader) (string, error)
	Cat(ctx context.Context, id string) (io.ReadCloser, error)
}

// Client uploads files, resolves identifiers to gateway URLs and fetches content.
type Client struct {
	backend    Backend
	gatewayURL string
	log        *zap.Logger
}

func NewClient(backend Backend, gatewayURL string, log *zap.Logger) *Client {
	gatewayURL = strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	return &Client{
		backend:    backend,
		gatewayURL: gatewayURL,
		log:        log.Named("contentstore"),
	}
}

const DefaultGatewayURL = "https://ipfs.io"

// Upload stores the file and returns its content identifier.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	id, err := c.backend.Add(ctx, name, r)
	if err != nil {
		c.log.Error("content upload failed", zap.String("file_name", name), zap.Error(err))
		if errors.Is(err, ErrUploadFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := ValidateCID(id); err != nil {
		return "", fmt.Errorf("%w: backend returned %q", ErrUploadFailed, id)
	}
	c.log.Info("content uploaded", zap.String("file_name", name), zap.String("cid", ShortCID(id)))
	return id, nil
}

// URL returns the public gateway address for id.
func (c *Client) URL(id string) string {
	return c.gatewayURL + "/ipfs/" + strings.TrimSpace(id)
}

// Fetch retrieves the content for id. The caller closes the reader.
func (c *Client) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ValidateCID(id); err != nil {
		return nil, err
	}
	return c.backend.Cat(ctx, id)
}
