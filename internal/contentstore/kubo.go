package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// KuboBackend talks to a kubo node over its HTTP RPC API.
type KuboBackend struct {
	client *resty.Client
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

type kuboError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
}

func NewKuboBackend(apiURL, authToken string) *KuboBackend {
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(5 * time.Minute)
	if authToken != "" {
		client.SetAuthToken(authToken)
	}
	return &KuboBackend{client: client}
}

func (k *KuboBackend) Add(ctx context.Context, name string, r io.Reader) (string, error) {
	resp, err := k.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"cid-version": "1",
			"pin":         "true",
		}).
		SetFileReader("file", name, r).
		SetResult(&addResponse{}).
		SetError(&kuboError{}).
		ForceContentType("application/json").
		Post("/api/v0/add")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, describeKuboError(resp))
	}

	out, ok := resp.Result().(*addResponse)
	if !ok || strings.TrimSpace(out.Hash) == "" {
		return "", fmt.Errorf("%w: empty hash in response", ErrUploadFailed)
	}
	return out.Hash, nil
}

func (k *KuboBackend) Cat(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := k.client.R().
		SetContext(ctx).
		SetQueryParam("arg", id).
		SetError(&kuboError{}).
		Post("/api/v0/cat")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound || resp.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, describeKuboError(resp))
	}
	return io.NopCloser(bytes.NewReader(resp.Body())), nil
}

func describeKuboError(resp *resty.Response) string {
	if e, ok := resp.Error().(*kuboError); ok && e.Message != "" {
		return e.Message
	}
	return resp.Status()
}
