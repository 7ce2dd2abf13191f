package canvas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// request performs an authenticated GET against the JSON API and returns the body and headers of
// a 2xx response.
func (api *API) request(ctx context.Context, u *url.URL) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: couldn't instantiate http request: %w", err)
	}

	req.Header.Add("Accept", "application/json, */*")
	req.Header.Set("Authorization", "Bearer "+api.token)

	response, err := api.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: couldn't perform http request: %w: %w", ErrRemoteUnavailable, err)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		response.Body.Close()
		return nil, nil, fmt.Errorf("canvas: couldn't read http response body: %w: %w", ErrRemoteUnavailable, err)
	}

	if err := response.Body.Close(); err != nil {
		return nil, nil, fmt.Errorf("canvas: couldn't close response body: %w", err)
	}

	if err := checkStatus(response, u); err != nil {
		return nil, nil, err
	}

	return body, response.Header, nil
}

// Fetch downloads the contents behind a file URL.  The caller must close the returned body; the
// size is -1 when the server didn't announce one.
func (api *API) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("canvas: couldn't parse file URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, api.downloadTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("canvas: couldn't instantiate http request: %w", err)
	}

	// File URLs carry their own verifier; only hand our token to our own instance.
	if u.Host == api.baseURI.Host {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}

	response, err := api.downloadClient.Do(req)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("canvas: couldn't perform download: %w: %w", ErrRemoteUnavailable, err)
	}

	if err := checkStatus(response, u); err != nil {
		response.Body.Close()
		cancel()
		return nil, 0, err
	}

	return &cancelOnClose{ReadCloser: response.Body, cancel: cancel}, response.ContentLength, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func checkStatus(response *http.Response, u *url.URL) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	// don't leak file verifiers or page tokens into logs
	where := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}

	return &StatusError{
		StatusCode: response.StatusCode,
		Status:     response.Status,
		URL:        where.String(),
	}
}
