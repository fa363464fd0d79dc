package impact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/acer-hub/hubclient/internal/session"
)

// ErrFetchFailed is returned when the chain of impact could not be fetched or rebuilt
var ErrFetchFailed = errors.New("chain of impact request failed")

// Client is an interface to the chain-of-impact endpoints of the ACER HUB API
type Client interface {
	GetTree(ctx context.Context, churchID string) (*TreeResponse, error)
	UpdateTree(ctx context.Context, churchID string) error
}

// NewClient returns a Client that makes requests with the given *http.Client, which is
// expected to carry session credentials (see session.Guard.Client)
func NewClient(baseURL string, httpClient *http.Client) Client {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) GetTree(ctx context.Context, churchID string) (*TreeResponse, error) {
	u := fmt.Sprintf("%s/chaine-impact?church_id=%s", c.baseURL, url.QueryEscape(churchID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer res.Body.Close()

	if err := session.CheckResponse(res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: got status %d", ErrFetchFailed, res.StatusCode)
	}

	var tree TreeResponse
	if err := json.NewDecoder(res.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %w", ErrFetchFailed, err)
	}
	return &tree, nil
}

func (c *client) UpdateTree(ctx context.Context, churchID string) error {
	body, err := json.Marshal(updateRequest{ChurchID: churchID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chaine-impact/update", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer res.Body.Close()

	if err := session.CheckResponse(res); err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: got status %d", ErrFetchFailed, res.StatusCode)
	}

	var result updateResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: invalid response body: %w", ErrFetchFailed, err)
	}
	if !result.Success {
		if result.Message != "" {
			return fmt.Errorf("%w: %s", ErrFetchFailed, result.Message)
		}
		return fmt.Errorf("%w: update was not successful", ErrFetchFailed)
	}
	return nil
}
