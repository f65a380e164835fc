package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.loamdb.org/loam/pkg/compaction"
)

// Client calls the dispatch API of one loam server.
type Client struct {
	// Base is the server base URL, e.g. "http://tserver-3:8402".
	Base string
	// HTTP is the client to use. Defaults to http.DefaultClient.
	HTTP *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Reserve asks the server for the best job at or above the request
// threshold. Returns nil when no job is available.
func (c *Client) Reserve(ctx context.Context, req *ReserveRequest) (*compaction.Reservation, error) {
	resp, err := c.post(ctx, "/v1/compactions/reserve", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		res := new(compaction.Reservation)
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return nil, fmt.Errorf("invalid reservation from server: %w", err)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("reserve failed: unexpected status %s", resp.Status)
	}
}

// CancelExtent cancels all queued jobs for the extent on the server.
func (c *Client) CancelExtent(ctx context.Context, extent compaction.Extent) (int, error) {
	resp, err := c.post(ctx, "/v1/compactions/cancel", &CancelRequest{Extent: extent})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cancel failed: unexpected status %s", resp.Status)
	}
	var res CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, fmt.Errorf("invalid cancel response from server: %w", err)
	}
	return res.Canceled, nil
}

// Summaries reads the per-queue coordinator report.
func (c *Client) Summaries(ctx context.Context) ([]compaction.Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/v1/queues/summaries", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("summaries call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summaries failed: unexpected status %s", resp.Status)
	}
	var summaries []compaction.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return nil, fmt.Errorf("invalid summaries from server: %w", err)
	}
	return summaries, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", path, err)
	}
	return resp, nil
}
