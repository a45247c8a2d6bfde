package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxPageBytes bounds how much of an explorer page is read.
const maxPageBytes = 8 << 20

// FetchPage GETs url and returns the body as a string. Non-200 responses are
// errors carrying the status code in their message.
func FetchPage(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/json")
	req.Header.Set("User-Agent", "holder-gate/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, string(snippet))
	}
	return string(body), nil
}
