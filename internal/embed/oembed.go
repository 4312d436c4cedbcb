package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultOEmbedURL = "https://publish.twitter.com/oembed"

type OEmbedClient struct {
	endpoint   string
	httpClient *http.Client
}

type oembedResponse struct {
	HTML string `json:"html"`
}

func NewOEmbedClient(endpoint string) *OEmbedClient {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultOEmbedURL
	}

	return &OEmbedClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TweetHTML asks the oEmbed endpoint for the embed markup of tweetURL.
func (c *OEmbedClient) TweetHTML(ctx context.Context, tweetURL string) (string, error) {
	tweetURL = strings.TrimSpace(tweetURL)
	if tweetURL == "" {
		return "", fmt.Errorf("empty tweet url")
	}

	query := url.Values{}
	query.Set("url", tweetURL)
	query.Set("maxwidth", strings.TrimSuffix(DefaultMaxWidth, "px"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build oembed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oembed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read oembed response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oembed lookup failed with status %d", resp.StatusCode)
	}

	var parsed oembedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode oembed response: %w", err)
	}
	if parsed.HTML == "" {
		return "", fmt.Errorf("oembed response missing html")
	}

	return parsed.HTML, nil
}
