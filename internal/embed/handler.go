package embed

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"

	"postfolio/internal/httpx"
)

type TweetResolver interface {
	TweetHTML(ctx context.Context, tweetURL string) (string, error)
}

type Handler struct {
	resolver TweetResolver
}

func NewHandler(resolver TweetResolver) *Handler {
	return &Handler{resolver: resolver}
}

type tweetRequest struct {
	URL string `json:"url"`
}

func (h *Handler) Tweet(w http.ResponseWriter, r *http.Request) {
	var body tweetRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	parsed, err := url.ParseRequestURI(strings.TrimSpace(body.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "url must be a valid http or https link")
		return
	}

	markup, err := h.resolver.TweetHTML(r.Context(), parsed.String())
	if err != nil {
		sentry.CaptureException(err)
		httpx.WriteMessage(w, http.StatusBadGateway, "failed to resolve tweet embed")
		return
	}

	markup, err = Normalize("twitter", markup)
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadGateway, "failed to resolve tweet embed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"html": markup})
}
