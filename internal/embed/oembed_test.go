package embed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	html string
	err  error
	got  string
}

func (f *fakeResolver) TweetHTML(_ context.Context, tweetURL string) (string, error) {
	f.got = tweetURL
	return f.html, f.err
}

func TestOEmbedClientTweetHTML(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"html":"<blockquote class=\"twitter-tweet\">hi</blockquote>"}`))
	}))
	defer srv.Close()

	client := NewOEmbedClient(srv.URL)
	got, err := client.TweetHTML(context.Background(), "https://twitter.com/a/status/1")
	require.NoError(t, err)

	assert.Equal(t, `<blockquote class="twitter-tweet">hi</blockquote>`, got)
	assert.Contains(t, gotQuery, "url=https%3A%2F%2Ftwitter.com%2Fa%2Fstatus%2F1")
	assert.Contains(t, gotQuery, "maxwidth=500")
}

func TestOEmbedClientRejectsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOEmbedClient(srv.URL).TweetHTML(context.Background(), "https://twitter.com/a/status/1")
	require.ErrorContains(t, err, "status 404")
}

func TestOEmbedClientDefaultsEndpoint(t *testing.T) {
	assert.Equal(t, DefaultOEmbedURL, NewOEmbedClient(" ").endpoint)
}

func TestHandlerTweet(t *testing.T) {
	resolver := &fakeResolver{html: `<blockquote class="twitter-tweet">hi</blockquote>`}
	h := NewHandler(resolver)

	req := httptest.NewRequest(http.MethodPost, "/embeds/tweet", strings.NewReader(`{"url":"https://x.com/a/status/2"}`))
	rec := httptest.NewRecorder()
	h.Tweet(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://x.com/a/status/2", resolver.got)
	assert.Contains(t, rec.Body.String(), "max-width: 500px")
}

func TestHandlerTweetRejectsBadURL(t *testing.T) {
	h := NewHandler(&fakeResolver{})

	req := httptest.NewRequest(http.MethodPost, "/embeds/tweet", strings.NewReader(`{"url":"ftp://x"}`))
	rec := httptest.NewRecorder()
	h.Tweet(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
