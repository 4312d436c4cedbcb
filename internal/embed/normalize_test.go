package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLinkedInDropsHeightAndCapsSize(t *testing.T) {
	markup := `<iframe src="https://www.linkedin.com/embed/feed/update/urn:li:share:1" height="399" width="504" title="Embedded post"></iframe>`

	got, err := Normalize("LinkedIn", markup)
	require.NoError(t, err)

	assert.NotContains(t, got, "height=")
	assert.Contains(t, got, `style="max-width: 500px; max-height: 500px;"`)
	assert.Contains(t, got, `width="504"`)
	assert.Contains(t, got, `src="https://www.linkedin.com/embed/feed/update/urn:li:share:1"`)
}

func TestNormalizeLinkedInRequiresIframe(t *testing.T) {
	_, err := Normalize("linkedin", `<p>just text</p>`)
	require.ErrorIs(t, err, ErrInvalidEmbed)
}

func TestNormalizeTwitterStylesBlockquotes(t *testing.T) {
	markup := `<blockquote class="twitter-tweet"><p lang="en">hello</p></blockquote><script async src="https://platform.twitter.com/widgets.js"></script>`

	got, err := Normalize("twitter", markup)
	require.NoError(t, err)

	assert.Contains(t, got, `<blockquote class="twitter-tweet" style="max-width: 500px; max-height: 500px;">`)
	assert.Contains(t, got, `<script async="" src="https://platform.twitter.com/widgets.js"></script>`)
}

func TestNormalizeTwitterWithoutBlockquoteIsAccepted(t *testing.T) {
	got, err := Normalize("x", "plain text post")
	require.NoError(t, err)
	assert.Equal(t, "plain text post", got)
}

func TestNormalizeOtherAppsPassThrough(t *testing.T) {
	markup := `<div height="10">raw</div>`
	got, err := Normalize("instagram", markup)
	require.NoError(t, err)
	assert.Equal(t, markup, got)
}
