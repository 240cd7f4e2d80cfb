package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_RSS(t *testing.T) {
	parsed, err := NewParser().Parse([]byte(rssDocument("Test Feed", "https://example.com", 3)))
	require.NoError(t, err)

	assert.Equal(t, "Test Feed", parsed.Title)
	assert.Equal(t, "test feed", parsed.Description)
	require.Len(t, parsed.Items, 3)

	first := parsed.Items[0]
	assert.Equal(t, "post-0", first.ID)
	assert.Equal(t, "Post 0", first.Title)
	assert.Equal(t, "https://example.com/posts/0", first.URL)
	assert.Equal(t, "body 0", first.Body)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), first.Published.UTC())
}

func TestParser_Atom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Entry</title>
    <id>urn:entry:1</id>
    <link href="https://example.com/entry"/>
    <author><name>Jane</name></author>
    <content type="html">&lt;p&gt;Hello&lt;/p&gt;</content>
    <updated>2024-03-01T10:00:00Z</updated>
  </entry>
</feed>`

	parsed, err := NewParser().Parse([]byte(atom))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)

	item := parsed.Items[0]
	assert.Equal(t, "urn:entry:1", item.ID)
	assert.Equal(t, "Jane", item.Author)
	assert.Equal(t, "<p>Hello</p>", item.Body)
	assert.False(t, item.Published.IsZero())
}

func TestParser_JSONFeed(t *testing.T) {
	doc := `{"version":"https://jsonfeed.org/version/1.1","title":"JSON","items":[{"id":"1","title":"One","content_text":"plain","url":"https://example.com/1"}]}`

	parsed, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "plain", parsed.Items[0].Body)
}

func TestParser_EnclosureAsLink(t *testing.T) {
	doc := `<rss version="2.0"><channel><title>Pod</title>
<item><title>Episode</title><guid>ep1</guid><enclosure url="https://cdn.example.com/ep1.mp3" type="audio/mpeg" length="1"/></item>
</channel></rss>`

	parsed, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "https://cdn.example.com/ep1.mp3", parsed.Items[0].URL)
}

func TestParser_StableIDWithoutGUID(t *testing.T) {
	doc := `<rss version="2.0"><channel><title>T</title><item><title>No id</title><description>x</description></item></channel></rss>`

	a, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	b, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.Items[0].ID, "sha256:"))
	assert.Equal(t, a.Items[0].ID, b.Items[0].ID)
}

func TestParser_Invalid(t *testing.T) {
	_, err := NewParser().Parse([]byte("this is not a feed"))
	assert.Error(t, err)
}
