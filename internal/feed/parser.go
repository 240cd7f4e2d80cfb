package feed

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pders01/skim/internal/prefetch"
)

// ParsedFeed is a feed document turned into skim items.
type ParsedFeed struct {
	Title       string
	Description string
	Items       []prefetch.Item
}

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse reads RSS, Atom or JSON Feed bytes.
func (p *Parser) Parse(body []byte) (*ParsedFeed, error) {
	feed, err := p.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	parsed := &ParsedFeed{
		Title:       strings.TrimSpace(feed.Title),
		Description: strings.TrimSpace(feed.Description),
		Items:       make([]prefetch.Item, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		parsed.Items = append(parsed.Items, convertItem(item))
	}
	return parsed, nil
}

func convertItem(item *gofeed.Item) prefetch.Item {
	converted := prefetch.Item{
		ID:        itemID(item),
		Title:     strings.TrimSpace(item.Title),
		Author:    authorName(item),
		URL:       item.Link,
		Permalink: item.Link,
		Body:      getContent(item),
	}
	if converted.URL == "" {
		if media := mediaURLs(item); len(media) > 0 {
			converted.URL = media[0]
		}
	}
	if item.PublishedParsed != nil {
		converted.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		converted.Published = *item.UpdatedParsed
	}
	return converted
}

func getContent(item *gofeed.Item) string {
	if strings.TrimSpace(item.Content) != "" {
		return item.Content
	}
	return item.Description
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

func mediaURLs(item *gofeed.Item) []string {
	var urls []string
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" {
			urls = append(urls, enclosure.URL)
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		urls = append(urls, item.Image.URL)
	}
	return urls
}

// itemID prefers the GUID, then the link. Items with neither get a digest of
// their title and content so re-parsing the same document yields the same id.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	sum := sha256.Sum256([]byte(item.Title + "\x00" + getContent(item)))
	return fmt.Sprintf("sha256:%x", sum[:12])
}
