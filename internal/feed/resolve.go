package feed

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/pders01/skim/internal/media"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/validation"
)

const (
	linkAccept    = "text/html, text/plain, image/*;q=0.9, */*;q=0.5"
	maxSummaryLen = 280
)

var htmlTag = regexp.MustCompile(`(?i)<(p|div|br|a|img|span|ul|ol|li|h[1-6]|em|strong|b|i|blockquote|pre|code|table|figure)[\s>/]`)

// decodableImageTypes are the image content types prefetch.ImageDecoder reads.
var decodableImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// Resolver turns an item into a payload: its own body when it has one,
// otherwise whatever its link points at.
type Resolver struct {
	fetcher   *Fetcher
	detector  *media.TypeDetector
	validator *validation.FeedURLValidator
}

func NewResolver(fetcher *Fetcher, detector *media.TypeDetector, validator *validation.FeedURLValidator) *Resolver {
	if validator == nil {
		validator = validation.NewFeedURLValidator()
	}
	return &Resolver{fetcher: fetcher, detector: detector, validator: validator}
}

func (r *Resolver) Resolve(ctx context.Context, item *prefetch.Item) (prefetch.Payload, error) {
	if body := strings.TrimSpace(item.Body); body != "" {
		text, err := bodyText(body)
		if err != nil {
			return prefetch.Payload{}, err
		}
		return prefetch.Payload{Kind: prefetch.PayloadText, Text: text, URL: item.URL}, nil
	}

	link := item.URL
	if link == "" {
		return prefetch.Payload{Kind: prefetch.PayloadText, Text: item.Title}, nil
	}

	u, err := r.validator.ValidateLink(link)
	if err != nil {
		return prefetch.Payload{}, fmt.Errorf("item link: %w", err)
	}
	link = u.String()

	switch typ := r.detector.DetectType(link); {
	case typ == media.TypeImage && r.detector.Decodable(link):
		return r.fetchImage(ctx, link)
	case typ != media.TypeUnknown:
		// video, audio, documents and images skim cannot draw are opened externally
		return prefetch.Payload{
			Kind: prefetch.PayloadMarkup,
			URL:  link,
			Text: fmt.Sprintf("%s link", typ),
		}, nil
	}

	resp, err := r.fetcher.Get(ctx, link, linkAccept, Conditional{})
	if err != nil {
		return prefetch.Payload{}, err
	}
	return payloadFor(link, resp)
}

func (r *Resolver) fetchImage(ctx context.Context, link string) (prefetch.Payload, error) {
	resp, err := r.fetcher.Get(ctx, link, "image/*", Conditional{})
	if err != nil {
		return prefetch.Payload{}, err
	}
	return payloadFor(link, resp)
}

func payloadFor(link string, resp *Response) (prefetch.Payload, error) {
	mediaType, _, err := mime.ParseMediaType(resp.ContentType)
	if err != nil {
		mediaType = sniffType(resp.Body)
	}

	switch {
	case decodableImageTypes[mediaType]:
		return prefetch.Payload{Kind: prefetch.PayloadImage, URL: link, Raw: resp.Body}, nil
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return prefetch.Payload{Kind: prefetch.PayloadMarkup, URL: link, Text: summarize(resp.Body)}, nil
	case mediaType == "text/plain" || mediaType == "text/markdown":
		return prefetch.Payload{Kind: prefetch.PayloadText, URL: link, Text: string(resp.Body)}, nil
	default:
		return prefetch.Payload{Kind: prefetch.PayloadMarkup, URL: link, Text: mediaType}, nil
	}
}

func sniffType(body []byte) string {
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mediaType
}

// bodyText converts HTML bodies to markdown and leaves everything else as is.
func bodyText(body string) (string, error) {
	if !looksLikeHTML(body) {
		return body, nil
	}
	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("converting body to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

func looksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

// summarize extracts a title and description from an HTML page.
func summarize(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	title := firstNonEmpty(
		doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	)
	desc := firstNonEmpty(
		doc.Find(`meta[property="og:description"]`).AttrOr("content", ""),
		doc.Find(`meta[name="description"]`).AttrOr("content", ""),
		doc.Find("p").First().Text(),
	)

	summary := title
	if desc != "" {
		if summary != "" {
			summary += "\n\n"
		}
		summary += desc
	}
	return truncate(summary, maxSummaryLen)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
