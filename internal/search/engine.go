package search

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/pders01/skim/internal/prefetch"
)

// Result is an item matching a query, with relevance scoring
type Result struct {
	Item    *prefetch.Item
	Score   float64
	Matches []Match
}

// Match represents where text was found
type Match struct {
	Field  string // "title", "author", "body", "url"
	Text   string // matched text snippet
	Weight float64
}

// MatchTerms is the index-free predicate for query. It is used for queries
// the index does not handle, such as a single character.
func MatchTerms(query string) prefetch.Filter {
	terms := tokenize(query)
	if len(terms) == 0 {
		needle := strings.ToLower(strings.TrimSpace(query))
		return func(item *prefetch.Item) bool {
			return needle == "" || strings.Contains(strings.ToLower(item.Title), needle)
		}
	}
	return func(item *prefetch.Item) bool {
		return ScoreItem(item, terms, time.Now()) != nil
	}
}

// ScoreItem scores item against terms. It returns nil when nothing matches.
func ScoreItem(item *prefetch.Item, terms []string, now time.Time) *Result {
	var matches []Match
	var totalScore float64

	// Search title (highest weight)
	if titleScore := scoreField(item.Title, terms, 4.0); titleScore > 0 {
		matches = append(matches, Match{
			Field:  "title",
			Text:   item.Title,
			Weight: titleScore,
		})
		totalScore += titleScore
	}

	if authorScore := scoreField(item.Author, terms, 2.0); authorScore > 0 {
		matches = append(matches, Match{
			Field:  "author",
			Text:   item.Author,
			Weight: authorScore,
		})
		totalScore += authorScore
	}

	if bodyScore := scoreField(item.Body, terms, 1.0); bodyScore > 0 {
		matches = append(matches, Match{
			Field:  "body",
			Text:   findBestSnippet(item.Body, terms, 200),
			Weight: bodyScore,
		})
		totalScore += bodyScore
	}

	if urlScore := scoreField(item.URL, terms, 0.5); urlScore > 0 {
		matches = append(matches, Match{
			Field:  "url",
			Text:   item.URL,
			Weight: urlScore,
		})
		totalScore += urlScore
	}

	if totalScore == 0 {
		return nil
	}
	return &Result{
		Item:    item,
		Score:   totalScore * (1.0 + recencyBoost(item.Published, now)),
		Matches: matches,
	}
}

// scoreField calculates relevance score for a field
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		// Exact phrase match (highest score)
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}

		// Word boundary matches (medium score)
		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}

	// Boost score if multiple terms match
	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// findBestSnippet finds the most relevant text snippet containing search terms
func findBestSnippet(text string, terms []string, maxLength int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	windowSize := maxLength / 8 // Approximate words in snippet
	if windowSize >= len(words) {
		return truncate(text, maxLength)
	}

	bestScore := 0
	bestStart := 0
	for i := 0; i <= len(words)-windowSize; i++ {
		window := strings.ToLower(strings.Join(words[i:i+windowSize], " "))
		score := 0
		for _, term := range terms {
			if strings.Contains(window, term) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = i
		}
	}

	return truncate(strings.Join(words[bestStart:bestStart+windowSize], " "), maxLength)
}

// tokenize breaks text into lower case searchable terms
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len([]rune(term)) > 1 { // Skip single chars
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if term := current.String(); len([]rune(term)) > 1 {
		terms = append(terms, term)
	}

	return terms
}

// truncate limits text length with ellipsis
func truncate(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen-1]) + "…"
}

// recencyBoost gives up to 10% to items from the last week.
func recencyBoost(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	const week = 7 * 24 * time.Hour
	if age < 0 {
		return 0.1
	}
	if age >= week {
		return 0
	}
	return 0.1 * (1 - float64(age)/float64(week))
}
