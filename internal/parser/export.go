package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/starford/hypermind/internal/models"
)

var slugRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

const maxSlugLen = 60

// ExportName names a CSV export after the first hyperedge and the time.
func ExportName(edges []models.Hyperedge, at time.Time) string {
	var first string
	if len(edges) > 0 {
		first = edges[0].Text()
	}
	slug := Slugify(first)
	if slug == "" {
		return fmt.Sprintf("hypermind-%d.csv", at.UnixMilli())
	}
	return fmt.Sprintf("hypermind-%s-%d.csv", slug, at.UnixMilli())
}

// Slugify lowercases s and joins its letter/digit runs with dashes.
func Slugify(s string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if r := []rune(slug); len(r) > maxSlugLen {
		slug = strings.TrimRight(string(r[:maxSlugLen]), "-")
	}
	return slug
}
