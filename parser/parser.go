package parser

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

var (
	availableRe = regexp.MustCompile(`(\d+) available`)

	filenameReplacer = strings.NewReplacer(
		"/", "_",
		`\`, "_",
		":", "_",
		"*", "_",
		"?", "_",
		`"`, "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
)

// RatingFromToken converts the textual rating class to a score. Only the exact
// words One through Five are recognised; anything else is unrated.
func RatingFromToken(token string) models.Rating {
	switch token {
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// RepairCurrency fixes the pound sign when it was decoded as latin-1.
func RepairCurrency(price string) string {
	return strings.ReplaceAll(price, "Â£", "£")
}

// ParseAvailability extracts N from "... (N available)", or 0.
func ParseAvailability(text string) int {
	m := availableRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// SanitizeFilename replaces characters that are reserved in common
// filesystems with underscores.
func SanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// FilenameFromURL returns the last segment of the URL path, or "" when the
// path is empty or ends in a slash.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return ""
	}
	return path.Base(u.Path)
}

// ImageFilename names a product image after its title.
func ImageFilename(title, ext string) string {
	return strings.ReplaceAll(title, " ", "_") + ext
}

// OutputName returns the per-category data file name, e.g. "Historical_Fiction_data.csv".
func OutputName(category, ext string) string {
	return SanitizeFilename(strings.ReplaceAll(category, " ", "_")) + "_data" + ext
}
