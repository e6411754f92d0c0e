package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ErrMissingRequiredField is returned when a product page has no title heading.
var ErrMissingRequiredField = errors.New("missing required field")

// Selectors for the books.toscrape.com layout.
const (
	categoryLinkSelector = ".side_categories ul li ul li a"
	productCardSelector  = "article.product_pod"
	productLinkSelector  = "h3 a"
	nextPageSelector     = "li.next a"
	breadcrumbSelector   = "ul.breadcrumb li"
	ratingSelector       = "p.star-rating"
	descriptionMarker    = "#product_description"
)

// Document parses an HTML body.
func Document(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// DiscoverCategories returns the sidebar categories of the homepage in
// document order. A name seen twice keeps its first position and the later URL.
func DiscoverCategories(doc *goquery.Document, pageURL string) ([]models.CategoryRef, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var refs []models.CategoryRef
	index := make(map[string]int)
	doc.Find(categoryLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		name := strings.TrimSpace(sel.Text())
		abs := resolve(base, href)
		if i, ok := index[name]; ok {
			refs[i].ListingURL = abs
			return
		}
		index[name] = len(refs)
		refs = append(refs, models.CategoryRef{Name: name, ListingURL: abs})
	})
	return refs, nil
}

// ListingPage is what a single category listing page yields.
type ListingPage struct {
	ProductURLs []string
	NextURL     string
}

// ParseListingPage collects product links in card order and the next-page
// link, if any.
func ParseListingPage(doc *goquery.Document, pageURL string) (*ListingPage, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	page := &ListingPage{}
	doc.Find(productCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(productLinkSelector).First().Attr("href")
		if !ok {
			return
		}
		page.ProductURLs = append(page.ProductURLs, resolve(base, href))
	})

	if href, ok := doc.Find(nextPageSelector).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		page.NextURL = resolve(base, href)
	}
	return page, nil
}

// ExtractProduct builds a record from a product detail page. Only the title is
// mandatory; every other field falls back to its default.
func ExtractProduct(doc *goquery.Document, pageURL string) (*models.ProductRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	title, err := extractTitle(doc)
	if err != nil {
		return nil, err
	}

	record := &models.ProductRecord{
		PageURL:     pageURL,
		Title:       title,
		Description: extractDescription(doc),
		ImageURL:    extractImageURL(doc, base),
		Category:    extractCategory(doc),
		Rating:      extractRating(doc),
	}
	extractAttributes(doc, record)
	return record, nil
}

func extractTitle(doc *goquery.Document) (string, error) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return "", fmt.Errorf("title: %w", ErrMissingRequiredField)
	}
	return strings.TrimSpace(h1.Text()), nil
}

func extractImageURL(doc *goquery.Document, base *url.URL) string {
	src, ok := doc.Find("img").First().Attr("src")
	if !ok {
		return ""
	}
	return resolve(base, src)
}

func extractCategory(doc *goquery.Document) string {
	crumbs := doc.Find(breadcrumbSelector)
	if crumbs.Length() <= 2 {
		return models.NoCategory
	}
	return strings.TrimSpace(crumbs.Eq(crumbs.Length() - 2).Text())
}

func extractRating(doc *goquery.Document) models.Rating {
	class, ok := doc.Find(ratingSelector).First().Attr("class")
	if !ok {
		return 0
	}
	tokens := strings.Fields(class)
	if len(tokens) < 2 {
		return 0
	}
	return RatingFromToken(tokens[1])
}

func extractDescription(doc *goquery.Document) string {
	marker := doc.Find(descriptionMarker).First()
	if marker.Length() == 0 {
		return models.NoDescription
	}
	p := marker.NextAllFiltered("p").First()
	if p.Length() == 0 {
		return models.NoDescription
	}
	return strings.TrimSpace(p.Text())
}

func extractAttributes(doc *goquery.Document, record *models.ProductRecord) {
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		value := strings.TrimSpace(td.Text())
		switch strings.TrimSpace(th.Text()) {
		case "UPC":
			record.SetAttribute(models.AttrUPC, value)
		case "Price (excl. tax)":
			record.SetAttribute(models.AttrPriceExclTax, RepairCurrency(value))
		case "Price (incl. tax)":
			record.SetAttribute(models.AttrPriceInclTax, RepairCurrency(value))
		case "Availability":
			record.SetAttribute(models.AttrNumberAvailable, strconv.Itoa(ParseAvailability(value)))
		}
	})
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
