// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Column names used for the fields every record carries.
const (
	ColumnPageURL     = "Product Page URL"
	ColumnTitle       = "Title"
	ColumnDescription = "Product Description"
	ColumnImageURL    = "Image URL"
	ColumnCategory    = "Category"
	ColumnRating      = "Review Rating"
)

// Sentinel values substituted when the page lacks the source element.
const (
	NoDescription = "No description available"
	NoCategory    = "No category"
	NoRating      = "No rating"
)

// AttributeKey names an optional product attribute taken from the detail table.
type AttributeKey string

const (
	AttrUPC             AttributeKey = "Universal Product Code (UPC)"
	AttrPriceExclTax    AttributeKey = "Price Excluding Tax"
	AttrPriceInclTax    AttributeKey = "Price Including Tax"
	AttrNumberAvailable AttributeKey = "Number Available"
)

// CategoryRef points at the first listing page of a catalog category.
type CategoryRef struct {
	Name       string `json:"name"`
	ListingURL string `json:"listing_url"`
}

// Rating is a review score from 1 to 5. The zero value means unrated.
type Rating int

// Rated reports whether r holds a real score.
func (r Rating) Rated() bool {
	return r >= 1 && r <= 5
}

// String renders the score as a digit, or NoRating when unrated.
func (r Rating) String() string {
	if !r.Rated() {
		return NoRating
	}
	return strconv.Itoa(int(r))
}

// Attribute is one optional key/value pair of a product record.
type Attribute struct {
	Key   AttributeKey
	Value string
}

// Field is a named output value.
type Field struct {
	Name  string
	Value string
}

// ProductRecord holds everything extracted from one product detail page.
// Attributes only contains entries whose source row existed on the page.
type ProductRecord struct {
	PageURL     string
	Title       string
	Description string
	ImageURL    string
	Category    string
	Rating      Rating
	Attributes  []Attribute
}

// SetAttribute stores value under key. A key seen before keeps its position.
func (p *ProductRecord) SetAttribute(key AttributeKey, value string) {
	for i := range p.Attributes {
		if p.Attributes[i].Key == key {
			p.Attributes[i].Value = value
			return
		}
	}
	p.Attributes = append(p.Attributes, Attribute{Key: key, Value: value})
}

// Attribute returns the value stored under key.
func (p *ProductRecord) Attribute(key AttributeKey) (string, bool) {
	for _, attr := range p.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// NumberAvailable returns the stock count when the page listed one.
func (p *ProductRecord) NumberAvailable() (int, bool) {
	value, ok := p.Attribute(AttrNumberAvailable)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Fields returns the record as ordered output fields: the six required
// columns first, then the optional attributes in extraction order.
func (p *ProductRecord) Fields() []Field {
	fields := make([]Field, 0, 6+len(p.Attributes))
	fields = append(fields,
		Field{Name: ColumnPageURL, Value: p.PageURL},
		Field{Name: ColumnTitle, Value: p.Title},
		Field{Name: ColumnDescription, Value: p.Description},
		Field{Name: ColumnImageURL, Value: p.ImageURL},
		Field{Name: ColumnCategory, Value: p.Category},
		Field{Name: ColumnRating, Value: p.Rating.String()},
	)
	for _, attr := range p.Attributes {
		fields = append(fields, Field{Name: string(attr.Key), Value: attr.Value})
	}
	return fields
}

// Columns returns the column names of Fields.
func (p *ProductRecord) Columns() []string {
	fields := p.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	return columns
}

// MarshalJSON encodes the record as an object whose keys follow Fields order.
// The rating and stock count are numbers when present.
func (p *ProductRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var value any = f.Value
		switch f.Name {
		case ColumnRating:
			if p.Rating.Rated() {
				value = int(p.Rating)
			}
		case string(AttrNumberAvailable):
			if n, ok := p.NumberAvailable(); ok {
				value = n
			}
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	StartTime         time.Time
	EndTime           time.Time
	CategoryCount     int
	CategoriesWritten int
	TotalCount        int
	ImageCount        int
	ErrorCount        int
	FailedURLs        []string
	ErrorsByType      map[string]int
	RequestCount      int
	PageCount         int
	OutputFiles       []string
}
