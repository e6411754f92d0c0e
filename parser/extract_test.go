package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

const productPage = `<html><body>
<ul class="breadcrumb">
  <li><a href="../../index.html">Home</a></li>
  <li><a href="../category/books_1/index.html">Books</a></li>
  <li><a href="../category/books/poetry_23/index.html">Poetry</a></li>
  <li class="active">A Light in the Attic</li>
</ul>
<div class="item active"><img src="../../media/cache/fe/72/cover.jpg" alt="A Light in the Attic" /></div>
<div class="product_main">
  <h1>  A Light in the Attic </h1>
  <p class="star-rating Three"><i class="icon-star"></i></p>
</div>
<div id="product_description" class="sub-header"><h2>Product Description</h2></div>
<p>It's hard to imagine a world without A Light in the Attic.</p>
<table class="table table-striped">
  <tr><th>UPC</th><td>abc123</td></tr>
  <tr><th>Product Type</th><td>Books</td></tr>
  <tr><th>Price (excl. tax)</th><td>Â£51.77</td></tr>
  <tr><th>Price (incl. tax)</th><td>£51.77</td></tr>
  <tr><th>Tax</th><td>£0.00</td></tr>
  <tr><th>Availability</th><td>In stock (22 available)</td></tr>
  <tr><td>orphan cell</td></tr>
</table>
</body></html>`

const pageURL = "http://example.test/catalogue/a-light-in-the-attic_1000/index.html"

func mustDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := Document([]byte(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestExtractProductFullPage(t *testing.T) {
	doc := mustDocument(t, productPage)

	record, err := ExtractProduct(doc, pageURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if record.Title != "A Light in the Attic" {
		t.Errorf("title = %q", record.Title)
	}
	if record.PageURL != pageURL {
		t.Errorf("page url = %q", record.PageURL)
	}
	if want := "http://example.test/media/cache/fe/72/cover.jpg"; record.ImageURL != want {
		t.Errorf("image url = %q, want %q", record.ImageURL, want)
	}
	if record.Category != "Poetry" {
		t.Errorf("category = %q, want Poetry", record.Category)
	}
	if record.Rating != 3 {
		t.Errorf("rating = %d, want 3", record.Rating)
	}
	if want := "It's hard to imagine a world without A Light in the Attic."; record.Description != want {
		t.Errorf("description = %q", record.Description)
	}

	if upc, _ := record.Attribute(models.AttrUPC); upc != "abc123" {
		t.Errorf("upc = %q, want abc123", upc)
	}
	if price, _ := record.Attribute(models.AttrPriceExclTax); price != "£51.77" {
		t.Errorf("price excl = %q, want £51.77", price)
	}
	if price, _ := record.Attribute(models.AttrPriceInclTax); price != "£51.77" {
		t.Errorf("price incl = %q, want £51.77", price)
	}
	if n, ok := record.NumberAvailable(); !ok || n != 22 {
		t.Errorf("number available = %d (%v), want 22", n, ok)
	}

	wantColumns := []string{
		models.ColumnPageURL, models.ColumnTitle, models.ColumnDescription,
		models.ColumnImageURL, models.ColumnCategory, models.ColumnRating,
		string(models.AttrUPC), string(models.AttrPriceExclTax),
		string(models.AttrPriceInclTax), string(models.AttrNumberAvailable),
	}
	if got := record.Columns(); !reflect.DeepEqual(got, wantColumns) {
		t.Errorf("columns = %v, want %v", got, wantColumns)
	}
}

func TestExtractProductMissingTitle(t *testing.T) {
	doc := mustDocument(t, `<html><body><p class="star-rating Two"></p></body></html>`)

	_, err := ExtractProduct(doc, pageURL)
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestExtractProductDefaults(t *testing.T) {
	doc := mustDocument(t, `<html><body><h1>Bare</h1>
<table><tr><th>Availability</th><td>Out of stock</td></tr></table>
</body></html>`)

	record, err := ExtractProduct(doc, pageURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if record.Description != models.NoDescription {
		t.Errorf("description = %q", record.Description)
	}
	if record.ImageURL != "" {
		t.Errorf("image url = %q, want empty", record.ImageURL)
	}
	if record.Category != models.NoCategory {
		t.Errorf("category = %q", record.Category)
	}
	if record.Rating.Rated() || record.Rating.String() != models.NoRating {
		t.Errorf("rating = %v, want unrated", record.Rating)
	}
	if _, ok := record.Attribute(models.AttrUPC); ok {
		t.Errorf("upc should be absent")
	}
	if n, ok := record.NumberAvailable(); !ok || n != 0 {
		t.Errorf("number available = %d (%v), want 0 present", n, ok)
	}
	if got := len(record.Columns()); got != 7 {
		t.Errorf("columns = %d, want 7", got)
	}
}

func TestExtractCategoryShortBreadcrumb(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{name: "no breadcrumb", html: `<h1>T</h1>`},
		{name: "two entries", html: `<h1>T</h1><ul class="breadcrumb"><li>Home</li><li>Books</li></ul>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDocument(t, tt.html)
			record, err := ExtractProduct(doc, pageURL)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if record.Category != models.NoCategory {
				t.Fatalf("category = %q, want %q", record.Category, models.NoCategory)
			}
		})
	}
}

func TestExtractRatingTokens(t *testing.T) {
	tests := []struct {
		class string
		want  models.Rating
	}{
		{class: "star-rating One", want: 1},
		{class: "star-rating Five", want: 5},
		{class: "star-rating five", want: 0},
		{class: "star-rating Zero", want: 0},
		{class: "star-rating", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			doc := mustDocument(t, `<h1>T</h1><p class="`+tt.class+`"></p>`)
			record, err := ExtractProduct(doc, pageURL)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if record.Rating != tt.want {
				t.Fatalf("rating = %d, want %d", record.Rating, tt.want)
			}
		})
	}
}

func TestExtractRepeatedRowKeepsPosition(t *testing.T) {
	doc := mustDocument(t, `<h1>T</h1><table>
<tr><th>UPC</th><td>first</td></tr>
<tr><th>Price (excl. tax)</th><td>£1.00</td></tr>
<tr><th>UPC</th><td>second</td></tr>
</table>`)
	record, err := ExtractProduct(doc, pageURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(record.Attributes) != 2 {
		t.Fatalf("attributes = %v", record.Attributes)
	}
	if record.Attributes[0].Key != models.AttrUPC || record.Attributes[0].Value != "second" {
		t.Fatalf("first attribute = %+v", record.Attributes[0])
	}
}

func TestDiscoverCategories(t *testing.T) {
	doc := mustDocument(t, `<div class="side_categories"><ul><li><a href="catalogue/category/books_1/index.html">Books</a>
<ul>
  <li><a href="catalogue/category/books/travel_2/index.html"> Travel </a></li>
  <li><a href="catalogue/category/books/mystery_3/index.html">
      Mystery
  </a></li>
  <li><a href="http://other.test/historical-fiction_4/index.html">Historical Fiction</a></li>
</ul></li></ul></div>`)

	refs, err := DiscoverCategories(doc, "http://example.test/index.html")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []models.CategoryRef{
		{Name: "Travel", ListingURL: "http://example.test/catalogue/category/books/travel_2/index.html"},
		{Name: "Mystery", ListingURL: "http://example.test/catalogue/category/books/mystery_3/index.html"},
		{Name: "Historical Fiction", ListingURL: "http://other.test/historical-fiction_4/index.html"},
	}
	if !reflect.DeepEqual(refs, want) {
		t.Fatalf("categories = %+v, want %+v", refs, want)
	}
}

func TestDiscoverCategoriesEmpty(t *testing.T) {
	doc := mustDocument(t, `<html><body><p>maintenance</p></body></html>`)
	refs, err := DiscoverCategories(doc, "http://example.test/")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("categories = %v, want none", refs)
	}
}

func TestParseListingPage(t *testing.T) {
	doc := mustDocument(t, `<section>
<article class="product_pod"><h3><a href="../../../book-1_1/index.html" title="Book 1">Book 1</a></h3></article>
<article class="product_pod"><h3><a href="../../../book-2_2/index.html" title="Book 2">Book 2</a></h3></article>
<article class="product_pod"><h3><a href="../../../book-1_1/index.html" title="Book 1">Book 1</a></h3></article>
<ul class="pager"><li class="next"><a href="page-2.html">next</a></li></ul>
</section>`)

	page, err := ParseListingPage(doc, "http://example.test/catalogue/category/books/travel_2/index.html")
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	want := []string{
		"http://example.test/catalogue/book-1_1/index.html",
		"http://example.test/catalogue/book-2_2/index.html",
		"http://example.test/catalogue/book-1_1/index.html",
	}
	if !reflect.DeepEqual(page.ProductURLs, want) {
		t.Fatalf("product urls = %v, want %v", page.ProductURLs, want)
	}
	if page.NextURL != "http://example.test/catalogue/category/books/travel_2/page-2.html" {
		t.Fatalf("next url = %q", page.NextURL)
	}
}

func TestParseListingLastPage(t *testing.T) {
	doc := mustDocument(t, `<article class="product_pod"><h3><a href="b.html">B</a></h3></article>
<ul class="pager"><li class="previous"><a href="page-1.html">previous</a></li></ul>`)
	page, err := ParseListingPage(doc, "http://example.test/c/page-2.html")
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	if page.NextURL != "" {
		t.Fatalf("next url = %q, want empty", page.NextURL)
	}
	if len(page.ProductURLs) != 1 || page.ProductURLs[0] != "http://example.test/c/b.html" {
		t.Fatalf("product urls = %v", page.ProductURLs)
	}
}
