package ingest

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/bryan-buckman/sftu/internal/model"
)

// maxPhotos caps how many photos an ingested listing keeps.
const maxPhotos = 8

var (
	priceRe  = regexp.MustCompile(`\$\s?(\d[\d,]*)`)
	bedsRe   = regexp.MustCompile(`(?i)\b(\d+)\s?(?:br|bd|bed|beds|bedroom|bedrooms)\b`)
	bathsRe  = regexp.MustCompile(`(?i)\b(\d+(?:\.5)?)\s?(?:ba|bath|baths)\b`)
	studioRe = regexp.MustCompile(`(?i)\bstudio\b`)
	sqftRe   = regexp.MustCompile(`(?i)\b(\d[\d,]*)\s?(?:ft2|ft²|sq\.?\s?ft|sqft)`)
	hintRe   = regexp.MustCompile(`\(([^()]+)\)\s*$`)
)

// TitleInfo is what a housing post title says about the unit.
type TitleInfo struct {
	Price  int
	Beds   int
	Baths  float64
	Sqft   int
	Hint   string // neighborhood hint from the trailing parenthesis
	Title  string // the free-text part of the title
	Priced bool
}

// ParseTitle reads titles like "$3890 / 2br - 890ft2 - Warm flat (mission district)".
// A title without a bedroom count is read as a studio.
func ParseTitle(raw string) TitleInfo {
	var info TitleInfo
	s := strings.TrimSpace(raw)

	if m := hintRe.FindStringSubmatch(s); m != nil {
		info.Hint = strings.TrimSpace(m[1])
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}
	if m := priceRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			info.Price = n
			info.Priced = true
		}
	}
	if m := bedsRe.FindStringSubmatch(s); m != nil {
		info.Beds, _ = strconv.Atoi(m[1])
	}
	if m := bathsRe.FindStringSubmatch(s); m != nil {
		info.Baths, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := sqftRe.FindStringSubmatch(s); m != nil {
		info.Sqft, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	}

	var words []string
	for _, part := range strings.Split(s, " - ") {
		part = strings.TrimSpace(part)
		if part == "" || isSpecSegment(part) {
			continue
		}
		words = append(words, part)
	}
	info.Title = strings.Join(words, " - ")
	return info
}

// isSpecSegment reports whether a title segment only carries price, size
// or room counts.
func isSpecSegment(part string) bool {
	rest := priceRe.ReplaceAllString(part, "")
	rest = bedsRe.ReplaceAllString(rest, "")
	rest = bathsRe.ReplaceAllString(rest, "")
	rest = sqftRe.ReplaceAllString(rest, "")
	rest = studioRe.ReplaceAllString(rest, "")
	rest = strings.Trim(rest, " /,|·")
	return rest == ""
}

// neighborhoodAliases maps phrases seen in feeds to the area they belong to.
// Areas that share a word with a known neighborhood, like Mission Bay, are
// listed so they are not folded into it.
var neighborhoodAliases = []struct{ phrase, name string }{
	{"south of market", "SoMa"},
	{"south beach", "SoMa"},
	{"mission district", "Mission"},
	{"mission bay", "Mission Bay"},
	{"mission dolores", "Mission Dolores"},
	{"haight ashbury", "Haight"},
	{"cole valley / ashbury heights", "Haight"},
	{"richmond / seacliff", "Inner Richmond"},
	{"sunset / parkside", "Outer Sunset"},
	{"telegraph hill", "North Beach"},
}

// NormalizeNeighborhood maps a free-form hint onto a known neighborhood.
// Phrases match on whole words and the longest matching phrase wins.
// Unmatched hints are returned trimmed so new areas can still be filtered.
func NormalizeNeighborhood(hint string, known []string) string {
	words := hintWords(hint)
	if len(words) == 0 {
		return ""
	}

	best, bestLen := "", 0
	consider := func(phrase, name string) {
		p := hintWords(phrase)
		if len(p) > bestLen && containsWords(words, p) {
			best, bestLen = name, len(p)
		}
	}
	for _, a := range neighborhoodAliases {
		consider(a.phrase, a.name)
	}
	for _, n := range known {
		if strings.EqualFold(n, "all sf") {
			continue
		}
		consider(n, n)
	}
	if best != "" {
		return best
	}
	return strings.TrimSpace(hint)
}

func hintWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsWords reports whether needle appears as a contiguous run in words.
func containsWords(words, needle []string) bool {
	for i := 0; i+len(needle) <= len(words); i++ {
		if slices.Equal(words[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

// extractPhotos collects image URLs from enclosures, the item image and
// <img> tags in the item HTML, in that order and without duplicates.
func extractPhotos(item *gofeed.Item) []string {
	var photos []string
	seen := map[string]bool{}
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] || len(photos) >= maxPhotos {
			return
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return
		}
		seen[u] = true
		photos = append(photos, u)
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			add(enc.URL)
		}
	}
	if item.Image != nil {
		add(item.Image.URL)
	}
	for _, html := range []string{item.Content, item.Description} {
		if html == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			add(src)
		})
	}
	return photos
}

// extractAddress looks for an address element in the item HTML.
func extractAddress(item *gofeed.Item) string {
	for _, html := range []string{item.Content, item.Description} {
		if html == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		if v, ok := doc.Find("[data-address]").First().Attr("data-address"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v := strings.TrimSpace(doc.Find("address, .address").First().Text()); v != "" {
			return strings.Join(strings.Fields(v), " ")
		}
	}
	return ""
}

// itemToListing converts a feed item into a listing. ok is false when the
// item carries no price or no stable identifier.
func itemToListing(item *gofeed.Item, src model.Source, known []string) (model.Listing, bool) {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	info := ParseTitle(item.Title)
	if id == "" || !info.Priced {
		return model.Listing{}, false
	}

	neighborhood := NormalizeNeighborhood(info.Hint, known)
	if neighborhood == "" {
		neighborhood = src.Neighborhood
	}
	title := info.Title
	if title == "" {
		title = strings.TrimSpace(item.Title)
	}
	address := extractAddress(item)
	if address == "" {
		address = title
	}
	baths := info.Baths
	if baths == 0 {
		baths = 1
	}

	l := model.Listing{
		Title:        title,
		Address:      address,
		Neighborhood: neighborhood,
		Price:        info.Price,
		Beds:         info.Beds,
		Baths:        baths,
		Sqft:         info.Sqft,
		Photos:       extractPhotos(item),
		Tags:         append([]string{}, item.Categories...),
		Source:       feedHost(src.URL),
		SourceID:     id,
		URL:          item.Link,
	}
	if item.Author != nil {
		l.Management = item.Author.Name
	}
	return l, true
}

// feedHost names the host serving a feed. Unparseable URLs are used whole.
func feedHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}
