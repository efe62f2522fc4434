// Package opml imports and exports listing feed sources as OPML. Each
// top-level outline names a neighborhood; its children are the feeds.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bryan-buckman/sftu/internal/model"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a neighborhood group or a feed.
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// SourceEntry is a feed with the neighborhood it defaults to.
type SourceEntry struct {
	Neighborhood string
	Title        string
	URL          string
}

// Parse reads an OPML document into a flat list of sources. A feed takes
// the name of its nearest enclosing outline as its neighborhood.
func Parse(r io.Reader) ([]SourceEntry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var entries []SourceEntry
	var walk func(outlines []Outline, neighborhood string)
	walk = func(outlines []Outline, neighborhood string) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					title = o.XMLURL
				}
				entries = append(entries, SourceEntry{
					Neighborhood: neighborhood,
					Title:        title,
					URL:          o.XMLURL,
				})
			} else if len(o.Outlines) > 0 {
				name := o.Text
				if name == "" {
					name = o.Title
				}
				walk(o.Outlines, name)
			}
		}
	}
	walk(doc.Body.Outlines, "")
	return entries, nil
}

// FromSources converts stored sources to entries.
func FromSources(sources []model.Source) []SourceEntry {
	entries := make([]SourceEntry, 0, len(sources))
	for _, s := range sources {
		entries = append(entries, SourceEntry{Neighborhood: s.Neighborhood, Title: s.Title, URL: s.URL})
	}
	return entries
}

// Export writes entries grouped by neighborhood. Groups are sorted by name;
// feeds keep their input order. Feeds without a neighborhood sit at the root.
func Export(title string, entries []SourceEntry) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	groups := make(map[string]*Outline)
	var names []string
	var rootOutlines []Outline

	for _, e := range entries {
		feed := Outline{
			Text:   e.Title,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		}
		if e.Neighborhood == "" {
			rootOutlines = append(rootOutlines, feed)
			continue
		}
		g, ok := groups[e.Neighborhood]
		if !ok {
			g = &Outline{Text: e.Neighborhood, Title: e.Neighborhood}
			groups[e.Neighborhood] = g
			names = append(names, e.Neighborhood)
		}
		g.Outlines = append(g.Outlines, feed)
	}

	sort.Strings(names)
	for _, name := range names {
		rootOutlines = append(rootOutlines, *groups[name])
	}
	doc.Body.Outlines = rootOutlines

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
