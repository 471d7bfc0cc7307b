package kml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"shpkml-service/internal/entity"
)

const (
	Header    = `<?xml version="1.0" encoding="UTF-8"?>`
	Namespace = "http://www.opengis.net/kml/2.2"

	CombinedDescription    = "Combined KML with all placemarks"
	SynthesizedDescription = "KML generated from extracted coordinates"
)

var (
	reDirectPlacemark = regexp.MustCompile(`(?s)<Placemark>.*?</Placemark>`)
	reScopedPlacemark = regexp.MustCompile(`(?s)<(?:[A-Za-z_][\w.-]*:)?Placemark\b[^>]*>.*?</(?:[A-Za-z_][\w.-]*:)?Placemark>`)
	reDocumentBody    = regexp.MustCompile(`(?s)<(?:[A-Za-z_][\w.-]*:)?Document\b[^>]*>(.*)</(?:[A-Za-z_][\w.-]*:)?Document>`)
	reEnvelopeBody    = regexp.MustCompile(`(?s)<(?:[A-Za-z_][\w.-]*:)?kml\b[^>]*>(.*)</(?:[A-Za-z_][\w.-]*:)?kml>`)
)

// Placemarks returns the Placemark blocks of doc in document order.
// Direct matches win; otherwise the Document body, then the kml envelope body, are searched
// with a pattern that tolerates attributes and namespace prefixes.
func Placemarks(doc string) []string {
	if found := reDirectPlacemark.FindAllString(doc, -1); len(found) > 0 {
		return found
	}
	for _, scope := range []*regexp.Regexp{reDocumentBody, reEnvelopeBody} {
		m := scope.FindStringSubmatch(doc)
		if m == nil {
			continue
		}
		if found := reScopedPlacemark.FindAllString(m[1], -1); len(found) > 0 {
			return found
		}
	}
	return nil
}

// Combine wraps the placemarks of every document, in order, into one Document.
func Combine(docs []string, name, description string) string {
	var b strings.Builder
	writeOpen(&b, name, description)
	for _, doc := range docs {
		for _, pm := range Placemarks(doc) {
			b.WriteString("\n    ")
			b.WriteString(pm)
		}
	}
	writeClose(&b)
	return b.String()
}

// Synthesize builds a document with one Point placemark per stored coordinate.
func Synthesize(files []entity.ProcessedFile, name string) string {
	var b strings.Builder
	writeOpen(&b, name, SynthesizedDescription)
	for _, f := range files {
		label := escape(f.FileName)
		for i, c := range f.Coordinates {
			fmt.Fprintf(&b, `
    <Placemark>
      <name>%s - Point %d</name>
      <description>Extracted coordinate from %s</description>
      <Point>
        <coordinates>%s</coordinates>
      </Point>
    </Placemark>`, label, i+1, label, FormatCoordinate(c))
		}
	}
	writeClose(&b)
	return b.String()
}

// FormatCoordinate renders c as a KML "lon,lat,alt" tuple.
func FormatCoordinate(c entity.Coordinate) string {
	return fmt.Sprintf("%v,%v,%v", c.Longitude, c.Latitude, c.Alt())
}

func writeOpen(b *strings.Builder, name, description string) {
	b.WriteString(Header)
	fmt.Fprintf(b, "\n<kml xmlns=%q>\n  <Document>\n    <name>%s</name>\n    <description>%s</description>",
		Namespace, escape(name), escape(description))
}

func writeClose(b *strings.Builder) {
	b.WriteString("\n  </Document>\n</kml>\n")
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
