package kml

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"shpkml-service/internal/entity"
)

var (
	rePoint       = regexp.MustCompile(`(?s)<Point\b[^>]*>(.*?)</Point>`)
	reCoordinates = regexp.MustCompile(`(?s)<coordinates\b[^>]*>(.*?)</coordinates>`)
	reGxCoord     = regexp.MustCompile(`(?s)<gx:coord\b[^>]*>(.*?)</gx:coord>`)

	// Patterns scanned, in order, by FirstTwoCoordinates.
	coordinatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`<coordinates>\s*([^<]+)\s*</coordinates>`),
		regexp.MustCompile(`<coord>\s*([^<]+)\s*</coord>`),
	}
)

// FirstCoordinate returns the representative coordinate of a document.
// It tries a Point's coordinates, then any coordinates element, then a gx:coord track sample.
func FirstCoordinate(doc string) (entity.Coordinate, bool) {
	for _, m := range rePoint.FindAllStringSubmatch(doc, -1) {
		if inner := reCoordinates.FindStringSubmatch(m[1]); inner != nil {
			if c, ok := parseFirstTuple(inner[1]); ok {
				return c, true
			}
		}
	}
	for _, m := range reCoordinates.FindAllStringSubmatch(doc, -1) {
		if c, ok := parseFirstTuple(m[1]); ok {
			return c, true
		}
	}
	for _, m := range reGxCoord.FindAllStringSubmatch(doc, -1) {
		if c, ok := parseTrackSample(m[1]); ok {
			return c, true
		}
	}
	return entity.Coordinate{}, false
}

// FirstTwoCoordinates collects up to two coordinates from coordinates and coord elements.
// Malformed tuples are skipped; missing or unparseable altitude becomes 0.
func FirstTwoCoordinates(doc string) []entity.Coordinate {
	out := make([]entity.Coordinate, 0, 2)
	for _, re := range coordinatePatterns {
		for _, m := range re.FindAllStringSubmatch(doc, -1) {
			for _, token := range strings.Fields(m[1]) {
				c, ok := parseTuple(token, true)
				if !ok {
					continue
				}
				out = append(out, c)
				if len(out) == 2 {
					return out
				}
			}
		}
	}
	return out
}

func parseFirstTuple(text string) (entity.Coordinate, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return entity.Coordinate{}, false
	}
	return parseTuple(fields[0], false)
}

// parseTuple parses "lon,lat[,alt]". With defaultAlt a missing altitude becomes 0,
// otherwise it is left nil.
func parseTuple(token string, defaultAlt bool) (entity.Coordinate, bool) {
	parts := strings.Split(strings.TrimSpace(token), ",")
	if len(parts) < 2 {
		return entity.Coordinate{}, false
	}
	return build(parts[0], parts[1], parts[2:], defaultAlt)
}

func parseTrackSample(text string) (entity.Coordinate, bool) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return entity.Coordinate{}, false
	}
	return build(parts[0], parts[1], parts[2:], false)
}

func build(lonText, latText string, rest []string, defaultAlt bool) (entity.Coordinate, bool) {
	lon, ok := parseFinite(lonText)
	if !ok {
		return entity.Coordinate{}, false
	}
	lat, ok := parseFinite(latText)
	if !ok {
		return entity.Coordinate{}, false
	}
	c := entity.Coordinate{Longitude: lon, Latitude: lat}
	if len(rest) > 0 {
		if alt, ok := parseFinite(rest[0]); ok {
			c.Altitude = &alt
		}
	}
	if c.Altitude == nil && defaultAlt {
		zero := 0.0
		c.Altitude = &zero
	}
	return c, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
