package discovery

import (
	"strconv"
	"strings"
	"time"
)

// Document is a parsed json-ld structured data block from a repository
// landing page.
type Document = map[string]interface{}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize reshapes the heterogeneous json-ld documents found on landing
// pages into one uniform structure. Every transformation is defensive: a
// missing or oddly shaped field is skipped, never an error, since pages
// embed whatever subset of schema.org they like.
func Normalize(doc Document) Document {
	normalizeDates(doc)
	normalizeTemporalCoverage(doc)
	normalizeSpatialCoverage(doc)
	normalizeKeywords(doc)
	normalizeCreator(doc)
	normalizeLicense(doc)
	hoistFunding(doc)
	return doc
}

func normalizeDates(doc Document) {
	for _, key := range []string{"dateCreated", "datePublished", "dateModified"} {
		if value, ok := doc[key].(string); ok {
			if t, ok := parseDate(value); ok {
				doc[key] = t
			}
		}
	}
}

// A temporal range arrives as a single "start/end" string and is split into
// a {start, end} pair.
func normalizeTemporalCoverage(doc Document) {
	value, ok := doc["temporalCoverage"].(string)
	if !ok {
		return
	}

	parts := strings.SplitN(value, "/", 2)
	if len(parts) != 2 {
		return
	}

	coverage := Document{}
	if t, ok := parseDate(parts[0]); ok {
		coverage["start"] = t
	}
	if t, ok := parseDate(parts[1]); ok {
		coverage["end"] = t
	}
	doc["temporalCoverage"] = coverage
}

// Spatial coverage is either a single point ({latitude, longitude}) or a
// bounding shape ("south west north east" box string). Both become geojson
// features under geo["geojson"].
func normalizeSpatialCoverage(doc Document) {
	coverage, ok := doc["spatialCoverage"].(map[string]interface{})
	if !ok {
		return
	}
	geo, ok := coverage["geo"].(map[string]interface{})
	if !ok {
		return
	}

	var features []interface{}

	if lat, latOk := floatValue(geo["latitude"]); latOk {
		if lon, lonOk := floatValue(geo["longitude"]); lonOk {
			features = append(features, pointFeature(lat, lon))
		}
	}

	if box, ok := geo["box"].(string); ok {
		if feature, ok := boxFeature(box); ok {
			features = append(features, feature)
		}
	}

	if features != nil {
		coverage["geojson"] = features
	}
}

func floatValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func pointFeature(lat, lon float64) Document {
	return Document{
		"type": "Feature",
		"geometry": Document{
			"type":        "Point",
			"coordinates": []interface{}{lon, lat},
		},
	}
}

func boxFeature(box string) (Document, bool) {
	parts := strings.Fields(box)
	if len(parts) != 4 {
		return nil, false
	}

	bounds := make([]float64, 4)
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, false
		}
		bounds[i] = f
	}
	south, west, north, east := bounds[0], bounds[1], bounds[2], bounds[3]

	ring := []interface{}{
		[]interface{}{west, south},
		[]interface{}{east, south},
		[]interface{}{east, north},
		[]interface{}{west, north},
		[]interface{}{west, south},
	}
	return Document{
		"type": "Feature",
		"geometry": Document{
			"type":        "Polygon",
			"coordinates": []interface{}{ring},
		},
	}, true
}

func normalizeKeywords(doc Document) {
	switch keywords := doc["keywords"].(type) {
	case string:
		split := strings.Split(keywords, ",")
		list := make([]interface{}, 0, len(split))
		for _, keyword := range split {
			list = append(list, strings.TrimSpace(keyword))
		}
		doc["keywords"] = list
	case nil:
		if _, present := doc["keywords"]; present {
			doc["keywords"] = []interface{}{}
		}
	}
}

// A bare creator list is wrapped into a {"@list": [...]} envelope for
// uniformity with documents that already nest authorship under role lists.
func normalizeCreator(doc Document) {
	if creators, ok := doc["creator"].([]interface{}); ok {
		doc["creator"] = Document{"@list": creators}
	}
}

func normalizeLicense(doc Document) {
	if license, ok := doc["license"].(string); ok {
		doc["license"] = Document{"text": license}
	}
}

// Some pages nest the grant list under funder.funder; it is hoisted to a
// top level funding field.
func hoistFunding(doc Document) {
	funder, ok := doc["funder"].(map[string]interface{})
	if !ok {
		return
	}
	if inner, ok := funder["funder"]; ok {
		doc["funding"] = inner
		delete(doc, "funder")
	}
}

// FundingAwards extracts the award identifiers from a normalized document's
// funding list.
func FundingAwards(doc Document) []string {
	funding, ok := doc["funding"].([]interface{})
	if !ok {
		return nil
	}

	awards := make([]string, 0, len(funding))
	for _, entry := range funding {
		switch grant := entry.(type) {
		case string:
			awards = append(awards, grant)
		case map[string]interface{}:
			if identifier, ok := grant["identifier"].(string); ok {
				awards = append(awards, identifier)
			}
		}
	}
	return awards
}
