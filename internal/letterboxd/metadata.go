package letterboxd

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// resizedOrigin is the canonical origin the site serves resized poster
	// images from; poster sources are normalized onto it.
	resizedOrigin = "https://a.ltrbxd.com/resized/"

	// emptyPosterSegment identifies the placeholder image used when a film
	// has no poster. It appears under varying dimensions, so the path
	// segment is matched rather than a full URL.
	emptyPosterSegment = "empty-poster"
)

// Metadata carries the optional fields of the film metadata endpoint. A nil
// field means the key was absent, null, or of the wrong type, and the
// corresponding movie field must be left unchanged.
type Metadata struct {
	Name        *string
	ReleaseYear *int
	RunTime     *int
}

// ParseMetadataJSON reads name/releaseYear/runTime from a metadata payload.
// Each field is set only when the key exists with the expected JSON type;
// type mismatches and nulls are silently omitted. Only an entirely unusable
// payload is an error.
func ParseMetadataJSON(body string) (Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Metadata{}, &ParseError{Err: err}
	}

	var md Metadata
	if name, ok := raw["name"].(string); ok {
		md.Name = &name
	}
	if year, ok := raw["releaseYear"].(float64); ok {
		y := int(year)
		md.ReleaseYear = &y
	}
	if runtime, ok := raw["runTime"].(float64); ok {
		rt := int(runtime)
		md.RunTime = &rt
	}
	return md, nil
}

// ParsePosterHTML locates the poster image inside a poster-widget payload and
// returns its normalized URL, or "" when the widget carries no image or only
// the placeholder.
func ParsePosterHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &ParseError{Err: err}
	}
	src, ok := doc.Find(".film-poster img").First().Attr("src")
	if !ok {
		return "", nil
	}
	return NormalizePosterURL(src), nil
}

// NormalizePosterURL strips the query string, forces the resized-image
// origin and a .jpg suffix, and maps the empty-poster placeholder to "".
// Normalization is idempotent.
func NormalizePosterURL(src string) string {
	if src == "" {
		return ""
	}
	if i := strings.Index(src, "?"); i >= 0 {
		src = src[:i]
	}
	if !strings.HasPrefix(src, resizedOrigin) {
		src = resizedOrigin + strings.TrimLeft(strings.TrimPrefix(src, "/resized"), "/")
	}
	if !strings.HasSuffix(src, ".jpg") {
		src += ".jpg"
	}
	if strings.Contains(src, emptyPosterSegment) {
		return ""
	}
	return src
}
