package letterboxd

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Clark-Hu/movierec/internal/domain"
)

// ParsePageCount extracts the total page count from a ratings-list page. The
// pagination control holds the last page number in its final link; a missing
// control or unparseable text means a single page.
func ParsePageCount(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 1
	}
	links := doc.Find("li.paginate-page a")
	if links.Length() == 0 {
		return 1
	}
	text := strings.ReplaceAll(strings.TrimSpace(links.Last().Text()), ",", "")
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseRatingItems extracts one RawRatingEntry per rated item on a ratings
// page. The movie id is the last non-empty path segment of the poster
// widget's target link (items without one are skipped); the score is the
// numeric suffix of the rating widget's class attribute, 0 when absent,
// unparseable, or outside [1,10]. Callers drop score <= 0 entries before
// ingestion: those are "watched, not rated".
func ParseRatingItems(html string) []domain.RawRatingEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var entries []domain.RawRatingEntry
	doc.Find("li.poster-container").Each(func(_ int, item *goquery.Selection) {
		link, _ := item.Find(".film-poster").First().Attr("data-target-link")
		movieID := lastPathSegment(link)
		if movieID == "" {
			return
		}
		class, _ := item.Find(".rating").First().Attr("class")
		entries = append(entries, domain.RawRatingEntry{
			MovieID: movieID,
			Score:   parseScoreClass(class),
		})
	})
	return entries
}

// ParsePopularUsernames extracts the member usernames from a popular-users
// listing page: one per person cell, taken from the first anchor's href with
// surrounding slashes trimmed. Duplicates within or across pages are the
// caller's problem.
func ParsePopularUsernames(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var usernames []string
	doc.Find("table.person-table td.table-person").Each(func(_ int, cell *goquery.Selection) {
		href, ok := cell.Find("a").First().Attr("href")
		if !ok {
			return
		}
		username := strings.Trim(href, "/")
		if username == "" {
			return
		}
		usernames = append(usernames, username)
	})
	return usernames
}

func lastPathSegment(link string) string {
	segments := strings.Split(link, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// parseScoreClass pulls the star score out of a class attribute such as
// "rating rated-7". Anything outside the valid 1-10 range collapses to 0.
func parseScoreClass(class string) float64 {
	idx := strings.LastIndex(class, "-")
	if idx < 0 || idx == len(class)-1 {
		return 0
	}
	score, err := strconv.ParseFloat(class[idx+1:], 64)
	if err != nil || score < 1 || score > 10 {
		return 0
	}
	return score
}
