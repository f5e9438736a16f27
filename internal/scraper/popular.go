package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/Clark-Hu/movierec/internal/letterboxd"
)

// ErrInvalidPages rejects an out-of-range page count for user discovery.
var ErrInvalidPages = errors.New("scraper: pages must be between 1 and the configured maximum")

// MaxDiscoveryPages bounds how many popular-users listing pages one request
// may walk.
const MaxDiscoveryPages = 20

// GetPopularUsernames walks the popular-members listing for the given number
// of pages and returns the deduplicated usernames in first-seen order. A
// failed page is skipped and logged; only cancellation aborts the walk.
func (s *Scraper) GetPopularUsernames(ctx context.Context, pages int) ([]string, error) {
	if pages < 1 || pages > MaxDiscoveryPages {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPages, pages)
	}

	seen := make(map[string]struct{})
	var usernames []string
	for p := 1; p <= pages; p++ {
		url := fmt.Sprintf("%s/members/popular/this/week/page/%d/", s.baseURL, p)
		html, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Printf("popular users page %d: %v", p, err)
			continue
		}
		for _, username := range letterboxd.ParsePopularUsernames(html) {
			if _, dup := seen[username]; dup {
				continue
			}
			seen[username] = struct{}{}
			usernames = append(usernames, username)
		}
	}
	return usernames, nil
}

// SeedPopularUsers discovers popular users and scrapes each one's ratings,
// isolating per-user failures so one bad profile never aborts the batch. It
// returns the number of usernames discovered.
func (s *Scraper) SeedPopularUsers(ctx context.Context, pages int) (int, error) {
	usernames, err := s.GetPopularUsernames(ctx, pages)
	if err != nil {
		return 0, err
	}
	s.logger.Printf("seed: found %d users across %d pages", len(usernames), pages)

	for _, username := range usernames {
		if err := s.ScrapeRatingsForUser(ctx, username); err != nil {
			if ctx.Err() != nil {
				return len(usernames), ctx.Err()
			}
			s.logger.Printf("seed %s: %v", username, err)
			continue
		}
		s.logger.Printf("seed %s: done", username)
	}
	return len(usernames), nil
}
