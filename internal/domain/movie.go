package domain

import "time"

// Movie is the canonical catalog entity. MovieID is the stable slug taken
// from the source site; rows are created as skeletons on first sighting and
// filled in by enrichment, never deleted.
type Movie struct {
	MovieID   string
	Title     string
	Year      int
	Runtime   int
	PosterURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Skeleton returns a placeholder movie pending enrichment.
func Skeleton(movieID string) Movie {
	return Movie{MovieID: movieID, Title: movieID}
}

// NeedsMetadata reports whether title/year enrichment is still outstanding.
func (m Movie) NeedsMetadata() bool {
	return m.Title == "" || m.Title == m.MovieID || m.Year == 0
}

// NeedsPoster reports whether a poster URL is still outstanding.
func (m Movie) NeedsPoster() bool {
	return m.PosterURL == ""
}
