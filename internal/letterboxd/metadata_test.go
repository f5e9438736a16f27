package letterboxd

import "testing"

func TestParseMetadataJSON(t *testing.T) {
	md, err := ParseMetadataJSON(`{"name":"Test Movie","releaseYear":2022,"runTime":null}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Name == nil || *md.Name != "Test Movie" {
		t.Fatalf("Name = %v, want Test Movie", md.Name)
	}
	if md.ReleaseYear == nil || *md.ReleaseYear != 2022 {
		t.Fatalf("ReleaseYear = %v, want 2022", md.ReleaseYear)
	}
	if md.RunTime != nil {
		t.Fatalf("RunTime = %v, want nil for null field", *md.RunTime)
	}
}

func TestParseMetadataJSONTypeMismatches(t *testing.T) {
	md, err := ParseMetadataJSON(`{"name":7,"releaseYear":"2022","runTime":103}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Name != nil {
		t.Fatalf("Name = %v, want nil for non-string", *md.Name)
	}
	if md.ReleaseYear != nil {
		t.Fatalf("ReleaseYear = %v, want nil for non-number", *md.ReleaseYear)
	}
	if md.RunTime == nil || *md.RunTime != 103 {
		t.Fatalf("RunTime = %v, want 103", md.RunTime)
	}
}

func TestParseMetadataJSONUnusable(t *testing.T) {
	if _, err := ParseMetadataJSON(`not json at all`); err == nil {
		t.Fatal("expected error for unusable payload")
	}
}

func TestParsePosterHTML(t *testing.T) {
	html := `<div class="film-poster"><img src="https://a.ltrbxd.com/resized/film-poster/1/2/3-crop.jpg?foo=bar"/></div>`
	got, err := ParsePosterHTML(html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "https://a.ltrbxd.com/resized/film-poster/1/2/3-crop.jpg"; got != want {
		t.Fatalf("ParsePosterHTML = %q, want %q", got, want)
	}
}

func TestParsePosterHTMLNoImage(t *testing.T) {
	got, err := ParsePosterHTML(`<div class="film-poster">coming soon</div>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("ParsePosterHTML = %q, want empty", got)
	}
}

func TestNormalizePosterURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"strip query",
			"https://a.ltrbxd.com/resized/film-poster/1/2/3-crop.jpg?foo=bar",
			"https://a.ltrbxd.com/resized/film-poster/1/2/3-crop.jpg",
		},
		{
			"relative resized path",
			"/resized/film-poster/1/2/3-crop.jpg",
			"https://a.ltrbxd.com/resized/film-poster/1/2/3-crop.jpg",
		},
		{
			"missing jpg suffix",
			"/resized/film-poster/1/2/3-crop",
			"https://a.ltrbxd.com/resized/film-poster/1/2/3-crop.jpg",
		},
		{
			"placeholder maps to empty",
			"https://s.ltrbxd.com/static/img/empty-poster-125.8112b435.png",
			"",
		},
		{"empty input", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizePosterURL(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizePosterURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if again := NormalizePosterURL(got); again != got {
				t.Fatalf("normalization not idempotent: %q -> %q", got, again)
			}
		})
	}
}
