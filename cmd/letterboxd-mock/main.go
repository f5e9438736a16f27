package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

type ratedFilm struct {
	MovieID string  `json:"movieId"`
	Score   float64 `json:"score"`
}

type filmEntry struct {
	Name        *string `json:"name"`
	ReleaseYear *int    `json:"releaseYear"`
	RunTime     *int    `json:"runTime"`
	Poster      string  `json:"poster"`
}

type dataset struct {
	Users  map[string][]ratedFilm `json:"users"`
	Movies map[string]filmEntry   `json:"movies"`
}

func main() {
	var (
		port     = flag.String("port", "9099", "port to listen on")
		data     = flag.String("data", "mock-letterboxd.json", "path to mock data file")
		pageSize = flag.Int("page-size", 3, "films per ratings page")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}
	var payload dataset
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	mux := http.NewServeMux()

	ratingsPage := func(w http.ResponseWriter, user string, page int) {
		films, ok := payload.Users[user]
		if !ok {
			http.NotFound(w, nil)
			return
		}
		pages := (len(films) + *pageSize - 1) / *pageSize
		if pages < 1 {
			pages = 1
		}
		if page < 1 || page > pages {
			http.NotFound(w, nil)
			return
		}

		var b strings.Builder
		b.WriteString("<html><body><ul>")
		start := (page - 1) * *pageSize
		end := start + *pageSize
		if end > len(films) {
			end = len(films)
		}
		for _, film := range films[start:end] {
			fmt.Fprintf(&b, `<li class="poster-container"><div class="film-poster" data-target-link="/film/%s/"></div>`, film.MovieID)
			if film.Score > 0 {
				fmt.Fprintf(&b, `<span class="rating rated-%d"></span>`, int(film.Score))
			}
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		if pages > 1 {
			b.WriteString(`<ul class="pagination">`)
			for p := 1; p <= pages; p++ {
				fmt.Fprintf(&b, `<li class="paginate-page"><a href="?page=%d">%d</a></li>`, p, p)
			}
			b.WriteString("</ul>")
		}
		b.WriteString("</body></html>")
		_, _ = w.Write([]byte(b.String()))
	}

	mux.HandleFunc("GET /{user}/films/by/date/", func(w http.ResponseWriter, r *http.Request) {
		ratingsPage(w, r.PathValue("user"), 1)
	})
	mux.HandleFunc("GET /{user}/films/by/date/page/{page}/", func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.PathValue("page"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		ratingsPage(w, r.PathValue("user"), page)
	})

	mux.HandleFunc("GET /film/{id}/json/", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := payload.Movies[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":        entry.Name,
			"releaseYear": entry.ReleaseYear,
			"runTime":     entry.RunTime,
		})
	})

	mux.HandleFunc("GET /ajax/poster/film/{id}/std/125x187/", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := payload.Movies[r.PathValue("id")]
		if !ok || entry.Poster == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<div class="film-poster"><img src="%s"/></div>`, entry.Poster)
	})

	mux.HandleFunc("GET /members/popular/this/week/page/{page}/", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`<table class="person-table"><tbody>`)
		for user := range payload.Users {
			fmt.Fprintf(&b, `<tr><td class="table-person"><a href="/%s/">%s</a></td></tr>`, user, user)
		}
		b.WriteString("</tbody></table>")
		_, _ = w.Write([]byte(b.String()))
	})

	addr := ":" + *port
	log.Printf("mock letterboxd listening on %s (%d users, %d films)", addr, len(payload.Users), len(payload.Movies))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
