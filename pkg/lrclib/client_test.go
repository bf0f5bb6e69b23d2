package lrclib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

func TestSearchPrefersPlainLyrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("track_name") != "Lemon" || r.URL.Query().Get("artist_name") != "米津玄師" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
{"id":1,"trackName":"Lemon (Instrumental)","artistName":"米津玄師","instrumental":true},
{"id":2,"trackName":"Lemon","artistName":"Cover Artist","plainLyrics":"cover line"},
{"id":3,"trackName":"Lemon","artistName":"米津玄師","plainLyrics":"夢ならばどれほどよかったでしょう\n未だにあなたのことを夢にみる","syncedLyrics":"[00:01.00]ignored"}
]`))
	}))
	defer server.Close()

	client := NewClient(scrape.NewClient(scrape.Options{}))
	client.baseURL = server.URL

	doc, ok := client.Search(context.Background(), "Lemon", "米津玄師")
	if !ok {
		t.Fatal("expected lyrics, got none")
	}
	if len(doc.Lines) != 2 || doc.Lines[0].Text != "夢ならばどれほどよかったでしょう" {
		t.Errorf("unexpected lines %+v", doc.Lines)
	}
	if doc.URL != server.URL+"/get/3" {
		t.Errorf("unexpected url %q", doc.URL)
	}
}

func TestSearchFallsBackToSyncedLyrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":7,"trackName":"Song","artistName":"Artist","syncedLyrics":"[00:01.00]first\n[00:04.50]second\n[00:08.00]"}]`))
	}))
	defer server.Close()

	client := NewClient(scrape.NewClient(scrape.Options{}))
	client.baseURL = server.URL

	doc, ok := client.Search(context.Background(), "Song", "")
	if !ok {
		t.Fatal("expected lyrics, got none")
	}
	if len(doc.Lines) != 2 || doc.Lines[1].Text != "second" {
		t.Errorf("unexpected lines %+v", doc.Lines)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(scrape.NewClient(scrape.Options{}))
	client.baseURL = server.URL

	if _, ok := client.Search(context.Background(), "nothing", "nobody"); ok {
		t.Error("expected absent")
	}
}

func TestFindBestMatch(t *testing.T) {
	responses := LRCLibSearchResponse{
		{ID: 1, TrackName: "Other", ArtistName: "X", PlainLyrics: "a"},
		{ID: 2, TrackName: "Hello World", ArtistName: "Y", PlainLyrics: "b"},
		{ID: 3, TrackName: "hello", ArtistName: "Adele", PlainLyrics: "c"},
	}

	if got := findBestMatch(responses, "Hello", "adele"); got == nil || got.ID != 3 {
		t.Errorf("expected title+artist match 3, got %+v", got)
	}
	if got := findBestMatch(responses, "Hello", "nobody"); got == nil || got.ID != 2 {
		t.Errorf("expected title match 2, got %+v", got)
	}
	if got := findBestMatch(responses, "missing", ""); got == nil || got.ID != 1 {
		t.Errorf("expected first result 1, got %+v", got)
	}
	if got := findBestMatch(nil, "x", ""); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
