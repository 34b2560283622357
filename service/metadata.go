package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BookMetadata is the subset of Open Library data used to fill in catalog
// fields.
type BookMetadata struct {
	ISBN            string
	Title           string
	Author          string
	Publisher       string
	PublicationYear int
	Pages           int
	CoverURL        string
}

const openLibraryURL = "https://openlibrary.org/api/books"

var metadataClient = &http.Client{Timeout: 10 * time.Second}

type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Cover         struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"cover"`
}

// FetchMetadataByISBN looks up book metadata on Open Library. Returns an
// error when the ISBN is unknown.
func FetchMetadataByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
	if isbn == "" {
		return nil, fmt.Errorf("isbn is empty")
	}
	bibkey := "ISBN:" + isbn
	url := openLibraryURL + "?bibkeys=" + bibkey + "&format=json&jscmd=data"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := metadataClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open library returned %d", resp.StatusCode)
	}
	var payload map[string]openLibraryBook
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	entry, ok := payload[bibkey]
	if !ok {
		return nil, fmt.Errorf("no metadata found for ISBN %s", isbn)
	}
	meta := &BookMetadata{
		ISBN:  isbn,
		Title: entry.Title,
		Pages: entry.NumberOfPages,
	}
	if len(entry.Authors) > 0 {
		names := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			names = append(names, a.Name)
		}
		meta.Author = strings.Join(names, ", ")
	}
	if len(entry.Publishers) > 0 {
		meta.Publisher = entry.Publishers[0].Name
	}
	meta.PublicationYear = parseYear(entry.PublishDate)
	if entry.Cover.Large != "" {
		meta.CoverURL = entry.Cover.Large
	} else {
		meta.CoverURL = entry.Cover.Medium
	}
	return meta, nil
}

// parseYear pulls a 4-digit year out of free-form publish dates like
// "May 2009" or "1998".
func parseYear(date string) int {
	for _, field := range strings.Fields(date) {
		field = strings.Trim(field, ",.")
		if len(field) == 4 {
			if y, err := strconv.Atoi(field); err == nil && y > 1000 {
				return y
			}
		}
	}
	return 0
}
