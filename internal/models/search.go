package models

// SearchParams captures the inputs that seed a crawl.
type SearchParams struct {
	Query    string
	Area     string
	StartURL string
	MaxPages int
	Limit    int
}
