package domain

// SearchHit is one search result; slice order is the provider's relevance rank.
type SearchHit struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Article is a search hit with its extracted text.
type Article struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

type Source struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}
