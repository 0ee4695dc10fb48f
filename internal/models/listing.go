package models

import (
	"time"

	"github.com/jimezsa/jobparser/internal/salary"
)

// Listing is the record extracted from one vacancy page.
type Listing struct {
	Site       string       `json:"site"`
	Title      *string      `json:"title"`
	Salary     salary.Value `json:"salary"`
	SalaryText string       `json:"salary_text,omitempty"`
	URL        string       `json:"url"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// TitleText returns the title or an empty string when the page had none.
func (l Listing) TitleText() string {
	if l.Title == nil {
		return ""
	}
	return *l.Title
}

// StringPtr is a convenience for building optional titles.
func StringPtr(value string) *string {
	return &value
}
