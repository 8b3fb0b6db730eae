package domain

// DefaultPerPage and MaxPerPage bound list endpoints.
const (
	DefaultPerPage = 100
	MaxPerPage     = 500
)

// PaginationParams carries page/per_page values from the HTTP layer to the repo layer.
// Page is 1-indexed. PerPage is capped at MaxPerPage by NewPaginationParams.
type PaginationParams struct {
	// Page is the current page number, starting at 1.
	Page int
	// PerPage is the maximum number of items to return.
	PerPage int
}

// NewPaginationParams builds a PaginationParams from optional HTTP query params.
// Nil pointers fall back to page=1, per_page=DefaultPerPage.
func NewPaginationParams(page, perPage *int) PaginationParams {
	p := PaginationParams{Page: 1, PerPage: DefaultPerPage}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if perPage != nil && *perPage >= 1 {
		p.PerPage = min(*perPage, MaxPerPage)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}
