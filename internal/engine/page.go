package engine

// Pagination describes where a page sits in the full result.
// From and To are 1-based row positions and null for an empty page.
type Pagination struct {
	Total       int64 `json:"total"`
	PerPage     int   `json:"per_page"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	From        *int  `json:"from"`
	To          *int  `json:"to"`
}

// Page is one window of a filtered, sorted listing
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewPage assembles a page from the rows of one window and the total row count
func NewPage[T any](rows []T, total int64, req PageRequest) *Page[T] {
	if rows == nil {
		rows = []T{}
	}
	lastPage := 1
	if total > 0 {
		lastPage = int((total + int64(req.PerPage) - 1) / int64(req.PerPage))
	}

	p := Pagination{
		Total:       total,
		PerPage:     req.PerPage,
		CurrentPage: req.Page,
		LastPage:    lastPage,
	}
	if len(rows) > 0 {
		from := req.Offset() + 1
		to := req.Offset() + len(rows)
		p.From = &from
		p.To = &to
	}
	return &Page[T]{Data: rows, Pagination: p}
}
