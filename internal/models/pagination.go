package models

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination is an offset window over an ordered listing
type Pagination struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// NewPagination validates skip and limit.
func NewPagination(skip, limit int) (Pagination, error) {
	if skip < 0 || limit < 1 || limit > MaxPageLimit {
		return Pagination{}, ErrInvalidPagination
	}
	return Pagination{Skip: skip, Limit: limit}, nil
}

// DefaultPagination is the first page of default size.
func DefaultPagination() Pagination {
	return Pagination{Skip: 0, Limit: DefaultPageLimit}
}
