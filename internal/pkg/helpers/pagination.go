package helpers

import (
	"math"

	"github.com/luoxh/trainsys/internal/app/models/dto"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	DefaultPage     = 1
)

// CalculateOffsetLimit converts a 1-based page number and page size into
// an SQL offset and limit, clamping the size to sane bounds.
func CalculateOffsetLimit(page, size int) (offset uint64, limit uint64) {
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	if page < DefaultPage {
		page = DefaultPage
	}
	return uint64(page-1) * uint64(size), uint64(size)
}

// NewPaginationInfo builds the pagination block of a paged listing.
func NewPaginationInfo(totalItems int64, page, size int) *dto.PaginationInfo {
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	if page < DefaultPage {
		page = DefaultPage
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(size)))
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	return &dto.PaginationInfo{
		CurrentPage: page,
		PageSize:    size,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
	}
}
