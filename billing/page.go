package billing

import "github.com/samber/lo"

// DefaultPageSize applies when a list request has no limit.
const DefaultPageSize = 10

// Paginate returns page (1-based) of items, limit per page.
// Zero values select the first page of DefaultPageSize.
func Paginate[T any](items []T, limit, page int) []T {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	from := limit * (page - 1)
	return lo.Slice(items, from, from+limit)
}
