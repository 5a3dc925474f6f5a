package pager

// PageCount is max(1, ceil(n/pageSize)). A non-positive pageSize means a single page.
func PageCount(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// Clamp limits page to [1, pageCount].
func Clamp(page, pageCount int) int {
	if page > pageCount {
		page = pageCount
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Window returns the slice of items visible on requestedPage after clamping it.
// The returned slice aliases items.
func Window[T any](items []T, pageSize, requestedPage int) (visible []T, page, pageCount int) {
	n := len(items)
	pageCount = PageCount(n, pageSize)
	page = Clamp(requestedPage, pageCount)
	if n == 0 {
		return items[:0:0], page, pageCount
	}
	if pageSize <= 0 {
		return items, page, pageCount
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, n)
	return items[start:end:end], page, pageCount
}
