package util

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Calculate turns 1-based page/size query values into an offset and a
// clamped size.
func Calculate(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return (page - 1) * size, size
}
