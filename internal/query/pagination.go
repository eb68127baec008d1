package query

import "fmt"

// Clamp validates the window [from, to) and shortens it to at most
// maxWindow items.
func Clamp(from, to, maxWindow int) (int, int, error) {
	if from < 0 {
		return 0, 0, fmt.Errorf(`%w: "from" (%d) is expected to be greater than or equal to 0`, ErrInvalidPagination, from)
	}
	if to < 0 {
		return 0, 0, fmt.Errorf(`%w: "to" (%d) is expected to be greater than or equal to 0`, ErrInvalidPagination, to)
	}
	if from > to {
		return 0, 0, fmt.Errorf(`%w: "from" (%d) is expected to be less than "to" (%d)`, ErrInvalidPagination, from, to)
	}
	if to-from > maxWindow {
		to = from + maxWindow
	}
	return from, to, nil
}

// window returns the bounds of [from, to) inside a sequence of n items.
func window(from, to, n int) (int, int) {
	return min(from, n), min(to, n)
}
