package datastore

type ListOptions struct {
	Limit  int
	Offset int
}

const (
	DefaultLimit = 1000
	MaxLimit     = 10000
)

// ParseListOptions normalizes paging parameters received from a caller.
// A negative limit means no limit.
func ParseListOptions(limit, offset int) ListOptions {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if limit < 0 {
		limit = -1
		offset = 0
	}
	if offset < 0 {
		offset = 0
	}
	return ListOptions{Limit: limit, Offset: offset}
}
