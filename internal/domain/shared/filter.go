package shared

// Filter holds common list query parameters
type Filter struct {
	Limit  int
	Offset int
}

// Normalize clamps the filter to sane bounds
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
