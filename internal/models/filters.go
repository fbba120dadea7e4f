package models

// RunFilter represents filter parameters for listing density runs
type RunFilter struct {
	Status string `form:"status"` // pending, running, completed, failed
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// CountFilter represents filter parameters for listing zone counts of a run
type CountFilter struct {
	MinCount int    `form:"min_count"`
	Order    string `form:"order"` // zone, count
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// Normalize applies default paging
func (f *RunFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
