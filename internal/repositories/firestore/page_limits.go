package firestore

const (
	defaultListPageSize = 20
	maxListPageSize     = 100
)

// PageLimits bounds page sizes for the cursor-paginated list queries.
type PageLimits struct {
	// Default applies when a request does not specify a page size.
	Default int
	// Max caps requested page sizes.
	Max int
}

// withDefaults fills in unset or inconsistent limits.
func (l PageLimits) withDefaults() PageLimits {
	if l.Default <= 0 {
		l.Default = defaultListPageSize
	}
	if l.Max <= 0 {
		l.Max = maxListPageSize
	}
	if l.Max < l.Default {
		l.Max = l.Default
	}
	return l
}

// clamp resolves the effective page size for a request.
func (l PageLimits) clamp(requested int) int {
	if requested <= 0 {
		return l.Default
	}
	if requested > l.Max {
		return l.Max
	}
	return requested
}
