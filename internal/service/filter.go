package service

// Date-range filtering. Both filters are pure: the input slice is never
// mutated, order is preserved, and both bounds are inclusive by calendar
// date. Points with NaN values pass through untouched; gap handling is the
// chart's concern.

// FilterReservoir returns the subsequence of points inside r.
func FilterReservoir(points []ReservoirPoint, r DateRange) []ReservoirPoint {
	out := make([]ReservoirPoint, 0, len(points))
	for _, p := range points {
		if r.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out
}

// FilterGroundwater returns the subsequence of points inside r.
func FilterGroundwater(points []GroundwaterPoint, r DateRange) []GroundwaterPoint {
	out := make([]GroundwaterPoint, 0, len(points))
	for _, p := range points {
		if r.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out
}

// SeedReservoirRange returns the [first, last] window of a fresh series.
// Source ordering is trusted, so no scan for min/max is done. An empty
// series yields an unbounded range.
func SeedReservoirRange(points []ReservoirPoint) DateRange {
	if len(points) == 0 {
		return DateRange{}
	}
	return DateRange{
		From: DateOnly(points[0].Date),
		To:   DateOnly(points[len(points)-1].Date),
	}
}

// SeedGroundwaterRange returns the [first, last] window of a fresh series.
func SeedGroundwaterRange(points []GroundwaterPoint) DateRange {
	if len(points) == 0 {
		return DateRange{}
	}
	return DateRange{
		From: DateOnly(points[0].Date),
		To:   DateOnly(points[len(points)-1].Date),
	}
}
