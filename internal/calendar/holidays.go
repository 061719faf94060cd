package calendar

// French public holidays keyed by month token, one table per year. Movable
// feasts (Easter Monday, Ascension, Whit Monday) have to be maintained by
// hand for every new planning year.
var holidayTables = map[int]map[string][]int{
	2025: {
		"JANVIER":  {1},
		"AVRIL":    {21},
		"MAI":      {1, 8, 29},
		"JUIN":     {9},
		"JUILLET":  {14},
		"AOÛT":     {15},
		"NOVEMBRE": {1, 11},
		"DECEMBRE": {25},
	},
	2026: {
		"JANVIER":  {1},
		"AVRIL":    {6},
		"MAI":      {1, 8, 14, 25},
		"JUILLET":  {14},
		"AOÛT":     {15},
		"NOVEMBRE": {1, 11},
		"DECEMBRE": {25},
	},
}

// holidaysFor returns the holiday table for a year. Years without a table get
// an empty one: no day is flagged, nothing fails.
func holidaysFor(year int) map[string][]int {
	if t, ok := holidayTables[year]; ok {
		return t
	}
	return nil
}
