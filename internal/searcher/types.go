package searcher

// Candidate is an (id, distance) pair produced during search.
type Candidate struct {
	ID       uint32
	Distance float32
}

// Better reports whether a ranks before b: smaller distance first, then
// smaller id.
func Better(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// Worse reports whether a ranks after b. It is the strict inverse of Better
// for distinct candidates.
func Worse(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.ID > b.ID
}
