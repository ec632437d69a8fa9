package iris

import "github.com/angeloszaimis/iris-server/internal/dataset"

// Filter returns the records whose petal length is strictly greater than the
// query threshold, preserving their order. Without a threshold the input is
// returned unchanged.
func Filter(records []dataset.Record, q Query) []dataset.Record {
	min, ok := q.Threshold()
	if !ok {
		return records
	}

	kept := make([]dataset.Record, 0, len(records))
	for _, rec := range records {
		if rec.PetalLength > min {
			kept = append(kept, rec)
		}
	}

	return kept
}

func Project(records []dataset.Record, q Query) []Flower {
	flowers := make([]Flower, 0, len(records))
	for _, rec := range records {
		flowers = append(flowers, NewFlower(rec, q.VarietyRequested))
	}
	return flowers
}

// Select filters then projects.
func Select(records []dataset.Record, q Query) []Flower {
	return Project(Filter(records, q), q)
}
