package model

// DocumentResult is the per-document outcome of a batch run.
type DocumentResult struct {
	Source     string
	Extraction *Extraction
	Err        error
}

// BatchReport summarizes a batch extraction run. One document's failure never
// aborts another's; the report carries both tallies.
type BatchReport struct {
	Succeeded int
	Failed    int
	Results   []DocumentResult
}

// Add records a single document result.
func (r *BatchReport) Add(res DocumentResult) {
	r.Results = append(r.Results, res)
	if res.Err != nil {
		r.Failed++
	} else {
		r.Succeeded++
	}
}
