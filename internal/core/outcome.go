package core

import "time"

// Disposition is where a processed source file ends up.
type Disposition string

const (
	DispositionImported Disposition = "imported"
	DispositionBroken   Disposition = "broken"
)

// RowResult is the outcome of one data row: a record or its errors.
type RowResult struct {
	Line   int
	Record *CanonicalRecord
	Merged bool
	Errors []ValidationError
}

// FileOutcome aggregates the row results of one source file.
type FileOutcome struct {
	BatchID    string            `json:"batch_id"`
	FileName   string            `json:"file_name"`
	Author     string            `json:"author"`
	TotalRows  int               `json:"total_rows"`
	Skipped    int               `json:"skipped_rows"` // fully empty rows
	Accepted   []CanonicalRecord `json:"-"`
	Rejected   []ValidationError `json:"-"`
	Created    int               `json:"created"`
	Merged     int               `json:"merged"`
	Structural bool              `json:"structural"`
	Duration   time.Duration     `json:"duration"`

	// Set by the batch runner after disposition and notification.
	MoveErr   error `json:"-"`
	NotifyErr error `json:"-"`
}

// Classify partitions row results into accepted records and errors.
func Classify(results []RowResult) (accepted []CanonicalRecord, rejected []ValidationError) {
	for _, r := range results {
		if len(r.Errors) > 0 {
			rejected = append(rejected, r.Errors...)
			continue
		}
		if r.Record != nil {
			accepted = append(accepted, *r.Record)
		}
	}
	SortErrors(rejected)
	return accepted, rejected
}

// Clean reports whether no row or file error occurred.
func (o FileOutcome) Clean() bool {
	return len(o.Rejected) == 0
}

// Disposition maps the clean flag to a destination.
func (o FileOutcome) Disposition() Disposition {
	if o.Clean() {
		return DispositionImported
	}
	return DispositionBroken
}

// RejectedRows returns the number of distinct rows with at least one error.
func (o FileOutcome) RejectedRows() int {
	seen := make(map[int]bool, len(o.Rejected))
	for _, e := range o.Rejected {
		seen[e.Row] = true
	}
	return len(seen)
}

// Report is the consolidated error report sent to a broken file's author.
type Report struct {
	BatchID   string
	FileName  string
	Author    string
	TotalRows int
	Accepted  int
	Errors    []ValidationError
}

// Report builds the author report for a broken file.
func (o FileOutcome) Report() Report {
	return Report{
		BatchID:   o.BatchID,
		FileName:  o.FileName,
		Author:    o.Author,
		TotalRows: o.TotalRows,
		Accepted:  len(o.Accepted),
		Errors:    o.Rejected,
	}
}

// BatchResult summarizes one run over the document library.
type BatchResult struct {
	BatchID  string        `json:"batch_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Files    []FileOutcome `json:"files"`
}

// Counts returns how many files went to each disposition.
func (b BatchResult) Counts() (imported, broken int) {
	for _, f := range b.Files {
		if f.Clean() {
			imported++
		} else {
			broken++
		}
	}
	return imported, broken
}
