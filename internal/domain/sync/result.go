package sync

import "github.com/tradeshelf/backend/internal/domain/catalog"

// Result is the structured outcome every source processor returns.
// Successful and Failed are disjoint; Errors carries fetch-level and
// write-level failures. Processors never propagate errors past their own
// boundary in normal operation; a non-empty Errors list is how a failure
// is reported, and it is what holds back the source's checkpoint.
type Result struct {
	Successful []catalog.Record
	Failed     []catalog.Record
	Errors     []error
}

// OK reports whether the processor run completed without errors. Partial
// per-record failures leave OK true only when no error was recorded.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Merge folds another result into this one.
func (r *Result) Merge(other Result) {
	r.Successful = append(r.Successful, other.Successful...)
	r.Failed = append(r.Failed, other.Failed...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Fail records an error together with the records it sank.
func (r *Result) Fail(err error, records ...catalog.Record) {
	r.Errors = append(r.Errors, err)
	r.Failed = append(r.Failed, records...)
}

// Failure builds a result representing a processor-level failure where
// every requested identifier counts as failed.
func Failure(err error, failed []catalog.Record) Result {
	return Result{Errors: []error{err}, Failed: failed}
}

// FailedStubs turns bare identifiers into minimal failed records so the
// run report can name what was not processed.
func FailedStubs(ids []int64) []catalog.Record {
	records := make([]catalog.Record, len(ids))
	for i, id := range ids {
		records[i] = catalog.NewAppRecord(id)
	}
	return records
}
