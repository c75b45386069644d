package domain

import (
	"fmt"
	"strings"
)

// DataIntegrityError reports malformed or out-of-range input rows.
// It aborts the run and carries the offending row identifiers so the
// caller can point at the exact records that need fixing.
type DataIntegrityError struct {
	Stage  string
	RowIDs []string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	ids := strings.Join(e.RowIDs, ", ")
	if len(e.RowIDs) > 10 {
		ids = strings.Join(e.RowIDs[:10], ", ") + fmt.Sprintf(" (+%d more)", len(e.RowIDs)-10)
	}
	return fmt.Sprintf("%s: data integrity violation (%s): rows [%s]", e.Stage, e.Reason, ids)
}

// InsufficientDataError reports a stage that lacks enough rows or
// variance to fit. Stages with a documented degraded fallback log it
// and proceed; stages without one surface it to the caller.
type InsufficientDataError struct {
	Stage  string
	Needed int
	Got    int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Needed > 0 {
		return fmt.Sprintf("%s: insufficient data (%s): need %d, got %d", e.Stage, e.Reason, e.Needed, e.Got)
	}
	return fmt.Sprintf("%s: insufficient data: %s", e.Stage, e.Reason)
}
