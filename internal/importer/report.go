package importer

import (
	"fmt"
	"time"

	"github.com/rgehrsitz/benadmin/internal/enrollment"
)

// Entry is one line of the import log
type Entry struct {
	Row     int             `json:"row"`
	Kind    enrollment.Kind `json:"kind"`
	Message string          `json:"message"`
}

// String formats the entry for display
func (e Entry) String() string {
	switch {
	case e.Kind == enrollment.KindProcessed:
		return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
	case e.Kind.IsError():
		return fmt.Sprintf("Row %d: error: %s", e.Row, e.Message)
	default:
		return fmt.Sprintf("Row %d: %s: %s", e.Row, e.Kind, e.Message)
	}
}

// Report is the structured outcome of an import run
type Report struct {
	Format     Format    `json:"format"`
	Filename   string    `json:"filename,omitempty"`
	Group      string    `json:"group,omitempty"`
	Rows       int       `json:"rows"`
	Processed  int       `json:"processed"`
	Errors     int       `json:"errors"`
	Entries    []Entry   `json:"entries"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *Report) add(row int, kind enrollment.Kind, message string) {
	r.Entries = append(r.Entries, Entry{Row: row, Kind: kind, Message: message})
}

// Count returns how many entries carry the kind
func (r *Report) Count(kind enrollment.Kind) int {
	n := 0
	for _, e := range r.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Details formats every entry in row order
func (r *Report) Details() []string {
	details := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		details[i] = e.String()
	}
	return details
}

// Payload is the response body returned to upload callers
type Payload struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Errors    int      `json:"errors"`
	Details   []string `json:"details"`
	Error     string   `json:"error,omitempty"`
}

// Payload renders the report for callers. A completed run is always successful;
// row failures are carried in the counts and details.
func (r *Report) Payload() Payload {
	return Payload{
		Success:   true,
		Processed: r.Processed,
		Errors:    r.Errors,
		Details:   r.Details(),
	}
}

// FailurePayload renders a batch-fatal error
func FailurePayload(err error) Payload {
	return Payload{Success: false, Details: []string{}, Error: err.Error()}
}
