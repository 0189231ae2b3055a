// Package importer drives bulk uploads: it reads a CSV or XLSX sheet, maps its
// headers, and feeds each row to the enrollment upserter in order, collecting a
// per-row log. Only structural problems abort a run; row failures are logged
// and counted.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
)

// DefaultMaxRows bounds a single upload
const DefaultMaxRows = 10000

// BatchError aborts a run before any row is processed
type BatchError struct {
	Message string
	Err     error
}

func (e *BatchError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

func batchErrorf(format string, args ...any) *BatchError {
	return &BatchError{Message: fmt.Sprintf(format, args...)}
}

// IsBatchError reports whether err aborted a whole run
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// Batch is one upload and its batch-level fields
type Batch struct {
	Format        Format
	Filename      string
	GroupName     string
	PlanStartDate string
	Table         *Table
}

// Importer runs batches through an Upserter
type Importer struct {
	Upserter *enrollment.Upserter
	Logger   enrollment.Logger
	MaxRows  int
	now      func() time.Time
}

// NewImporter creates an importer with the default row limit and a no-op logger
func NewImporter(u *enrollment.Upserter) *Importer {
	return &Importer{
		Upserter: u,
		Logger:   enrollment.NopLogger{},
		MaxRows:  DefaultMaxRows,
		now:      time.Now,
	}
}

// SetLogger sets the logger; nil restores the no-op logger
func (im *Importer) SetLogger(l enrollment.Logger) {
	if l == nil {
		l = enrollment.NopLogger{}
	}
	im.Logger = l
}

// ReadFile loads a sheet from disk into a batch of the given format
func ReadFile(path string, format Format) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, &BatchError{Message: "file unreadable", Err: err}
	}
	defer f.Close()

	table, err := ReadTable(f, path)
	if err != nil {
		return Batch{}, &BatchError{Message: "file unreadable", Err: err}
	}
	return Batch{Format: format, Filename: filepath.Base(path), Table: table}, nil
}

// Run validates the batch and then processes every row in order
func (im *Importer) Run(ctx context.Context, b Batch) (*Report, error) {
	cols, err := im.preflight(ctx, b)
	if err != nil {
		im.Logger.Errorf("import %s rejected: %v", b.Filename, err)
		return nil, err
	}

	report := &Report{
		Format:    b.Format,
		Filename:  b.Filename,
		Group:     b.GroupName,
		Rows:      len(b.Table.Rows),
		StartedAt: im.now(),
	}
	im.Logger.Infof("importing %d %s row(s) from %s", report.Rows, b.Format, b.Filename)

	for _, row := range b.Table.Rows {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("import interrupted at row %d: %w", row.Number, err)
		}
		res, err := im.processRow(ctx, b, cols, row)
		im.record(report, row.Number, res, err)
	}

	report.FinishedAt = im.now()
	im.Logger.Infof("import %s finished: %d processed, %d errors", b.Filename, report.Processed, report.Errors)
	return report, nil
}

func (im *Importer) preflight(ctx context.Context, b Batch) (columns, error) {
	if b.Table == nil {
		return nil, batchErrorf("file unreadable: no table")
	}
	if _, err := ParseFormat(string(b.Format)); err != nil {
		return nil, &BatchError{Message: "invalid format", Err: err}
	}

	cols := mapHeaders(b.Table.Headers)
	if missing := cols.missing(b.Format.RequiredFields()); len(missing) > 0 {
		return nil, batchErrorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	if len(b.Table.Rows) == 0 {
		return nil, batchErrorf("file contains no data rows")
	}
	if im.MaxRows > 0 && len(b.Table.Rows) > im.MaxRows {
		return nil, batchErrorf("file has %d data rows; the limit is %d", len(b.Table.Rows), im.MaxRows)
	}

	if b.Format == FormatGroup {
		var missing []string
		if strings.TrimSpace(b.GroupName) == "" {
			missing = append(missing, "group")
		}
		if strings.TrimSpace(b.PlanStartDate) == "" {
			missing = append(missing, "plan start date")
		}
		if len(missing) > 0 {
			return nil, batchErrorf("missing required field(s): %s", strings.Join(missing, ", "))
		}
		if _, ok := dateutil.Parse(b.PlanStartDate); !ok {
			return nil, batchErrorf("invalid plan start date %q", b.PlanStartDate)
		}
		_, err := im.Upserter.Store.FindGroupByName(ctx, b.GroupName)
		if errors.Is(err, store.ErrNotFound) {
			return nil, batchErrorf("group %q not found", b.GroupName)
		}
		if err != nil {
			return nil, &BatchError{Message: "look up group", Err: err}
		}
	}
	return cols, nil
}

func (im *Importer) processRow(ctx context.Context, b Batch, cols columns, row Row) (*enrollment.Result, error) {
	if b.Format == FormatDependents {
		return im.Upserter.AddDependent(ctx, dependentRequest(cols, row))
	}
	req, err := enrollmentRequest(b.Format, b, cols, row)
	if err != nil {
		return nil, &enrollment.RowError{Kind: enrollment.KindValidation, Field: string(FieldCoverage), Message: err.Error()}
	}
	return im.Upserter.Enroll(ctx, req)
}

// record appends the row outcome: the result or error line first, then per-person notes
func (im *Importer) record(r *Report, row int, res *enrollment.Result, err error) {
	if err != nil {
		r.Errors++
		r.add(row, enrollment.KindOf(err), err.Error())
		im.Logger.Warnf("row %d: %v", row, err)
	} else {
		r.Processed++
		r.add(row, enrollment.KindProcessed, res.Message)
	}
	if res != nil {
		for _, n := range res.Notes {
			r.add(row, n.Kind, n.Message)
		}
	}
}
