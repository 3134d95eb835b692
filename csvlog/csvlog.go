// Package csvlog writes the agent's polled samples to an append-only
// CSV file: one row per poll, a timestamp column followed by one
// column per registered channel.
package csvlog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"dloggcsv.dev/value"
)

const (
	defaultSep        = ";"
	newline           = "\n"
	errMarker         = "NaN"
	defaultTimeLayout = "2006-01-02 15:04:05"
)

// Writer appends CSV rows to an underlying file, flushing after every
// row so a crash loses at most the row in progress.
type Writer struct {
	w          *bufio.Writer
	sep        string
	timeLayout string
}

// NewWriter wraps w, using the default field delimiter (";") and
// timestamp layout ("2006-01-02 15:04:05", the Go rendering of
// "%Y-%m-%d %H:%M:%S"). Call WriteHeader once before the first
// WriteRow when starting a fresh or empty output file.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), sep: defaultSep, timeLayout: defaultTimeLayout}
}

// SetDelimiter overrides the field delimiter. Must be called before
// WriteHeader.
func (w *Writer) SetDelimiter(sep string) { w.sep = sep }

// SetTimeLayout overrides the Go time layout used to render each
// row's timestamp column.
func (w *Writer) SetTimeLayout(layout string) { w.timeLayout = layout }

// WriteHeader writes the timestamp column title followed by one
// quoted title per channel name, in order.
func (w *Writer) WriteHeader(timeHeader string, channelNames []string) error {
	appendQuoted(w.w, timeHeader)
	for _, name := range channelNames {
		w.w.WriteString(w.sep)
		appendQuoted(w.w, name)
	}
	w.w.WriteString(newline)
	return w.flush()
}

// WriteRow appends one data row: the timestamp followed by one value
// per entry in vals, in the same order channel names were written in
// WriteHeader. A value carrying an error kind is rendered as the fixed
// NaN marker rather than propagating the error into the row.
func (w *Writer) WriteRow(ts time.Time, vals []value.Value) error {
	w.w.WriteString(ts.Format(w.timeLayout))
	for _, v := range vals {
		w.w.WriteString(w.sep)
		w.w.WriteString(formatValue(v))
	}
	w.w.WriteString(newline)
	return w.flush()
}

func (w *Writer) flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("csvlog: write: %w", err)
	}
	return nil
}

// formatValue renders a single cell: %.15e for doubles (matching the
// original agent's %.15le), plain decimal for longs, and the fixed
// error marker for anything that failed to resolve.
func formatValue(v value.Value) string {
	if f, ok := v.Double(); ok {
		return fmt.Sprintf("%.15e", f)
	}
	if l, ok := v.Long(); ok {
		return fmt.Sprintf("%d", l)
	}
	if s, ok := v.Text(); ok {
		return quote(s)
	}
	return errMarker
}

// appendQuoted writes s to w enclosed in double quotes, doubling any
// embedded double quote, matching the original agent's main_appendString.
func appendQuoted(w *bufio.Writer, s string) {
	w.WriteString(quote(s))
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(s, `"`, `""`))
	b.WriteByte('"')
	return b.String()
}

// StrftimeToGoLayout translates the small subset of strftime
// directives the configuration's timeFormat directive is documented to
// accept (%Y %m %d %H %M %S) into a Go reference-time layout. Any
// other directive is passed through unchanged, so unsupported formats
// degrade to an odd-looking but non-crashing timestamp rather than an
// error.
func StrftimeToGoLayout(format string) string {
	r := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)
	return r.Replace(format)
}
