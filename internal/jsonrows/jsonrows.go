// Package jsonrows reassembles result rows into JSON documents. The first
// column of a row is the primary structure JSON; each following column whose
// name ends in "Json" carries an included structure, merged into the primary
// document as a field named by the column name without the suffix.
package jsonrows

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/kailas-cloud/structdex/internal/db"
)

// Marker suffixes the names of fragment columns.
const Marker = "Json"

// ErrNotObject signals a primary document that is not a JSON object.
var ErrNotObject = errors.New("jsonrows: primary document is not a JSON object")

// Iterator streams reassembled documents from rows. It owns rows and closes
// them when exhausted, on error, or on Close.
type Iterator struct {
	rows   db.Rows
	names  []string // fragment field names, in column order
	dest   []any
	cur    string
	err    error
	closed bool
}

// New inspects the row columns and returns an iterator over rows.
func New(rows db.Rows) (*Iterator, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(cols) == 0 {
		_ = rows.Close()
		return nil, errors.New("jsonrows: result has no columns")
	}
	names := FragmentNames(cols)

	dest := make([]any, len(cols))
	dest[0] = new(string)
	for i := 1; i <= len(names); i++ {
		dest[i] = new(*string)
	}
	for i := len(names) + 1; i < len(cols); i++ {
		dest[i] = new(any)
	}
	return &Iterator{rows: rows, names: names, dest: dest}, nil
}

// FragmentNames returns the field names of the fragment columns: the
// contiguous run of marker-suffixed columns after the first.
func FragmentNames(cols []string) []string {
	var names []string
	for _, c := range cols[1:] {
		name, ok := strings.CutSuffix(c, Marker)
		if !ok || name == "" {
			break
		}
		names = append(names, name)
	}
	return names
}

// Next advances to the next document.
func (it *Iterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			it.err = err
		}
		_ = it.Close()
		return false
	}
	if err := it.rows.Scan(it.dest...); err != nil {
		it.err = fmt.Errorf("scan row: %w", err)
		_ = it.Close()
		return false
	}

	primary := *it.dest[0].(*string)
	if len(it.names) == 0 {
		it.cur = primary
		return true
	}
	frags := make([]*string, len(it.names))
	for i := range it.names {
		frags[i] = *it.dest[i+1].(**string)
	}
	doc, err := Merge(primary, it.names, frags)
	if err != nil {
		it.err = err
		_ = it.Close()
		return false
	}
	it.cur = doc
	return true
}

// JSON returns the current document.
func (it *Iterator) JSON() string { return it.cur }

// Err returns the first error met while iterating.
func (it *Iterator) Err() error { return it.err }

// Close releases the rows. It is safe to call more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}

// Seq adapts the iterator to a range-over-func sequence. Breaking out of the
// loop closes the rows; a failure is yielded once as the final element.
func (it *Iterator) Seq() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.cur, nil) {
				return
			}
		}
		if it.err != nil {
			yield("", it.err)
		}
	}
}

// Collect drains rows into a slice of documents.
func Collect(rows db.Rows) ([]string, error) {
	it, err := New(rows)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, it.JSON())
	}
	return out, it.Err()
}

// Merge splices fragments into the primary object as trailing fields, in
// order. A nil fragment renders as null. The primary text is kept verbatim.
func Merge(primary string, names []string, fragments []*string) (string, error) {
	body := strings.TrimRight(primary, " \t\r\n")
	if !strings.HasPrefix(strings.TrimLeft(body, " \t\r\n"), "{") || !strings.HasSuffix(body, "}") {
		return "", ErrNotObject
	}
	open := body[:len(body)-1]
	empty := strings.TrimSpace(open) == "{"

	var sb strings.Builder
	sb.Grow(len(primary) + 32*len(names))
	sb.WriteString(open)
	for i, name := range names {
		if !empty || i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(name)
		sb.WriteString(`":`)
		if fragments[i] == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(*fragments[i])
		}
	}
	sb.WriteByte('}')
	return sb.String(), nil
}
