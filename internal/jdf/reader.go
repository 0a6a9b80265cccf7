// Package jdf reads the delimited text files of a JDF timetable bundle.
//
// JDF files are Windows-1250 encoded, comma separated with optional double
// quoting, and every row is terminated by a semicolon. ReadFile turns such a
// file into rows of trimmed string fields; the coercion helpers in value.go
// turn single fields into typed values.
package jdf

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	// ErrFileNotFound is returned when a bundle file does not exist.
	ErrFileNotFound = errors.New("jdf: file not found")
	// ErrDecode is returned when the byte stream cannot be decoded.
	ErrDecode = errors.New("jdf: cannot decode file")
	// ErrMalformedRow is returned when the row grammar is violated.
	ErrMalformedRow = errors.New("jdf: malformed row")
)

// ReadFile decodes and tokenizes one bundle file.
func ReadFile(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	records, err := ReadRecords(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// ReadRecords decodes Windows-1250 content from r and returns its rows.
// Blank lines are skipped and every field is trimmed.
func ReadRecords(r io.Reader) ([][]string, error) {
	decoded, err := io.ReadAll(transform.NewReader(r, charmap.Windows1250.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	reader := csv.NewReader(strings.NewReader(normalizeRows(string(decoded))))
	reader.Comma = ','
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, parseErr.StartLine, parseErr.Err)
			}
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		records = append(records, record)
	}

	return records, nil
}

// normalizeRows rewrites decoded content into plain comma separated rows.
// Outside quoted fields a ';' followed only by blanks up to the end of the
// line is the row terminator and is dropped, blanks between a closing quote
// and the next delimiter are dropped, and an unquoted field holding a '"' is
// re-quoted so the quote is kept literally. Quoted fields pass through
// untouched, including any ';' or line break inside them.
func normalizeRows(content string) string {
	content = strings.TrimSpace(content)

	var out, field strings.Builder
	out.Grow(len(content))

	const (
		fieldStart = iota
		unquoted
		quoted
		afterQuoted
	)
	state := fieldStart

	endField := func() {
		if state == unquoted {
			s := field.String()
			if strings.Contains(s, `"`) {
				s = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
			}
			out.WriteString(s)
			field.Reset()
		}
		state = fieldStart
	}

	for i := 0; i < len(content); i++ {
		c := content[i]

		if state == quoted {
			if c != '"' {
				out.WriteByte(c)
				continue
			}
			if i+1 < len(content) && content[i+1] == '"' {
				out.WriteString(`""`)
				i++
				continue
			}
			out.WriteByte('"')
			state = afterQuoted
			if j := skipBlanks(content, i+1); j == len(content) || isDelimiter(content[j]) {
				i = j - 1
			}
			continue
		}

		switch c {
		case ';':
			if j := skipBlanks(content, i+1); j == len(content) || content[j] == '\r' || content[j] == '\n' {
				i = j - 1
				continue
			}
		case ',':
			endField()
			out.WriteByte(',')
			continue
		case '\r', '\n':
			endField()
			out.WriteByte('\n')
			if c == '\r' && i+1 < len(content) && content[i+1] == '\n' {
				i++
			}
			continue
		}

		switch state {
		case fieldStart:
			switch c {
			case ' ', '\t':
				out.WriteByte(c)
			case '"':
				out.WriteByte(c)
				state = quoted
			default:
				field.WriteByte(c)
				state = unquoted
			}
		case unquoted:
			field.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	endField()

	return out.String()
}

func skipBlanks(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func isDelimiter(c byte) bool {
	return c == ',' || c == ';' || c == '\r' || c == '\n'
}
