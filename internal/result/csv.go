package result

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/hubmapy/internal/errs"
)

var (
	intRe   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatRe = regexp.MustCompile(`^[+-]?([0-9]+\.[0-9]*|\.[0-9]+|[0-9]+)([eE][+-]?[0-9]+)?$`)
)

// utf8BOM is stripped from the start of the header if present.
const utf8BOM = "\ufeff"

// Read parses the exchange file at path.
// Returns NOT_FOUND if the file does not exist and PARSE on malformed content.
func Read(path string) (*Result, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.Wrap(errs.CodeNotFound, "result.read", fmt.Sprintf("results file %s not found", path), err)
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "result.read", fmt.Sprintf("cannot open results file %s", path), err)
	}
	defer f.Close()

	res, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Path = path
	return res, nil
}

// Decode parses exchange-format content from r.
func Decode(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.New(errs.CodeParse, "result.decode", "missing header row")
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeParse, "result.decode", "malformed header row", err)
	}

	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if name == "" {
			return nil, errs.New(errs.CodeParse, "result.decode", fmt.Sprintf("empty column name at position %d", i+1))
		}
		if seen[name] {
			return nil, errs.New(errs.CodeParse, "result.decode", fmt.Sprintf("duplicate column %q", name))
		}
		seen[name] = true
	}

	res := &Result{Columns: header, Rows: []Row{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.CodeParse, "result.decode", fmt.Sprintf("malformed row %d", len(res.Rows)+1), err)
		}

		row := make(Row, len(header))
		for i, cell := range rec {
			row[header[i]] = parseCell(cell)
		}
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

// parseCell types one cell of exchange text.
func parseCell(s string) Value {
	if s == "" {
		return nil
	}
	if intRe.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	if floatRe.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// Write writes res to path in exchange format, replacing any existing file.
func Write(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.CodeIO, "result.write", fmt.Sprintf("cannot create %s", path), err)
	}
	if err := Encode(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.CodeIO, "result.write", fmt.Sprintf("closing %s", path), err)
	}
	return nil
}

// Encode writes res to w in exchange format with CRLF line endings.
func Encode(w io.Writer, res *Result) error {
	if err := res.Validate(); err != nil {
		return errs.Wrap(errs.CodeParse, "result.encode", "invalid result", err)
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(res.Columns); err != nil {
		return errs.Wrap(errs.CodeIO, "result.encode", "writing header", err)
	}

	rec := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, c := range res.Columns {
			rec[i] = formatCell(row[c])
		}
		if err := cw.Write(rec); err != nil {
			return errs.Wrap(errs.CodeIO, "result.encode", "writing row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(errs.CodeIO, "result.encode", "flushing", err)
	}
	return nil
}

// formatCell renders a cell as exchange text. Floats always keep a
// fractional part or exponent so they read back as floats.
func formatCell(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		s := strconv.FormatFloat(val, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprint(val)
	}
}
