// Package recordio reads and writes the tab-separated record files used by
// the command line tools. The dialect follows MySQL's batch output: one row
// per line, NULL for absent values, True/False for booleans, and backslash
// escapes for tab, newline, carriage return and backslash.
package recordio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

const null = "NULL"

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n", `\r`, "\r")
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }

func formatFlag(f model.Flag) string {
	switch f {
	case model.FlagTrue:
		return "True"
	case model.FlagFalse:
		return "False"
	default:
		return null
	}
}

func parseFlag(s string) (model.Flag, error) {
	switch s {
	case "True", "true", "1":
		return model.FlagTrue, nil
	case "False", "false", "0":
		return model.FlagFalse, nil
	case null, "":
		return model.FlagUnknown, nil
	default:
		return model.FlagUnknown, fmt.Errorf("invalid boolean %q", s)
	}
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == null || s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return null
	}
	return formatFloat(*v)
}

// rowWriter writes escaped rows through a buffer. Callers Flush when done.
type rowWriter struct {
	w *bufio.Writer
}

func newRowWriter(w io.Writer, header ...string) (*rowWriter, error) {
	rw := &rowWriter{w: bufio.NewWriter(w)}
	if len(header) > 0 {
		if err := rw.write(header...); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return rw, nil
}

// write escapes every field except the NULL marker.
func (rw *rowWriter) write(fields ...string) error {
	for i, f := range fields {
		if i > 0 {
			if err := rw.w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if f != null {
			f = escape(f)
		}
		if _, err := rw.w.WriteString(f); err != nil {
			return err
		}
	}
	return rw.w.WriteByte('\n')
}

func (rw *rowWriter) Flush() error {
	return rw.w.Flush()
}

// rowReader splits lines into unescaped fields and skips blank lines.
type rowReader struct {
	s    *bufio.Scanner
	line int
}

func newRowReader(r io.Reader) *rowReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &rowReader{s: s}
}

// next returns the fields of the next non-blank row, or io.EOF.
func (rr *rowReader) next() ([]string, error) {
	for rr.s.Scan() {
		rr.line++
		text := strings.TrimRight(rr.s.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		for i, f := range fields {
			fields[i] = unescape(f)
		}
		return fields, nil
	}
	if err := rr.s.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", rr.line+1, err)
	}
	return nil, io.EOF
}

// headerIndex maps column names to positions and checks required columns.
func headerIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
