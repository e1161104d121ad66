package extract

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// TimestampLog appends one decimal timestamp per line to a text file.
type TimestampLog struct {
	path string
	f    *os.File
	w    *bufio.Writer
	line []byte
}

// OpenTimestampLog opens path for appending, creating it if needed.
func OpenTimestampLog(path string) (*TimestampLog, error) {
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open timestamp log")
	}
	return &TimestampLog{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Append adds a timestamp.
func (l *TimestampLog) Append(timestampUsec uint64) error {
	l.line = strconv.AppendUint(l.line[:0], timestampUsec, 10)
	l.line = append(l.line, '\n')
	if _, err := l.w.Write(l.line); err != nil {
		return errors.Wrapf(err, "cannot write to %q", l.path)
	}
	return nil
}

// Close flushes and closes the log.
func (l *TimestampLog) Close() error {
	return multierr.Combine(l.w.Flush(), l.f.Close())
}

// ReadTimestampLog reads every timestamp of a log.
func ReadTimestampLog(path string) ([]uint64, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	var timestamps []uint64
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ts, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, errors.Errorf("%s:%d: invalid timestamp %q", path, lineNum, line)
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, scanner.Err()
}
