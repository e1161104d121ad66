package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"golang.org/x/term"

	"github.com/kdlab/kdextract/logging"
)

const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 3
)

// printf prints a message with a newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

// showProgress reports whether spinners and progress bars should be drawn: not with --quiet, and
// only when the app writes to a terminal.
func showProgress(c *cli.Context) bool {
	return !c.Bool(generalFlagQuiet) && isTerminal(c.App.Writer)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newLogger returns a logger writing to the app's error output, at debug level when --debug is set.
// With --log-file entries are also appended to a rotated file, which the returned func closes.
func newLogger(c *cli.Context) (logging.Logger, func()) {
	logger := logging.NewBlankLogger("kdextract")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.INFO)
	}
	path := c.Path(generalFlagLogFile)
	if path == "" {
		return logger, func() {}
	}
	file := logging.NewFileAppender(path, logFileMaxSizeMB, logFileMaxBackups)
	logger.AddAppender(file)
	return logger, func() {
		goutils.UncheckedError(logger.Sync())
		goutils.UncheckedError(file.Close())
	}
}
