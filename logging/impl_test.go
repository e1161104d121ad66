package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type User struct {
	Name string
}

type StructWithStruct struct {
	x int
	Y User
	z string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// Use the length of the first string as a weak verification of checking that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Log level.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	// Logger name.
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	// Log message.
	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])

	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	err = json.Unmarshal([]byte(expectedParts[5]), &expectedMap)
	test.That(t, err, test.ShouldBeNil)

	actualMap := make(map[string]any)
	err = json.Unmarshal([]byte(actualParts[5]), &actualMap)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"impl", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(notStdout)}, nil}

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	impl	logging/impl_test.go:67	impl Info log`)

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764Z	INFO	impl	logging/impl_test.go:71	impl infof log`)

	logger.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	impl	logging/impl_test.go:75	impl logw	{"key":"value"}`)

	logger.Infow("StructWithStruct", "key", "val", "StructWithStruct", StructWithStruct{1, User{"alice"}, "foo"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	INFO	impl	logging/impl_test.go:79	StructWithStruct	{"StructWithStruct":{"Y":{"Name":"alice"}},"key":"val"}`)

	logger.Warnw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	WARN	impl	logging/impl_test.go:83	unpaired	{"lonely":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"lvl", NewAtomicLevelAt(WARN), true, []Appender{NewWriterAppender(notStdout)}, nil}

	logger.Debug("hidden")
	logger.Info("hidden")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Warn("shown")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	WARN	lvl	logging/impl_test.go:100	shown`)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debugf("now %d", 1)
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	DEBUG	lvl	logging/impl_test.go:106	now 1`)

	level, err := LevelFromString("WARNING")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	_, err = LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSubloggerWithFields(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)

	session := logger.Sublogger("session").WithFields("session_id", "abc")
	session.Infow("frame written", "timestamp", 42)

	entries := logs.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "session")
	test.That(t, entries[0].Message, test.ShouldEqual, "frame written")
	fields := entries[0].ContextMap()
	test.That(t, fields["session_id"], test.ShouldEqual, "abc")
	test.That(t, fields["timestamp"], test.ShouldEqual, int64(42))

	child := session.Sublogger("depth")
	child.Error("boom")
	entries = logs.FilterMessage("boom").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "session.depth")
	test.That(t, entries[0].ContextMap()["session_id"], test.ShouldEqual, "abc")
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kdextract.log")
	appender := NewFileAppender(path, 1, 1)
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)

	logger.Infow("recording opened", "path", "take1.mkv")
	test.That(t, appender.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	assertLogMatches(t, bytes.NewBuffer(contents),
		`2023-10-30T13:20:47.129Z	INFO	file	logging/impl_test.go:145	recording opened	{"path":"take1.mkv"}`)
}
