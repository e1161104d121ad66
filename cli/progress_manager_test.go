package cli

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type fakeSpinner struct {
	mu        sync.Mutex
	text      string
	stopped   bool
	successes []string
	failures  []string
}

func (f *fakeSpinner) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSpinner) Success(message ...any) {
	f.mu.Lock()
	f.successes = append(f.successes, fmt.Sprint(message...))
	f.mu.Unlock()
	//nolint:errcheck
	_ = f.Stop()
}

func (f *fakeSpinner) Fail(message ...any) {
	f.mu.Lock()
	f.failures = append(f.failures, fmt.Sprint(message...))
	f.mu.Unlock()
	//nolint:errcheck
	_ = f.Stop()
}

func (f *fakeSpinner) UpdateText(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

type spinnerRecorder struct {
	mu       sync.Mutex
	spinners []*fakeSpinner
}

func (r *spinnerRecorder) factory() progressSpinnerFactory {
	return func(text string) (progressSpinner, error) {
		fs := &fakeSpinner{text: text}
		r.mu.Lock()
		r.spinners = append(r.spinners, fs)
		r.mu.Unlock()
		return fs, nil
	}
}

func newTestProgressManager(steps []*Step, opts ...ProgressManagerOption) (*ProgressManager, *spinnerRecorder, *bytes.Buffer) {
	var rec spinnerRecorder
	var out bytes.Buffer
	opts = append(opts, withProgressSpinnerFactory(rec.factory()))
	return NewProgressManager(&out, steps, opts...), &rec, &out
}

func batchSteps() []*Step {
	return []*Step{
		{ID: "batch", Message: "Extracting 2 recordings", CompletedMsg: "Extracted 2 recordings"},
		{ID: "a.mkv", Message: "a.mkv", IndentLevel: 1},
		{ID: "b.mkv", Message: "b.mkv", IndentLevel: 1},
	}
}

func TestGetPrefix(t *testing.T) {
	test.That(t, getPrefix(&Step{}), test.ShouldEqual, "")
	test.That(t, getPrefix(&Step{IndentLevel: 1}), test.ShouldEqual, "  → ")
	test.That(t, getPrefix(&Step{IndentLevel: 2}), test.ShouldEqual, "    → ")
}

func TestProgressManagerTopLevelStep(t *testing.T) {
	pm, rec, out := newTestProgressManager(batchSteps())
	defer pm.Stop()

	test.That(t, pm.Start("batch"), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, " …  Extracting 2 recordings\n")
	test.That(t, rec.spinners, test.ShouldBeEmpty)
	test.That(t, pm.stepMap["batch"].Status, test.ShouldEqual, StepRunning)

	test.That(t, pm.Complete("batch"), test.ShouldBeNil)
	test.That(t, pm.stepMap["batch"].Status, test.ShouldEqual, StepCompleted)
}

func TestProgressManagerChildSteps(t *testing.T) {
	pm, rec, _ := newTestProgressManager(batchSteps())
	defer pm.Stop()

	test.That(t, pm.Start("a.mkv"), test.ShouldBeNil)
	test.That(t, rec.spinners, test.ShouldHaveLength, 1)
	test.That(t, rec.spinners[0].text, test.ShouldEqual, "   → a.mkv")

	pm.UpdateText("a.mkv 50%")
	test.That(t, rec.spinners[0].text, test.ShouldEqual, "a.mkv 50%")

	test.That(t, pm.Complete("a.mkv"), test.ShouldBeNil)
	test.That(t, rec.spinners[0].successes, test.ShouldHaveLength, 1)
	test.That(t, rec.spinners[0].successes[0], test.ShouldStartWith, "   → a.mkv")
	test.That(t, pm.currentSpinner, test.ShouldBeNil)

	test.That(t, pm.Start("b.mkv"), test.ShouldBeNil)
	test.That(t, pm.Fail("b.mkv", errors.New("no calibration")), test.ShouldBeNil)
	test.That(t, rec.spinners, test.ShouldHaveLength, 2)
	test.That(t, rec.spinners[1].failures, test.ShouldResemble, []string{"   → b.mkv: no calibration"})
	test.That(t, pm.stepMap["b.mkv"].Status, test.ShouldEqual, StepFailed)

	counts := pm.Counts()
	test.That(t, counts[StepPending], test.ShouldEqual, 1)
	test.That(t, counts[StepCompleted], test.ShouldEqual, 1)
	test.That(t, counts[StepFailed], test.ShouldEqual, 1)
}

func TestProgressManagerStartReplacesSpinner(t *testing.T) {
	pm, rec, _ := newTestProgressManager(batchSteps())

	test.That(t, pm.Start("a.mkv"), test.ShouldBeNil)
	test.That(t, pm.Start("b.mkv"), test.ShouldBeNil)
	test.That(t, rec.spinners, test.ShouldHaveLength, 2)
	test.That(t, rec.spinners[0].stopped, test.ShouldBeTrue)
	test.That(t, rec.spinners[1].stopped, test.ShouldBeFalse)

	pm.Stop()
	test.That(t, rec.spinners[1].stopped, test.ShouldBeTrue)
	test.That(t, pm.currentSpinner, test.ShouldBeNil)
}

func TestProgressManagerUnknownStep(t *testing.T) {
	pm, _, _ := newTestProgressManager(batchSteps())
	for _, err := range []error{
		pm.Start("missing"),
		pm.Complete("missing"),
		pm.Fail("missing", errors.New("boom")),
	} {
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"missing"`)
	}

	pm.Add(&Step{ID: "missing", Message: "late", IndentLevel: 1})
	test.That(t, pm.Start("missing"), test.ShouldBeNil)
	test.That(t, pm.Complete("missing"), test.ShouldBeNil)
}

func TestProgressManagerDisabled(t *testing.T) {
	pm, rec, out := newTestProgressManager(batchSteps(), WithProgressOutput(false))

	test.That(t, pm.Start("batch"), test.ShouldBeNil)
	test.That(t, pm.Start("a.mkv"), test.ShouldBeNil)
	pm.UpdateText("ignored")
	test.That(t, pm.Complete("a.mkv"), test.ShouldBeNil)
	test.That(t, pm.Fail("b.mkv", errors.New("boom")), test.ShouldBeNil)
	pm.Stop()

	test.That(t, out.Len(), test.ShouldEqual, 0)
	test.That(t, rec.spinners, test.ShouldBeEmpty)
	// statuses are tracked even without output
	test.That(t, pm.stepMap["a.mkv"].Status, test.ShouldEqual, StepCompleted)
	test.That(t, pm.stepMap["b.mkv"].Status, test.ShouldEqual, StepFailed)
}

func TestProgressManagerConcurrentSteps(t *testing.T) {
	var steps []*Step
	for i := 0; i < 20; i++ {
		steps = append(steps, &Step{ID: fmt.Sprint(i), Message: fmt.Sprint(i), IndentLevel: 1})
	}
	pm, _, _ := newTestProgressManager(steps)

	var wg sync.WaitGroup
	for _, step := range steps {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			test.That(t, pm.Start(id), test.ShouldBeNil)
			test.That(t, pm.Complete(id), test.ShouldBeNil)
		}(step.ID)
	}
	wg.Wait()
	pm.Stop()
	test.That(t, pm.Counts()[StepCompleted], test.ShouldEqual, 20)
}
