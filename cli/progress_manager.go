package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
)

type progressSpinner interface {
	Stop() error
	Success(...any)
	Fail(...any)
	UpdateText(string)
}

type progressSpinnerFactory func(string) (progressSpinner, error)

var defaultSpinnerFactory progressSpinnerFactory = func(text string) (progressSpinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}

// StepStatus is the state of an extraction step.
type StepStatus int

const (
	// StepPending is a step that has not started.
	StepPending StepStatus = iota
	// StepRunning is a step in progress.
	StepRunning
	// StepCompleted is a step that finished.
	StepCompleted
	// StepFailed is a step that returned an error.
	StepFailed
)

// Step is one line of progress output: a whole command at indent 0, one recording below it.
type Step struct {
	ID           string
	Message      string
	Status       StepStatus
	CompletedMsg string
	IndentLevel  int
	startTime    time.Time
}

// ProgressManager prints steps as they start and finish. Only one indented step spins at a time.
type ProgressManager struct {
	mu             sync.Mutex
	out            io.Writer
	steps          []*Step
	stepMap        map[string]*Step
	currentSpinner progressSpinner
	spinnerFactory progressSpinnerFactory
	disabled       bool
}

// ProgressManagerOption customizes a ProgressManager.
type ProgressManagerOption func(*ProgressManager)

// WithProgressOutput enables or disables terminal output.
func WithProgressOutput(enabled bool) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.disabled = !enabled
	}
}

func withProgressSpinnerFactory(factory progressSpinnerFactory) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.spinnerFactory = factory
	}
}

// NewProgressManager returns a manager of steps that writes headers to out.
func NewProgressManager(out io.Writer, steps []*Step, opts ...ProgressManagerOption) *ProgressManager {
	pterm.Success.Prefix = pterm.Prefix{Text: "✓", Style: pterm.NewStyle(pterm.FgGreen)}
	pterm.Error.Prefix = pterm.Prefix{Text: "✗", Style: pterm.NewStyle(pterm.FgRed)}
	sequence := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	for i, char := range sequence {
		sequence[i] = " " + char
	}
	pterm.DefaultSpinner.Sequence = sequence
	pterm.DefaultSpinner.Style = pterm.NewStyle(pterm.FgCyan)

	pm := &ProgressManager{
		out:            out,
		stepMap:        make(map[string]*Step, len(steps)),
		spinnerFactory: defaultSpinnerFactory,
	}
	for _, step := range steps {
		pm.addLocked(step)
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

func (pm *ProgressManager) addLocked(step *Step) {
	pm.steps = append(pm.steps, step)
	pm.stepMap[step.ID] = step
}

// Add registers another step, such as one more recording of a batch.
func (pm *ProgressManager) Add(step *Step) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.addLocked(step)
}

// getPrefix indents a step two spaces per level and marks children with an arrow.
func getPrefix(step *Step) string {
	prefix := strings.Repeat("  ", step.IndentLevel)
	if step.IndentLevel > 0 {
		prefix += "→ "
	}
	return prefix
}

func (pm *ProgressManager) step(stepID string) (*Step, error) {
	step, ok := pm.stepMap[stepID]
	if !ok {
		return nil, errors.Errorf("step %q not found", stepID)
	}
	return step, nil
}

// Start marks a step as running. Top level steps print a header; indented steps get a spinner,
// replacing the previous one.
func (pm *ProgressManager) Start(stepID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.step(stepID)
	if err != nil {
		return err
	}
	step.Status = StepRunning
	step.startTime = time.Now()
	if pm.disabled {
		return nil
	}
	if step.IndentLevel == 0 {
		_, err := fmt.Fprintf(pm.out, " …  %s\n", step.Message)
		return err
	}

	if pm.currentSpinner != nil {
		//nolint:errcheck
		_ = pm.currentSpinner.Stop()
	}
	// pterm puts a space after the spinner character
	spinner, err := pm.spinnerFactory(" " + getPrefix(step) + step.Message)
	if err != nil {
		return errors.Wrap(err, "failed to start spinner")
	}
	pm.currentSpinner = spinner
	return nil
}

func elapsedSuffix(step *Step) string {
	if step.startTime.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (%s)", time.Since(step.startTime).Round(time.Second))
}

// Complete marks a step as completed and prints its completed message.
func (pm *ProgressManager) Complete(stepID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.step(stepID)
	if err != nil {
		return err
	}
	step.Status = StepCompleted
	if pm.disabled {
		return nil
	}
	msg := step.CompletedMsg
	if msg == "" {
		msg = step.Message
	}
	msg += elapsedSuffix(step)
	if step.IndentLevel > 0 {
		msg = " " + getPrefix(step) + msg
	}
	if pm.currentSpinner != nil && step.IndentLevel > 0 {
		pm.currentSpinner.Success(msg)
		pm.currentSpinner = nil
		return nil
	}
	pterm.Success.Println(msg)
	return nil
}

// Fail marks a step as failed and prints the error.
func (pm *ProgressManager) Fail(stepID string, stepErr error) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.step(stepID)
	if err != nil {
		return err
	}
	step.Status = StepFailed
	if pm.disabled {
		return nil
	}
	msg := fmt.Sprintf("%s: %v", step.Message, stepErr)
	if step.IndentLevel > 0 {
		msg = " " + getPrefix(step) + msg
	}
	if pm.currentSpinner != nil && step.IndentLevel > 0 {
		pm.currentSpinner.Fail(msg)
		pm.currentSpinner = nil
		return nil
	}
	pterm.Error.Println(msg)
	return nil
}

// UpdateText replaces the text of the active spinner.
func (pm *ProgressManager) UpdateText(text string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.disabled || pm.currentSpinner == nil {
		return
	}
	pm.currentSpinner.UpdateText(text)
}

// Counts returns how many steps are in each status.
func (pm *ProgressManager) Counts() map[StepStatus]int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	counts := map[StepStatus]int{}
	for _, step := range pm.steps {
		counts[step.Status]++
	}
	return counts
}

// Stop stops the active spinner.
func (pm *ProgressManager) Stop() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.disabled || pm.currentSpinner == nil {
		return
	}
	//nolint:errcheck
	_ = pm.currentSpinner.Stop()
	pm.currentSpinner = nil
}
