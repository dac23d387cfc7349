package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/sdejongh/dircompare/pkg/process"
)

// getUpdateInterval returns the progress update interval based on OS
// Windows terminals have higher latency with ANSI sequences, so we use a longer interval
func getUpdateInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

const (
	scanTemplate    = `{{ string . "phase" }} {{ counters . }} {{ string . "status" }}`
	contentTemplate = `{{ string . "phase" }} {{ bar . "[" "=" ">" " " "]" }} {{ percent . }} {{ counters . }} {{ speed . }} {{ rtime . "ETA %s" }}`
)

const (
	choiceRetry     = "Retry"
	choiceIgnore    = "Ignore"
	choiceIgnoreAll = "Ignore all"

	choiceContinue     = "Continue"
	choiceDontShowMore = "Continue and don't show this warning again"
)

// PromptFunc asks the user to pick one of items and returns its index
type PromptFunc func(label string, items []string) (int, error)

// ConsoleOptions configures a ConsoleCallback
type ConsoleOptions struct {
	// Out receives messages and progress bars (os.Stderr when nil)
	Out io.Writer

	// Interactive enables prompts for errors and warnings
	Interactive bool

	// Progress shows progress bars
	Progress bool

	// Quiet suppresses status output; errors and warnings are still printed
	Quiet bool

	Color bool

	// Prompt asks the user (a promptui selection when nil)
	Prompt PromptFunc

	// OnInterrupt is called when the user interrupts a prompt
	OnInterrupt func()
}

// IsInteractiveTerminal reports whether stdin and stderr are terminals
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// ConsoleCallback reports the progress of a comparison run on a terminal
// and asks the user how to proceed after errors
type ConsoleCallback struct {
	opts ConsoleOptions

	mu        sync.Mutex
	bar       *pb.ProgressBar
	phase     process.Phase
	objects   int
	bytes     int64
	ignoreAll bool
	termWidth int

	errColor  *color.Color
	warnColor *color.Color
}

// NewConsoleCallback creates a console callback
func NewConsoleCallback(opts ConsoleOptions) *ConsoleCallback {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.Prompt == nil {
		opts.Prompt = promptSelect
	}

	c := &ConsoleCallback{
		opts:      opts,
		errColor:  color.New(color.FgRed, color.Bold),
		warnColor: color.New(color.FgYellow),
	}
	for _, col := range []*color.Color{c.errColor, c.warnColor} {
		if opts.Color {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}

	// Detect terminal width to prevent line wrapping issues
	if file, ok := opts.Out.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			c.termWidth = width
		}
	}
	if c.termWidth == 0 {
		c.termWidth = 120
	}
	return c
}

func promptSelect(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label:    label,
		Items:    items,
		HideHelp: true,
	}
	i, _, err := prompt.Run()
	return i, err
}

func (c *ConsoleCallback) showProgress() bool {
	return c.opts.Progress && !c.opts.Quiet
}

// startBar creates the bar of the current phase
func (c *ConsoleCallback) startBar(current int64) {
	if !c.showProgress() || c.phase == process.PhaseNone {
		return
	}

	var bar *pb.ProgressBar
	switch c.phase {
	case process.PhaseComparingContent:
		bar = pb.New64(c.bytes)
		bar.SetTemplateString(contentTemplate)
		bar.Set(pb.Bytes, true)
		bar.Set("phase", "Comparing")
	default:
		bar = pb.New(max(c.objects, 0))
		bar.SetTemplateString(scanTemplate)
		bar.Set("phase", "Scanning")
	}
	bar.SetWriter(c.opts.Out)
	bar.SetRefreshRate(getUpdateInterval())
	bar.SetMaxWidth(c.termWidth)
	bar.SetCurrent(current)
	c.bar = bar.Start()
}

func (c *ConsoleCallback) stopBar() int64 {
	if c.bar == nil {
		return 0
	}
	current := c.bar.Current()
	c.bar.Finish()
	c.bar = nil
	return current
}

// print writes a message without tearing the progress bar
func (c *ConsoleCallback) print(fn func()) {
	hadBar := c.bar != nil
	current := c.stopBar()
	fn()
	if hadBar {
		c.startBar(current)
	}
}

// ReportStatus shows text next to the progress bar
func (c *ConsoleCallback) ReportStatus(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		c.bar.Set("status", truncateMiddle(text, c.termWidth/2))
	}
}

// ReportError prints the error and asks whether to retry
func (c *ConsoleCallback) ReportError(msg string, retryNumber int) process.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := process.ResponseIgnore
	c.print(func() {
		c.errColor.Fprintf(c.opts.Out, "Error: %s\n", msg)
		if c.ignoreAll || !c.opts.Interactive {
			return
		}

		label := "How do you want to proceed?"
		if retryNumber > 0 {
			label = fmt.Sprintf("How do you want to proceed? (attempt %d)", retryNumber+1)
		}
		items := []string{choiceRetry, choiceIgnore, choiceIgnoreAll}
		i, err := c.opts.Prompt(label, items)
		if err != nil {
			c.interrupted(err)
			return
		}
		switch items[i] {
		case choiceRetry:
			resp = process.ResponseRetry
		case choiceIgnoreAll:
			c.ignoreAll = true
		}
	})
	return resp
}

// ReportWarning prints an active warning. Interactive users may silence it.
func (c *ConsoleCallback) ReportWarning(msg string, active *bool) {
	if active != nil && !*active {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.print(func() {
		c.warnColor.Fprintf(c.opts.Out, "Warning: %s\n", msg)
		if !c.opts.Interactive || active == nil {
			return
		}
		items := []string{choiceContinue, choiceDontShowMore}
		i, err := c.opts.Prompt("Continue?", items)
		if err != nil {
			c.interrupted(err)
			return
		}
		if items[i] == choiceDontShowMore {
			*active = false
		}
	})
}

// ReportFatalError prints the error. The run is aborted by the engine.
func (c *ConsoleCallback) ReportFatalError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopBar()
	c.errColor.Fprintf(c.opts.Out, "Fatal error: %s\n", msg)
}

// InitNewPhase replaces the progress bar with one for phase
func (c *ConsoleCallback) InitNewPhase(objectsTotal int, bytesTotal int64, phase process.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopBar()
	c.phase = phase
	c.objects = objectsTotal
	c.bytes = bytesTotal
	c.startBar(0)
}

// UpdateProcessedData advances the bar. Scanning counts objects,
// content comparison counts bytes.
func (c *ConsoleCallback) UpdateProcessedData(objectsDelta int, bytesDelta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar == nil {
		return
	}
	if c.phase == process.PhaseComparingContent {
		c.bar.Add64(bytesDelta)
	} else {
		c.bar.Add(objectsDelta)
	}
}

// Finish removes the progress bar
func (c *ConsoleCallback) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopBar()
	c.phase = process.PhaseNone
}

func (c *ConsoleCallback) interrupted(err error) {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		if c.opts.OnInterrupt != nil {
			c.opts.OnInterrupt()
		}
		return
	}
	fmt.Fprintf(c.opts.Out, "Prompt failed: %v\n", err)
}

// truncateMiddle shortens s to width runes by replacing its middle with "..."
func truncateMiddle(s string, width int) string {
	r := []rune(s)
	if width < 5 || len(r) <= width {
		return s
	}
	keep := width - 3
	head := keep / 2
	return string(r[:head]) + "..." + string(r[len(r)-(keep-head):])
}
