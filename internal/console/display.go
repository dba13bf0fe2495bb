package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/izahai/SceneFit/internal/session"
	"github.com/izahai/SceneFit/internal/transcription"
)

// Recorder is the part of the session client the display drives
type Recorder interface {
	StartRecording() error
	StopAndTranscribe() <-chan session.Result
	IsRecording() bool
}

// Options controls display behavior
type Options struct {
	ClearOnStart      bool
	AppendWithNewline bool
	CopyToClipboard   bool
	StartLabel        string
	StopLabel         string
}

// Display renders transcripts and the record/stop prompt to a writer
type Display struct {
	opts   Options
	client Recorder
	out    io.Writer
	logger *slog.Logger

	// copyText replaces the system clipboard in tests
	copyText func(string) error

	mu     sync.Mutex
	buffer string
	text   string
	label  string
}

// NewDisplay creates a display bound to client. Subscribe it to the client to receive results.
func NewDisplay(logger *slog.Logger, opts Options, client Recorder, out io.Writer) *Display {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StartLabel == "" {
		opts.StartLabel = "Record"
	}
	if opts.StopLabel == "" {
		opts.StopLabel = "Stop"
	}

	return &Display{
		opts:     opts,
		client:   client,
		out:      out,
		logger:   logger,
		copyText: clipboard.WriteAll,
		label:    opts.StartLabel,
	}
}

// Toggle starts recording when idle and stops-and-submits when recording
func (d *Display) Toggle() {
	if !d.client.IsRecording() {
		if d.opts.ClearOnStart {
			d.mu.Lock()
			d.buffer = ""
			d.text = ""
			d.mu.Unlock()
		}

		if err := d.client.StartRecording(); err != nil {
			// the error event has already updated the text
			return
		}
		d.setLabel(d.opts.StopLabel)
		return
	}

	d.client.StopAndTranscribe()
	d.setLabel(d.opts.StartLabel)
}

// TranscriptReceived appends text to the display buffer
func (d *Display) TranscriptReceived(text string) {
	d.mu.Lock()
	if d.opts.AppendWithNewline && d.buffer != "" {
		d.buffer += "\n"
	}
	d.buffer += text
	d.text = d.buffer
	d.label = d.opts.StartLabel
	d.mu.Unlock()

	if d.opts.CopyToClipboard {
		if err := d.copyText(text); err != nil {
			d.logger.Warn("Failed to copy transcript to clipboard", slog.String("error", err.Error()))
		}
	}

	d.render()
}

// Error shows the failure in place of the transcript; the buffer is kept
func (d *Display) Error(err *transcription.Error) {
	d.mu.Lock()
	d.text = "[Error] " + err.Error()
	d.label = d.opts.StartLabel
	d.mu.Unlock()

	d.render()
}

// Text returns what the display currently shows
func (d *Display) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Label returns the current button label
func (d *Display) Label() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.label
}

func (d *Display) setLabel(label string) {
	d.mu.Lock()
	d.label = label
	d.mu.Unlock()

	d.render()
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.text != "" {
		fmt.Fprintf(d.out, "\n%s\n", d.text)
	}
	fmt.Fprintf(d.out, "[Enter] %s  [q] Quit\n", d.label)
}

// Run reads commands from in until EOF, "q" or ctx is done.
// An empty line toggles recording.
func (d *Display) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	d.render()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
				d.Toggle()
			case "q", "quit", "exit":
				return nil
			default:
				fmt.Fprintf(d.out, "unknown command %q\n", line)
			}
		}
	}
}
