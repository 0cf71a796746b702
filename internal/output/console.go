package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ConsoleSink renders run events for humans (text), or as machine-readable
// JSON/NDJSON on stdout.
type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json", "ndjson"
	mu     sync.Mutex
	events []Event // terminal task events, for JSON array output
}

var (
	syncedColor  = color.New(color.FgGreen)
	failedColor  = color.New(color.FgRed)
	skippedColor = color.New(color.FgYellow)
)

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{
		writer: w,
		format: format,
	}
}

func (s *ConsoleSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(e)
}

func (s *ConsoleSink) writeLocked(e Event) error {
	switch s.format {
	case "json":
		// Aggregate terminal task outcomes only; lifecycle noise stays out of
		// the JSON array.
		if e.Type == EventTaskState && e.Terminal {
			s.events = append(s.events, e)
		}
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		if err := encoder.Encode(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		return s.writeText(e)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeText(e Event) error {
	switch e.Type {
	case EventTaskState:
		if !e.Terminal {
			return nil
		}
		c := statusColor(e.State)
		if _, err := c.Fprintf(s.writer, "[%s]", e.State); err != nil {
			return err
		}
		line := fmt.Sprintf(" %s (%s)", e.Name, e.Model)
		if e.Implicit {
			line += " [implicit]"
		}
		if e.Error != "" {
			line += fmt.Sprintf(" - %s", e.Error)
		}
		if e.Cause != "" {
			line += fmt.Sprintf(" - caused by %s", e.Cause)
		}
		if _, err := fmt.Fprintln(s.writer, line); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case EventRunFinished:
		if _, err := fmt.Fprintf(s.writer, "Done: %d synced, %d failed, %d skipped", e.Synced, e.Failed, e.Skipped); err != nil {
			return err
		}
		if e.Cancelled {
			if _, err := fmt.Fprint(s.writer, " (cancelled)"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(s.writer); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		// Discovery and plan events go to stderr via the engine's progress
		// lines; the text console only renders outcomes.
		return nil
	}
}

func statusColor(state string) *color.Color {
	switch state {
	case "SYNCED":
		return syncedColor
	case "FAILED":
		return failedColor
	default:
		return skippedColor
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.events); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
