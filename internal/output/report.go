package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ReportSink aggregates run events and writes a Markdown summary on Close.
// Explicitly selected models and auto-included dependencies are reported in
// separate sections so the user can distinguish what they asked for from what
// the sync required.
type ReportSink struct {
	path string
	file *os.File
	mu   sync.Mutex

	rootName  string
	rootModel string
	outcomes  []Event // terminal task.state events, plan order
	discFails []Event
	finished  Event
	started   time.Time
	now       func() time.Time
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{
		path: path,
		file: f,
		now:  time.Now,
	}, nil
}

func (s *ReportSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case EventRunStarted:
		s.rootName = e.Name
		s.rootModel = e.Model
		s.started = s.now()
	case EventModelFailed:
		s.discFails = append(s.discFails, e)
	case EventTaskState:
		if e.Terminal {
			s.outcomes = append(s.outcomes, e)
		}
	case EventRunFinished:
		s.finished = e
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder

	b.WriteString("# Model Sync Report\n\n")
	if s.rootName != "" || s.rootModel != "" {
		fmt.Fprintf(&b, "Root: **%s** (`%s`)\n\n", s.rootName, s.rootModel)
	}
	if !s.started.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n\n", s.started.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(&b, "Result: %d synced, %d failed, %d skipped",
		s.finished.Synced, s.finished.Failed, s.finished.Skipped)
	if s.finished.Cancelled {
		b.WriteString(" (run cancelled)")
	}
	b.WriteString("\n\n")

	var explicit, implicit []Event
	for _, o := range s.outcomes {
		if o.Implicit {
			implicit = append(implicit, o)
		} else {
			explicit = append(explicit, o)
		}
	}

	writeSection(&b, "Selected models", explicit)
	if len(implicit) > 0 {
		writeSection(&b, "Auto-included dependencies", implicit)
	}

	if len(s.discFails) > 0 {
		b.WriteString("## Discovery failures\n\n")
		for _, e := range s.discFails {
			fmt.Fprintf(&b, "- `%s` %s: %s\n", e.Model, e.Name, e.Error)
		}
		b.WriteString("\n")
	}

	_, writeErr := s.file.WriteString(b.String())
	closeErr := s.file.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func writeSection(b *strings.Builder, title string, outcomes []Event) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(outcomes) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	b.WriteString("| Model | State | Detail |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, o := range outcomes {
		detail := ""
		switch {
		case o.Error != "" && o.Cause != "":
			detail = fmt.Sprintf("%s (caused by %s)", o.Error, o.Cause)
		case o.Error != "":
			detail = o.Error
		case o.Cause != "":
			detail = fmt.Sprintf("caused by %s", o.Cause)
		}
		name := o.Name
		if name == "" {
			name = o.Model
		}
		fmt.Fprintf(b, "| %s (`%s`) | %s | %s |\n", name, o.Model, o.State, detail)
	}
	b.WriteString("\n")
}
