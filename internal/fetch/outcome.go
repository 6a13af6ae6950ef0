package fetch

import "fmt"

// Status is the tri-state result of one orchestration attempt.
type Status int

const (
	StatusCompleted Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is reported for every processed, recognized request. Callers
// branch on Status rather than parsing text.
type Outcome struct {
	Status Status
	Title  string // set when known, for status reporting
	Reason string // set for skipped and failed outcomes
}

// Message renders the outcome as a human-readable status line.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusCompleted:
		if o.Title != "" {
			return fmt.Sprintf("Done: %s", o.Title)
		}
		return "Done"
	case StatusSkipped:
		if o.Title != "" {
			return fmt.Sprintf("Already downloaded: %s", o.Title)
		}
		return "Already downloaded"
	default:
		return fmt.Sprintf("Failed to download: %s", o.Reason)
	}
}

func completed(title string) Outcome {
	return Outcome{Status: StatusCompleted, Title: title}
}

func skippedDuplicate(title string) Outcome {
	return Outcome{Status: StatusSkipped, Title: title, Reason: "already fetched"}
}

func failedf(format string, args ...any) Outcome {
	return Outcome{Status: StatusFailed, Reason: fmt.Sprintf(format, args...)}
}
