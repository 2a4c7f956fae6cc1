// Package incident records recoverable parsing events and fatal structural
// failures raised while reading a configuration document.
package incident

import (
	"errors"
	"fmt"
)

type Severity int

const (
	None Severity = iota
	// Informative marks a best-effort substitution that likely preserves intent.
	Informative
	// ManualActionRequired marks a substitution that changes semantics and
	// must be reviewed by the user.
	ManualActionRequired
)

func (s Severity) String() string {
	switch s {
	case Informative:
		return "Informative"
	case ManualActionRequired:
		return "ManualActionRequired"
	default:
		return "None"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Incident is attached to the model object it describes.
type Incident struct {
	Line     int      `json:"line"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func New(line int, severity Severity, title, message string) *Incident {
	return &Incident{
		Line:     line,
		Title:    title,
		Message:  message,
		Severity: severity,
	}
}

func Informational(line int, title, format string, args ...any) *Incident {
	return New(line, Informative, title, fmt.Sprintf(format, args...))
}

func ManualAction(line int, title, format string, args ...any) *Incident {
	return New(line, ManualActionRequired, title, fmt.Sprintf(format, args...))
}

func (i *Incident) String() string {
	return fmt.Sprintf("line %d: [%s] %s: %s", i.Line, i.Severity, i.Title, i.Message)
}

// ErrStructural is the sentinel wrapped by every StructuralError.
var ErrStructural = errors.New("structural failure")

// StructuralError aborts processing of the whole document.
type StructuralError struct {
	Line    int
	Element string
	Reason  string
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: <%s>: %s", e.Line, e.Element, e.Reason)
	}
	return fmt.Sprintf("<%s>: %s", e.Element, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return ErrStructural
}

func Structural(line int, element, format string, args ...any) error {
	return &StructuralError{Line: line, Element: element, Reason: fmt.Sprintf(format, args...)}
}
