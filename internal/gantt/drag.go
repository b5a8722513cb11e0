package gantt

import "fmt"

type Mode string

const (
	ModeMove        Mode = "move"
	ModeResizeLeft  Mode = "resize-l"
	ModeResizeRight Mode = "resize-r"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeMove, ModeResizeLeft, ModeResizeRight:
		return Mode(value), nil
	}
	return "", fmt.Errorf("unknown drag mode %q", value)
}

// Schedule is the outcome of a drag: the dates to persist for one issue.
type Schedule struct {
	IssueID   string `json:"issueId"`
	StartDate string `json:"startDate"`
	DueDate   string `json:"dueDate"`
}

// DragSession tracks one drag or resize gesture. The caller owns it and
// discards it after End.
type DragSession struct {
	window    Window
	issueID   string
	mode      Mode
	startX    float64
	origLeft  float64
	origWidth float64
	left      float64
	width     float64
}

// Begin starts a gesture on a bar currently drawn at left/width. A
// non-positive width falls back to one day.
func (w Window) Begin(issueID string, mode Mode, startX, left, width float64) (*DragSession, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if width <= 0 {
		width = float64(w.DayWidth)
	}
	return &DragSession{
		window:    w,
		issueID:   issueID,
		mode:      mode,
		startX:    startX,
		origLeft:  left,
		origWidth: width,
		left:      left,
		width:     width,
	}, nil
}

// Move updates the live geometry for pointer position x and returns it.
// Resizes never shrink the bar below one day; a left resize that would do so
// leaves the bar where it last was.
func (s *DragSession) Move(x float64) (left, width float64) {
	delta := x - s.startX
	minWidth := float64(s.window.DayWidth)

	switch s.mode {
	case ModeMove:
		s.left = s.origLeft + delta
	case ModeResizeLeft:
		if s.origWidth-delta >= minWidth {
			s.left = s.origLeft + delta
			s.width = s.origWidth - delta
		}
	case ModeResizeRight:
		s.width = max(s.origWidth+delta, minWidth)
	}
	return s.left, s.width
}

// End applies the final pointer position and snaps the geometry to dates.
func (s *DragSession) End(x float64) Schedule {
	left, width := s.Move(x)
	start, due := s.window.Inverse(left, width)
	return Schedule{IssueID: s.issueID, StartDate: start, DueDate: due}
}

func (s *DragSession) IssueID() string { return s.issueID }

func (s *DragSession) Mode() Mode { return s.mode }
