// Package report implements the research → write → review workflow that
// produces a Product Requirement Document: the shared state, the four tools
// the personas use, and the personas themselves.
package report

import "sort"

// Initial values of the report fields.
const (
	DefaultReportContent = "Not written yet."
	DefaultReview        = "Review required."
)

// State is the shared state of a report run.
type State struct {
	// ResearchNotes maps a note title to its text.
	ResearchNotes map[string]string `json:"research_notes"`

	// ReportContent is the markdown report.
	ReportContent string `json:"report_content"`

	// Review is the reviewer's feedback.
	Review string `json:"review"`
}

// NewState returns the state a run starts from.
func NewState() State {
	return State{
		ResearchNotes: map[string]string{},
		ReportContent: DefaultReportContent,
		Review:        DefaultReview,
	}
}

// NoteTitles returns the note titles in sorted order.
func (s State) NoteTitles() []string {
	titles := make([]string, 0, len(s.ResearchNotes))
	for title := range s.ResearchNotes {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}
