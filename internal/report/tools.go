package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/tool"
)

// Tool names.
const (
	ToolSearchWeb    = "search_web"
	ToolRecordNotes  = "record_notes"
	ToolWriteReport  = "write_report"
	ToolReviewReport = "review_report"
)

// Tools returns the four report tools. search_web delegates to searcher.
func Tools(searcher model.Searcher, logger *slog.Logger) []tool.Tool[State] {
	return []tool.Tool[State]{
		SearchWeb(searcher, logger),
		RecordNotes(logger),
		WriteReport(logger),
		ReviewReport(logger),
	}
}

// SearchWeb researches a query through a search-grounded model. It does not
// touch the shared state; search failures abort the run.
func SearchWeb(searcher model.Searcher, logger *slog.Logger) tool.Tool[State] {
	logger = orDiscard(logger)
	return tool.Func[State](ToolSearchWeb,
		"Useful for searching the web about a specific query or topic",
		[]tool.Param{
			{Name: "query", Type: "string", Description: "The query or topic to research.", Required: true},
		},
		func(ctx context.Context, tc *tool.Context[State], args map[string]any) (string, error) {
			query := args["query"].(string)
			logger.Info(fmt.Sprintf("--- Performing web search for: '%s' ---", query), "agent", tc.Agent)

			result, err := searcher.Search(ctx, query)
			if err != nil {
				return "", fmt.Errorf("search %q: %w", query, err)
			}
			return result, nil
		})
}

// RecordNotes stores notes under a title. Recording the same title again
// replaces the earlier notes.
func RecordNotes(logger *slog.Logger) tool.Tool[State] {
	logger = orDiscard(logger)
	return tool.Func[State](ToolRecordNotes,
		"Useful for recording notes on a given topic.",
		[]tool.Param{
			{Name: "notes", Type: "string", Description: "The notes to record.", Required: true},
			{Name: "notes_title", Type: "string", Description: "A title for the notes.", Required: true},
		},
		func(ctx context.Context, tc *tool.Context[State], args map[string]any) (string, error) {
			notes := args["notes"].(string)
			title := args["notes_title"].(string)
			logger.Info(fmt.Sprintf("--- Recording notes titled: '%s' ---", title), "agent", tc.Agent)

			err := tc.State.Edit(ctx, func(s *State) error {
				if s.ResearchNotes == nil {
					s.ResearchNotes = map[string]string{}
				}
				s.ResearchNotes[title] = notes
				return nil
			})
			if err != nil {
				return "", err
			}
			return "Notes recorded.", nil
		})
}

// WriteReport replaces the report content.
func WriteReport(logger *slog.Logger) tool.Tool[State] {
	logger = orDiscard(logger)
	return tool.Func[State](ToolWriteReport,
		"Useful for writing a report on a given topic.",
		[]tool.Param{
			{Name: "report_content", Type: "string", Description: "The full report in markdown.", Required: true},
		},
		func(ctx context.Context, tc *tool.Context[State], args map[string]any) (string, error) {
			content := args["report_content"].(string)
			logger.Info("--- Writing report ---", "agent", tc.Agent, "chars", len(content))

			err := tc.State.Edit(ctx, func(s *State) error {
				s.ReportContent = content
				return nil
			})
			if err != nil {
				return "", err
			}
			return "Report written.", nil
		})
}

// ReviewReport replaces the review.
func ReviewReport(logger *slog.Logger) tool.Tool[State] {
	logger = orDiscard(logger)
	return tool.Func[State](ToolReviewReport,
		"Useful for reviewing a report and providing feedback.",
		[]tool.Param{
			{Name: "review", Type: "string", Description: "The review feedback.", Required: true},
		},
		func(ctx context.Context, tc *tool.Context[State], args map[string]any) (string, error) {
			review := args["review"].(string)
			logger.Info("--- Reviewing report ---", "agent", tc.Agent)

			err := tc.State.Edit(ctx, func(s *State) error {
				s.Review = review
				return nil
			})
			if err != nil {
				return "", err
			}
			return "Report reviewed.", nil
		})
}

// orDiscard returns logger, or a logger that drops everything when nil.
func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
