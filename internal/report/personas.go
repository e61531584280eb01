package report

import (
	"github.com/dshills/agentcrew/graph/agent"
	"github.com/dshills/agentcrew/graph/model"
)

// Agent names.
const (
	ResearchAgent = "ResearchAgent"
	WriteAgent    = "WriteAgent"
	ReviewAgent   = "ReviewAgent"
)

const researchPrompt = "Your ONLY job is to research topics using your tools and record detailed notes. " +
	"You MUST NOT write the final report. You are forbidden from generating final content. " +
	"First, use your tools to find information. Second, record that information as notes. " +
	"Once you have sufficient notes, you MUST hand off control to the 'WriteAgent'."

const writePrompt = "You are the WriteAgent. Your job is to write a report in markdown format " +
	"based *only* on the provided research notes. Once done, hand off to the ReviewAgent."

const reviewPrompt = "You are the ReviewAgent. Review the report and provide feedback. " +
	"Approve it or request changes and hand off back to the WriteAgent if necessary."

// Personas returns the three agents, all driven by m.
//
//	ResearchAgent → WriteAgent
//	WriteAgent    → ReviewAgent, ResearchAgent
//	ReviewAgent   → ResearchAgent, WriteAgent
func Personas(m model.ChatModel, maxToolRounds int) []*agent.FunctionAgent[State] {
	return []*agent.FunctionAgent[State]{
		{
			Name:          ResearchAgent,
			Description:   "Useful for searching the web for information and recording notes.",
			SystemPrompt:  researchPrompt,
			Tools:         []string{ToolSearchWeb, ToolRecordNotes},
			CanHandoffTo:  []string{WriteAgent},
			Model:         m,
			MaxToolRounds: maxToolRounds,
		},
		{
			Name:          WriteAgent,
			Description:   "Useful for writing a report on a given topic.",
			SystemPrompt:  writePrompt,
			Tools:         []string{ToolWriteReport},
			CanHandoffTo:  []string{ReviewAgent, ResearchAgent},
			Model:         m,
			MaxToolRounds: maxToolRounds,
		},
		{
			Name:          ReviewAgent,
			Description:   "Useful for reviewing a report and providing feedback.",
			SystemPrompt:  reviewPrompt,
			Tools:         []string{ToolReviewReport},
			CanHandoffTo:  []string{ResearchAgent, WriteAgent},
			Model:         m,
			MaxToolRounds: maxToolRounds,
		},
	}
}
