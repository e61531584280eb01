package report

import (
	"errors"
	"log/slog"

	"github.com/dshills/agentcrew/graph"
	"github.com/dshills/agentcrew/graph/agent"
	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/store"
	"github.com/dshills/agentcrew/graph/tool"
)

// DefaultRequirements is the client brief used when none is configured.
const DefaultRequirements = `
Write a Product Requirement Document (PRD) for a mobile application for a real-time translation service.
The PRD should cover key features like voice-to-text, text-to-speech, and offline mode.
Start by researching best practices for a user-friendly interface in a translation app.
`

// Deps are the collaborators of a report workflow.
type Deps struct {
	// Model drives all three personas.
	Model model.ChatModel

	// Searcher backs search_web.
	Searcher model.Searcher

	// Store persists step snapshots. Nil keeps them in memory.
	Store store.Store[State]

	// Emitter receives every event besides the run stream (logs, traces).
	Emitter emit.Emitter

	// MaxToolRounds bounds model calls per agent turn. Zero uses the
	// agent default.
	MaxToolRounds int

	EngineOptions []graph.Option
	Logger        *slog.Logger
}

// NewWorkflow builds the report workflow rooted at ResearchAgent.
func NewWorkflow(d Deps) (*agent.Workflow[State], error) {
	if d.Model == nil {
		return nil, errors.New("report: chat model is required")
	}
	if d.Searcher == nil {
		return nil, errors.New("report: searcher is required")
	}

	registry, err := tool.NewRegistry(Tools(d.Searcher, d.Logger)...)
	if err != nil {
		return nil, err
	}

	return agent.NewWorkflow(agent.WorkflowConfig[State]{
		Agents:        Personas(d.Model, d.MaxToolRounds),
		Tools:         registry,
		Root:          ResearchAgent,
		InitialState:  NewState(),
		Store:         d.Store,
		Emitter:       d.Emitter,
		EngineOptions: d.EngineOptions,
		Logger:        d.Logger,
	})
}
