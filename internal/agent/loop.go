// Package agent implements the tool-calling conversation loops and their
// dispatchers: one loop per capability domain (customer, roadmap, impact)
// and an orchestrator loop whose tools route to the domain loops.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evergreenhq/evergreen/internal/gemini"
)

// defaultMaxTurns bounds tool round-trips per query. A model that keeps
// emitting calls is cut off with a terminal reply instead of looping forever.
const defaultMaxTurns = 8

const maxTurnsReply = "I wasn't able to complete this request within the allowed number of steps. Please try rephrasing or splitting it up."

// ChatSession is one conversation with the model. *gemini.Chat satisfies it.
type ChatSession interface {
	Send(ctx context.Context, parts ...gemini.Part) (gemini.Content, error)
}

// ChatStarter opens a fresh model conversation for the given system
// instruction and tool set.
type ChatStarter func(system string, tools []gemini.Tool) ChatSession

// Agent drives the turn-by-turn protocol for one capability domain: send the
// user message, execute the model's tool calls through the dispatcher, and
// return the model's final text.
type Agent struct {
	name     string
	start    func() ChatSession
	dispatch *Dispatcher
	maxTurns int
	logger   *slog.Logger
}

// newAgent wires a loop over a chat factory and a dispatcher. maxTurns <= 0
// takes the default bound.
func newAgent(name string, start func() ChatSession, dispatch *Dispatcher, maxTurns int, logger *slog.Logger) *Agent {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		name:     name,
		start:    start,
		dispatch: dispatch,
		maxTurns: maxTurns,
		logger:   logger,
	}
}

// Query runs one conversation to completion. Only the first content element
// of each model reply is inspected: a function call is executed and its
// result submitted as the next turn, anything else terminates the loop.
func (a *Agent) Query(ctx context.Context, message string) (string, error) {
	chat := a.start()

	reply, err := chat.Send(ctx, gemini.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("%s agent: %w", a.name, err)
	}

	for turn := 0; turn < a.maxTurns; turn++ {
		if len(reply.Parts) == 0 {
			return "", nil
		}
		part := reply.Parts[0]
		if part.FunctionCall == nil {
			return part.Text, nil
		}

		call := part.FunctionCall
		a.logger.Debug("tool call", "agent", a.name, "tool", call.Name)
		result := a.dispatch.Dispatch(ctx, call.Name, call.Args)

		reply, err = chat.Send(ctx, gemini.Part{FunctionResponse: &gemini.FunctionResponse{
			Name:     call.Name,
			Response: map[string]any{"result": result},
		}})
		if err != nil {
			return "", fmt.Errorf("%s agent: %w", a.name, err)
		}
	}

	a.logger.Warn("conversation exceeded turn bound", "agent", a.name, "max_turns", a.maxTurns)
	return maxTurnsReply, nil
}
