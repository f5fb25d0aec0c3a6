package gemini

import "context"

// Chat is a stateful conversation with a model: a system instruction, a tool
// set, and the accumulated history. Turns are transient and never persisted.
type Chat struct {
	client  *Client
	model   string
	system  string
	tools   []Tool
	history []Content
}

// NewChat starts a conversation with the given model, system instruction,
// and tool set.
func (c *Client) NewChat(model, system string, tools []Tool) *Chat {
	return &Chat{
		client: c,
		model:  model,
		system: system,
		tools:  tools,
	}
}

// Send appends the given parts as a user turn, requests a model reply, and
// appends that reply to the history before returning it.
func (ch *Chat) Send(ctx context.Context, parts ...Part) (Content, error) {
	ch.history = append(ch.history, Content{Role: "user", Parts: parts})

	reply, err := ch.client.GenerateContent(ctx, ch.model, ch.system, ch.tools, ch.history)
	if err != nil {
		return Content{}, err
	}
	if reply.Role == "" {
		reply.Role = "model"
	}

	ch.history = append(ch.history, reply)
	return reply, nil
}
