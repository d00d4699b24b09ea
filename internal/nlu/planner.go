// Package nlu decides whether a keyword-activated chat message should be
// voiced, and with which text and character.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"aivoice/internal/plugin"
)

// Result is the JSON the model must answer with.
type Result struct {
	Speak     bool   `json:"speak"`
	Text      string `json:"text"`
	Character string `json:"character"`
	Reasoning string `json:"reasoning"`
}

const systemPrompt = `
You are the planner of the AI voice action in a group chat bot.
Your ONLY job is to decide whether the bot should answer the message with a
synthesized voice message and, if so, what it should say.

RULES:
1. Do NOT converse.
2. Output ONLY JSON. No markdown.
3. "speak" is true when the user asks for a voice reply, asks the bot to say
   or announce something, or names a voice character.
4. "text" is what the voice should say, in the user's language, short and
   without emoji. Empty when speak is false.
5. "character" is one of the known characters below when the user names one,
   otherwise empty. Never invent a character.
6. "reasoning" is one short sentence.

OUTPUT FORMAT:
{"speak": <bool>, "text": "<string>", "character": "<string>", "reasoning": "<string>"}

KNOWN CHARACTERS:
%s
`

type Planner struct {
	client openai.Client
	model  openai.ChatModel
	prompt string
}

func NewPlanner(client openai.Client, model string, characters []string) *Planner {
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}
	return &Planner{
		client: client,
		model:  openai.ChatModel(model),
		prompt: fmt.Sprintf(systemPrompt, strings.Join(characters, ", ")),
	}
}

var _ plugin.Planner = (*Planner)(nil)

func (p *Planner) Plan(ctx context.Context, text string) (plugin.ActionData, bool, error) {
	res, err := p.Analyze(ctx, text)
	if err != nil {
		return plugin.ActionData{}, false, err
	}
	if !res.Speak || strings.TrimSpace(res.Text) == "" {
		return plugin.ActionData{}, false, nil
	}
	return plugin.ActionData{
		Text:      res.Text,
		Character: res.Character,
		Reasoning: res.Reasoning,
	}, true, nil
}

func (p *Planner) Analyze(ctx context.Context, text string) (Result, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.prompt),
			openai.UserMessage(text),
		},
		Model: p.model,
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	content := stripFence(resp.Choices[0].Message.Content)
	if content == "" {
		return Result{}, fmt.Errorf("empty message content")
	}

	log.Debug("Planned", "data", content)

	var out Result
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Result{}, fmt.Errorf("unmarshal plan: %w (raw: %s)", err, content)
	}

	return out, nil
}

// stripFence drops a ```json fence some models add despite the prompt.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
