package plugin

import (
	"context"
	"fmt"
	log "log/slog"

	"aivoice/internal/host"
	"aivoice/internal/voice"
)

const ActionName = "ai_voice_action"

// ActionData are the parameters of one action invocation.
type ActionData struct {
	Text      string `json:"text"`
	Character string `json:"character,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ActionDataFromArgs reads the loosely typed argument map the host sends.
func ActionDataFromArgs(args map[string]any) ActionData {
	str := func(key string) string {
		if v, ok := args[key].(string); ok {
			return v
		}
		return ""
	}
	return ActionData{
		Text:      str("text"),
		Character: str("character"),
		Reasoning: str("reasoning"),
	}
}

// Action speaks text chosen by the bot itself.
type Action struct {
	out               host.Messenger
	resolver          *voice.Resolver
	filter            *voice.TextFilter
	activation        Activation
	sendTextInPrivate bool
}

func NewAction(out host.Messenger, resolver *voice.Resolver, filter *voice.TextFilter, sendTextInPrivate bool) *Action {
	return &Action{
		out:      out,
		resolver: resolver,
		filter:   filter,
		activation: Activation{
			Keywords: []string{"语音", "说话", "播报", "AI语音"},
		},
		sendTextInPrivate: sendTextInPrivate,
	}
}

func (a *Action) Info() ComponentInfo {
	return ComponentInfo{
		Name:        ActionName,
		Kind:        KindAction,
		Description: "将文本内容转换为AI语音并发送到当前聊天。支持自定义音色。",
		Parameters: map[string]string{
			"text":      "要转换为AI语音并发送的文本内容，必填。",
			"character": "AI语音的音色或角色，可选，如小新、妲己、酥心御姐等。",
		},
		Require: []string{
			"当用户要求你用语音回应时使用",
			"当你想用语音播报重要信息时使用",
			"当你想让回答更生动活泼时使用",
			"当用户指定音色要求你用语音回应时使用",
		},
		Keywords: a.activation.Keywords,
	}
}

// Activated reports whether a chat message carries one of the keywords.
func (a *Action) Activated(text string) bool {
	return a.activation.Matches(text)
}

// Execute dispatches the voice command into a group stream. The returned
// string describes the outcome for the host's action history.
func (a *Action) Execute(ctx context.Context, stream host.ChatStream, data ActionData) (string, error) {
	l := logPrefix(ActionName, stream)
	l.Info("Executing voice action", "reasoning", data.Reasoning)

	character := a.resolver.Resolve(data.Character)
	text := a.filter.Clean(data.Text)

	if !stream.IsGroup() {
		l.Error("Voice action outside of a group chat")
		if a.sendTextInPrivate && text != "" && stream.User.UserID != "" {
			if err := a.out.TextToUser(ctx, stream.User.UserID, text); err != nil {
				l.Error("Failed to send private fallback", "err", err)
			}
		}
		return "", fmt.Errorf("%w: %s", ErrNotGroup, msgGroupOnly)
	}

	groupID := stream.Group.GroupID
	if text == "" {
		l.Error("Voice action is missing text")
		a.notify(ctx, l, groupID, msgActionMissingText)
		return "", fmt.Errorf("%w: action requires 'text'", ErrMissingText)
	}

	ok, err := a.out.SendCommand(ctx, stream, CommandVoiceSend, voiceArgs(text, character), false)
	if err != nil {
		l.Error("Failed to execute voice action", "err", err)
		a.notify(ctx, l, groupID, fmt.Sprintf(msgActionDispatchError, err))
		return "", fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	if !ok {
		l.Error("Voice command rejected")
		a.notify(ctx, l, groupID, msgDispatchFailed)
		return "", ErrDispatchFailed
	}

	l.Info("Voice command sent", "text", text, "voice", character)
	return fmt.Sprintf(msgSent, text, character), nil
}

func (a *Action) notify(ctx context.Context, l *log.Logger, groupID, text string) {
	if err := a.out.TextToGroup(ctx, groupID, text); err != nil {
		l.Error("Failed to notify group", "group", groupID, "err", err)
	}
}
