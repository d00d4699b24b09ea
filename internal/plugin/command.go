package plugin

import (
	"context"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"

	"aivoice/internal/host"
	"aivoice/internal/voice"
)

const (
	CommandName    = "ai_voice_command"
	// \p{Zs} covers the full-width space typed by CJK input methods.
	CommandPattern = `^/(?:voice|ai_voice)[\s\p{Zs}]+(?P<text>.+?)(?:[\s\p{Zs}]+(?P<character>[^\s\p{Zs}]+))?$`
)

var commandRe = regexp.MustCompile(CommandPattern)

// CommandMatch holds the named groups of CommandPattern.
type CommandMatch struct {
	Text      string
	Character string
}

// Command handles "/voice <text> [character]".
type Command struct {
	out      host.Messenger
	resolver *voice.Resolver
	filter   *voice.TextFilter
}

func NewCommand(out host.Messenger, resolver *voice.Resolver, filter *voice.TextFilter) *Command {
	return &Command{out: out, resolver: resolver, filter: filter}
}

func (c *Command) Info() ComponentInfo {
	return ComponentInfo{
		Name:        CommandName,
		Kind:        KindCommand,
		Description: "将文本内容转换为AI语音并发送，支持可选音色。用法：/voice 你好 小新",
		Pattern:     CommandPattern,
		Examples:    []string{"/voice 你好，世界！", "/voice 今天天气不错 妲己", "/voice 试试 酥心御姐"},
		Intercept:   true,
	}
}

func (c *Command) Match(text string) (CommandMatch, bool) {
	sub := commandRe.FindStringSubmatch(text)
	if sub == nil {
		return CommandMatch{}, false
	}
	return CommandMatch{
		Text:      sub[commandRe.SubexpIndex("text")],
		Character: sub[commandRe.SubexpIndex("character")],
	}, true
}

func (c *Command) Execute(ctx context.Context, msg host.Message, m CommandMatch) (string, error) {
	stream := msg.Stream
	l := logPrefix(CommandName, stream)

	text := c.filter.Clean(strings.TrimSpace(m.Text))
	if text == "" {
		c.reply(ctx, l, stream, msgCommandMissingText)
		return "", fmt.Errorf("%w: command requires text", ErrMissingText)
	}

	character := c.resolver.Resolve(m.Character)

	if !stream.IsGroup() {
		l.Error("Voice command outside of a group chat")
		c.reply(ctx, l, stream, fmt.Sprintf("%s原文：%s", msgGroupOnly, text))
		return "", fmt.Errorf("%w: %s", ErrNotGroup, msgGroupOnly)
	}

	ok, err := c.out.SendCommand(ctx, stream, CommandVoiceSend, voiceArgs(text, character), false)
	if err != nil {
		l.Error("Failed to execute voice command", "err", err)
		c.reply(ctx, l, stream, fmt.Sprintf(msgCommandDispatchError, err))
		return "", fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	if !ok {
		l.Error("Voice command rejected")
		c.reply(ctx, l, stream, msgDispatchFailed)
		return "", ErrDispatchFailed
	}

	l.Info("Voice command sent", "text", text, "voice", character)
	return fmt.Sprintf(msgSent, text, character), nil
}

func (c *Command) reply(ctx context.Context, l *log.Logger, stream host.ChatStream, text string) {
	if err := c.out.SendText(ctx, stream, text); err != nil {
		l.Error("Failed to reply", "err", err)
	}
}
