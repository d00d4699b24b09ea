package plugin

import (
	"context"
	"fmt"
	log "log/slog"

	"aivoice/internal/host"
	"aivoice/internal/voice"
)

// Settings is the subset of configuration the plugin consumes.
type Settings struct {
	Enabled           bool
	EnableAction      bool
	EnableCommand     bool
	DefaultCharacter  string
	Aliases           voice.AliasTable
	FilterPattern     string
	SendTextInPrivate bool
}

// Planner turns a keyword-activated chat message into action data. ok is
// false when the message should not be voiced.
type Planner interface {
	Plan(ctx context.Context, text string) (data ActionData, ok bool, err error)
}

type Plugin struct {
	enabled  bool
	resolver *voice.Resolver
	action   *Action
	command  *Command
	planner  Planner
}

// New wires the enabled components. planner may be nil, in which case chat
// messages only reach the command and actions come from the host.
func New(s Settings, out host.Messenger, planner Planner) (*Plugin, error) {
	filter, err := voice.NewTextFilter(s.FilterPattern)
	if err != nil {
		return nil, err
	}
	resolver := voice.NewResolver(s.Aliases, s.DefaultCharacter)

	p := &Plugin{
		enabled:  s.Enabled,
		resolver: resolver,
		planner:  planner,
	}
	if s.EnableAction {
		p.action = NewAction(out, resolver, filter, s.SendTextInPrivate)
	}
	if s.EnableCommand {
		p.command = NewCommand(out, resolver, filter)
	}
	return p, nil
}

func (p *Plugin) Resolver() *voice.Resolver {
	return p.resolver
}

// Components lists what should be registered with the host.
func (p *Plugin) Components() []ComponentInfo {
	if !p.enabled {
		return nil
	}
	var out []ComponentInfo
	if p.action != nil {
		out = append(out, p.action.Info())
	}
	if p.command != nil {
		out = append(out, p.command.Info())
	}
	return out
}

// HandleMessage routes a chat message: the command pattern first, then the
// keyword activated action when a planner is present.
func (p *Plugin) HandleMessage(ctx context.Context, msg host.Message) (bool, error) {
	if !p.enabled {
		return false, nil
	}

	if p.command != nil {
		if m, ok := p.command.Match(msg.Text); ok {
			_, err := p.command.Execute(ctx, msg, m)
			return true, err
		}
	}

	if p.action == nil || p.planner == nil || !p.action.Activated(msg.Text) {
		return false, nil
	}

	data, ok, err := p.planner.Plan(ctx, msg.Text)
	if err != nil {
		return false, fmt.Errorf("plan voice action: %w", err)
	}
	if !ok {
		log.Debug("Planner declined voice action", "stream", msg.Stream.String())
		return false, nil
	}
	_, err = p.action.Execute(ctx, msg.Stream, data)
	return true, err
}

// HandleAction runs a host-planned action invocation.
func (p *Plugin) HandleAction(ctx context.Context, stream host.ChatStream, name string, args map[string]any) (string, error) {
	if !p.enabled || p.action == nil || name != ActionName {
		return "", fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return p.action.Execute(ctx, stream, ActionDataFromArgs(args))
}
