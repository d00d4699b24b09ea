// Package daemon connects the voice plugin to the host bus and serves the
// local control socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"slices"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aivoice/internal/bus"
	"aivoice/internal/config"
	"aivoice/internal/host"
	"aivoice/internal/ipc"
	"aivoice/internal/nlu"
	"aivoice/internal/plugin"
	"aivoice/internal/proxy"
)

type Daemon struct {
	ctx    context.Context
	cfg    config.Config
	bus    *bus.Client
	plugin *plugin.Plugin
}

// Run blocks until ctx is done or the bus can no longer be reached.
func Run(ctx context.Context, cfg config.Config) error {
	dialer, err := proxy.NewSocksDialer(cfg.Proxy)
	if err != nil {
		return err
	}

	planner, err := newPlanner(cfg)
	if err != nil {
		return err
	}

	d := &Daemon{ctx: ctx, cfg: cfg}

	client, err := bus.NewClient(ctx, bus.Config{
		Shard:     cfg.Shard,
		Host:      cfg.Host,
		Url:       cfg.BusURL,
		Reconn:    cfg.Reconnect,
		Timeout:   cfg.DispatchTimeout,
		Dialer:    dialer,
		EmitOut:   d.handleEnvelope,
		OnConnect: d.register,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	d.bus = client

	p, err := plugin.New(cfg.Settings(), client, planner)
	if err != nil {
		return err
	}
	d.plugin = p

	ln, err := ipc.StartServer(cfg.SocketPath, d.handleControl)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Info("Voice plugin ready",
		"bus", cfg.BusURL,
		"shard", cfg.Shard,
		"socket", cfg.SocketPath,
		"default_character", p.Resolver().DefaultCharacter(),
		"planner", planner != nil)

	return client.Run(ctx)
}

func newPlanner(cfg config.Config) (plugin.Planner, error) {
	if !cfg.PlannerEnabled() {
		return nil, nil
	}

	httpClient, err := proxy.NewSocksClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAI.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	characters := make([]string, 0, len(cfg.Aliases()))
	for name := range cfg.Aliases() {
		characters = append(characters, name)
	}
	slices.Sort(characters)

	return nlu.NewPlanner(openai.NewClient(opts...), cfg.OpenAI.Model, characters), nil
}

func (d *Daemon) register(context.Context) error {
	components := d.plugin.Components()
	if components == nil {
		log.Warn("Plugin disabled, registering no components")
		components = []plugin.ComponentInfo{}
	}
	return d.bus.Register(plugin.PluginName, plugin.PluginVersion, components)
}

func (d *Daemon) handleEnvelope(ctx context.Context, env *bus.Envelope) {
	switch env.Kind {
	case bus.KindMessage:
		msg, err := env.Message()
		if err != nil {
			log.Warn("Dropping message", "err", err)
			return
		}
		handled, err := d.plugin.HandleMessage(ctx, msg)
		if err != nil {
			log.Warn("Message handling failed", "stream", msg.Stream.String(), "err", err)
			return
		}
		if handled {
			log.Debug("Message handled", "stream", msg.Stream.String())
		}

	case bus.KindAction:
		if env.Stream == nil {
			_ = d.bus.Reply(env, "", errors.New("action without stream"))
			return
		}
		res, err := d.plugin.HandleAction(ctx, *env.Stream, env.Name, env.Args)
		if err != nil {
			log.Warn("Action failed", "action", env.Name, "err", err)
		}
		if err := d.bus.Reply(env, res, err); err != nil {
			log.Error("Failed to reply to action", "id", env.ID, "err", err)
		}

	default:
		log.Debug("Ignoring envelope", "kind", env.Kind, "from", env.From)
	}
}

func (d *Daemon) handleControl(msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case ipc.CmdPing:
		return ipc.Reply{OK: true, Result: "pong"}

	case ipc.CmdResolve:
		r := d.plugin.Resolver()
		return ipc.Reply{OK: true, Voice: r.Resolve(msg.Character), Known: r.Known(msg.Character)}

	case ipc.CmdSay:
		if msg.GroupID == "" {
			return ipc.Fail(errors.New("say requires group_id"))
		}
		stream := host.ChatStream{
			StreamID: "control",
			Platform: "local",
			Group:    &host.GroupInfo{GroupID: msg.GroupID},
			User:     host.UserInfo{UserID: msg.UserID},
		}

		ctx, cancel := context.WithTimeout(d.ctx, d.cfg.DispatchTimeout)
		defer cancel()

		res, err := d.plugin.HandleAction(ctx, stream, plugin.ActionName, map[string]any{
			"text":      msg.Text,
			"character": msg.Character,
			"reasoning": "control socket",
		})
		if err != nil {
			return ipc.Fail(err)
		}
		return ipc.Reply{OK: true, Result: res, Voice: d.plugin.Resolver().Resolve(msg.Character)}

	default:
		return ipc.Fail(fmt.Errorf("unknown command %q", msg.Cmd))
	}
}
