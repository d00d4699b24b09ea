package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	cli "github.com/spf13/pflag"

	"aivoice/internal/bus"
	"aivoice/internal/config"
	"aivoice/internal/host"
	"aivoice/internal/ipc"
	"aivoice/internal/plugin"
)

type fakeHost struct {
	t *testing.T

	mu       sync.Mutex
	received []*bus.Envelope
	conn     *ws.Conn
	writeMu  sync.Mutex
}

func (h *fakeHost) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := (&ws.Upgrader{}).Upgrade(w, r, nil)
	if err != nil {
		h.t.Errorf("upgrade: %v", err)
		return
	}
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := bus.Parse(data)
		if err != nil {
			h.t.Errorf("host parse: %v", err)
			return
		}
		h.mu.Lock()
		h.received = append(h.received, env)
		h.mu.Unlock()

		if env.Kind == bus.KindCommand {
			h.push(bus.Envelope{From: "host", To: env.From, Kind: bus.KindAck, ReplyTo: env.ID, OK: true})
		}
	}
}

func (h *fakeHost) push(env bus.Envelope) {
	data, _ := json.Marshal(env)
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		h.t.Errorf("push: %v", err)
	}
}

// waitFor returns the n-th envelope (1-based) matching match.
func (h *fakeHost) waitFor(n int, match func(*bus.Envelope) bool) *bus.Envelope {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		seen := 0
		for _, env := range h.received {
			if match(env) {
				seen++
				if seen == n {
					h.mu.Unlock()
					return env
				}
			}
		}
		h.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	h.t.Fatalf("host never received the expected envelope")
	return nil
}

func (h *fakeHost) count(match func(*bus.Envelope) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, env := range h.received {
		if match(env) {
			n++
		}
	}
	return n
}

func kind(k bus.Kind) func(*bus.Envelope) bool {
	return func(env *bus.Envelope) bool { return env.Kind == k }
}

func startDaemon(t *testing.T) (*fakeHost, string) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")

	h := &fakeHost{t: t}
	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	socket := filepath.Join(dir, "aivoice.sock")
	cfg, err := config.Load(cli.NewFlagSet("aivoice", cli.ContinueOnError), []string{
		"--env", filepath.Join(dir, "missing.env"),
		"--bus", "ws" + strings.TrimPrefix(srv.URL, "http"),
		"--socket", socket,
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Run(ctx, cfg) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errc:
		case <-time.After(3 * time.Second):
			t.Errorf("daemon did not stop")
		}
	})

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := ipc.SendCommand(socket, ipc.ControlMessage{Cmd: ipc.CmdPing}, time.Second); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("control socket never came up")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return h, socket
}

func TestDaemonRegistersComponents(t *testing.T) {
	h, _ := startDaemon(t)

	reg := h.waitFor(1, kind(bus.KindRegister))
	var components []plugin.ComponentInfo
	if err := json.Unmarshal(reg.Payload, &components); err != nil {
		t.Fatalf("decode components: %v", err)
	}
	if reg.Name != plugin.PluginName || len(components) != 2 {
		t.Fatalf("unexpected registration: %s %+v", reg.Name, components)
	}
}

func TestDaemonVoiceCommandFromChat(t *testing.T) {
	h, _ := startDaemon(t)
	h.waitFor(1, kind(bus.KindRegister))

	stream := host.ChatStream{StreamID: "s1", Group: &host.GroupInfo{GroupID: "g1"}, User: host.UserInfo{UserID: "u1"}}
	h.push(bus.Envelope{From: "host", To: "ai_voice_plugin", Kind: bus.KindMessage, Stream: &stream, Content: "/voice 今天天气不错 妲己"})

	cmd := h.waitFor(1, kind(bus.KindCommand))
	if cmd.Name != plugin.CommandVoiceSend {
		t.Fatalf("unexpected command %q", cmd.Name)
	}
	if cmd.Args["text"] != "今天天气不错" || cmd.Args["character"] != "lucy-voice-daji" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestDaemonActionOutsideGroup(t *testing.T) {
	h, _ := startDaemon(t)
	h.waitFor(1, kind(bus.KindRegister))

	stream := host.ChatStream{StreamID: "s2", User: host.UserInfo{UserID: "u7"}}
	h.push(bus.Envelope{
		ID:     "act-1",
		From:   "host",
		To:     "ai_voice_plugin",
		Kind:   bus.KindAction,
		Name:   plugin.ActionName,
		Stream: &stream,
		Args:   map[string]any{"text": "私聊内容"},
	})

	res := h.waitFor(1, kind(bus.KindResult))
	if res.ReplyTo != "act-1" || res.OK || res.Error == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	text := h.waitFor(1, kind(bus.KindText))
	if text.Name != bus.TargetUser || text.Target != "u7" || text.Content != "私聊内容" {
		t.Fatalf("unexpected private fallback: %+v", text)
	}
}

func TestDaemonControlSocket(t *testing.T) {
	h, socket := startDaemon(t)
	h.waitFor(1, kind(bus.KindRegister))

	reply, err := ipc.SendCommand(socket, ipc.ControlMessage{Cmd: ipc.CmdResolve, Character: "小新"}, time.Second)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reply.Voice != "lucy-voice-laibixiaoxin" || !reply.Known {
		t.Fatalf("unexpected resolve reply: %+v", reply)
	}

	reply, err = ipc.SendCommand(socket, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: "测试一下", GroupID: "g9"}, 3*time.Second)
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	if !reply.OK || reply.Voice != "lucy-voice-f36" {
		t.Fatalf("unexpected say reply: %+v", reply)
	}
	cmd := h.waitFor(1, kind(bus.KindCommand))
	if cmd.Stream == nil || cmd.Stream.Group.GroupID != "g9" || cmd.Args["text"] != "测试一下" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	reply, err = ipc.SendCommand(socket, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: ""}, time.Second)
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	if reply.OK {
		t.Fatalf("expected failure without group and text: %+v", reply)
	}

	reply, err = ipc.SendCommand(socket, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: "没有群号"}, time.Second)
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	if reply.OK || !strings.Contains(reply.Error, "group_id") {
		t.Fatalf("expected group_id failure: %+v", reply)
	}
	if n := h.count(kind(bus.KindText)); n != 0 {
		t.Fatalf("unexpected text envelopes: %d", n)
	}
}
