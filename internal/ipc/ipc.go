// Package ipc is the local control socket used by aivoice-ctl.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/aivoice.sock"

// ReadTimeout bounds how long a connection may stay silent before its
// request is read.
var ReadTimeout = 5 * time.Second

const (
	CmdPing    = "ping"
	CmdSay     = "say"
	CmdResolve = "resolve"
)

type ControlMessage struct {
	Cmd       string `json:"cmd"`
	Text      string `json:"text,omitempty"`
	Character string `json:"character,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type Reply struct {
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Known  bool   `json:"known,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Fail(err error) Reply {
	return Reply{Error: err.Error()}
}

// StartServer accepts one request per connection until the returned
// listener is closed.
func StartServer(path string, handler func(ControlMessage) Reply) (net.Listener, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return ln, nil
}

func handleConn(conn net.Conn, handler func(ControlMessage) Reply) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))

	var msg ControlMessage
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		return
	}

	if err := json.NewEncoder(conn).Encode(handler(msg)); err != nil {
		log.Warn("Failed to answer control message", "cmd", msg.Cmd, "err", err)
	}
}

func SendCommand(path string, msg ControlMessage, timeout time.Duration) (Reply, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
