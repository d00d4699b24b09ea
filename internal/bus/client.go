package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"aivoice/internal/host"
)

var ErrClosed = errors.New("bus closed")

type Config struct {
	Shard   string
	Host    string
	Url     string
	Reconn  time.Duration
	Timeout time.Duration
	Dialer  *ws.Dialer

	// EmitOut receives every envelope that is not an awaited ack. It runs on
	// its own goroutine per envelope.
	EmitOut func(context.Context, *Envelope)
	// OnConnect runs after the first dial and after every reconnect.
	OnConnect func(context.Context) error
}

// Client implements host.Messenger over the bus.
type Client struct {
	ws *WebSocket

	shard   string
	host    string
	timeout time.Duration

	waitersMu sync.Mutex
	waiters   map[string]chan *Envelope

	emitOut   func(context.Context, *Envelope)
	onConnect func(context.Context) error

	done      chan struct{}
	closeOnce sync.Once
}

var _ host.Messenger = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	web, err := NewWebSocket(ctx, cfg.Url, cfg.Reconn, cfg.Dialer)
	if err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}

	if cfg.Reconn <= 0 {
		web.reconn = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		ws:        web,
		shard:     cfg.Shard,
		host:      cfg.Host,
		timeout:   timeout,
		waiters:   make(map[string]chan *Envelope),
		emitOut:   cfg.EmitOut,
		onConnect: cfg.OnConnect,
		done:      make(chan struct{}),
	}, nil
}

// Run reads the bus until ctx is done, reconnecting on connection loss.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	if err := c.connected(ctx); err != nil {
		return err
	}

	for {
		in := c.ws.Read()
		if c.isClosed() {
			return ctx.Err()
		}

		switch in.kind {
		case CONN_CLOSE, READ_FAILURE:
			if in.kind == READ_FAILURE {
				log.Error("Failed to read", "err", in.err)
			}
			log.Warn("Trying to reconnect on", "url", c.ws.url)
			if err := c.ws.TryReconn(ctx); err != nil {
				return err
			}
			if c.isClosed() {
				_ = c.ws.Close()
				return ctx.Err()
			}
			log.Info("Successfully reconnected")
			if err := c.connected(ctx); err != nil {
				log.Error("Reconnect hook failed", "err", err)
			}

		case READ_OK:
			env, err := Parse(in.msg)
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if env.To != "" && env.To != c.shard {
				continue
			}

			if env.Kind == KindAck {
				if w := c.takeWaiter(env.ReplyTo); w != nil {
					w <- env
					continue
				}
				log.Warn("Unexpected ack", "reply_to", env.ReplyTo)
				continue
			}

			if c.emitOut != nil {
				go c.emitOut(ctx, env)
			}
		}
	}
}

func (c *Client) connected(ctx context.Context) error {
	if c.onConnect == nil {
		return nil
	}
	return c.onConnect(ctx)
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Transmit stamps and writes an envelope without waiting for a reply.
func (c *Client) Transmit(env *Envelope) error {
	if c.isClosed() {
		return ErrClosed
	}
	env.From = c.shard
	if env.To == "" {
		env.To = c.host
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := c.ws.Write(data); err != nil {
		log.Error("Failed to transmit", "kind", env.Kind, "err", err)
		return err
	}
	return nil
}

// TransmitReceive writes env and waits for the matching ack.
func (c *Client) TransmitReceive(ctx context.Context, env *Envelope) (*Envelope, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	w := c.installWaiter(env.ID)
	defer c.takeWaiter(env.ID)

	if err := c.Transmit(env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-w:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("no ack for %s %q after %s", env.Kind, env.Name, c.timeout)
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) installWaiter(id string) chan *Envelope {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	w := make(chan *Envelope, 1)
	c.waiters[id] = w
	return w
}

func (c *Client) takeWaiter(id string) chan *Envelope {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	w, ok := c.waiters[id]
	if !ok {
		return nil
	}
	delete(c.waiters, id)
	return w
}

// SendCommand reports false when the host acks with ok unset.
func (c *Client) SendCommand(ctx context.Context, stream host.ChatStream, name string, args map[string]any, storeMessage bool) (bool, error) {
	ack, err := c.TransmitReceive(ctx, &Envelope{
		Kind:           KindCommand,
		Name:           name,
		Stream:         &stream,
		Args:           args,
		StorageMessage: storeMessage,
	})
	if err != nil {
		return false, err
	}
	if !ack.OK {
		log.Warn("Command rejected by host", "command", name, "reason", ack.Error)
	}
	return ack.OK, nil
}

func (c *Client) SendText(_ context.Context, stream host.ChatStream, text string) error {
	return c.Transmit(&Envelope{Kind: KindText, Name: TargetStream, Stream: &stream, Content: text})
}

func (c *Client) TextToGroup(_ context.Context, groupID, text string) error {
	return c.Transmit(&Envelope{Kind: KindText, Name: TargetGroup, Target: groupID, Content: text})
}

func (c *Client) TextToUser(_ context.Context, userID, text string) error {
	return c.Transmit(&Envelope{Kind: KindText, Name: TargetUser, Target: userID, Content: text})
}

// Register announces the plugin's components to the host.
func (c *Client) Register(name, version string, components any) error {
	payload, err := json.Marshal(components)
	if err != nil {
		return fmt.Errorf("encode components: %w", err)
	}
	return c.Transmit(&Envelope{Kind: KindRegister, Name: name, Content: version, Payload: payload})
}

// Reply answers an inbound action invocation.
func (c *Client) Reply(req *Envelope, content string, err error) error {
	resp := &Envelope{
		Kind:    KindResult,
		ReplyTo: req.ID,
		To:      req.From,
		Name:    req.Name,
		OK:      err == nil,
		Content: content,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.Transmit(resp)
}
