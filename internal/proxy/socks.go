// Package proxy routes the bus connection and the planner's HTTP client
// through an optional SOCKS5 proxy.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
	"golang.org/x/net/proxy"
)

func dialContext(socksAddr string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// NewSocksClient returns an HTTP client dialing through socksAddr, or
// http.DefaultClient when socksAddr is empty.
func NewSocksClient(socksAddr string) (*http.Client, error) {
	if socksAddr == "" {
		return http.DefaultClient, nil
	}
	dial, err := dialContext(socksAddr)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: dial,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   120 * time.Second,
	}, nil
}

// NewSocksDialer returns a websocket dialer through socksAddr, or the
// default dialer when socksAddr is empty.
func NewSocksDialer(socksAddr string) (*ws.Dialer, error) {
	if socksAddr == "" {
		return ws.DefaultDialer, nil
	}
	dial, err := dialContext(socksAddr)
	if err != nil {
		return nil, err
	}
	return &ws.Dialer{
		NetDialContext:   dial,
		HandshakeTimeout: 45 * time.Second,
	}, nil
}
