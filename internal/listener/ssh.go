package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"golang.org/x/crypto/ssh"
)

// SshListener accepts ssh sessions without authentication. The ssh user name
// is offered to the session as the participant's name.
type SshListener struct {
	port    uint16
	cm      *ConnectionManager
	hostKey ssh.Signer
}

func NewSshListener(port uint16, cm *ConnectionManager, hostKey ssh.Signer) *SshListener {
	return &SshListener{
		port:    port,
		cm:      cm,
		hostKey: hostKey,
	}
}

func (l *SshListener) Start(ctx context.Context) error {
	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(l.hostKey)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use", l.port)
		}
		return fmt.Errorf("listening on port %d: %w", l.port, err)
	}

	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	h := &sshHandler{
		config:  config,
		accept:  l.cm.AcceptConnection,
		connCtx: connCtx,
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	slog.InfoContext(ctx, "listening for ssh", "port", l.port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				cancelConns()
				h.wg.Wait()
				return nil
			}
			slog.ErrorContext(ctx, "accepting ssh connection", "error", err)
			continue
		}

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.serve(conn)
		}()
	}
}

type sshHandler struct {
	wg      sync.WaitGroup
	config  *ssh.ServerConfig
	accept  func(context.Context, io.ReadWriter)
	connCtx context.Context
}

// serve runs one participant per connection. Further session channels on the
// same connection are refused.
func (h *sshHandler) serve(conn net.Conn) {
	ctx := h.connCtx
	defer func() { _ = conn.Close() }()

	sc, chans, reqs, err := ssh.NewServerConn(conn, h.config)
	if err != nil {
		slog.WarnContext(ctx, "ssh handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	defer func() { _ = sc.Close() }()
	go ssh.DiscardRequests(reqs)

	// Unblocks the channel loop on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = sc.Close() })
	defer stop()

	slog.InfoContext(ctx, "ssh connection established", "remote", conn.RemoteAddr(), "user", sc.User())

	served := false
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		if served {
			_ = newChan.Reject(ssh.Prohibited, "one participant per connection")
			continue
		}

		ch, requests, err := newChan.Accept()
		if err != nil {
			slog.WarnContext(ctx, "accepting ssh channel", "user", sc.User(), "error", err)
			continue
		}
		served = true

		if waitForShell(ctx, requests) {
			h.accept(ctx, &sshConn{ReadWriter: newCRLFReadWriter(ch), user: sc.User()})
		}
		_ = ch.Close()
		return
	}
}

// waitForShell answers channel requests until the client asks for a shell.
// Clients do not forward input before that. PTYs are refused so the client
// keeps local echo and line editing.
func waitForShell(ctx context.Context, requests <-chan *ssh.Request) bool {
	ready := make(chan struct{})
	go func() {
		shell := false
		for req := range requests {
			ok := req.Type == "shell" && !shell
			_ = req.Reply(ok, nil)
			if ok {
				shell = true
				close(ready)
			}
		}
	}()

	select {
	case <-ready:
		return true
	case <-ctx.Done():
		return false
	}
}

// sshConn carries the ssh user name alongside the session stream.
type sshConn struct {
	io.ReadWriter
	user string
}

func (c *sshConn) Name() string {
	return c.user
}
