package net

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"EmojiArt/internal/state"
)

// Viewer follows a share server and reports each newer document.
type Viewer struct {
	OnDocument func(Message, state.Model)
	Logger     *slog.Logger
	Dialer     *websocket.Dialer
}

// Run connects to the share link and delivers documents until ctx is done
// or the host goes away. A cancelled ctx is not an error.
func (v *Viewer) Run(ctx context.Context, link string) error {
	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := v.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	addr, err := ParseShareLink(link)
	if err != nil {
		return err
	}
	conn, _, err := dialer.DialContext(ctx, "ws://"+addr+"/ws", nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()
	logger.Info("viewer connected", "host", addr)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var (
		session string
		last    uint64
	)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("host %s: %w", addr, err)
		}
		if msg.Type != MessageDocument {
			continue
		}
		if msg.Session != session {
			session, last = msg.Session, 0
		}
		if msg.Revision <= last {
			continue
		}
		m, err := state.Decode(msg.Document)
		if err != nil {
			logger.Warn("shared document rejected", "revision", msg.Revision, "error", err)
			continue
		}
		last = msg.Revision
		if v.OnDocument != nil {
			v.OnDocument(msg, m)
		}
	}
}
