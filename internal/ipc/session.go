package ipc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait   = 10 * time.Second
	sendBufSize = 16
)

// session 一个WebSocket连接。所有写操作都经过 writeLoop
type session struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	send   chan Event
	log    zerolog.Logger

	closeOnce sync.Once
}

func newSession(parent context.Context, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan Event, sendBufSize),
		log:    logger.With().Str("session", id).Logger(),
	}
}

// emit 排队一个事件，会话关闭后直接丢弃
func (s *session) emit(ev Event) bool {
	if s.ctx.Err() != nil {
		s.log.Debug().Str("type", string(ev.Type)).Msg("Session closed, dropping event")
		return false
	}
	select {
	case s.send <- ev:
		return true
	case <-s.ctx.Done():
		s.log.Debug().Str("type", string(ev.Type)).Msg("Session closed, dropping event")
		return false
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to write event, closing session")
				s.close()
				return
			}
		}
	}
}

// close 取消会话上下文并关闭连接，可重复调用
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}
