// Package ipc is the realtime control channel: a WebSocket endpoint that takes
// track links and streams back audio, lyrics and error events.
package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/ytaudio"
	"github.com/gorilla/websocket"
)

var logger = logging.Component("ipc")

// AudioFetcher 根据链接准备音频
type AudioFetcher interface {
	Fetch(ctx context.Context, ref string) (lyricdoc.AudioAsset, error)
}

// LyricsAcquirer 获取音频对应的时间轴歌词
type LyricsAcquirer interface {
	Acquire(ctx context.Context, asset lyricdoc.AudioAsset) (*lyricdoc.Document, error)
}

// Server WebSocket 控制通道
type Server struct {
	fetcher  AudioFetcher
	acquirer LyricsAcquirer
	upgrader websocket.Upgrader
	lock     *instanceLock

	ctx    context.Context
	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]*session

	// tasksMu 保证 Close 之后不再有 tasks.Add
	tasksMu sync.Mutex
	closed  bool
	tasks   sync.WaitGroup
}

// NewServer creates the control channel. An empty lockPath skips the
// single-instance lock.
func NewServer(fetcher AudioFetcher, acquirer LyricsAcquirer, lockPath string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		fetcher:  fetcher,
		acquirer: acquirer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 播放页可能由其他来源提供
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
	if lockPath != "" {
		s.lock = newInstanceLock(lockPath)
	}
	return s
}

// Start 获取进程锁
func (s *Server) Start() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.acquire()
}

// ServeHTTP upgrades the request and runs the session until the peer leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	sess := newSession(s.ctx, conn)
	s.register(sess)
	defer s.unregister(sess)

	sess.log.Info().Str("remote", r.RemoteAddr).Msg("Client connected")

	go sess.writeLoop()
	s.readLoop(sess)
}

func (s *Server) readLoop(sess *session) {
	defer sess.close()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				sess.log.Info().Msg("Client disconnected")
			case sess.ctx.Err() != nil:
				sess.log.Debug().Msg("Session closed")
			default:
				sess.log.Warn().Err(lyricdoc.Wrap(lyricdoc.ErrTransport, "read", err)).Msg("Closing connection")
			}
			return
		}
		s.handleMessage(sess, data)
	}
}

// handleMessage 校验一条客户端消息，合法的链接交给独立的 goroutine 处理
func (s *Server) handleMessage(sess *session, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		sess.log.Debug().Err(err).Msg("Undecodable frame")
		sess.emit(errorEvent(errInvalidMessage))
		return
	}

	if msg.Type != TypeLink {
		sess.emit(errorEvent(errInvalidType))
		return
	}

	var link string
	if bytes.Equal(msg.Payload, []byte("null")) || json.Unmarshal(msg.Payload, &link) != nil {
		sess.emit(errorEvent(errInvalidPayload))
		return
	}

	if _, err := ytaudio.ParseLink(link); err != nil {
		sess.emit(errorEvent(errInvalidLink))
		return
	}

	if !s.startTask(func() { s.process(sess, link) }) {
		sess.log.Debug().Str("link", link).Msg("Server closing, link dropped")
	}
}

// startTask runs fn on its own goroutine unless Close has begun.
func (s *Server) startTask(fn func()) bool {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if s.closed {
		return false
	}
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn()
	}()
	return true
}

// process 下载音频 -> 通知音频路径 -> 获取歌词 -> 通知歌词
func (s *Server) process(sess *session, link string) {
	start := time.Now()
	ctx := sess.ctx

	asset, err := s.fetcher.Fetch(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		sess.log.Error().Err(err).Str("link", link).Msg("Failed to fetch audio")
		sess.emit(errorEvent(err.Error()))
		return
	}

	sess.log.Info().
		Str("track_id", asset.TrackID).
		Str("title", asset.Title).
		Msg("Audio ready")
	sess.emit(audioEvent(asset))

	doc, err := s.acquirer.Acquire(ctx, asset)
	if err != nil {
		if ctx.Err() != nil {
			sess.log.Info().Str("track_id", asset.TrackID).Msg("Client left before lyrics were ready")
			return
		}
		sess.log.Error().Err(err).Str("track_id", asset.TrackID).Msg("Failed to get lyrics")
		sess.emit(errorEvent(errLyricsPrefix + err.Error()))
		return
	}

	sess.log.Info().
		Str("track_id", asset.TrackID).
		Str("source", string(doc.Source)).
		Int("lines", len(doc.Lines)).
		Dur("elapsed", time.Since(start)).
		Msg("Lyrics ready")
	sess.emit(lyricsEvent(doc))
}

func (s *Server) register(sess *session) {
	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) unregister(sess *session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	s.sessionsMu.Unlock()
}

// SessionCount 当前连接数
func (s *Server) SessionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

// Close tells every client the server is going away, waits for the link
// handlers to return and releases the process lock.
func (s *Server) Close() error {
	s.cancel()

	s.sessionsMu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()

	deadline := time.Now().Add(time.Second)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, sess := range sessions {
		if err := sess.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			sess.log.Debug().Err(err).Msg("Failed to send close frame")
		}
		sess.close()
	}

	s.tasksMu.Lock()
	s.closed = true
	s.tasksMu.Unlock()
	s.tasks.Wait()

	if s.lock != nil {
		s.lock.release()
	}
	logger.Info().Int("sessions", len(sessions)).Msg("IPC server closed")
	return nil
}
