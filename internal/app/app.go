package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/internal/config"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/internal/ipc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/internal/lyrics"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/ai"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/ai/gemini"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/ai/openai"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/music"
	musiccache "github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/musicCache"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/redis"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/tencent"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/whisper"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/ytaudio"
)

const (
	shutdownTimeout = 10 * time.Second
	titleIndexFile  = "music_cache.list"
)

var logger = logging.Component("app")

// App 歌词服务：HTTP + WebSocket 入口和其背后的获取流程
type App struct {
	cfg          *config.Config
	ipcServer    *ipc.Server
	orchestrator *lyrics.Orchestrator
	fetcher      *ytaudio.Fetcher
	handler      http.Handler

	// 关闭时需要释放的资源
	closers []io.Closer
}

// New wires every component from cfg. Nothing listens until Run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	for _, dir := range []string{cfg.App.AudioDir, cfg.App.LyricsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	logger.Info().
		Str("audio_dir", cfg.App.AudioDir).
		Str("lyrics_dir", cfg.App.LyricsDir).
		Msg("Store directories")

	a := &App{cfg: cfg}

	scraper := scrape.NewClient(scrape.Options{
		Timeout:           cfg.Scrape.Timeout,
		UserAgent:         cfg.Scrape.UserAgent,
		RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
	})
	chain, err := music.CreateChain(cfg.Scrape.Sources, scraper)
	if err != nil {
		return nil, err
	}

	titles, err := a.openTitleIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.fetcher = ytaudio.NewFetcher(ytaudio.Config{
		Dir:          cfg.App.AudioDir,
		Timeout:      cfg.Fetcher.Timeout,
		AudioQuality: cfg.Fetcher.AudioQuality,
	}, titles)

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orchestrator = lyrics.NewOrchestrator(lyrics.NewStore(cfg.App.LyricsDir), chain, transcriber, lyrics.Options{
		AlignTimeout:      cfg.Transcriber.AlignTimeout,
		TranscribeTimeout: cfg.Transcriber.TranscribeTimeout,
		AITimeout:         cfg.AI.Timeout,
	})

	aiClient, err := a.newAI(ctx)
	if err != nil {
		// 查询修正是可选功能，失败时只记录
		logger.Warn().Err(err).Str("module", cfg.AI.ModuleName).Msg("AI query refinement disabled")
	} else if aiClient != nil {
		a.orchestrator.WithAI(aiClient)
		logger.Info().Str("module", aiClient.Name()).Msg("AI query refinement enabled")
	}

	a.ipcServer = ipc.NewServer(a.fetcher, a.orchestrator, cfg.App.LockPath)
	a.handler = newMux(a.ipcServer, audioHandler(a.fetcher.Path), cfg.App.WebRoot)
	return a, nil
}

// openTitleIndex Redis 可用时使用 Redis，否则使用本地文件
func (a *App) openTitleIndex(ctx context.Context) (musiccache.Index, error) {
	if a.cfg.Redis.Enabled {
		client, err := redis.NewClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err == nil {
			a.closers = append(a.closers, client)
			logger.Info().Str("addr", a.cfg.Redis.Addr).Msg("Using Redis title index")
			return musiccache.NewRedisIndex(client, a.cfg.Redis.HashKey), nil
		}
		logger.Warn().Err(err).Str("addr", a.cfg.Redis.Addr).Msg("Redis unavailable, falling back to file title index")
	}

	path := filepath.Join(filepath.Dir(a.cfg.App.LyricsDir), titleIndexFile)
	index, err := musiccache.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open title index: %w", err)
	}
	return index, nil
}

func newTranscriber(cfg *config.Config) (lyrics.Transcriber, error) {
	switch cfg.Transcriber.Backend {
	case config.BackendTencent:
		client, err := tencent.NewClient(tencent.Config{
			SecretID:      cfg.Tencent.SecretID,
			SecretKey:     cfg.Tencent.SecretKey,
			Engine:        cfg.Tencent.Engine,
			PollInterval:  cfg.Tencent.PollInterval,
			PublicBaseURL: cfg.App.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create tencent transcriber: %w", err)
		}
		logger.Info().Msg("Using Tencent Cloud ASR transcriber")
		return client, nil
	default:
		service := whisper.NewService(whisper.Config{
			Command:   cfg.Transcriber.Command,
			Model:     cfg.Transcriber.Model,
			Language:  cfg.Transcriber.Language,
			ExtraArgs: cfg.Transcriber.ExtraArgs,
		})
		logger.Info().Str("model", service.Model()).Msg("Using stable-ts transcriber")
		return service, nil
	}
}

// newAI 没有配置 api_key 时返回 nil
func (a *App) newAI(ctx context.Context) (ai.AiInterface, error) {
	if a.cfg.AI.APIKey == "" {
		return nil, nil
	}
	switch a.cfg.AI.ModuleName {
	case "openai":
		return openai.NewOpenAi(a.cfg.AI.APIKey, a.cfg.AI.Model, a.cfg.AI.BaseURL), nil
	default:
		client, err := gemini.NewGemini(ctx, a.cfg.AI.APIKey, a.cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return client, nil
	}
}

// Handler exposes the HTTP routes (for tests and embedding).
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until ctx ends, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.ipcServer.Start(); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", a.cfg.App.ListenAddr)
	if err != nil {
		a.ipcServer.Close()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.App.ListenAddr, err)
	}

	server := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listener.Addr().String()).Msg("Lyrics server listening")
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		a.ipcServer.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// WebSocket 连接已被劫持，Shutdown 不会等待它们
	a.ipcServer.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown did not finish cleanly")
	}
	return nil
}

// Close 释放外部连接
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
