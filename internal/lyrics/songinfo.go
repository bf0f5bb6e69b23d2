package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const songInfoRetries = 3

type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，保持歌名原本的语言和文字。 媒体标题是：%s`, title)
}

// querySongInfo 让模型从媒体标题中提取歌名和歌手
func (o *Orchestrator) querySongInfo(ctx context.Context, mediaTitle string) (*SongInfo, error) {
	var raw string
	var err error
	for i := range songInfoRetries {
		raw, err = o.askAI(ctx, mediaTitle)
		if err == nil {
			break
		}
		logger.Warn().Err(err).Str("ai", o.aiClient.Name()).Int("attempt", i+1).Msg("Song info query failed")
		if i+1 == songInfoRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query %s after %d attempts: %w", o.aiClient.Name(), songInfoRetries, err)
	}

	var info SongInfo
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &info); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", o.aiClient.Name(), err)
	}
	info.Title = strings.TrimSpace(info.Title)
	info.Artist = strings.TrimSpace(info.Artist)
	return &info, nil
}

// askAI 单次请求，超过 AITimeout 即放弃
func (o *Orchestrator) askAI(ctx context.Context, mediaTitle string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.AITimeout)
	defer cancel()
	return o.aiClient.HandleText(ctx, formatQuerySong(mediaTitle))
}

// 模型偶尔仍会返回 ```json 包裹的内容
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
