package ytaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/lrstanley/go-ytdlp"
)

func (f *Fetcher) ytdlpDownload(ctx context.Context, url, outputTemplate string) (string, error) {
	dl := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality(f.cfg.AudioQuality).
		NoPlaylist().
		ForceOverwrites().
		PrintJSON().
		Output(outputTemplate)

	result, err := dl.Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	return firstTitle(result)
}

func ytdlpTitle(ctx context.Context, url string) (string, error) {
	result, err := ytdlp.New().
		SkipDownload().
		NoPlaylist().
		PrintJSON().
		Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	return firstTitle(result)
}

func firstTitle(result *ytdlp.Result) (string, error) {
	info, err := result.GetExtractedInfo()
	if err != nil {
		return "", fmt.Errorf("yt-dlp output: %w", err)
	}
	if len(info) == 0 || info[0].Title == nil {
		return "", errors.New("yt-dlp output has no title")
	}
	return *info[0].Title, nil
}
