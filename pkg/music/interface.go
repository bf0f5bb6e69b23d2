package music

import (
	"context"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

// Source 歌词站点适配器通用接口
type Source interface {
	// Search 搜索歌词。网络或解析失败时返回 false，不返回错误
	Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool)

	// Source 返回适配器对应的歌词来源
	Source() lyricdoc.Source
}

// Resolver 歌词解析接口（扩展接口，包含按视频标题的组合查询）
type Resolver interface {
	Resolve(ctx context.Context, song, artist string) (*lyricdoc.Document, bool)
	ResolveTitle(ctx context.Context, videoTitle string) (*lyricdoc.Document, bool)
}
