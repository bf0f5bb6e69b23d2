package music

import (
	"fmt"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/azlyrics"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/genius"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/kasitime"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lrclib"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricstranslate"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/mojim"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/netease"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

// CreateSource 创建歌词站点适配器
func CreateSource(provider Provider, client *scrape.Client) (Source, error) {
	switch provider {
	case ProviderKasitime:
		return kasitime.NewClient(client), nil
	case ProviderMojim:
		return mojim.NewClient(client), nil
	case ProviderAZLyrics:
		return azlyrics.NewClient(client), nil
	case ProviderLyricsTranslate:
		return lyricstranslate.NewClient(client), nil
	case ProviderGenius:
		return genius.NewClient(client), nil
	case ProviderLRCLib:
		return lrclib.NewClient(client), nil
	case ProviderNetEase:
		return netease.NewClient(client), nil
	default:
		return nil, fmt.Errorf("unknown lyrics provider: %s", provider)
	}
}

// CreateChain 按名称顺序创建回退链，无法识别的名称会被跳过
func CreateChain(names []string, client *scrape.Client) (*Chain, error) {
	if len(names) == 0 {
		for _, p := range DefaultProviders() {
			names = append(names, string(p))
		}
	}

	var sources []Source
	seen := make(map[Provider]bool)
	for _, name := range names {
		provider, err := GetProviderByName(name)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping lyrics source")
			continue
		}
		if seen[provider] {
			continue
		}
		seen[provider] = true

		source, err := CreateSource(provider, client)
		if err != nil {
			logger.Warn().Err(err).Str("provider", string(provider)).Msg("Failed to create lyrics source")
			continue
		}
		sources = append(sources, source)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no lyrics sources available")
	}
	return NewChain(sources...), nil
}

// DefaultProviders 默认优先级：日文站点 > 中文站点 > 英文站点 > 开放API
func DefaultProviders() []Provider {
	return []Provider{
		ProviderKasitime,
		ProviderMojim,
		ProviderAZLyrics,
		ProviderLyricsTranslate,
		ProviderGenius,
		ProviderLRCLib,
		ProviderNetEase,
	}
}

// GetProviderByName 根据名称获取提供商
func GetProviderByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kasitime", "kasi-time", "歌詞タイム":
		return ProviderKasitime, nil
	case "mojim", "魔镜", "魔鏡":
		return ProviderMojim, nil
	case "azlyrics", "az":
		return ProviderAZLyrics, nil
	case "lyricstranslate", "lyrics-translate":
		return ProviderLyricsTranslate, nil
	case "genius":
		return ProviderGenius, nil
	case "lrclib":
		return ProviderLRCLib, nil
	case "netease", "网易云", "163":
		return ProviderNetEase, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}
