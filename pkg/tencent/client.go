// Package tencent transcribes songs with the Tencent Cloud file recognition
// service (ASR) and picks the recognition engine with machine translation's
// language detection (TMT).
package tencent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	asr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/asr/v20190614"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

const (
	DefaultEngine       = "16k_zh"
	DefaultPollInterval = 2 * time.Second

	// 录音文件识别请求体中音频数据的上限
	maxInlineAudio = 5 << 20

	statusSuccess = 2
	statusFailed  = 3
)

// ErrAlignUnsupported ASR 不支持对已知文本做强制对齐
var ErrAlignUnsupported = errors.New("tencent asr does not support forced alignment")

var logger = logging.Component("tencent-asr")

// TMT 语言代码 -> ASR 引擎
var engineByLanguage = map[string]string{
	"zh": "16k_zh",
	"en": "16k_en",
	"ja": "16k_ja",
	"ko": "16k_ko",
}

type asrAPI interface {
	CreateRecTaskWithContext(ctx context.Context, request *asr.CreateRecTaskRequest) (*asr.CreateRecTaskResponse, error)
	DescribeTaskStatusWithContext(ctx context.Context, request *asr.DescribeTaskStatusRequest) (*asr.DescribeTaskStatusResponse, error)
}

type tmtAPI interface {
	LanguageDetectWithContext(ctx context.Context, request *tmt.LanguageDetectRequest) (*tmt.LanguageDetectResponse, error)
}

// Config 腾讯云凭证与识别参数
type Config struct {
	SecretID  string
	SecretKey string
	// Engine is used when language detection is unavailable or inconclusive.
	Engine       string
	PollInterval time.Duration
	// PublicBaseURL, when set, lets the service download the audio itself
	// from <PublicBaseURL>/audio/<TrackID>.mp3 instead of receiving it inline.
	PublicBaseURL string
}

// Client 腾讯云语音识别客户端
type Client struct {
	asrClient asrAPI
	tmtClient tmtAPI
	cfg       Config
}

// NewClient 创建腾讯云客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, errors.New("tencent: secret id and key are required")
	}
	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 30
	cpf.HttpProfile.Endpoint = "asr.tencentcloudapi.com"

	asrClient, err := asr.NewClient(credential, regions.Shanghai, cpf)
	if err != nil {
		return nil, fmt.Errorf("new asr client: %w", err)
	}
	tmtClient, err := tmt.NewClient(credential, regions.Guangzhou, profile.NewClientProfile())
	if err != nil {
		return nil, fmt.Errorf("new tmt client: %w", err)
	}
	return newClient(asrClient, tmtClient, cfg), nil
}

func newClient(asrClient asrAPI, tmtClient tmtAPI, cfg Config) *Client {
	if cfg.Engine == "" {
		cfg.Engine = DefaultEngine
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Client{asrClient: asrClient, tmtClient: tmtClient, cfg: cfg}
}

// AlignText 不支持
func (c *Client) AlignText(ctx context.Context, asset lyricdoc.AudioAsset, text string) ([]lyricdoc.Line, error) {
	return nil, ErrAlignUnsupported
}

// TranscribeAndAlign 提交录音文件识别任务并等待句级时间戳结果
func (c *Client) TranscribeAndAlign(ctx context.Context, asset lyricdoc.AudioAsset) ([]lyricdoc.Line, error) {
	request, err := c.buildRequest(ctx, asset)
	if err != nil {
		return nil, err
	}

	resp, err := c.asrClient.CreateRecTaskWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("create rec task: %w", err)
	}
	if resp.Response == nil || resp.Response.Data == nil || resp.Response.Data.TaskId == nil {
		return nil, errors.New("create rec task: empty response")
	}
	taskID := *resp.Response.Data.TaskId

	logger.Info().
		Str("track_id", asset.TrackID).
		Uint64("task_id", taskID).
		Str("engine", *request.EngineModelType).
		Msg("ASR task created")

	return c.waitTask(ctx, taskID)
}

func (c *Client) buildRequest(ctx context.Context, asset lyricdoc.AudioAsset) (*asr.CreateRecTaskRequest, error) {
	request := asr.NewCreateRecTaskRequest()
	request.EngineModelType = common.StringPtr(c.DetectEngine(ctx, asset.Title))
	request.ChannelNum = common.Uint64Ptr(1)
	// 1: 返回词级别时间戳，ResultDetail 才有内容
	request.ResTextFormat = common.Uint64Ptr(1)

	if c.cfg.PublicBaseURL != "" {
		request.SourceType = common.Uint64Ptr(0)
		request.Url = common.StringPtr(fmt.Sprintf("%s/audio/%s.mp3", c.cfg.PublicBaseURL, asset.TrackID))
		return request, nil
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) > maxInlineAudio {
		return nil, fmt.Errorf("audio is %d bytes, inline upload is limited to %d; set a public base url", len(data), maxInlineAudio)
	}
	request.SourceType = common.Uint64Ptr(1)
	request.Data = common.StringPtr(base64.StdEncoding.EncodeToString(data))
	request.DataLen = common.Uint64Ptr(uint64(len(data)))
	return request, nil
}

func (c *Client) waitTask(ctx context.Context, taskID uint64) ([]lyricdoc.Line, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		request := asr.NewDescribeTaskStatusRequest()
		request.TaskId = common.Uint64Ptr(taskID)
		resp, err := c.asrClient.DescribeTaskStatusWithContext(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("describe task %d: %w", taskID, err)
		}
		if resp.Response == nil || resp.Response.Data == nil || resp.Response.Data.Status == nil {
			return nil, fmt.Errorf("describe task %d: empty response", taskID)
		}

		status := resp.Response.Data
		switch *status.Status {
		case statusSuccess:
			return sentenceLines(status.ResultDetail), nil
		case statusFailed:
			msg := ""
			if status.ErrorMsg != nil {
				msg = *status.ErrorMsg
			}
			return nil, fmt.Errorf("task %d failed: %s", taskID, msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sentenceLines(details []*asr.SentenceDetail) []lyricdoc.Line {
	lines := make([]lyricdoc.Line, 0, len(details))
	for _, d := range details {
		if d == nil || d.FinalSentence == nil {
			continue
		}
		line := lyricdoc.Line{Text: strings.TrimSpace(*d.FinalSentence)}
		if d.StartMs != nil {
			line.Start = float64(*d.StartMs) / 1000
		}
		if d.EndMs != nil {
			line.End = float64(*d.EndMs) / 1000
		}
		lines = append(lines, line)
	}
	return lines
}

// DetectEngine 根据标题语言选择识别引擎，检测失败时使用默认引擎
func (c *Client) DetectEngine(ctx context.Context, title string) string {
	if c.tmtClient == nil || strings.TrimSpace(title) == "" {
		return c.cfg.Engine
	}

	request := tmt.NewLanguageDetectRequest()
	request.Text = common.StringPtr(title)
	request.ProjectId = common.Int64Ptr(0)
	resp, err := c.tmtClient.LanguageDetectWithContext(ctx, request)
	if err != nil || resp.Response == nil || resp.Response.Lang == nil {
		logger.Warn().Err(err).Str("title", title).Msg("Language detection failed, using default engine")
		return c.cfg.Engine
	}

	if engine, ok := engineByLanguage[*resp.Response.Lang]; ok {
		return engine
	}
	return c.cfg.Engine
}
