package ipc

import (
	"encoding/json"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

// 客户端消息类型
const TypeLink = "link"

// EventType 服务端事件类型
type EventType string

const (
	EventAudio  EventType = "audio"
	EventLyrics EventType = "lyrics"
	EventError  EventType = "error"
)

// 返回给客户端的错误文本
const (
	errInvalidMessage = "Invalid message"
	errInvalidType    = "Invalid type"
	errInvalidPayload = "Invalid payload"
	errInvalidLink    = "Invalid link"
	errLyricsPrefix   = "Error getting lyrics: "
)

// Message is a client frame. Payload stays raw until the type is known.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is a server frame.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// AudioPath 音频在HTTP服务中的相对路径
func AudioPath(trackID string) string {
	return "/audio/" + trackID + ".mp3"
}

func audioEvent(asset lyricdoc.AudioAsset) Event {
	return Event{Type: EventAudio, Payload: AudioPath(asset.TrackID)}
}

func lyricsEvent(doc *lyricdoc.Document) Event {
	return Event{Type: EventLyrics, Payload: doc}
}

func errorEvent(msg string) Event {
	return Event{Type: EventError, Payload: msg}
}
