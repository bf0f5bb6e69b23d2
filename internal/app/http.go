package app

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

const audioPrefix = "/audio/"

// audioHandler 按 /audio/<trackId>.mp3 提供音频，支持 Range 请求
func audioHandler(path func(trackID string) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, audioPrefix)
		trackID, ok := strings.CutSuffix(name, ".mp3")
		if !ok || !lyricdoc.ValidTrackID(trackID) {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(path(trackID))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Error().Err(err).Str("track_id", trackID).Msg("Failed to open audio")
			}
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeContent(w, r, name, info.ModTime(), f)
	})
}

// newMux 组装HTTP路由
func newMux(ws http.Handler, audio http.Handler, webRoot string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/ws", ws)
	mux.Handle(audioPrefix, audio)
	if webRoot != "" {
		mux.Handle("/", http.FileServer(http.Dir(webRoot)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte("lyrics server: connect to /api/ws\n"))
		})
	}
	return mux
}
