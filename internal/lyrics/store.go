package lyrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/fileutil"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

// Store 歌词缓存，每首歌一个 <trackId>.json 文件，写入后不再修改
type Store struct {
	dir string
}

// NewStore 创建歌词缓存
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path 返回缓存文件路径
func (s *Store) Path(trackID string) string {
	return filepath.Join(s.dir, trackID+".json")
}

// Exists 检查缓存是否存在
func (s *Store) Exists(trackID string) bool {
	return lyricdoc.ValidTrackID(trackID) && fileutil.Exists(s.Path(trackID))
}

// Load 读取缓存；不存在时返回的错误满足 errors.Is(err, fs.ErrNotExist)
func (s *Store) Load(trackID string) (*lyricdoc.Document, error) {
	if !lyricdoc.ValidTrackID(trackID) {
		return nil, lyricdoc.Wrap(lyricdoc.ErrInvalidRequest, "track id "+trackID, nil)
	}
	data, err := os.ReadFile(s.Path(trackID))
	if err != nil {
		return nil, err
	}
	var doc lyricdoc.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path(trackID), err)
	}
	return &doc, nil
}

// Save 写入缓存。已有缓存时不覆盖，返回 false
func (s *Store) Save(trackID string, doc *lyricdoc.Document) (bool, error) {
	if !lyricdoc.ValidTrackID(trackID) {
		return false, lyricdoc.Wrap(lyricdoc.ErrInvalidRequest, "track id "+trackID, nil)
	}
	if s.Exists(trackID) {
		return false, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encode document: %w", err)
	}
	// 并发写入时只有第一个成功，后来者不会替换它
	return fileutil.WriteFileExclusive(s.Path(trackID), data, 0o644)
}
