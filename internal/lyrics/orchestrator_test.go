package lyrics

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/music"
)

const trackID = "dQw4w9WgXcQ"

// fakeSource 模拟歌词站点
type fakeSource struct {
	source lyricdoc.Source
	text   string
	calls  int32
	gate   chan struct{}
}

func (f *fakeSource) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	if f.text == "" {
		return nil, false
	}
	doc := lyricdoc.Format(f.text)
	doc.Source = f.source
	doc.Title = "Scraped Title"
	return doc, true
}

func (f *fakeSource) Source() lyricdoc.Source { return f.source }

// fakeTranscriber 模拟语音识别
type fakeTranscriber struct {
	aligned     []lyricdoc.Line
	alignErr    error
	transcribed []lyricdoc.Line
	transErr    error

	alignCalls int32
	transCalls int32
	alignText  string
}

func (f *fakeTranscriber) AlignText(ctx context.Context, asset lyricdoc.AudioAsset, text string) ([]lyricdoc.Line, error) {
	atomic.AddInt32(&f.alignCalls, 1)
	f.alignText = text
	return f.aligned, f.alignErr
}

func (f *fakeTranscriber) TranscribeAndAlign(ctx context.Context, asset lyricdoc.AudioAsset) ([]lyricdoc.Line, error) {
	atomic.AddInt32(&f.transCalls, 1)
	return f.transcribed, f.transErr
}

type fakeAI struct {
	reply string
	calls int32
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) HandleText(ctx context.Context, msg string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.reply, nil
}

// hangingAI 不回复，直到请求被取消
type hangingAI struct {
	calls int32
}

func (h *hangingAI) Name() string { return "hanging" }

func (h *hangingAI) HandleText(ctx context.Context, msg string) (string, error) {
	atomic.AddInt32(&h.calls, 1)
	<-ctx.Done()
	return "", ctx.Err()
}

func testAsset() lyricdoc.AudioAsset {
	return lyricdoc.AudioAsset{TrackID: trackID, Title: "Rick Astley - Never Gonna Give You Up", Path: "/audio/" + trackID + ".mp3"}
}

func newTestOrchestrator(t *testing.T, transcriber Transcriber, sources ...music.Source) (*Orchestrator, *Store) {
	t.Helper()
	store := NewStore(t.TempDir())
	o := NewOrchestrator(store, music.NewChain(sources...), transcriber, Options{
		AlignTimeout:      time.Second,
		TranscribeTimeout: time.Second,
	})
	return o, store
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestAcquireSecondSourceAligned(t *testing.T) {
	first := &fakeSource{source: lyricdoc.SourceKasitime}
	second := &fakeSource{source: lyricdoc.SourceMojim, text: "line one\n\nline two"}
	transcriber := &fakeTranscriber{aligned: []lyricdoc.Line{
		{Text: "line two", Start: 9, End: 12},
		{Text: "line one", Start: 2.5, End: 2.5},
		{Text: "  ", Start: 1, End: 2},
	}}
	o, store := newTestOrchestrator(t, transcriber, first, second)

	doc, err := o.Acquire(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if doc.Source != lyricdoc.SourceMojim {
		t.Errorf("expected mojim, got %s", doc.Source)
	}
	if transcriber.alignText != "line one\n\nline two" {
		t.Errorf("raw text should be aligned, got %q", transcriber.alignText)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 aligned lines, got %+v", doc.Lines)
	}
	if doc.Lines[0].Text != "line one" || doc.Lines[0].Start != 2.5 || doc.Lines[0].End != 3.0 {
		t.Errorf("unexpected first line %+v", doc.Lines[0])
	}
	if transcriber.transCalls != 0 {
		t.Error("transcription should not run when a source succeeds")
	}
	if n := countFiles(t, store.dir); n != 1 {
		t.Errorf("expected one cache file, got %d", n)
	}
}

func TestAcquireAlignmentDegraded(t *testing.T) {
	source := &fakeSource{source: lyricdoc.SourceGenius, text: "a\nb"}
	transcriber := &fakeTranscriber{alignErr: errors.New("model crashed")}
	o, _ := newTestOrchestrator(t, transcriber, source)

	doc, err := o.Acquire(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(doc.Lines) != 2 || doc.Lines[1].Start != 3 || doc.Lines[1].End != 6 {
		t.Errorf("uniform timing should be kept, got %+v", doc.Lines)
	}
}

func TestAcquireTranscriptionFallback(t *testing.T) {
	source := &fakeSource{source: lyricdoc.SourceKasitime}
	transcriber := &fakeTranscriber{transcribed: []lyricdoc.Line{
		{Text: "heard this", Start: 1, End: 3},
		{Text: "and this", Start: 3, End: 5},
	}}
	o, store := newTestOrchestrator(t, transcriber, source)

	doc, err := o.Acquire(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if doc.Source != lyricdoc.SourceTranscription {
		t.Errorf("expected transcription, got %s", doc.Source)
	}
	if doc.Title != testAsset().Title || doc.RawText != "heard this\nand this" {
		t.Errorf("unexpected document %+v", doc)
	}
	if !store.Exists(trackID) {
		t.Error("transcription result should be cached")
	}
	// ResolveTitle 先按拆分后的歌名查询，再用整个标题查询
	if source.calls != 2 {
		t.Errorf("expected two chain runs, got %d", source.calls)
	}
}

func TestAcquireFailureNotCached(t *testing.T) {
	tests := map[string]*fakeTranscriber{
		"error": {transErr: errors.New("out of memory")},
		"empty": {transcribed: []lyricdoc.Line{{Text: " ", Start: 0, End: 1}}},
	}
	for name, transcriber := range tests {
		t.Run(name, func(t *testing.T) {
			o, store := newTestOrchestrator(t, transcriber, &fakeSource{source: lyricdoc.SourceMojim})

			_, err := o.Acquire(context.Background(), testAsset())
			if !errors.Is(err, lyricdoc.ErrTranscriptionFailed) {
				t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
			}
			if n := countFiles(t, store.dir); n != 0 {
				t.Errorf("nothing should be cached, got %d files", n)
			}
		})
	}
}

func TestAcquireNoTranscriber(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, &fakeSource{source: lyricdoc.SourceMojim})
	if _, err := o.Acquire(context.Background(), testAsset()); !errors.Is(err, lyricdoc.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}

func TestAcquireCacheHitIsIdempotent(t *testing.T) {
	source := &fakeSource{source: lyricdoc.SourceKasitime, text: "only line"}
	o, store := newTestOrchestrator(t, &fakeTranscriber{alignErr: errors.New("skip")}, source)

	if _, err := o.Acquire(context.Background(), testAsset()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	before, err := os.ReadFile(store.Path(trackID))
	if err != nil {
		t.Fatal(err)
	}

	doc, err := o.Acquire(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	after, _ := os.ReadFile(store.Path(trackID))
	if !bytes.Equal(before, after) {
		t.Error("cache entry changed on a hit")
	}
	if source.calls != 1 {
		t.Errorf("expected one scrape, got %d", source.calls)
	}
	if doc.Lines[0].Text != "only line" {
		t.Errorf("unexpected cached doc %+v", doc)
	}
}

func TestAcquireConcurrentSameTrack(t *testing.T) {
	source := &fakeSource{source: lyricdoc.SourceKasitime, text: "line", gate: make(chan struct{})}
	transcriber := &fakeTranscriber{alignErr: errors.New("skip")}
	o, _ := newTestOrchestrator(t, transcriber, source)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Acquire(context.Background(), testAsset())
			results <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("Acquire failed: %v", err)
		}
	}
	if got := atomic.LoadInt32(&source.calls); got != 1 {
		t.Errorf("expected one acquisition, got %d scrapes", got)
	}
	if got := atomic.LoadInt32(&transcriber.alignCalls); got != 1 {
		t.Errorf("expected one alignment, got %d", got)
	}
}

func TestAcquireCallerLeavesEarly(t *testing.T) {
	source := &fakeSource{source: lyricdoc.SourceKasitime, text: "line", gate: make(chan struct{})}
	o, store := newTestOrchestrator(t, &fakeTranscriber{alignErr: errors.New("skip")}, source)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := o.Acquire(ctx, testAsset()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(source.gate)

	deadline := time.Now().Add(time.Second)
	for !store.Exists(trackID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !store.Exists(trackID) {
		t.Error("acquisition should still be cached after the caller left")
	}
}

func TestAcquireRefinedQuery(t *testing.T) {
	source := &refineSource{}
	transcriber := &fakeTranscriber{alignErr: errors.New("skip")}
	o, _ := newTestOrchestrator(t, transcriber, source)
	aiClient := &fakeAI{reply: "```json\n{\"is_song\": true, \"title\": \"夜に駆ける\", \"artist\": \"YOASOBI\"}\n```"}
	o.WithAI(aiClient)

	asset := testAsset()
	asset.Title = "【MV】夜に駆ける / YOASOBI"
	doc, err := o.Acquire(context.Background(), asset)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if doc.Title != "夜に駆ける" || aiClient.calls != 1 {
		t.Errorf("unexpected doc %+v after %d ai calls", doc, aiClient.calls)
	}
	if transcriber.transCalls != 0 {
		t.Error("transcription should not run when the refined query succeeds")
	}
}

func TestAcquireHungAIFallsBackToTranscription(t *testing.T) {
	transcriber := &fakeTranscriber{transcribed: []lyricdoc.Line{{Text: "heard this", Start: 1, End: 3}}}
	o, store := newTestOrchestrator(t, transcriber, &fakeSource{source: lyricdoc.SourceMojim})
	o.opts.AITimeout = 20 * time.Millisecond
	aiClient := &hangingAI{}
	o.WithAI(aiClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	doc, err := o.Acquire(ctx, testAsset())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if doc.Source != lyricdoc.SourceTranscription {
		t.Errorf("expected transcription, got %s", doc.Source)
	}
	if got := atomic.LoadInt32(&aiClient.calls); got != songInfoRetries {
		t.Errorf("expected %d ai attempts, got %d", songInfoRetries, got)
	}
	if got := atomic.LoadInt32(&transcriber.transCalls); got != 1 {
		t.Errorf("expected one transcription, got %d", got)
	}
	if !store.Exists(trackID) {
		t.Error("transcription result should be cached")
	}
}

func TestNewOrchestratorDefaultAITimeout(t *testing.T) {
	o := NewOrchestrator(NewStore(t.TempDir()), music.NewChain(), nil, Options{})
	if o.opts.AITimeout != DefaultAITimeout {
		t.Errorf("AITimeout = %v, want %v", o.opts.AITimeout, DefaultAITimeout)
	}
}

func TestAcquireInvalidTrackID(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	asset := testAsset()
	asset.TrackID = "../../etc/x"
	if _, err := o.Acquire(context.Background(), asset); !errors.Is(err, lyricdoc.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

// refineSource 只认识AI修正后的查询
type refineSource struct{}

func (refineSource) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	if song != "夜に駆ける" || artist != "YOASOBI" {
		return nil, false
	}
	doc := lyricdoc.Format("沈むように")
	doc.Source = lyricdoc.SourceKasitime
	doc.Title = song
	return doc, true
}

func (refineSource) Source() lyricdoc.Source { return lyricdoc.SourceKasitime }

func TestSanitizeLines(t *testing.T) {
	lines := sanitizeLines([]lyricdoc.Line{
		{Text: "c", Start: 5, End: 4},
		{Text: "a", Start: -1, End: 2},
		{Text: "", Start: 0, End: 1},
		{Text: "b", Start: 5, End: 7},
	})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %+v", lines)
	}
	if lines[0].Text != "a" || lines[0].Start != 0 {
		t.Errorf("negative start not clamped: %+v", lines[0])
	}
	if lines[1].Text != "c" || lines[1].End != 5.5 {
		t.Errorf("end not repaired or order not stable: %+v", lines[1])
	}
	if lines[2].Text != "b" {
		t.Errorf("unexpected order %+v", lines)
	}
}

func TestStoreWriteOnce(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "lyrics"))
	first := lyricdoc.Format("first")
	second := lyricdoc.Format("second")

	if saved, err := store.Save(trackID, first); err != nil || !saved {
		t.Fatalf("first Save = %v, %v", saved, err)
	}
	if saved, err := store.Save(trackID, second); err != nil || saved {
		t.Fatalf("second Save = %v, %v", saved, err)
	}
	doc, err := store.Load(trackID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Lines[0].Text != "first" {
		t.Errorf("existing entry should win, got %q", doc.Lines[0].Text)
	}
	if _, err := store.Save("bad/id", first); !errors.Is(err, lyricdoc.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestStoreConcurrentSaveKeepsFirst(t *testing.T) {
	store := NewStore(t.TempDir())

	var wg sync.WaitGroup
	var saved int32
	for _, text := range []string{"a", "b", "c", "d", "e", "f"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Save(trackID, lyricdoc.Format(text))
			if err != nil {
				t.Errorf("Save(%q): %v", text, err)
			}
			if ok {
				atomic.AddInt32(&saved, 1)
			}
		}()
	}
	wg.Wait()

	if saved != 1 {
		t.Errorf("expected exactly one Save to win, got %d", saved)
	}
	if n := countFiles(t, store.dir); n != 1 {
		t.Errorf("expected one cache file, got %d", n)
	}
}
