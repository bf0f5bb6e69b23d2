package ipc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning 另一个实例已持有锁
var ErrAlreadyRunning = errors.New("another lyrics server instance is already running")

// instanceLock 单实例进程锁，锁文件中记录持有者的PID
type instanceLock struct {
	path string
	lock *flock.Flock
}

func newInstanceLock(path string) *instanceLock {
	return &instanceLock{path: path, lock: flock.New(path)}
}

func (l *instanceLock) acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		if pid := l.holder(); pid > 0 {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		return ErrAlreadyRunning
	}

	// 锁由内核随进程释放，残留的旧PID直接覆盖
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		_ = l.lock.Unlock()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	logger.Info().Str("lock_file", l.path).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

// holder 读取锁文件中的PID，读取失败返回0
func (l *instanceLock) holder() int {
	content, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0
	}
	return pid
}

func (l *instanceLock) release() {
	if !l.lock.Locked() {
		return
	}
	if err := l.lock.Unlock(); err != nil {
		logger.Warn().Err(err).Str("lock_file", l.path).Msg("Failed to release process lock")
		return
	}
	os.Remove(l.path)
	logger.Info().Str("lock_file", l.path).Msg("Released process lock")
}
