// Package lock は設定キー単位の書き込みロックを提供する。
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
)

var (
	// ErrLockTimeout は待機時間内にロックを取得できなかった場合のエラー。
	ErrLockTimeout = errors.New("lock wait timeout")

	// ErrTokenMismatch は解放時にトークンが一致しなかった場合のエラー。
	ErrTokenMismatch = errors.New("lock token mismatch")
)

// InMemoryLocker は単一プロセス内でキーごとに書き込みを直列化する。
type InMemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewInMemoryLocker は新しい InMemoryLocker を生成する。
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{slots: make(map[string]*slot)}
}

// Lock は key のロックを取得するまで待つ。ctx が終了した場合は ctx のエラーを返す。
func (l *InMemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *InMemoryLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size は管理中のキー数を返す。
func (l *InMemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
