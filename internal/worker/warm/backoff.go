package warm

import (
	"sync"
	"time"
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 1回目の失敗でinitial、以降2倍ずつ増加し、maxDelayで頭打ちになる。
func CalculateBackoff(consecutiveFailures int, initial, maxDelay time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}
	delay := initial
	for i := 1; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	return delay
}

// backoffState はサイト単位の失敗状態。
type backoffState struct {
	failures int
	nextAt   time.Time
}

// backoffTracker はウォームに失敗したサイトを一定時間スキップするための記録。
type backoffTracker struct {
	mu      sync.Mutex
	initial time.Duration
	max     time.Duration
	sites   map[int]backoffState
}

func newBackoffTracker(initial, maxDelay time.Duration) *backoffTracker {
	return &backoffTracker{
		initial: initial,
		max:     maxDelay,
		sites:   make(map[int]backoffState),
	}
}

// ready はサイトをnowの時点で処理してよいかを返す。
func (b *backoffTracker) ready(siteID int, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.sites[siteID]
	return !ok || !now.Before(st.nextAt)
}

// failure は失敗を記録し、次に処理してよい時刻を返す。
func (b *backoffTracker) failure(siteID int, now time.Time) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.sites[siteID]
	st.failures++
	st.nextAt = now.Add(CalculateBackoff(st.failures, b.initial, b.max))
	b.sites[siteID] = st
	return st.nextAt
}

// success は失敗の記録を消す。
func (b *backoffTracker) success(siteID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sites, siteID)
}
