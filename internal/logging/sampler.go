package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

type sampleKey struct {
	session string
	level   zapcore.Level
	msg     string
}

// sampler counts repeats of a message per session so one busy session
// cannot crowd the others out of the log. All counters reset together at
// the end of each window.
type sampler struct {
	cfg SamplingConfig
	now func() time.Time

	mu       sync.Mutex
	resetAt  time.Time
	counters map[sampleKey]int
}

func newSampler(cfg SamplingConfig) *sampler {
	return &sampler{cfg: cfg, now: time.Now, counters: make(map[sampleKey]int)}
}

func (s *sampler) allow(session string, lvl zapcore.Level, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.now(); !now.Before(s.resetAt) {
		clear(s.counters)
		s.resetAt = now.Add(s.cfg.Window)
	}
	key := sampleKey{session: session, level: lvl, msg: msg}
	s.counters[key]++
	n := s.counters[key]
	if n <= s.cfg.First {
		return true
	}
	return s.cfg.Every > 0 && (n-s.cfg.First)%s.cfg.Every == 0
}
