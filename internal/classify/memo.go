package classify

import (
	"strings"

	"ledger/internal/cache"
	"ledger/internal/core"
)

type memoEntry struct {
	c    core.Classification
	rule string
}

// Memo caches ClassifyWithRule results by whitespace-collapsed name. It is
// safe for concurrent use.
type Memo struct {
	lru *cache.LRU[string, memoEntry]
}

func NewMemo(size int) *Memo {
	return &Memo{lru: cache.NewLRU[string, memoEntry](size)}
}

func (m *Memo) Classify(name string) core.Classification {
	c, _ := m.ClassifyWithRule(name)
	return c
}

// ClassifyWithRule returns the cached classification and the rule that
// decided it.
func (m *Memo) ClassifyWithRule(name string) (core.Classification, string) {
	key := strings.Join(strings.Fields(name), " ")
	if e, ok := m.lru.Get(key); ok {
		return e.c, e.rule
	}
	c, rule := ClassifyWithRule(key)
	m.lru.Set(key, memoEntry{c: c, rule: rule})
	return c, rule
}

func (m *Memo) Stats() cache.Stats {
	return m.lru.Stats()
}
