package syncer

import (
	"sort"
	"sync"
)

// Collector 记录一次运行中各作用域写出的文件与失败次数，可并发使用。
// 只有没有失败的作用域才允许清理过期文件。
type Collector struct {
	mu      sync.Mutex
	written map[string][]string // key: scope
	failed  map[string]int
	warns   int
}

func NewCollector() *Collector {
	return &Collector{
		written: make(map[string][]string),
		failed:  make(map[string]int),
	}
}

func (c *Collector) Written(scope, path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	c.written[scope] = append(c.written[scope], path)
	c.mu.Unlock()
}

func (c *Collector) Failed(scope string) {
	c.mu.Lock()
	c.failed[scope]++
	c.mu.Unlock()
}

// Warn 计数可恢复的降级（跳过的数据库、重复 slug 等）。
func (c *Collector) Warn() {
	c.mu.Lock()
	c.warns++
	c.mu.Unlock()
}

// Clean 作用域内没有失败时为 true。
func (c *Collector) Clean(scope string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[scope] == 0
}

func (c *Collector) Count(scope string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written[scope])
}

// Snapshot 返回副本：
// - paths 按路径排序
// - warns 为降级总数
func (c *Collector) Snapshot() (paths []string, warns int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ps := range c.written {
		paths = append(paths, ps...)
	}
	sort.Strings(paths)
	return paths, c.warns
}
