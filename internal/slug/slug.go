// 包 slug 生成 URL 友好的标识：先去除变音符号，再小写并将空白/下划线/连字符折叠为单个 "-"。
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reStrip    = regexp.MustCompile(`[^\w\s-]`)
	reCollapse = regexp.MustCompile(`[\s_-]+`)
)

// Make 将任意标题转为 slug，例如 "Café Racer!" -> "cafe-racer"。
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	out := strings.ToLower(folded)
	out = reStrip.ReplaceAllString(out, "")
	out = reCollapse.ReplaceAllString(out, "-")
	return strings.Trim(out, "-")
}

// Allocator 在同一集合内分配不冲突的 slug：重复者按出现顺序追加 -2、-3……
// 非并发安全，按远端顺序顺序调用以保证结果确定。
type Allocator struct {
	used map[string]bool
}

func NewAllocator() *Allocator { return &Allocator{used: map[string]bool{}} }

// Assign 返回分配到的 slug，以及是否因冲突被改写。
func (a *Allocator) Assign(want string) (string, bool) {
	if want == "" {
		want = "untitled"
	}
	if !a.used[want] {
		a.used[want] = true
		return want, false
	}
	for n := 2; ; n++ {
		cand := want + "-" + strconv.Itoa(n)
		if !a.used[cand] {
			a.used[cand] = true
			return cand, true
		}
	}
}
