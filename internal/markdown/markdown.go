// 包 markdown 将页面的块树转换为 Markdown 文本。
//   - 图片块经 assets 下载并替换为本地路径
//   - 单个块转换失败时回退为指向远端的内联链接，不影响同页其它块
package markdown

import (
	"context"
	"fmt"
	"strings"

	"go-swan/internal/assets"
	"go-swan/internal/logx"
	"go-swan/internal/notion"
)

// Lister 为列出子块的远端接口。
type Lister interface {
	ListChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// Fetcher 为素材下载接口，失败时返回原始 URL。
type Fetcher interface {
	Fetch(ctx context.Context, remoteURL, filename string) string
}

type Converter struct {
	api    Lister
	assets Fetcher
}

func New(api Lister, fetcher Fetcher) *Converter {
	return &Converter{api: api, assets: fetcher}
}

// Convert 读取页面全部子块并转换；仅当页面本身无法读取时返回错误。
func (c *Converter) Convert(ctx context.Context, pageID string) (string, error) {
	blocks, err := c.api.ListChildren(ctx, pageID)
	if err != nil {
		return "", fmt.Errorf("list page %s: %w", pageID, err)
	}
	return c.Blocks(ctx, blocks), nil
}

// Blocks 转换已获取的块序列。
func (c *Converter) Blocks(ctx context.Context, blocks []notion.Block) string {
	out := c.render(ctx, blocks)
	if out == "" {
		return ""
	}
	return out + "\n"
}

func (c *Converter) render(ctx context.Context, blocks []notion.Block) string {
	var b strings.Builder
	num := 0
	prevType := ""
	for i := range blocks {
		blk := &blocks[i]
		if blk.Type == "numbered_list_item" {
			num++
		} else {
			num = 0
		}
		text, err := c.block(ctx, blk, num)
		if err == nil && text == "" {
			continue
		}
		if err != nil {
			logx.Warnf("块转换失败，回退为远端链接：%s(%s) 错误=%v", blk.Type, blk.ID, err)
			text = fallback(blk)
		}
		if b.Len() > 0 {
			// 同类列表项之间只换一行
			if isListItem(blk.Type) && blk.Type == prevType {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(text)
		prevType = blk.Type
	}
	return strings.TrimRight(b.String(), "\n")
}

func isListItem(typ string) bool {
	return typ == "bulleted_list_item" || typ == "numbered_list_item" || typ == "to_do"
}

func (c *Converter) block(ctx context.Context, blk *notion.Block, num int) (string, error) {
	if missingPayload(blk) {
		return "", fmt.Errorf("%s block without payload", blk.Type)
	}
	switch blk.Type {
	case "paragraph":
		return c.withChildren(ctx, blk, Rich(blk.Paragraph.RichText), "")
	case "heading_1":
		return "# " + Rich(blk.Heading1.RichText), nil
	case "heading_2":
		return "## " + Rich(blk.Heading2.RichText), nil
	case "heading_3":
		return "### " + Rich(blk.Heading3.RichText), nil
	case "bulleted_list_item":
		return c.withChildren(ctx, blk, "- "+Rich(blk.BulletedListItem.RichText), "  ")
	case "numbered_list_item":
		return c.withChildren(ctx, blk, fmt.Sprintf("%d. %s", num, Rich(blk.NumberedListItem.RichText)), "   ")
	case "to_do":
		box := "[ ]"
		if blk.ToDo.Checked {
			box = "[x]"
		}
		return c.withChildren(ctx, blk, "- "+box+" "+Rich(blk.ToDo.RichText), "  ")
	case "quote":
		return quote(Rich(blk.Quote.RichText)), nil
	case "callout":
		text := Rich(blk.Callout.RichText)
		if ic := blk.Callout.Icon; ic != nil && ic.Emoji != "" {
			text = ic.Emoji + " " + text
		}
		return quote(text), nil
	case "toggle":
		inner := ""
		if blk.HasChildren {
			kids, err := c.api.ListChildren(ctx, blk.ID)
			if err != nil {
				return "", err
			}
			inner = c.render(ctx, kids)
		}
		return fmt.Sprintf("<details>\n<summary>%s</summary>\n\n%s\n\n</details>", Rich(blk.Toggle.RichText), inner), nil
	case "code":
		lang := blk.Code.Language
		if lang == "plain text" {
			lang = ""
		}
		return "```" + lang + "\n" + notion.PlainText(blk.Code.RichText) + "\n```", nil
	case "divider":
		return "---", nil
	case "image":
		return c.image(ctx, blk)
	case "video", "file", "pdf":
		m := blk.Media()
		if m == nil || m.URL() == "" {
			return "", fmt.Errorf("%s block without url", blk.Type)
		}
		label := notion.PlainText(m.Caption)
		if label == "" {
			label = m.Name
		}
		if label == "" {
			label = blk.Type
		}
		return fmt.Sprintf("[%s](%s)", label, m.URL()), nil
	case "bookmark", "embed":
		lb := blk.Bookmark
		if blk.Type == "embed" {
			lb = blk.Embed
		}
		label := notion.PlainText(lb.Caption)
		if label == "" {
			label = lb.URL
		}
		return fmt.Sprintf("[%s](%s)", label, lb.URL), nil
	case "child_page":
		return fmt.Sprintf("[%s](%s)", blk.ChildPage.Title, pageURL(blk.ID)), nil
	case "child_database":
		return "", nil
	}
	logx.Debugf("跳过不支持的块类型：%s(%s)", blk.Type, blk.ID)
	return "", nil
}

func (c *Converter) image(ctx context.Context, blk *notion.Block) (string, error) {
	if blk.Image == nil || blk.Image.URL() == "" {
		return "", fmt.Errorf("image block without url")
	}
	remote := blk.Image.URL()
	local := remote
	if c.assets != nil {
		local = c.assets.Fetch(ctx, remote, assets.Filename("content", blk.ID, remote))
	}
	return fmt.Sprintf("![%s](%s)", notion.PlainText(blk.Image.Caption), local), nil
}

// withChildren 追加嵌套子块，子块按 indent 缩进。
func (c *Converter) withChildren(ctx context.Context, blk *notion.Block, head, indent string) (string, error) {
	if !blk.HasChildren {
		return head, nil
	}
	kids, err := c.api.ListChildren(ctx, blk.ID)
	if err != nil {
		return "", err
	}
	inner := c.render(ctx, kids)
	if inner == "" {
		return head, nil
	}
	if indent == "" {
		return head + "\n\n" + inner, nil
	}
	lines := strings.Split(inner, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = indent + l
		}
	}
	return head + "\n" + strings.Join(lines, "\n"), nil
}

func missingPayload(blk *notion.Block) bool {
	switch blk.Type {
	case "paragraph", "heading_1", "heading_2", "heading_3", "bulleted_list_item",
		"numbered_list_item", "quote", "callout", "toggle":
		return blk.Text() == nil
	case "to_do":
		return blk.ToDo == nil
	case "code":
		return blk.Code == nil
	case "bookmark":
		return blk.Bookmark == nil
	case "embed":
		return blk.Embed == nil
	case "child_page":
		return blk.ChildPage == nil
	}
	return false
}

func quote(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

// fallback 为转换失败的块生成内联远端引用。
func fallback(blk *notion.Block) string {
	if m := blk.Media(); m != nil && m.URL() != "" {
		if blk.Type == "image" {
			return fmt.Sprintf("![%s](%s)", notion.PlainText(m.Caption), m.URL())
		}
		return fmt.Sprintf("[%s](%s)", blk.Type, m.URL())
	}
	return fmt.Sprintf("[%s](%s)", blk.Type, pageURL(blk.ID))
}

func pageURL(id string) string {
	return "https://www.notion.so/" + strings.ReplaceAll(id, "-", "")
}
