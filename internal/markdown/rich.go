package markdown

import (
	"strings"

	"go-swan/internal/notion"
)

// Rich 将 rich text 转为行内 Markdown，保留段首尾空白在标记之外。
func Rich(rt []notion.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(span(r))
	}
	return b.String()
}

func span(r notion.RichText) string {
	text := r.Plain()
	if text == "" {
		return ""
	}
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}
	lead := text[:strings.Index(text, core)]
	trail := text[len(lead)+len(core):]

	if a := r.Annotations; a != nil {
		if a.Code {
			core = "`" + core + "`"
		}
		if a.Bold {
			core = "**" + core + "**"
		}
		if a.Italic {
			core = "_" + core + "_"
		}
		if a.Strikethrough {
			core = "~~" + core + "~~"
		}
	}
	href := r.Href
	if href == "" && r.Text != nil && r.Text.Link != nil {
		href = r.Text.Link.URL
	}
	if href != "" {
		core = "[" + core + "](" + href + ")"
	}
	return lead + core + trail
}
