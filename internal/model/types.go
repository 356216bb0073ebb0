// 包 model 定义本地内容缓存的数据模型（section、集合条目、导航页、数据文件）。
// 同一结构既用于 sync 写出，也用于内容读取端加载。
package model

// Section 为一个 section 实例，身份为远端数据库 ID；Enabled 控制下游是否渲染。
type Section struct {
	Type    string         `json:"type" yaml:"type"`
	ID      string         `json:"id" yaml:"id"`
	Title   string         `json:"title" yaml:"title"`
	Enabled bool           `json:"enabled" yaml:"enabled"`
	Fields  map[string]any `json:"fields" yaml:"fields"`
	Body    string         `json:"body,omitempty" yaml:"body,omitempty"`
}

// DataFile 为 data 目录下 JSON 文件的顶层结构（site.json / home.json）。
type DataFile struct {
	Info     map[string]string `json:"info,omitempty"`
	Sections []Section         `json:"sections"`
}

type Cover struct {
	Image string `yaml:"image"`
	Alt   string `yaml:"alt"`
}

// Item 为集合条目的 front matter；Body 为正文 Markdown。
// cover/thumbnail/tools 为兼容旧模板保留的冗余字段。
type Item struct {
	Slug           string   `yaml:"slug"`
	Title          string   `yaml:"title"`
	Collection     string   `yaml:"collection"`
	Date           string   `yaml:"date"`
	Description    string   `yaml:"description"`
	Image          string   `yaml:"image"`
	Cover          Cover    `yaml:"cover"`
	Thumbnail      string   `yaml:"thumbnail"`
	Tags           []string `yaml:"tags"`
	Link           string   `yaml:"link"`
	Tools          string   `yaml:"tools"`
	Order          float64  `yaml:"order"`
	Status         string   `yaml:"status,omitempty"`
	Author         string   `yaml:"author,omitempty"`
	VideoEmbedLink string   `yaml:"video_embed_link,omitempty"`

	Body string `yaml:"-"`
}

// NavbarPage 为导航栏页面的 front matter。
type NavbarPage struct {
	Title    string    `yaml:"title"`
	Slug     string    `yaml:"slug"`
	Date     string    `yaml:"date"`
	Menu     string    `yaml:"menu"`
	Sections []Section `yaml:"sections,omitempty"`

	Body string `yaml:"-"`
}

// NavbarCollection 为导航页在内容目录中的保留集合名。
const NavbarCollection = "navbarPages"

// 根页面下按标题识别的固定容器。
const (
	ContainerConfig      = "Config"
	ContainerHome        = "Home Page"
	ContainerNavbar      = "Navbar Pages"
	ContainerCollections = "Collections"
)
