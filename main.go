// 命令行入口，子命令见 cmd 包：
// - seed：按站点定义初始化空的工作区根页面
// - sync：拉取工作区内容到本地数据/Markdown/素材
// - show：查看本地内容缓存
package main

import "go-swan/cmd"

func main() {
	cmd.Execute()
}
