// Command grosyncctl は同期APIを操作する運用CLI。
package main

import "github.com/hitoshi/grosync/internal/cli"

func main() {
	cli.Execute()
}
