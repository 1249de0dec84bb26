// Command grosync は同期APIサーバー、購読失効ワーカー、マイグレーションを起動する。
//
//	grosync [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/grosync/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "grosync: %v\n", err)
		os.Exit(1)
	}
}
