// Command guildhall はサーバー・メンバー・会話ディレクトリのAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	guildhall [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/guildhall/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "guildhall: %v\n", err)
		os.Exit(1)
	}
}
