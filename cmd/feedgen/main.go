// Command feedgen はGoogle Shoppingフィードの生成・配信サービスを起動する。
//
// 使い方:
//
//	feedgen [serve|worker|migrate|generate <shopID>...|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/shoppingfeed/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
