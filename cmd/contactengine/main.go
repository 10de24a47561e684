package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MoonWalka/app-booking-2-sub017/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
