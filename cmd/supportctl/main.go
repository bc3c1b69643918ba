package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/MegaGrindStone/support-chat/internal/cli/commands"
	"github.com/MegaGrindStone/support-chat/internal/cli/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.NewRootCmd().ExecuteContext(ctx); err != nil {
		ui.PrintError(os.Stderr, "%v", err)
		if strings.Contains(err.Error(), "unknown command") {
			fmt.Fprintln(os.Stderr, "\nRun 'supportctl --help' for usage.")
		}
		stop()
		os.Exit(1)
	}
}
