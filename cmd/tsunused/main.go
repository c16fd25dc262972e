// Command tsunused finds exported TypeScript elements that nothing else in
// the project references.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gnana997/tsunused/pkg/util"
)

func main() {
	// TSUNUSED_* overrides may live in a per-checkout .env file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage formats a failed run for stderr. Configuration mistakes get a
// pointer to the usage text.
func errorMessage(err error) string {
	msg := fmt.Sprintf("Error: %v\n", err)
	if util.KindOf(err) == util.KindConfig {
		msg += "Run 'tsunused --help' for usage.\n"
	}
	return msg
}
