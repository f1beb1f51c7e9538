package cli

import (
	"bufio"
	"context"
	"os"
)

// Root runs the interactive loop against stdin.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to NoteLock (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
