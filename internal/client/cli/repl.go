package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dbrusnev/notelock/internal/client/services"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = func(args ...any) { fmt.Println(args...) }

// execIface defines the command surface the REPL dispatches to. The real App
// type satisfies it; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context) error
	Delete(ctx context.Context) error
	Lists(ctx context.Context) error
	RenameList(ctx context.Context) error
	DeleteList(ctx context.Context) error
	Search(ctx context.Context) error
	Reverse(ctx context.Context) error
	Export(ctx context.Context) error
	VerifyEmail(ctx context.Context) error
	UpdateEmail(ctx context.Context) error
	UpdatePassword(ctx context.Context) error
	DeleteAllData(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: register, login, exit"
	helpSignedIn  = "Available commands: (l)ist, show, add, edit, delete, lists, renamelist, " +
		"deletelist, search, reverse, export, verify, email, password, delete-all, delete-account, logout, exit"
)

// runREPL reads a line from the scanner, parses the first token as the
// command, and dispatches to a. Unknown commands are reported back to the
// user. The loop exits on scanner EOF, context cancellation, or when the
// user types "exit" or "quit". Command errors are rendered through
// services.UserMessage so backend and crypto failures surface in the fixed
// user-facing wording.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	run := func(fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			printlnFn(services.UserMessage(err))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return
		}
		printlnFn(fmt.Sprintf("notelock %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "register":
			run(a.Register)
		case "login":
			run(a.Login)
		case "logout":
			run(a.Logout)

		case "l", "list":
			run(a.List)
		case "show":
			run(a.Show)
		case "add":
			run(a.Add)
		case "edit":
			run(a.Edit)
		case "delete":
			run(a.Delete)

		case "lists":
			run(a.Lists)
		case "renamelist":
			run(a.RenameList)
		case "deletelist":
			run(a.DeleteList)

		case "search":
			run(a.Search)
		case "reverse":
			run(a.Reverse)
		case "export":
			run(a.Export)

		case "verify":
			run(a.VerifyEmail)
		case "email":
			run(a.UpdateEmail)
		case "password":
			run(a.UpdatePassword)
		case "delete-all":
			run(a.DeleteAllData)
		case "delete-account":
			run(a.DeleteAccount)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
