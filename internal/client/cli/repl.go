package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/scriptureforge/offline/internal/models"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests provide a recording stub. args never include the command word.
type execIface interface {
	isLoggedIn() bool

	Chapter(ctx context.Context, args []string) error
	Translations(ctx context.Context, args []string) error
	Translate(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Usage(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error

	Annotate(ctx context.Context, t models.ContentType, args []string) error
	List(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error

	Chats(ctx context.Context, args []string) error
	NewChat(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Say(ctx context.Context, args []string) error
	Ask(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Archive(ctx context.Context, args []string) error
	RemoveChat(ctx context.Context, args []string) error
	Language(ctx context.Context, args []string) error

	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
}

// errUsage is returned by handlers whose arguments do not parse; the
// message carries the usage line.
type errUsage string

func (e errUsage) Error() string { return "usage: " + string(e) }

const helpText = `Scripture:
  chapter <translation> <book> <chapter>        show a cached chapter
  translations                                  list downloaded translations
  translate <translation> <book> <chapter> <lang>
  download <translation> <file.json>            import a translation
  usage                                         storage usage
  clear                                         erase all offline data
Annotations:
  bookmark|highlight|note <reference>
  list <bookmark|highlight|note>
  delete <id>
Chat:
  chats [all]   newchat [title]   open <id>   say <text>   ask <text>
  rename <id> <title>   archive <id>   rmchat <id>   lang <code>
Account:
  login <token>   logout   sync [auto|stop]
  exit | quit`

// runREPL reads one command per line from in and dispatches it to a.
// Handler errors are reported and the loop continues; it exits on EOF,
// on "exit"/"quit", or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("scripture %s> ", statusFn()))

		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "chapter":
			cmdErr = a.Chapter(ctx, args)
		case "translations":
			cmdErr = a.Translations(ctx, args)
		case "translate":
			cmdErr = a.Translate(ctx, args)
		case "download":
			cmdErr = a.Download(ctx, args)
		case "usage":
			cmdErr = a.Usage(ctx, args)
		case "clear":
			cmdErr = a.Clear(ctx, args)

		case "bookmark", "highlight", "note":
			cmdErr = a.Annotate(ctx, models.ContentType(cmd), args)
		case "list":
			cmdErr = a.List(ctx, args)
		case "delete":
			cmdErr = a.Delete(ctx, args)

		case "chats":
			cmdErr = a.Chats(ctx, args)
		case "newchat":
			cmdErr = a.NewChat(ctx, args)
		case "open":
			cmdErr = a.Open(ctx, args)
		case "say":
			cmdErr = a.Say(ctx, args)
		case "ask":
			cmdErr = a.Ask(ctx, args)
		case "rename":
			cmdErr = a.Rename(ctx, args)
		case "archive":
			cmdErr = a.Archive(ctx, args)
		case "rmchat":
			cmdErr = a.RemoveChat(ctx, args)
		case "lang":
			cmdErr = a.Language(ctx, args)

		case "login":
			cmdErr = a.Login(ctx, args)
		case "logout":
			cmdErr = a.Logout(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
