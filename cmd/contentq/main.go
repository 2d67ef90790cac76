// Command contentq manages the content publishing queue and serves its HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/contentq/internal/app"
	"github.com/bissquit/contentq/internal/config"
	"github.com/bissquit/contentq/internal/contentqueue"

	_ "time/tzdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command is a single CLI subcommand.
type command struct {
	usage   string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"add":        {"add <slug> <title>", 2, 2, runAdd},
	"draft":      {"draft <slug> <title>", 2, 2, runDraft},
	"list":       {"list [status]", 0, 1, runList},
	"schedule":   {"schedule <slug>", 1, 1, runSchedule},
	"reschedule": {"reschedule <slug> <time>", 2, 2, runReschedule},
	"process":    {"process", 0, 0, runProcess},
	"stats":      {"stats", 0, 0, runStats},
	"next":       {"next", 0, 0, runNext},
	"delete":     {"delete <slug>", 1, 1, runDelete},
	"serve":      {"serve", 0, 0, runServe},
	"migrate":    {"migrate", 0, 0, runMigrate},
	"token":      {"token <subject> [role]", 1, 2, runToken},
}

var commandOrder = []string{
	"add", "draft", "list", "schedule", "reschedule", "process",
	"stats", "next", "delete", "serve", "migrate", "token",
}

// cli carries the loaded config and lazily opened store for one invocation.
type cli struct {
	cfg     *config.Config
	out     io.Writer
	store   *app.Store
	service *contentqueue.Service
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "❌ Unknown command: %s\n", name)
		printUsage(stderr)
		return 1
	}
	if len(rest) < cmd.minArgs || len(rest) > cmd.maxArgs {
		fmt.Fprintf(stderr, "❌ Usage: contentq %s\n", cmd.usage)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 1
	}
	app.InitLogger(cfg.Log)

	c := &cli{cfg: cfg, out: stdout}
	defer c.close()

	if err := cmd.run(ctx, c, rest); err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: contentq <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// queue opens the configured store on first use.
func (c *cli) queue(ctx context.Context) (*contentqueue.Service, error) {
	if c.service != nil {
		return c.service, nil
	}

	store, err := app.OpenStore(ctx, c.cfg.Database)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.service = contentqueue.NewService(store, contentqueue.SourcePublisher{Root: c.cfg.Content.Root}, nil)
	return c.service, nil
}

func (c *cli) close() {
	if c.store != nil {
		c.store.Close()
	}
}

// itemNotFoundError reports a slug lookup miss.
type itemNotFoundError struct {
	slug string
}

func (e itemNotFoundError) Error() string {
	return "Item not found: " + e.slug
}

func (e itemNotFoundError) Unwrap() error {
	return contentqueue.ErrItemNotFound
}

func lookup(ctx context.Context, svc *contentqueue.Service, slug string) (string, error) {
	item, err := svc.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, contentqueue.ErrItemNotFound) {
			return "", itemNotFoundError{slug: slug}
		}
		return "", err
	}
	return item.ID, nil
}
