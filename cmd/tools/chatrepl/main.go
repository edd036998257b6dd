package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/docs-assistant/backend/internal/observability"
	chatservice "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/docs-assistant/backend/internal/service/dispatch"
)

type replOptions struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
	seed        uint64
	seedSet     bool
	catalogPath string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &replOptions{}

	cmd := &cobra.Command{
		Use:   "chatrepl",
		Short: "Chat with the textbook assistant from the terminal",
		Long: `Run an assistant conversation in-process and chat with it line by line.

Each line read from stdin is submitted as a user message. Lines sent while
the assistant is still typing are dropped, exactly like the widget does.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&opts.minDelay, "min-delay", dispatch.DefaultMinDelay, "minimum simulated reply latency")
	flags.DurationVar(&opts.maxDelay, "max-delay", dispatch.DefaultMaxDelay, "maximum simulated reply latency")
	flags.Float64Var(&opts.failureRate, "failure-rate", 0, "probability in [0,1] that a reply fails")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed for reproducible replies")
	flags.StringVar(&opts.catalogPath, "catalog", "", "path to a YAML reply catalog (default: built-in)")
	flags.StringVar(&opts.logLevel, "log-level", "error", "log level: debug, info, warn, error")

	return cmd
}

// lockedWriter serialises writes from the input loop and the renderer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runREPL(ctx context.Context, in io.Reader, w io.Writer, opts *replOptions) error {
	out := &lockedWriter{w: w}

	logger, err := observability.Setup(opts.logLevel, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cat := catalog.Default()
	if opts.catalogPath != "" {
		if cat, err = catalog.Load(opts.catalogPath); err != nil {
			return err
		}
	}

	svcOpts := chatservice.Options{
		Catalog:     cat,
		MinDelay:    opts.minDelay,
		MaxDelay:    opts.maxDelay,
		FailureRate: opts.failureRate,
		Logger:      logger,
	}
	if opts.seedSet {
		seed := opts.seed
		svcOpts.Seed = &seed
	}

	svc, err := chatservice.NewService(ctx, svcOpts)
	if err != nil {
		return err
	}
	conv, err := svc.NewConversation(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s - %s\n", cat.Profile.Title, cat.Profile.Subtitle)
	for _, msg := range conv.Transcript() {
		renderMessage(out, msg)
	}

	events, cancel := conv.Subscribe()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for ev := range events {
			renderEvent(out, ev)
		}
	}()

	inputCtx, stopInput := context.WithCancel(ctx)
	defer stopInput()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-inputCtx.Done():
				return
			}
		}
	}()

	var submitErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			switch err := conv.Submit(ctx, line); {
			case errors.Is(err, chatservice.ErrEmptyInput):
			case errors.Is(err, chatservice.ErrBusy):
				fmt.Fprintln(out, "  (still typing, message dropped)")
			case err != nil:
				submitErr = err
				break loop
			}
		}
	}

	stopInput()
	conv.Wait()
	cancel()
	<-rendered
	return submitErr
}

func renderEvent(out io.Writer, ev chatservice.Event) {
	switch ev.Type {
	case chatservice.EventMessage:
		if ev.Message != nil && ev.Message.Sender == chat.SenderBot {
			renderMessage(out, *ev.Message)
		}
	case chatservice.EventState:
		if ev.Busy {
			fmt.Fprintln(out, "  assistant is typing...")
		}
	}
}

func renderMessage(out io.Writer, msg chat.Message) {
	label := "you"
	if msg.Sender == chat.SenderBot {
		label = "assistant"
	}
	fmt.Fprintf(out, "[%s] %s\n", label, msg.Text)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
