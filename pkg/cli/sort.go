package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/client"
	"github.com/m-mizutani/sortinghat/pkg/frame"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
	"github.com/m-mizutani/sortinghat/pkg/view"
	"github.com/urfave/cli/v3"
)

const sortHelp = "Commands: share, fid <n>, show, exit"

func sortCommand() *cli.Command {
	var (
		cfg          config
		apiURL       string
		frameContext string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "api-url",
			Usage:       "Base URL of a running sortinghat server",
			Value:       "http://127.0.0.1:3000",
			Sources:     cli.EnvVars("SORTINGHAT_API_URL"),
			Destination: &apiURL,
		},
		&cli.StringFlag{
			Name:        "frame-context",
			Usage:       "Path of the frame context JSON written by the host. " + frame.EnvFID + " is used when not set",
			Sources:     cli.EnvVars("SORTINGHAT_FRAME_CONTEXT"),
			Destination: &frameContext,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)

	return &cli.Command{
		Name:  "sort",
		Usage: "Find out your Hogwarts house interactively",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)
			w := c.Root().Writer

			var host frame.Host = frame.NewEnvHost(w)
			if frameContext != "" {
				host = frame.NewContextFileHost(frameContext, w)
			}

			s := newSession(view.New(client.New(apiURL), host), w)
			s.identify(ctx, frame.NewBridge(host))

			return s.prompt(ctx)
		},
	}
}

// session drives a view from terminal commands
type session struct {
	view *view.View
	w    io.Writer
}

func newSession(v *view.View, w io.Writer) *session {
	return &session{view: v, w: w}
}

// identify waits for the frame identity and loads its sorting
func (s *session) identify(ctx context.Context, bridge *frame.Bridge) {
	s.render(ctx)

	identity := bridge.Start(ctx)
	fid, err := s.wait(ctx, identity)
	if err != nil {
		logging.From(ctx).Warn("frame identity is not available", "error", err)
		s.view.Fail(err)
		s.render(ctx)
		return
	}

	s.load(ctx, fid)
}

func (s *session) wait(ctx context.Context, identity *frame.Identity) (model.FID, error) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(s.w),
		spinner.WithSuffix(" Waiting for frame context..."),
	)
	sp.Start()
	defer sp.Stop()

	return identity.Wait(ctx)
}

func (s *session) load(ctx context.Context, fid model.FID) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(s.w),
		spinner.WithSuffix(" Consulting the Sorting Hat..."),
	)
	sp.Start()
	err := s.view.Load(ctx, fid)
	sp.Stop()

	if err != nil && !errors.Is(err, view.ErrStaleResult) {
		logging.From(ctx).Debug("load failed", "fid", fid, "error", err)
	}
	s.render(ctx)
}

func (s *session) render(ctx context.Context) {
	if err := view.Render(s.w, s.view.Snapshot()); err != nil {
		logging.From(ctx).Error("failed to render view", "error", err)
	}
}

// handle runs one command line. It returns false when the session should end.
func (s *session) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch strings.ToLower(fields[0]) {
	case "exit", "quit", "q":
		return false

	case "share":
		_ = s.view.Share(ctx)
		if status := s.view.Snapshot().Status; status != "" {
			fmt.Fprintln(s.w, status)
		}

	case "fid":
		if len(fields) != 2 {
			fmt.Fprintln(s.w, "usage: fid <n>")
			return true
		}
		fid, err := model.ParseFID(fields[1])
		if err != nil {
			fmt.Fprintf(s.w, "invalid fid: %s\n", fields[1])
			return true
		}
		s.load(ctx, fid)

	case "show":
		s.render(ctx)

	case "help":
		fmt.Fprintln(s.w, sortHelp)

	default:
		fmt.Fprintf(s.w, "unknown command: %s\n%s\n", fields[0], sortHelp)
	}

	return true
}

func (s *session) prompt(ctx context.Context) error {
	homeDir, _ := os.UserHomeDir()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "sortinghat> ",
		HistoryFile:       filepath.Join(homeDir, ".sortinghat_history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            s.w,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	fmt.Fprintln(s.w, sortHelp)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return goerr.Wrap(err, "failed to read command")
		}

		if !s.handle(ctx, line) {
			return nil
		}
	}
}
