package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stemtube/stemmix/internal/engine"
	"github.com/stemtube/stemmix/internal/mixer"
	"github.com/stemtube/stemmix/internal/source"
	"github.com/stemtube/stemmix/internal/stem"
	"github.com/stemtube/stemmix/internal/ui"
)

func main() {
	sessionFlag := flag.String("session", "", "session identifier on the stem server, or subdirectory for local stems")
	stemsFlag := flag.String("stems", "", "comma-separated stem names to load (default: all known names)")
	compatFlag := flag.Bool("compat", false, "force the per-stem compatibility playback backend")
	logFlag := flag.String("log", "", "write a debug log to this file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	arg := flag.Arg(0)

	logger, logClose, err := openLogger(*logFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	src, fetchSession, title, err := resolveSource(arg, *sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	device, err := engine.NewOtoDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}

	session := mixer.New(mixer.Options{
		Device:      device,
		Logger:      logger,
		ForceCompat: *compatFlag,
	})
	defer session.Close()

	names := stem.DefaultNames
	if *stemsFlag != "" {
		names = splitStems(*stemsFlag)
	}

	loadModel := ui.NewLoad(session, src, fetchSession, title, names)
	loadProgram := tea.NewProgram(loadModel, tea.WithAltScreen())
	finalModel, err := loadProgram.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	lm, ok := finalModel.(ui.LoadModel)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unexpected model type from loader\n")
		os.Exit(1)
	}
	result := lm.Result()
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		os.Exit(1)
	}

	model := ui.New(session, title)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveSource maps the positional argument to a stem source. An
// http(s) URL means a stem server and requires -session; anything else
// is a local directory, where -session selects a subdirectory.
func resolveSource(arg, session string) (source.Source, string, string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		if session == "" {
			return nil, "", "", fmt.Errorf("-session is required with a stem server URL")
		}
		return source.NewClient(arg), session, session, nil
	}

	title := session
	if title == "" {
		title = strings.TrimSuffix(arg, "/")
		if i := strings.LastIndexByte(title, '/'); i >= 0 {
			title = title[i+1:]
		}
	}
	return source.DirSource{Dir: arg}, session, title, nil
}

func splitStems(csv string) []string {
	var out []string
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// openLogger builds the process logger. Without -log everything is
// discarded so the TUI owns the terminal.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: stemmix [flags] <stem-server-url | stem-directory>

Plays the separated stems of one song with per-stem volume, pan, mute
and solo, a zoomable waveform timeline, and mouse scratching.

Examples:
  stemmix -session 4f2a http://localhost:5000
  stemmix ./separated/mysong

Flags:
`)
	flag.PrintDefaults()
}
