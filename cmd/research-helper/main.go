package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-studio/pkg/clients"
	"github.com/mikeboe/research-studio/pkg/config"
	"github.com/mikeboe/research-studio/pkg/research"
	"github.com/mikeboe/research-studio/pkg/session"
)

var (
	topic   string
	raw     bool
	verbose bool
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sourceStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "research-helper",
		Short:        "A terminal-based research agent",
		Long:         `research-helper streams a grounded, five-section research report on a topic and lists the web sources it cites.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().BoolVar(&raw, "raw", false, "Stream raw markdown instead of rendering the finished report")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if !cmd.Flags().Changed("topic") {
		// Interactive Mode
		fmt.Print("Enter research topic: ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		topic = strings.TrimSpace(input)
	}
	if strings.TrimSpace(topic) == "" {
		return session.ErrEmptyTopic
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gen, err := clients.NewGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	streamer := research.NewStreamer(research.ConfigFrom(cfg), gen)
	streamer.Logger = logger

	sess := session.New(streamer)
	sess.Logger = logger
	defer sess.Close()

	updates, cancel := sess.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		follow(os.Stdout, updates, raw)
	}()

	submitErr := sess.Submit(ctx, topic)
	cancel()
	<-printed

	snap := sess.Snapshot()
	if !raw && snap.Artifact != nil {
		if err := render(os.Stdout, snap.Artifact.Content); err != nil {
			logger.Warn("Failed to render markdown, printing raw", "error", err)
			fmt.Println(snap.Artifact.Content)
		}
	}
	printSources(os.Stdout, snap.Sources)

	if submitErr != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(submitErr.Error()))
		return submitErr
	}
	return nil
}

// follow prints new transcript messages and, in raw mode, the report text as it grows.
func follow(w io.Writer, updates <-chan session.Snapshot, raw bool) {
	seen := 0
	written := 0
	for snap := range updates {
		for _, m := range snap.Messages[seen:] {
			printMessage(w, m)
		}
		seen = len(snap.Messages)

		if raw && snap.Artifact != nil && len(snap.Artifact.Content) > written {
			fmt.Fprint(w, snap.Artifact.Content[written:])
			written = len(snap.Artifact.Content)
		}
	}
	if raw && written > 0 {
		fmt.Fprintln(w)
	}
}

func printMessage(w io.Writer, m session.Message) {
	switch m.Role {
	case session.RoleUser:
		fmt.Fprintln(w, userStyle.Render("> "+m.Content))
	default:
		fmt.Fprintln(w, assistantStyle.Render(m.Content))
	}
	fmt.Fprintln(w)
}

func render(w io.Writer, markdown string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(markdown)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func printSources(w io.Writer, sources []research.GroundingSource) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, userStyle.Render("Referenced Sources"))
	for i, s := range sources {
		fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, s.Title, sourceStyle.Render(s.URI))
	}
}
