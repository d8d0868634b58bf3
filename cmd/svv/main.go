// svv is a real-time TUI viewer for the sport vision analysis server.
//
// It streams an analysis session over a WebSocket and renders the video frame
// with a skeleton overlay, joint gauges, a motion heatmap, the action
// timeline and running statistics.
//
// Usage:
//
//	svv                         # Pick a demo from the server's catalog
//	svv --demo <id>             # Start a demo session right away
//	svv --upload <file>         # Upload a video, then analyse it
//	svv --demo <id> --json      # Run headless, print the final state as JSON
//	svv demos                   # List demo videos
//	svv upload <file>           # Upload a video and print its server path
//	svv history                 # List recorded sessions
//	svv --config <path>         # Use a specific config file
//	svv --version               # Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/daviddao/sportvision_viewer/internal/catalog"
	"github.com/daviddao/sportvision_viewer/internal/config"
	"github.com/daviddao/sportvision_viewer/internal/datasource"
	"github.com/daviddao/sportvision_viewer/internal/history"
	"github.com/daviddao/sportvision_viewer/internal/logging"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/daviddao/sportvision_viewer/internal/scheduler"
	"github.com/daviddao/sportvision_viewer/internal/session"
	"github.com/daviddao/sportvision_viewer/internal/snapshot"
	"github.com/daviddao/sportvision_viewer/internal/transport"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "svv: %v\n", err)
		os.Exit(1)
	}
}

// rootFlags are the flags shared by every subcommand.
type rootFlags struct {
	configPath string
	demo       string
	upload     string
	sport      string
	jsonMode   bool
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	root := &cobra.Command{
		Use:           "svv",
		Short:         "Sport vision viewer",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "path to config.yaml (default: auto-discover)")
	root.Flags().StringVar(&f.demo, "demo", "", "start the demo with this id")
	root.Flags().StringVar(&f.upload, "upload", "", "upload this video file and analyse it")
	root.Flags().StringVar(&f.sport, "sport", "", "sport: badminton|tennis|table_tennis")
	root.Flags().BoolVar(&f.jsonMode, "json", false, "run without the TUI and print the final session as JSON")
	root.MarkFlagsMutuallyExclusive("demo", "upload")

	root.AddCommand(newDemosCmd(&f.configPath))
	root.AddCommand(newUploadCmd(&f.configPath))
	root.AddCommand(newHistoryCmd(&f.configPath))
	return root
}

func loadConfig(path string) (*config.Config, string, error) {
	cfg, found, err := datasource.Open(path)
	if err != nil {
		return nil, "", err
	}
	// Relative state paths live next to the config file.
	dir := datasource.StateDir(found)
	cfg.History.Path = resolveState(dir, cfg.History.Path)
	cfg.Log.File = resolveState(dir, cfg.Log.File)
	return cfg, found, nil
}

// resolveState rebases a default ".sportvision/..." path onto dir.
func resolveState(dir, p string) string {
	const prefix = ".sportvision/"
	if !strings.HasPrefix(filepath.ToSlash(p), prefix) {
		return p
	}
	return filepath.Join(dir, filepath.FromSlash(p[len(prefix):]))
}

func run(cmd *cobra.Command, f rootFlags) error {
	cfg, cfgPath, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.sport != "" {
		if !config.ValidSport(f.sport) {
			return fmt.Errorf("unknown sport %q", f.sport)
		}
		cfg.Sport = f.sport
	}

	if f.jsonMode {
		if f.demo == "" && f.upload == "" {
			return errors.New("--json needs --demo or --upload")
		}
		return runHeadlessCmd(cmd, cfg, f)
	}
	return runTUI(cfg, cfgPath, f)
}

func runHeadlessCmd(cmd *cobra.Command, cfg *config.Config, f rootFlags) error {
	log, err := logging.ToStderr(cfg.Log)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := protocol.Start{Source: protocol.SourceDemo, ID: f.demo}
	if f.upload != "" {
		path, err := catalog.New(cfg.Server.APIURL).Upload(ctx, f.upload)
		if err != nil {
			return err
		}
		start = protocol.Start{Source: protocol.SourceUpload, Path: path}
	}

	rec := openHistory(cfg, log)
	if rec != nil {
		defer rec.Close()
	}
	h := headless{
		cfg:    cfg,
		log:    log,
		dial:   dialWebSocket,
		clock:  scheduler.TickerClock{Interval: cfg.Render.TickInterval()},
		record: rec,
	}
	snap, err := h.run(ctx, start)
	if snap != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(snap); encErr != nil {
			return fmt.Errorf("json: %w", encErr)
		}
	}
	return err
}

func runTUI(cfg *config.Config, cfgPath string, f rootFlags) error {
	log, closer, err := logging.ToFile(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	rec := openHistory(cfg, log)
	if rec != nil {
		defer rec.Close()
	}

	m := newModel(cfg, log)
	m.catalog = catalog.New(cfg.Server.APIURL)
	m.loadingDemos = true
	m.dial = dialWebSocket
	m.recorder = rec

	// History writes run off the program goroutine; the picker reloads the
	// list once a write lands.
	var p *tea.Program
	var pending sync.WaitGroup
	defer pending.Wait()
	if rec != nil {
		m.save = func(snap *snapshot.DashboardSnapshot) {
			pending.Add(1)
			go func() {
				defer pending.Done()
				saveSession(rec, snap, log)
				p.Send(historySavedMsg{})
			}()
		}
	}
	m.cfgPath = cfgPath
	m.autoDemo = f.demo
	m.autoUpload = f.upload

	var w *datasource.Watcher
	if cfgPath != "" {
		w, err = datasource.NewWatcher(cfgPath)
		if err != nil {
			log.Warn("config hot reload disabled", "path", cfgPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	p = tea.NewProgram(m, tea.WithAltScreen())

	// Feed config changes into the TUI.
	if w != nil {
		go func() {
			for range w.Changes() {
				p.Send(configChangedMsg{})
			}
		}()
	}

	// Render clock: ticks are handled on the program's goroutine.
	cancel := scheduler.TickerClock{Interval: cfg.Render.TickInterval()}.OnTick(func(now time.Time) {
		p.Send(renderTickMsg(now))
	})
	defer cancel()

	final, err := p.Run()
	if fm, ok := final.(uiModel); ok {
		fm.shutdown()
	}
	return err
}

// openHistory opens the history database, or returns nil when history is
// disabled or unavailable.
func openHistory(cfg *config.Config, log *slog.Logger) *history.Recorder {
	if !cfg.History.Enabled {
		return nil
	}
	rec, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn("session history disabled", "path", cfg.History.Path, "error", err)
		return nil
	}
	return rec
}

// sessionFinished returns a listener that logs every session reaching a
// terminal state and hands its snapshot to save. The snapshot is built on
// the caller's goroutine; save may be nil.
func sessionFinished(sched *scheduler.Scheduler, log *slog.Logger, save func(*snapshot.DashboardSnapshot)) session.Listener {
	return func(s *session.Session, tr session.Transition) {
		if !tr.To.Terminal() {
			return
		}
		snap := snapshot.Build(s, sched)
		log.Info("session finished",
			"session_id", s.ID(),
			"state", tr.To,
			"frames", snap.FramesReceived,
			"dropped", snap.FramesDropped,
			"protocol_errors", snap.ProtocolErrors,
		)
		if save != nil {
			save(snap)
		}
	}
}

// saveSession writes snap to the history database.
func saveSession(rec *history.Recorder, snap *snapshot.DashboardSnapshot, log *slog.Logger) {
	if rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Record(ctx, snap); err != nil {
		log.Warn("record session", "error", err)
	}
}

// conn is an open transport as the UI sees it.
type conn interface {
	session.Transport
	Events() <-chan transport.Event
}

type dialFunc func(ctx context.Context, url string, timeout time.Duration) (conn, error)

func dialWebSocket(ctx context.Context, url string, timeout time.Duration) (conn, error) {
	c, err := transport.Dial(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// --- Subcommands ---

func newDemosCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demos",
		Short: "List the server's demo videos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			demos, err := catalog.New(cfg.Server.APIURL).ListDemos(cmd.Context())
			if err != nil {
				return err
			}
			return printDemos(cmd.OutOrStdout(), demos)
		},
	}
}

func printDemos(w io.Writer, demos []catalog.Demo) error {
	if len(demos) == 0 {
		_, err := fmt.Fprintln(w, "no demos")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFILE\tSIZE")
	for _, d := range demos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f MB\n", d.ID, d.Name, d.Filename, d.SizeMB)
	}
	return tw.Flush()
}

func newUploadCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video and print its server path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			path, err := catalog.New(cfg.Server.APIURL).Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rec, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer rec.Close()
			recs, err := rec.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			return printHistory(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of sessions to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

func printHistory(w io.Writer, recs []history.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "no sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tSOURCE\tSPORT\tSTATE\tFRAMES\tDROPPED\tACTIONS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s:%s\t%s\t%s\t%d\t%d\t%d\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			r.Source, truncate(r.SourceRef, 24),
			r.Sport, r.State, r.FramesReceived, r.FramesDropped, len(r.Timeline))
	}
	return tw.Flush()
}
