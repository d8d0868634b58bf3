package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/sportvision_viewer/internal/catalog"
	"github.com/daviddao/sportvision_viewer/internal/config"
	"github.com/daviddao/sportvision_viewer/internal/history"
	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/daviddao/sportvision_viewer/internal/scheduler"
	"github.com/daviddao/sportvision_viewer/internal/session"
	"github.com/daviddao/sportvision_viewer/internal/snapshot"
	"github.com/daviddao/sportvision_viewer/internal/transport"
)

// --- Messages ---

// renderTickMsg is one render clock tick.
type renderTickMsg time.Time

type configChangedMsg struct{}

type configLoadedMsg struct {
	cfg *config.Config
	err error
}

type demosMsg struct {
	demos []catalog.Demo
	err   error
}

type historyMsg struct {
	recs []history.Record
	err  error
}

type historySavedMsg struct{}

type startDemoMsg struct{ id string }

type uploadedMsg struct {
	path string
	err  error
}

// Transport messages carry the id of the session they belong to; messages
// for any other session are stale and dropped.

type dialedMsg struct {
	id   string
	conn conn
	err  error
}

type transportMsg struct {
	id     string
	ev     transport.Event
	events <-chan transport.Event
}

type stopTimeoutMsg struct{ id string }

// --- Key bindings ---

type keyMap struct {
	Quit   key.Binding
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Sport  key.Binding
	Reload key.Binding
	Stop   key.Binding
	Back   key.Binding
	Help   key.Binding
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "analyse demo")),
	Sport:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle sport")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload demos")),
	Stop:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Stop, k.Back, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Sport, k.Reload},
		{k.Stop, k.Back, k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current screen.
func contextHelp(live, finished bool) string {
	switch {
	case live:
		return "x: stop | esc: stop and back | ?: help | q: quit"
	case finished:
		return "esc: back to demos | ?: help | q: quit"
	default:
		return "j/k: select demo | enter: analyse | s: sport | r: reload | ?: help | q: quit"
	}
}

// --- Model ---

type uiModel struct {
	cfg      *config.Config
	cfgPath  string
	log      *slog.Logger
	catalog  *catalog.Client
	dial     dialFunc
	recorder *history.Recorder
	save     func(*snapshot.DashboardSnapshot) // nil without history

	sched     *scheduler.Scheduler
	sess      *session.Session // nil while picking a demo
	startedAt time.Time

	sport        string
	demos        []catalog.Demo
	demosErr     error
	loadingDemos bool
	recent       []history.Record
	selected     int
	notice       string // picker-level message, e.g. a failed upload
	autoDemo     string
	autoUpload   string

	width  int
	height int

	spinner  spinner.Model
	progress progress.Model
	bar      progress.Model
	help     help.Model
	showHelp bool
}

func newModel(cfg *config.Config, log *slog.Logger) uiModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return uiModel{
		cfg:      cfg,
		log:      log,
		sched:    scheduler.New(cfg.Render, log),
		sport:    cfg.Sport,
		spinner:  sp,
		progress: progress.New(progress.WithGradient("#00f0ff", "#33ff88")),
		bar:      progress.New(progress.WithSolidFill("#00f0ff"), progress.WithoutPercentage()),
		help:     help.New(),
	}
}

func (m uiModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadDemos(), m.loadHistory()}
	switch {
	case m.autoUpload != "":
		cmds = append(cmds, m.upload(m.autoUpload))
	case m.autoDemo != "":
		id := m.autoDemo
		cmds = append(cmds, func() tea.Msg { return startDemoMsg{id: id} })
	}
	return tea.Batch(cmds...)
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.syncLayout()

	case renderTickMsg:
		m.syncLayout()
		m.sched.Tick(time.Time(msg))

	case spinner.TickMsg:
		if !m.connecting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case demosMsg:
		m.loadingDemos = false
		m.demos, m.demosErr = msg.demos, msg.err
		if m.selected >= len(m.demos) {
			m.selected = max(0, len(m.demos)-1)
		}

	case historyMsg:
		if msg.err != nil {
			m.log.Warn("load history", "error", msg.err)
		}
		m.recent = msg.recs

	case historySavedMsg:
		return m, m.loadHistory()

	case startDemoMsg:
		return m.startSession(protocol.Start{Source: protocol.SourceDemo, ID: msg.id})

	case uploadedMsg:
		if msg.err != nil {
			m.notice = "Upload failed: " + msg.err.Error()
			return m, nil
		}
		return m.startSession(protocol.Start{Source: protocol.SourceUpload, Path: msg.path})

	case dialedMsg:
		if !m.current(msg.id) {
			if msg.conn != nil {
				msg.conn.Close()
			}
			return m, nil
		}
		if msg.err != nil {
			var te *transport.TransportError
			if errors.As(msg.err, &te) {
				m.log.Warn("dial failed", "op", te.Op, "url", te.URL, "error", te.Err)
			}
			m.sess.DialFailed(msg.err)
			return m, nil
		}
		if err := m.sess.Opened(msg.conn); err != nil {
			return m, nil
		}
		return m, waitForEvent(msg.id, msg.conn.Events())

	case transportMsg:
		if !m.current(msg.id) {
			return m, nil
		}
		if msg.ev.Closed {
			m.sess.TransportClosed(msg.ev.Err)
			return m, nil
		}
		// Protocol errors are logged by the session and otherwise ignored.
		_ = m.sess.Receive(msg.ev.Payload)
		return m, waitForEvent(msg.id, msg.events)

	case stopTimeoutMsg:
		if m.current(msg.id) && m.sess.State() == session.Stopped && m.sess.HasTransport() {
			m.log.Debug("stop ack timed out", "session_id", msg.id)
			m.sess.CloseTransport()
		}

	case configChangedMsg:
		return m, m.reloadConfig()

	case configLoadedMsg:
		if msg.err != nil {
			m.log.Warn("config reload rejected", "path", m.cfgPath, "error", msg.err)
			return m, nil
		}
		m.sched.Configure(msg.cfg.Render)
		m.log.Info("config reloaded", "path", m.cfgPath,
			"gauge_alpha", msg.cfg.Render.GaugeAlpha,
			"visibility_threshold", msg.cfg.Render.VisibilityThreshold)
	}

	return m, nil
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.sess != nil {
		switch {
		case key.Matches(msg, keys.Stop):
			return m, m.stop()
		case key.Matches(msg, keys.Back):
			cmd := m.stop()
			if err := m.sess.Back(); err != nil {
				m.log.Warn("back", "error", err)
				return m, cmd
			}
			m.sess = nil
			return m, tea.Batch(cmd, m.loadHistory())
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, keys.Down):
		if m.selected < len(m.demos)-1 {
			m.selected++
		}
	case key.Matches(msg, keys.Enter):
		if m.selected < len(m.demos) {
			return m.startSession(protocol.Start{Source: protocol.SourceDemo, ID: m.demos[m.selected].ID})
		}
	case key.Matches(msg, keys.Sport):
		m.sport = config.NextSport(m.sport)
	case key.Matches(msg, keys.Reload):
		m.loadingDemos = true
		return m, m.loadDemos()
	}
	return m, nil
}

// startSession creates, starts and dials a new session. At most one session
// exists at a time.
func (m uiModel) startSession(start protocol.Start) (tea.Model, tea.Cmd) {
	if m.sess != nil {
		return m, nil
	}
	sess, err := session.New(start, session.Options{
		Sport:     m.sport,
		Sink:      m.sched,
		Resetters: []session.Resetter{m.sched},
		Logger:    m.log,
	})
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	sess.Subscribe(sessionFinished(m.sched, m.log, m.save))
	if err := sess.Start(); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.sess = sess
	m.notice = ""
	m.startedAt = time.Now()
	return m, tea.Batch(m.dialCmd(sess.ID()), m.spinner.Tick)
}

// stop stops a live session and schedules the transport close for when the
// server's ack does not arrive in time.
func (m uiModel) stop() tea.Cmd {
	if m.sess == nil || !m.sess.State().Live() {
		return nil
	}
	if err := m.sess.Stop(); err != nil {
		m.log.Warn("stop", "error", err)
		return nil
	}
	wait := m.cfg.Server.StopAckTimeout
	if !m.sess.HasTransport() || wait <= 0 {
		return nil
	}
	id := m.sess.ID()
	return tea.Tick(wait, func(time.Time) tea.Msg { return stopTimeoutMsg{id: id} })
}

// shutdown ends the current session for program exit.
func (m uiModel) shutdown() {
	if m.sess == nil {
		return
	}
	if m.sess.State().Live() {
		_ = m.sess.Stop()
	}
	m.sess.CloseTransport()
}

func (m uiModel) current(id string) bool {
	return m.sess != nil && m.sess.ID() == id
}

func (m uiModel) connecting() bool {
	if m.sess == nil {
		return false
	}
	st := m.sess.State()
	return st == session.Connecting || st == session.Started
}

// syncLayout tells the scheduler how large the video panel is.
func (m uiModel) syncLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.sched.SetPictureSize(m.pictureSize(m.layout()))
}

// --- Commands ---

func (m uiModel) dialCmd(id string) tea.Cmd {
	dial := m.dial
	url := m.cfg.Server.SocketURL()
	timeout := m.cfg.Server.ConnectTimeout
	return func() tea.Msg {
		if dial == nil {
			return dialedMsg{id: id, err: errors.New("no transport configured")}
		}
		c, err := dial(context.Background(), url, timeout)
		return dialedMsg{id: id, conn: c, err: err}
	}
}

// waitForEvent delivers the next transport event of session id.
func waitForEvent(id string, events <-chan transport.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			ev = transport.Event{Closed: true}
		}
		return transportMsg{id: id, ev: ev, events: events}
	}
}

func (m uiModel) loadDemos() tea.Cmd {
	c := m.catalog
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		demos, err := c.ListDemos(ctx)
		return demosMsg{demos: demos, err: err}
	}
}

func (m uiModel) loadHistory() tea.Cmd {
	rec := m.recorder
	if rec == nil {
		return nil
	}
	return func() tea.Msg {
		recs, err := rec.List(context.Background(), 8)
		return historyMsg{recs: recs, err: err}
	}
}

func (m uiModel) upload(path string) tea.Cmd {
	c := m.catalog
	return func() tea.Msg {
		if c == nil {
			return uploadedMsg{err: errors.New("no server configured")}
		}
		p, err := c.Upload(context.Background(), path)
		return uploadedMsg{path: p, err: err}
	}
}

func (m uiModel) reloadConfig() tea.Cmd {
	path := m.cfgPath
	return func() tea.Msg {
		cfg, err := config.Load(path)
		return configLoadedMsg{cfg: cfg, err: err}
	}
}

// stateIndicator maps a session state to the status dot colour.
func stateIndicator(st session.State) string {
	switch st {
	case session.Connecting, session.Started, session.Active:
		return panel.BandCaution.Color().Hex()
	case session.Complete:
		return panel.BandNominal.Color().Hex()
	case session.Error:
		return panel.BandWarning.Color().Hex()
	default:
		return "#6C7086"
	}
}
