// Package session implements the analysis session lifecycle.
//
// A Session is created per analysis run, owned by its caller, and discarded
// after back navigation. It performs no I/O of its own: the caller dials the
// transport and reports the outcome, feeds every inbound payload to Receive,
// and reports when the transport closes. All methods must be called from one
// goroutine.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/daviddao/sportvision_viewer/internal/protocol"
)

var (
	// ErrInvalidTransition is returned for an operation the current state
	// does not allow.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNoTransport is returned when a transport is required but missing.
	ErrNoTransport = errors.New("no transport")
)

// Transport is the open duplex connection of a session.
type Transport interface {
	Send(payload []byte) error
	Close() error
}

// FrameSink consumes frame updates on the receive path.
type FrameSink interface {
	Ingest(protocol.FrameUpdate)
}

// Resetter is state cleared at session start and on back navigation.
type Resetter interface {
	Reset()
}

// Transition describes one state change.
type Transition struct {
	SessionID string
	From, To  State
	Status    string
}

// Listener is notified after every state change.
type Listener func(*Session, Transition)

// Options configures a Session.
type Options struct {
	Sport     string
	Sink      FrameSink
	Resetters []Resetter
	Logger    *slog.Logger
}

// Session is one analysis run bound to a single transport connection.
type Session struct {
	id        string
	source    protocol.Start
	sport     string
	state     State
	analyzing bool
	status    string

	conn      Transport
	sink      FrameSink
	resetters []Resetter
	listeners []Listener
	log       *slog.Logger

	frames         uint64
	protocolErrors uint64
	serverID       string
}

// New returns an Idle session for the given start request.
func New(start protocol.Start, opts Options) (*Session, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		source:    start,
		sport:     opts.Sport,
		state:     Idle,
		status:    "Ready",
		sink:      opts.Sink,
		resetters: opts.Resetters,
		log:       log.With("session_id", id),
	}, nil
}

// Subscribe registers l for state changes.
func (s *Session) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Source() protocol.Start  { return s.source }
func (s *Session) Sport() string           { return s.sport }
func (s *Session) State() State            { return s.state }
func (s *Session) Analyzing() bool         { return s.analyzing }
func (s *Session) Status() string          { return s.status }
func (s *Session) Frames() uint64          { return s.frames }
func (s *Session) ProtocolErrors() uint64  { return s.protocolErrors }
func (s *Session) ServerSessionID() string { return s.serverID }

// HasTransport reports whether a transport is attached and not yet closed.
func (s *Session) HasTransport() bool { return s.conn != nil }

// Start moves Idle to Connecting and clears the dashboard. The caller dials
// next and reports through Opened or DialFailed.
func (s *Session) Start() error {
	if s.state != Idle {
		return s.invalid("start")
	}
	s.reset()
	s.analyzing = true
	s.transition(Connecting, "Connecting to analysis engine...")
	return nil
}

// Opened attaches the dialled transport and sends the start request. If the
// session already ended while dialling, the transport is closed instead.
func (s *Session) Opened(t Transport) error {
	if t == nil {
		return ErrNoTransport
	}
	if s.state != Connecting {
		_ = t.Close()
		return s.invalid("open")
	}
	s.conn = t
	payload, err := protocol.Encode(s.source)
	if err != nil {
		return s.fail(fmt.Errorf("encode start: %w", err))
	}
	if err := t.Send(payload); err != nil {
		return s.fail(fmt.Errorf("send start: %w", err))
	}
	s.transition(Started, "Analyzing...")
	return nil
}

// DialFailed ends a connecting session with the dial error.
func (s *Session) DialFailed(err error) {
	if s.state != Connecting {
		s.log.Debug("late dial failure ignored", "state", s.state, "error", err)
		return
	}
	s.analyzing = false
	s.transition(Error, "Connection error: "+err.Error())
}

// Receive decodes and dispatches one inbound payload. A malformed payload is
// logged and returned; the session state is unchanged.
func (s *Session) Receive(payload []byte) error {
	msg, err := protocol.Decode(payload)
	if err != nil {
		s.protocolErrors++
		s.log.Warn("protocol error", "error", err, "bytes", len(payload))
		return err
	}
	protocol.Dispatch(msg, s)
	return nil
}

// OnStarted implements protocol.Handler.
func (s *Session) OnStarted(m protocol.Started) {
	if s.state != Connecting && s.state != Started {
		s.ignored(m)
		return
	}
	s.serverID = m.SessionID
	s.transition(Active, "Analyzing...")
}

// OnFrame implements protocol.Handler.
func (s *Session) OnFrame(m protocol.Frame) {
	if !s.state.Live() {
		s.ignored(m)
		return
	}
	s.frames++
	if s.sink != nil {
		s.sink.Ingest(m.Data)
	}
}

// OnComplete implements protocol.Handler.
func (s *Session) OnComplete(m protocol.Complete) {
	if !s.state.Live() {
		s.ignored(m)
		return
	}
	s.analyzing = false
	s.transition(Complete, "Analysis complete")
}

// OnStopped implements protocol.Handler. The server's ack of a user stop
// closes the transport.
func (s *Session) OnStopped(m protocol.Stopped) {
	switch {
	case s.state == Stopped:
		s.CloseTransport()
	case s.state.Live():
		s.analyzing = false
		s.transition(Stopped, "Stopped")
	default:
		s.ignored(m)
	}
}

// OnError implements protocol.Handler.
func (s *Session) OnError(m protocol.ServerError) {
	if !s.state.Live() {
		s.ignored(m)
		return
	}
	s.analyzing = false
	s.transition(Error, m.Message)
}

// Stop ends a live session without waiting for the server: stop is sent if
// the transport is open and the state flips to Stopped at once. The
// transport stays open for the server's ack; the caller closes it with
// CloseTransport once its wait expires.
func (s *Session) Stop() error {
	if !s.state.Live() {
		return s.invalid("stop")
	}
	if s.conn != nil {
		payload, err := protocol.Encode(protocol.Stop{})
		if err == nil {
			err = s.conn.Send(payload)
		}
		if err != nil {
			s.log.Warn("stop not delivered", "error", err)
		}
	}
	s.analyzing = false
	s.transition(Stopped, "Stopped")
	return nil
}

// TransportClosed reports that the transport closed. On a live session
// that was still analyzing this is taken as completion; it is logged as a
// suspected abnormal close since a dropped connection looks the same.
func (s *Session) TransportClosed(cause error) {
	s.conn = nil
	if !s.state.Live() {
		return
	}
	if !s.analyzing {
		return
	}
	s.log.Warn("SuspectedAbnormalClose", "state", s.state, "frames", s.frames, "error", cause)
	s.analyzing = false
	s.transition(Complete, "Analysis complete")
}

// Back returns a finished session to Idle: the transport is closed and the
// dashboard cleared.
func (s *Session) Back() error {
	if !s.state.Terminal() {
		return s.invalid("back")
	}
	s.CloseTransport()
	s.reset()
	s.transition(Idle, "Ready")
	return nil
}

// CloseTransport closes the transport if one is attached.
func (s *Session) CloseTransport() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.log.Debug("close transport", "error", err)
	}
	s.conn = nil
}

func (s *Session) fail(err error) error {
	s.CloseTransport()
	s.analyzing = false
	s.transition(Error, "Connection error: "+err.Error())
	return err
}

func (s *Session) reset() {
	for _, r := range s.resetters {
		r.Reset()
	}
}

func (s *Session) transition(to State, status string) {
	tr := Transition{SessionID: s.id, From: s.state, To: to, Status: status}
	s.state = to
	s.status = status
	s.log.Info("session transition", "from", tr.From, "to", tr.To, "status", status)
	for _, l := range s.listeners {
		l(s, tr)
	}
}

func (s *Session) ignored(m protocol.Inbound) {
	s.log.Debug("message ignored", "type", m.Type(), "state", s.state)
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, s.state)
}
