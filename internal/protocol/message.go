package protocol

// Inbound is a message received from the server.
type Inbound interface {
	// Type returns the wire tag of the message.
	Type() string
	accept(h Handler)
}

// Handler receives each inbound variant. Dispatch calls exactly one method.
type Handler interface {
	OnStarted(Started)
	OnFrame(Frame)
	OnComplete(Complete)
	OnStopped(Stopped)
	OnError(ServerError)
}

// Dispatch routes msg to the matching Handler method.
func Dispatch(msg Inbound, h Handler) {
	msg.accept(h)
}

// Started acknowledges a start request.
type Started struct {
	SessionID string
	Video     string
}

// Frame carries one analysed frame.
type Frame struct {
	Data FrameUpdate
}

// Complete reports that the server finished the video.
type Complete struct {
	SessionID string
}

// Stopped acknowledges a stop request.
type Stopped struct {
	SessionID string
}

// ServerError is an error reported by the server. Message is shown verbatim.
type ServerError struct {
	Message string
}

func (Started) Type() string     { return TypeStarted }
func (Frame) Type() string       { return TypeFrame }
func (Complete) Type() string    { return TypeComplete }
func (Stopped) Type() string     { return TypeStopped }
func (ServerError) Type() string { return TypeError }

func (m Started) accept(h Handler)     { h.OnStarted(m) }
func (m Frame) accept(h Handler)       { h.OnFrame(m) }
func (m Complete) accept(h Handler)    { h.OnComplete(m) }
func (m Stopped) accept(h Handler)     { h.OnStopped(m) }
func (m ServerError) accept(h Handler) { h.OnError(m) }

// Source selects where the server reads the video from.
type Source string

const (
	SourceDemo   Source = "demo"
	SourceUpload Source = "upload"
)

// Outbound is a message sent to the server.
type Outbound interface {
	outbound()
}

// Start asks the server to begin analysing a video. ID is required for demo
// sources, Path for uploads.
type Start struct {
	Source Source
	ID     string
	Path   string
}

// Stop asks the server to stop the running analysis.
type Stop struct{}

func (Start) outbound() {}
func (Stop) outbound()  {}
