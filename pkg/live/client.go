// Package live implements a bidirectional WebSocket client for Google's
// Gemini Live API (BidiGenerateContent protocol).
//
// A Client streams base64-encoded PCM and JPEG chunks upstream as realtime
// input and surfaces the model's audio, text, and turn boundaries through
// caller-supplied handlers. All handlers are invoked sequentially from a
// single receive goroutine, so events arrive in wire order.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultModel   = "gemini-2.5-flash-native-audio-latest"
	defaultVoice   = "Aoede"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second

	audioMIMEType = "audio/pcm;rate=16000"
	imageMIMEType = "image/jpeg"
)

// State describes the lifecycle of a Client connection.
type State int32

const (
	// StateConnecting means the socket is open but the server has not yet
	// acknowledged setup. Media sent now is dropped, not queued.
	StateConnecting State = iota
	// StateReady means setup is acknowledged and media flows both ways.
	StateReady
	// StateClosed means the session has terminated.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handlers receives session events. Any field may be nil. Ready fires exactly
// once per session; Closed fires exactly once with the terminating error, or
// nil after a clean local Close.
type Handlers struct {
	Ready        func()
	Audio        func(pcm []byte)
	Text         func(text string)
	TurnComplete func()
	Closed       func(err error)
}

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model used for the session.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithVoice sets the prebuilt voice for synthesised speech.
func WithVoice(voice string) Option {
	return func(c *Client) { c.voice = voice }
}

// WithSystemPrompt sets the system instruction sent during setup.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// ── Client ─────────────────────────────────────────────────────────────────────

// Client is a single live session. Create one with Dial; it is not reusable
// after Close.
type Client struct {
	model        string
	voice        string
	systemPrompt string
	baseURL      string

	conn     *websocket.Conn
	handlers Handlers
	state    atomic.Int32

	mu     sync.Mutex
	closed bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
}

// Dial connects to the live endpoint, sends the setup message, and starts the
// receive and keepalive loops. The returned Client is in StateConnecting until
// the server acknowledges setup.
func Dial(ctx context.Context, apiKey string, h Handlers, opts ...Option) (*Client, error) {
	c := &Client{
		model:    defaultModel,
		voice:    defaultVoice,
		baseURL:  defaultBaseURL,
		handlers: h,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		c.baseURL, apiKey,
	)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("live: dial: %w", err)
	}
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.sendSetup(); err != nil {
		c.cancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("live: setup: %w", err)
	}

	go c.receiveLoop()
	go c.keepaliveLoop()

	return c, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// sendSetup sends the initial BidiGenerateContent setup message.
func (c *Client) sendSetup() error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", c.model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"audio"},
			},
		},
	}
	if c.systemPrompt != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: c.systemPrompt}},
		}
	}
	if c.voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.voice},
			},
		}
	}
	return c.writeJSON(msg)
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("live: marshal: %w", err)
	}
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// ── Receive path ───────────────────────────────────────────────────────────────

// receiveLoop reads messages from the WebSocket and dispatches them to the
// handlers. It owns the Closed notification: the handler fires when the loop
// exits, whether from a remote error or a local Close.
func (c *Client) receiveLoop() {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				c.notifyClosed(nil)
				return
			}
			c.notifyClosed(err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("live: discarding unparsable frame", "bytes", len(data))
			continue
		}
		msg.normalize()
		c.handleServerMessage(&msg)
	}
}

func (c *Client) handleServerMessage(msg *serverMessage) {
	if msg.SetupComplete != nil {
		c.readyOnce.Do(func() {
			c.state.CompareAndSwap(int32(StateConnecting), int32(StateReady))
			if c.handlers.Ready != nil {
				c.handlers.Ready()
			}
		})
	}
	if msg.Error != nil {
		slog.Warn("live: server error",
			"code", msg.Error.Code,
			"status", msg.Error.Status,
			"message", msg.Error.Message,
		)
	}
	if msg.ServerContent != nil {
		c.handleServerContent(msg.ServerContent)
	}
}

func (c *Client) handleServerContent(sc *serverContent) {
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil {
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil || len(pcm) == 0 {
					continue
				}
				if c.handlers.Audio != nil {
					c.handlers.Audio(pcm)
				}
			}
			if p.Text != "" && c.handlers.Text != nil {
				c.handlers.Text(p.Text)
			}
		}
	}
	if sc.TurnComplete && c.handlers.TurnComplete != nil {
		c.handlers.TurnComplete()
	}
}

func (c *Client) notifyClosed(err error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		if c.handlers.Closed != nil {
			c.handlers.Closed(err)
		}
	})
}

// keepaliveLoop sends WebSocket pings so idle stretches between turns do not
// drop the connection.
func (c *Client) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, keepaliveTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}

// ── Send path ──────────────────────────────────────────────────────────────────

// SendAudioChunk delivers one chunk of 16 kHz s16le mono PCM as realtime
// input. Chunks sent before the session is ready are dropped, not queued:
// stale audio from before setup has no conversational value.
func (c *Client) SendAudioChunk(pcm []byte) error {
	return c.sendMediaChunk(audioMIMEType, pcm)
}

// SendImageChunk delivers one JPEG camera frame as realtime input. Same drop
// semantics as SendAudioChunk.
func (c *Client) SendImageChunk(jpeg []byte) error {
	return c.sendMediaChunk(imageMIMEType, jpeg)
}

func (c *Client) sendMediaChunk(mimeType string, data []byte) error {
	switch c.State() {
	case StateConnecting:
		slog.Debug("live: dropping media chunk before ready", "mimeType", mimeType)
		return nil
	case StateClosed:
		return fmt.Errorf("live: session closed")
	}
	if len(data) == 0 {
		return nil
	}

	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)},
			},
		},
	}
	return c.writeJSON(msg)
}

// SendText submits a complete user text turn, prompting the model to respond.
// Used to kick off the conversation before any speech has been captured.
func (c *Client) SendText(text string) error {
	if c.State() == StateClosed {
		return fmt.Errorf("live: session closed")
	}
	msg := clientContentMessage{
		ClientContent: clientContent{
			Turns: []contentTurn{
				{Role: "user", Parts: []part{{Text: text}}},
			},
			TurnComplete: true,
		},
	}
	return c.writeJSON(msg)
}

// Close terminates the session and releases all resources. Idempotent. The
// Closed handler fires with a nil error for a locally initiated close.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()    // unblocks receiveLoop and keepaliveLoop
	close(c.done) // signals keepaliveLoop via done channel
	c.conn.Close(websocket.StatusNormalClosure, "session closed")
	c.notifyClosed(nil)
	return nil
}
