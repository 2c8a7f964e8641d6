// Package session composes capture, the live connection, playback, the
// interpreter, and the recorder into one negotiation session. The
// orchestrator owns every per-session resource and tears them all down
// together; its phase machine serialises start/stop against the async
// connection callbacks.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/marbeck/viperdojo/internal/config"
	"github.com/marbeck/viperdojo/internal/game"
	"github.com/marbeck/viperdojo/internal/interpret"
	"github.com/marbeck/viperdojo/internal/observe"
	"github.com/marbeck/viperdojo/internal/recorder"
	"github.com/marbeck/viperdojo/pkg/audio"
	"github.com/marbeck/viperdojo/pkg/live"
)

// defaultSystemPrompt is the opponent persona used when the config does not
// override it.
const defaultSystemPrompt = `You are Viper, a sharp, skeptical executive on ` +
	`the other side of a salary negotiation. You respect preparation and ` +
	`confidence and have no patience for rambling or hedging. Push back hard ` +
	`on weak arguments, concede ground only to strong ones, and keep your ` +
	`replies short and pointed. As you speak, comment on what you observe in ` +
	`the candidate: their eye contact, their posture, whether they sound ` +
	`nervous or confident, and whether you are impressed, frustrated, or ` +
	`dismissive of their last point.`

// defaultKickstart is the player's implicit opening turn, sent once the
// connection reports ready so the opponent speaks first.
const defaultKickstart = "Hello Viper, I'm here to negotiate my salary."

// silenceReason is the confidence-penalty reason applied by the watchdog.
const silenceReason = "Awkward silence - speak up!"

// LiveClient is the slice of the realtime connection the orchestrator uses.
// *live.Client satisfies it; tests substitute a fake.
type LiveClient interface {
	SendAudioChunk(pcm []byte) error
	SendImageChunk(jpeg []byte) error
	SendText(text string) error
	Close() error
}

type captureSource interface {
	Frames() <-chan audio.Frame
	Close() error
}

type videoSource interface {
	Latest() []byte
	Close() error
}

type sessionRecorder interface {
	game.MomentSink
	Start(ctx context.Context) error
	Active() bool
	Stop(snap game.Snapshot) (*recorder.Summary, error)
}

// resources holds everything bound to one session. The whole struct is
// created on start and released together on stop; nothing in it outlives the
// session.
type resources struct {
	capture captureSource
	video   videoSource
	sink    io.WriteCloser
	sched   *audio.Scheduler
	client  LiveClient

	cancel context.CancelFunc
	pumps  *errgroup.Group

	done     chan struct{}
	doneOnce sync.Once
}

// signalDone marks the session as finished (terminal outcome or remote
// close). Run unblocks on it.
func (r *resources) signalDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

// release closes the acquired resources in reverse acquisition order.
// Partially-initialized structs are fine; nil fields are skipped.
func (r *resources) release() {
	if r.client != nil {
		_ = r.client.Close()
	}
	if r.sched != nil {
		r.sched.Close()
	}
	if r.sink != nil {
		_ = r.sink.Close()
	}
	if r.video != nil {
		_ = r.video.Close()
	}
	if r.capture != nil {
		_ = r.capture.Close()
	}
}

// Orchestrator runs negotiation sessions. All exported methods are safe for
// concurrent use; start and stop are serialised by opMu so an in-flight start
// always completes or fails before a stop begins teardown.
type Orchestrator struct {
	cfg     *config.Config
	metrics *observe.Metrics

	tracker *game.Tracker
	body    *game.BodyLanguage
	interp  *interpret.Interpreter
	rec     sessionRecorder
	sink    meteredSink

	// Seams replaced in tests.
	dial         func(ctx context.Context, h live.Handlers) (LiveClient, error)
	startCapture func(ctx context.Context) (captureSource, error)
	startVideo   func(ctx context.Context) (videoSource, error)
	openSink     func() (io.WriteCloser, error)
	now          func() time.Time

	opMu sync.Mutex // serialises Start and Stop

	mu         sync.Mutex
	phase      Phase
	res        *resources
	lastSpoke  time.Time
	loudFrames int
	turnStart  time.Time
}

// New creates an Orchestrator wired to production capture, playback,
// recording, and the Gemini live endpoint.
func New(cfg *config.Config, m *observe.Metrics) *Orchestrator {
	rec := recorder.New(recorder.Config{
		Dir:         cfg.Recording.Dir,
		FFmpegPath:  cfg.Capture.FFmpegPath,
		AudioFormat: cfg.Capture.AudioFormat,
		AudioDevice: cfg.Capture.AudioDevice,
		VideoFormat: cfg.Capture.VideoFormat,
		VideoDevice: cfg.Capture.VideoDevice,
		VideoCodec:  cfg.Recording.VideoCodec,
		AudioCodec:  cfg.Recording.AudioCodec,
	})
	o := newOrchestrator(cfg, m, rec)

	o.dial = func(ctx context.Context, h live.Handlers) (LiveClient, error) {
		opts := []live.Option{live.WithSystemPrompt(o.systemPrompt())}
		if cfg.Agent.Model != "" {
			opts = append(opts, live.WithModel(cfg.Agent.Model))
		}
		if cfg.Agent.Voice != "" {
			opts = append(opts, live.WithVoice(cfg.Agent.Voice))
		}
		return live.Dial(ctx, cfg.Agent.APIKey, h, opts...)
	}
	o.startCapture = func(ctx context.Context) (captureSource, error) {
		return audio.StartCapture(ctx, audio.CaptureConfig{
			FFmpegPath:  cfg.Capture.FFmpegPath,
			InputFormat: cfg.Capture.AudioFormat,
			InputDevice: cfg.Capture.AudioDevice,
			SampleRate:  cfg.Capture.SampleRate,
		})
	}
	o.startVideo = func(ctx context.Context) (videoSource, error) {
		return audio.StartVideoSampler(ctx, audio.VideoConfig{
			FFmpegPath:  cfg.Capture.FFmpegPath,
			InputFormat: cfg.Capture.VideoFormat,
			InputDevice: cfg.Capture.VideoDevice,
		})
	}
	o.openSink = func() (io.WriteCloser, error) {
		return audio.StartFFPlaySink(cfg.Playback.FFplayPath, audio.PlaybackRate)
	}
	return o
}

// meteredSink hands moments to the recorder and counts the ones that land on
// an active timeline.
type meteredSink struct {
	rec sessionRecorder
	m   *observe.Metrics
}

func (s meteredSink) AddMoment(kind game.MomentKind, description string, confidence, patience int) {
	if !s.rec.Active() {
		return
	}
	s.rec.AddMoment(kind, description, confidence, patience)
	s.m.RecordKeyMoment(context.Background(), string(kind))
}

// newOrchestrator wires the game state around the given recorder. Split from
// New so tests can pass a fake recorder before play begins.
func newOrchestrator(cfg *config.Config, m *observe.Metrics, rec sessionRecorder) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		metrics: m,
		rec:     rec,
		sink:    meteredSink{rec: rec, m: m},
		body:    game.NewBodyLanguage(),
		now:     time.Now,
	}
	o.tracker = game.NewTracker(cfg.Game.Salience, o.sink)
	o.interp = interpret.New(cfg.Game.Deltas, o.tracker, o.body)
	o.tracker.OnTerminal(func(out game.Outcome) {
		slog.Info("negotiation resolved", "outcome", string(out))
		o.signalDone()
	})
	return o
}

func (o *Orchestrator) systemPrompt() string {
	if o.cfg.Agent.SystemPrompt != "" {
		return o.cfg.Agent.SystemPrompt
	}
	return defaultSystemPrompt
}

func (o *Orchestrator) kickstart() string {
	if o.cfg.Agent.Kickstart != "" {
		return o.cfg.Agent.Kickstart
	}
	return defaultKickstart
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// transition applies the phase change if the table allows it.
func (o *Orchestrator) transition(to Phase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !validTransition(o.phase, to) {
		return false
	}
	o.phase = to
	return true
}

// Snapshot returns the current game scores.
func (o *Orchestrator) Snapshot() game.Snapshot {
	return o.tracker.Snapshot()
}

// Body returns the current body-language reads.
func (o *Orchestrator) Body() game.BodyLanguageSnapshot {
	return o.body.Snapshot()
}

// Speaking reports whether agent audio is queued or playing.
func (o *Orchestrator) Speaking() bool {
	o.mu.Lock()
	res := o.res
	o.mu.Unlock()
	return res != nil && res.sched.Speaking()
}

// Start brings up a session: reset game state, acquire the microphone and
// camera, start the recorder, open playback, then dial the live connection.
// The session becomes active when the connection reports ready. A start while
// a session exists is rejected; any acquisition failure aborts the start and
// releases what was acquired.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if !o.transition(PhaseStarting) {
		return fmt.Errorf("session: start rejected in phase %s", o.Phase())
	}

	o.tracker.Reset()
	o.body.Reset()

	res := &resources{done: make(chan struct{})}
	fail := func(err error) error {
		if res.cancel != nil {
			res.cancel()
		}
		res.release()
		if o.rec.Active() {
			if _, stopErr := o.rec.Stop(o.tracker.Snapshot()); stopErr != nil {
				slog.Warn("session: recorder stop after failed start", "err", stopErr)
			}
		}
		o.transition(PhaseIdle)
		return err
	}

	capt, err := o.startCapture(ctx)
	if err != nil {
		return fail(fmt.Errorf("session: acquire microphone: %w", err))
	}
	res.capture = capt

	if err := o.rec.Start(ctx); err != nil {
		return fail(fmt.Errorf("session: start recorder: %w", err))
	}

	video, err := o.startVideo(ctx)
	if err != nil {
		return fail(fmt.Errorf("session: acquire camera: %w", err))
	}
	res.video = video

	sink, err := o.openSink()
	if err != nil {
		return fail(fmt.Errorf("session: open playback: %w", err))
	}
	res.sink = sink
	res.sched = audio.NewScheduler(sink, audio.PlaybackRate)

	// Pumps outlive the Start call; they stop on session teardown, not when
	// the caller's ctx ends.
	pumpCtx, cancel := context.WithCancel(context.Background())
	res.cancel = cancel
	g, gctx := errgroup.WithContext(pumpCtx)
	res.pumps = g

	client, err := o.dial(ctx, live.Handlers{
		Ready:        func() { o.onReady(gctx, res) },
		Audio:        func(pcm []byte) { o.onAudio(res, pcm) },
		Text:         o.onText,
		TurnComplete: o.onTurnComplete,
		Closed:       func(err error) { o.onClosed(res, err) },
	})
	if err != nil {
		return fail(fmt.Errorf("session: dial live endpoint: %w", err))
	}
	res.client = client

	o.mu.Lock()
	o.res = res
	o.lastSpoke = o.now()
	o.loudFrames = 0
	o.turnStart = time.Time{}
	o.mu.Unlock()

	snap := o.tracker.Snapshot()
	o.sink.AddMoment(game.MomentSessionStart, "Negotiation started", snap.Confidence, snap.Patience)
	o.metrics.ActiveSessions.Add(ctx, 1)

	slog.Info("session starting",
		"model", o.cfg.Agent.Model,
		"voice", o.cfg.Agent.Voice,
	)
	return nil
}

// Stop tears the session down in reverse order and returns the summary.
// Stopping while idle or already stopping is a no-op returning (nil, nil).
func (o *Orchestrator) Stop() (*recorder.Summary, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if !o.transition(PhaseStopping) {
		return nil, nil
	}

	o.mu.Lock()
	res := o.res
	o.res = nil
	o.mu.Unlock()

	if res != nil && res.cancel != nil {
		res.cancel()
		if err := res.pumps.Wait(); err != nil {
			slog.Warn("session: pump error during teardown", "err", err)
		}
	}

	snap := o.tracker.Snapshot()
	sum, err := o.rec.Stop(snap)
	if err != nil {
		slog.Warn("session: recorder stop", "err", err)
	}

	if res != nil {
		res.release()
		res.signalDone()
	}

	ctx := context.Background()
	o.metrics.ActiveSessions.Add(ctx, -1)
	outcome := snap.Outcome
	if sum != nil {
		// The summary tags unresolved games abandoned; report the same tag.
		outcome = sum.Outcome
		o.metrics.RecordSessionEnd(ctx, string(sum.Outcome), sum.Duration)
	}

	o.transition(PhaseIdle)
	slog.Info("session stopped",
		"outcome", string(outcome),
		"rounds", snap.Round,
		"confidence", snap.Confidence,
		"patience", snap.Patience,
	)
	return sum, nil
}

// Run starts a session and blocks until the negotiation resolves, the remote
// closes the connection, or ctx is cancelled, then stops it and returns the
// summary.
func (o *Orchestrator) Run(ctx context.Context) (*recorder.Summary, error) {
	ctx, span := observe.StartSpan(ctx, "session.run")
	defer span.End()

	if err := o.Start(ctx); err != nil {
		return nil, err
	}

	o.mu.Lock()
	res := o.res
	o.mu.Unlock()
	if res != nil {
		// A racing Stop may have already torn the session down.
		select {
		case <-ctx.Done():
		case <-res.done:
		}
	}

	sum, err := o.Stop()
	if sum != nil {
		span.SetAttributes(attribute.String("outcome", string(sum.Outcome)))
	}
	return sum, err
}

// signalDone finishes the current session, if one exists.
func (o *Orchestrator) signalDone() {
	o.mu.Lock()
	res := o.res
	o.mu.Unlock()
	if res != nil {
		res.signalDone()
	}
}

// ── connection callbacks ───────────────────────────────────────────────────────

// onReady fires once per session when setup is acknowledged. A stop that
// raced the handshake leaves the phase untouched and the session winds down.
func (o *Orchestrator) onReady(ctx context.Context, res *resources) {
	if !o.transition(PhaseActive) {
		return
	}

	if err := res.client.SendText(o.kickstart()); err != nil {
		slog.Warn("session: kickstart turn failed", "err", err)
	}
	o.tracker.IncrementRound()

	res.pumps.Go(func() error { return o.audioPump(ctx, res) })
	res.pumps.Go(func() error { return o.videoPump(ctx, res) })
	res.pumps.Go(func() error { return o.silenceWatch(ctx) })

	slog.Info("session active")
}

func (o *Orchestrator) onAudio(res *resources, pcm []byte) {
	if o.Phase() != PhaseActive {
		return
	}
	o.mu.Lock()
	if o.turnStart.IsZero() {
		o.turnStart = o.now()
	}
	o.mu.Unlock()
	res.sched.Schedule(pcm)
}

func (o *Orchestrator) onText(text string) {
	if o.Phase() != PhaseActive {
		return
	}
	m := o.interp.Interpret(text)
	if m.Rule != "" {
		o.metrics.RecordInterpreterMatch(context.Background(), string(m.Rule))
	}
}

func (o *Orchestrator) onTurnComplete() {
	if o.Phase() != PhaseActive {
		return
	}
	o.mu.Lock()
	start := o.turnStart
	o.turnStart = time.Time{}
	o.mu.Unlock()
	if !start.IsZero() {
		o.metrics.TurnDuration.Record(context.Background(), o.now().Sub(start).Seconds())
	}
	o.tracker.IncrementRound()
}

func (o *Orchestrator) onClosed(res *resources, err error) {
	if err != nil {
		slog.Warn("session: connection closed by remote", "err", err)
	}
	res.signalDone()
}

// ── pumps ──────────────────────────────────────────────────────────────────────

// audioPump forwards microphone frames to the live connection, downsampled
// to the 16 kHz wire rate. Frame volume feeds the silence clock and the
// loud-delivery confidence boost.
func (o *Orchestrator) audioPump(ctx context.Context, res *resources) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-res.capture.Frames():
			if !ok {
				return nil
			}
			if o.Phase() != PhaseActive {
				continue
			}
			o.observeVolume(frame.Volume)

			pcm := audio.DownsamplePCM16(frame.Samples, frame.SampleRate, audio.WireRate)
			if len(pcm) == 0 {
				continue
			}
			if err := res.client.SendAudioChunk(audio.EncodePCM16(pcm)); err != nil {
				return fmt.Errorf("audio upload: %w", err)
			}
			o.metrics.RecordMediaChunk(ctx, "audio")
		}
	}
}

// observeVolume updates the silence clock and awards the deterministic
// loud-delivery boost.
func (o *Orchestrator) observeVolume(vol float64) {
	g := o.cfg.Game
	if vol <= g.SpeakThreshold {
		return
	}

	o.mu.Lock()
	o.lastSpoke = o.now()
	boost := false
	if vol > g.LoudThreshold && g.LoudBoostEvery > 0 {
		o.loudFrames++
		if o.loudFrames%g.LoudBoostEvery == 0 {
			boost = true
		}
	}
	o.mu.Unlock()

	if boost {
		o.tracker.ApplyConfidence(1, "Confident, assertive delivery")
	}
}

// videoPump uploads the latest camera frame at a fixed interval.
func (o *Orchestrator) videoPump(ctx context.Context, res *resources) error {
	ticker := time.NewTicker(o.cfg.Game.VideoSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if o.Phase() != PhaseActive {
				continue
			}
			jpeg := res.video.Latest()
			if len(jpeg) == 0 {
				continue
			}
			if err := res.client.SendImageChunk(jpeg); err != nil {
				return fmt.Errorf("image upload: %w", err)
			}
			o.metrics.RecordMediaChunk(ctx, "image")
		}
	}
}

// silenceWatch applies at most one confidence penalty per timeout window
// when no qualifying-volume frame has been observed.
func (o *Orchestrator) silenceWatch(ctx context.Context) error {
	g := o.cfg.Game
	ticker := time.NewTicker(g.SilenceCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if o.Phase() != PhaseActive {
				continue
			}
			o.mu.Lock()
			quiet := o.now().Sub(o.lastSpoke)
			strike := quiet >= g.SilenceTimeout
			if strike {
				o.lastSpoke = o.now()
			}
			o.mu.Unlock()

			if strike {
				o.tracker.ApplyConfidence(-g.SilencePenalty, silenceReason)
				o.metrics.SilencePenalties.Add(ctx, 1)
				slog.Debug("silence penalty applied", "quiet", quiet)
			}
		}
	}
}
