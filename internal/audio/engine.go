package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/sirupsen/logrus"
)

// Variant tags the provenance of the currently loaded buffer. It is purely
// descriptive and never affects playback mechanics.
type Variant string

const (
	VariantNone       Variant = ""
	VariantOriginal   Variant = "original"
	VariantIndividual Variant = "individual"
	VariantModified   Variant = "modified"
	VariantComplete   Variant = "complete"
	VariantExported   Variant = "exported"
	VariantTest       Variant = "test"
)

// Config configures a playback engine.
type Config struct {
	Output     Output         // default SpeakerOutput
	HTTPClient *http.Client   // default 60s timeout client
	Now        func() time.Time
	Logger     *logrus.Logger // default logrus standard logger
}

// Engine owns the single decoded buffer and the single active playback
// source. All other components go through its operations; nothing else
// touches buffer or source state.
type Engine struct {
	mu     sync.Mutex
	out    Output
	httpc  *http.Client
	log    *logrus.Entry
	now    func() time.Time

	buffer  *beep.Buffer
	format  beep.Format
	variant Variant

	playing bool
	active  int
	clock   *Clock

	gain   *effects.Volume // live gain stage while a source exists
	volume float64         // stored level 0..1, survives muting
	muted  bool

	loadGen   uint64 // generation token for racing remote loads
	cacheSeq  uint64 // monotonically changing cache-buster component
	sourceGen uint64 // invalidates end-of-source callbacks from stale sources
}

// NewEngine creates an engine with no buffer loaded and volume at full.
func NewEngine(cfg Config) *Engine {
	if cfg.Output == nil {
		cfg.Output = SpeakerOutput{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Engine{
		out:    cfg.Output,
		httpc:  cfg.HTTPClient,
		now:    cfg.Now,
		log:    cfg.Logger.WithField("component", "audio"),
		clock:  NewClock(cfg.Now),
		volume: 1,
	}
}

// LoadBytes decodes audio bytes and makes them the current buffer. Any
// active playback is stopped before decoding begins. A failed decode leaves
// the previous buffer untouched with the position frozen where playback
// stopped. Position resets to zero on success.
func (e *Engine) LoadBytes(data []byte, variant Variant) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	buf, format, err := decodeBuffer(data)
	if err != nil {
		e.log.WithError(err).Warn("audio load failed")
		return 0, err
	}

	e.buffer = buf
	e.format = format
	e.variant = variant
	e.clock = NewClock(e.now)

	if err := e.out.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return 0, fmt.Errorf("init output: %w", err)
	}

	d := format.SampleRate.D(buf.Len())
	e.log.WithFields(logrus.Fields{
		"variant":  variant,
		"duration": d.Seconds(),
		"rate":     int(format.SampleRate),
		"channels": format.NumChannels,
	}).Info("audio buffer loaded")
	return d, nil
}

// LoadRemote fetches a URL and delegates to LoadBytes. Every request gets a
// fresh cache-defeating query parameter, so a URL whose underlying content
// changed is never served stale. Loads are guarded by a generation token: a
// fetch that completes after a newer load was issued returns ErrSuperseded
// and leaves the buffer to the newer load.
func (e *Engine) LoadRemote(ctx context.Context, rawURL string, variant Variant) (time.Duration, error) {
	gen := atomic.AddUint64(&e.loadGen, 1)

	busted, err := e.cacheBust(rawURL)
	if err != nil {
		return 0, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, busted, nil)
	if err != nil {
		return 0, &FetchError{URL: rawURL, Err: err}
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return 0, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &FetchError{URL: rawURL, Err: err}
	}

	if atomic.LoadUint64(&e.loadGen) != gen {
		e.log.WithField("url", rawURL).Info("discarding superseded audio load")
		return 0, ErrSuperseded
	}
	return e.LoadBytes(data, variant)
}

// cacheBust appends a monotonically changing t parameter.
func (e *Engine) cacheBust(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	seq := atomic.AddUint64(&e.cacheSeq, 1)
	q := u.Query()
	q.Set("t", fmt.Sprintf("%d-%d", e.now().UnixMilli(), seq))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Play starts or resumes playback from the current position. Any active
// source is stopped first; at most one source exists at any instant.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playFromLocked(e.positionLocked())
}

// PlayFrom seeks to the given position and starts playback there.
func (e *Engine) PlayFrom(at time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playFromLocked(e.clampLocked(at))
}

func (e *Engine) playFromLocked(at time.Duration) error {
	if e.buffer == nil {
		return ErrNoBuffer
	}
	e.stopLocked()

	from := e.format.SampleRate.N(at)
	if from >= e.buffer.Len() {
		from = e.buffer.Len()
	}
	gain := &effects.Volume{
		Streamer: e.buffer.Streamer(from, e.buffer.Len()),
		Base:     2,
	}
	applyGain(gain, e.volume, e.muted)
	e.gain = gain

	e.sourceGen++
	gen := e.sourceGen
	// The callback runs on the output's goroutine with its lock held, so it
	// must not re-enter the engine synchronously.
	e.out.Play(beep.Seq(gain, beep.Callback(func() {
		go e.sourceEnded(gen)
	})))
	e.active = 1
	e.playing = true
	e.clock.Start(at)
	return nil
}

// sourceEnded fires when the active source drains to the end of the buffer:
// playback auto-stops and position resets to zero. Stale callbacks from a
// source that was already replaced are ignored.
func (e *Engine) sourceEnded(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.sourceGen || !e.playing {
		return
	}
	e.playing = false
	e.active = 0
	e.gain = nil
	e.clock = NewClock(e.now)
}

// Pause stops the active source and freezes the position. Buffer sources
// cannot be paused in place; the next Play recreates one at the frozen
// offset.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return
	}
	e.stopLocked()
}

// Seek moves the position, clamped to [0, duration]. While playing, the
// source is stopped and recreated at the new offset so no two sources ever
// overlap.
func (e *Engine) Seek(at time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer == nil {
		return ErrNoBuffer
	}
	at = e.clampLocked(at)
	if e.playing {
		return e.playFromLocked(at)
	}
	e.clock.SetOffset(at)
	return nil
}

// Position reports the current playback position, recomputed from the clock
// while playing. Reaching the end of the buffer auto-stops playback and
// resets the position to zero.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *Engine) positionLocked() time.Duration {
	if !e.playing {
		return e.clampLocked(e.clock.Elapsed())
	}
	el := e.clock.Elapsed()
	if el >= e.durationLocked() {
		e.stopLocked()
		e.clock = NewClock(e.now)
		return 0
	}
	return el
}

// Duration returns the duration of the loaded buffer, zero when none.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked()
}

func (e *Engine) durationLocked() time.Duration {
	if e.buffer == nil {
		return 0
	}
	return e.format.SampleRate.D(e.buffer.Len())
}

func (e *Engine) clampLocked(at time.Duration) time.Duration {
	if at < 0 {
		return 0
	}
	if d := e.durationLocked(); at > d {
		return d
	}
	return at
}

// stopLocked tears down the active source and ends playback. The clock is
// frozen at the stop position so it never counts without a source behind it.
func (e *Engine) stopLocked() {
	e.sourceGen++
	e.out.Clear()
	e.active = 0
	e.gain = nil
	if e.playing {
		e.playing = false
		e.clock.SetOffset(e.clampLocked(e.clock.Pause()))
	}
}

// Playing reports whether a source is currently scheduled.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// ActiveSources returns the number of scheduled playback sources. It exists
// so tests can verify the single-source invariant without audio output.
func (e *Engine) ActiveSources() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Variant returns the provenance tag of the loaded buffer.
func (e *Engine) Variant() Variant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.variant
}

// SetVolume sets the stored level, clamped to [0, 1], and applies it to any
// live gain stage.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.volume = v
	e.updateGainLocked()
}

// SetMuted silences or restores output without altering the stored volume,
// so unmuting returns to the prior level.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	e.updateGainLocked()
}

// Volume returns the stored level, independent of the mute state.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Muted reports the mute state.
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Engine) updateGainLocked() {
	if e.gain == nil {
		return
	}
	e.out.Lock()
	applyGain(e.gain, e.volume, e.muted)
	e.out.Unlock()
}

// applyGain maps a linear 0..1 level onto the exponential volume stage.
func applyGain(g *effects.Volume, volume float64, muted bool) {
	if muted || volume == 0 {
		g.Silent = true
		return
	}
	g.Silent = false
	g.Volume = math.Log2(volume)
}

// NumSamples returns the sample count of the loaded buffer.
func (e *Engine) NumSamples() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer == nil {
		return 0
	}
	return e.buffer.Len()
}

// Format returns the PCM format of the loaded buffer.
func (e *Engine) Format() beep.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.format
}
