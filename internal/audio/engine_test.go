package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// fakeOutput is an in-memory playback sink; no audio device is touched.
type fakeOutput struct {
	mu        sync.Mutex
	inits     []beep.SampleRate
	scheduled int
}

func (o *fakeOutput) Init(sr beep.SampleRate, bufferSize int) error {
	o.inits = append(o.inits, sr)
	o.scheduled = 0
	return nil
}

func (o *fakeOutput) Play(s beep.Streamer) { o.scheduled++ }
func (o *fakeOutput) Clear()               { o.scheduled = 0 }
func (o *fakeOutput) Lock()                { o.mu.Lock() }
func (o *fakeOutput) Unlock()              { o.mu.Unlock() }

// makeWAV synthesizes a silent 16-bit WAV fixture in memory.
func makeWAV(t *testing.T, samples int, sr beep.SampleRate, channels int) []byte {
	t.Helper()
	format := beep.Format{SampleRate: sr, NumChannels: channels, Precision: 2}
	buf := beep.NewBuffer(format)
	buf.Append(beep.Silence(samples))

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	if err := wav.Encode(f, buf.Streamer(0, buf.Len()), format); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func newTestEngine(t *testing.T) (*Engine, *fakeOutput, func(time.Duration)) {
	t.Helper()
	out := &fakeOutput{}
	now, advance := stubNow()
	e := NewEngine(Config{Output: out, Now: now})
	return e, out, advance
}

func loadSecond(t *testing.T, e *Engine) {
	t.Helper()
	d, err := e.LoadBytes(makeWAV(t, 44100, 44100, 2), VariantTest)
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if d != time.Second {
		t.Fatalf("loaded duration = %v, want 1s", d)
	}
}

func TestLoadBytes_UnsupportedData(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.LoadBytes([]byte("this is not audio data at all"), VariantTest)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if e.Duration() != 0 {
		t.Errorf("duration after failed load = %v, want 0", e.Duration())
	}
}

func TestLoadBytes_FailurePreservesBuffer(t *testing.T) {
	e, _, _ := newTestEngine(t)
	loadSecond(t, e)

	if _, err := e.LoadBytes([]byte("garbage"), VariantTest); err == nil {
		t.Fatal("expected decode failure")
	}
	if e.Duration() != time.Second {
		t.Errorf("previous buffer not preserved: duration = %v", e.Duration())
	}
}

func TestPlayTwice_SingleSource(t *testing.T) {
	e, out, _ := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}

	if got := e.ActiveSources(); got != 1 {
		t.Errorf("active sources = %d, want 1", got)
	}
	if out.scheduled != 1 {
		t.Errorf("output has %d scheduled streamers, want 1", out.scheduled)
	}
}

func TestPlay_NoBuffer(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Play(); !errors.Is(err, ErrNoBuffer) {
		t.Errorf("Play without buffer: got %v, want ErrNoBuffer", err)
	}
}

func TestLoadWhilePlaying_StopsSource(t *testing.T) {
	e, out, _ := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	loadSecond(t, e)

	if out.scheduled != 0 {
		t.Errorf("source still scheduled across a load: %d", out.scheduled)
	}
	if e.Playing() {
		t.Error("still playing after load")
	}
	if e.Position() != 0 {
		t.Errorf("position after load = %v, want 0", e.Position())
	}
}

func TestSeekAfterLoadWhilePlaying_StaysStopped(t *testing.T) {
	e, out, _ := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	loadSecond(t, e)

	// A seek on the freshly loaded buffer moves the position only; it must
	// not start playback the caller never asked for.
	if err := e.Seek(200 * time.Millisecond); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if e.Playing() {
		t.Error("seek started playback on a freshly loaded buffer")
	}
	if out.scheduled != 0 {
		t.Errorf("scheduled sources = %d, want 0", out.scheduled)
	}
	if got := e.Position(); got != 200*time.Millisecond {
		t.Errorf("position = %v, want 200ms", got)
	}
}

func TestFailedLoadWhilePlaying_FreezesPosition(t *testing.T) {
	e, out, advance := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	advance(300 * time.Millisecond)

	if _, err := e.LoadBytes([]byte("garbage"), VariantTest); err == nil {
		t.Fatal("expected decode failure")
	}
	if e.Playing() {
		t.Error("still playing after failed load")
	}
	if out.scheduled != 0 {
		t.Errorf("scheduled sources = %d, want 0", out.scheduled)
	}
	at := e.Position()
	if at != 300*time.Millisecond {
		t.Errorf("position = %v, want 300ms", at)
	}
	advance(5 * time.Second)
	if got := e.Position(); got != at {
		t.Errorf("position advanced to %v with no source", got)
	}
}

func TestSeek_Clamps(t *testing.T) {
	e, _, _ := newTestEngine(t)
	loadSecond(t, e)

	tests := []struct {
		seek time.Duration
		want time.Duration
	}{
		{seek: 5 * time.Second, want: time.Second}, // past end reads exactly the duration
		{seek: -3 * time.Second, want: 0},
		{seek: 400 * time.Millisecond, want: 400 * time.Millisecond},
	}
	for _, tt := range tests {
		if err := e.Seek(tt.seek); err != nil {
			t.Fatalf("Seek(%v) failed: %v", tt.seek, err)
		}
		if got := e.Position(); got != tt.want {
			t.Errorf("position after Seek(%v) = %v, want %v", tt.seek, got, tt.want)
		}
	}
}

func TestSeekWhilePlaying_RestartsSource(t *testing.T) {
	e, out, _ := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := e.Seek(500 * time.Millisecond); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}

	if out.scheduled != 1 {
		t.Errorf("scheduled sources = %d, want 1", out.scheduled)
	}
	if !e.Playing() {
		t.Error("seek stopped playback")
	}
	if got := e.Position(); got != 500*time.Millisecond {
		t.Errorf("position = %v, want 500ms", got)
	}
}

func TestPositionTracking(t *testing.T) {
	e, _, advance := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	advance(300 * time.Millisecond)
	if got := e.Position(); got != 300*time.Millisecond {
		t.Errorf("position = %v, want 300ms", got)
	}

	e.Pause()
	advance(10 * time.Second)
	if got := e.Position(); got != 300*time.Millisecond {
		t.Errorf("paused position drifted to %v", got)
	}

	// Resuming picks up where Pause froze, not at zero.
	if err := e.Play(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	advance(200 * time.Millisecond)
	if got := e.Position(); got != 500*time.Millisecond {
		t.Errorf("resumed position = %v, want 500ms", got)
	}
}

func TestEndOfBuffer_AutoStops(t *testing.T) {
	e, _, advance := newTestEngine(t)
	loadSecond(t, e)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	advance(2 * time.Second)

	if got := e.Position(); got != 0 {
		t.Errorf("position past end = %v, want 0", got)
	}
	if e.Playing() {
		t.Error("still playing past end of buffer")
	}
}

func TestVolumeAndMute(t *testing.T) {
	e, _, _ := newTestEngine(t)
	loadSecond(t, e)

	e.SetVolume(0.5)
	e.SetMuted(true)

	if got := e.Volume(); got != 0.5 {
		t.Errorf("muting altered stored volume: %v", got)
	}
	if !e.Muted() {
		t.Error("not muted")
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !e.gain.Silent {
		t.Error("live gain stage not silent while muted")
	}

	e.SetMuted(false)
	if e.gain.Silent {
		t.Error("gain still silent after unmute")
	}
	if got := e.Volume(); got != 0.5 {
		t.Errorf("unmute altered stored volume: %v", got)
	}
}

func TestLoadRemote_CacheBusting(t *testing.T) {
	var mu sync.Mutex
	var params []string
	calls := 0
	first := makeWAV(t, 44100, 44100, 2)
	second := makeWAV(t, 88200, 44100, 2)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		params = append(params, r.URL.Query().Get("t"))
		calls++
		n := calls
		mu.Unlock()
		// Same URL, changed underlying content between requests.
		if n == 1 {
			_, _ = w.Write(first)
		} else {
			_, _ = w.Write(second)
		}
	}))
	defer ts.Close()

	e, _, advance := newTestEngine(t)
	url := ts.URL + "/api/download/output.wav"

	d1, err := e.LoadRemote(context.Background(), url, VariantComplete)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	advance(time.Millisecond)
	d2, err := e.LoadRemote(context.Background(), url, VariantComplete)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if d1 != time.Second || d2 != 2*time.Second {
		t.Errorf("durations = %v/%v, want 1s/2s (stale content served?)", d1, d2)
	}
	if len(params) != 2 || params[0] == "" || params[0] == params[1] {
		t.Errorf("cache-busting parameter did not change between calls: %v", params)
	}
	if e.Variant() != VariantComplete {
		t.Errorf("variant = %q, want complete", e.Variant())
	}
}

func TestLoadRemote_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	e, _, _ := newTestEngine(t)
	loadSecond(t, e)

	_, err := e.LoadRemote(context.Background(), ts.URL+"/missing.wav", VariantExported)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", fe.StatusCode)
	}
	if e.Duration() != time.Second {
		t.Errorf("failed fetch corrupted buffer state: duration = %v", e.Duration())
	}
	if e.Variant() != VariantTest {
		t.Errorf("failed fetch changed variant to %q", e.Variant())
	}
}

func TestLoadRemote_StaleLoadDiscarded(t *testing.T) {
	firstArrived := make(chan struct{})
	releaseFirst := make(chan struct{})
	short := makeWAV(t, 44100, 44100, 2)
	long := makeWAV(t, 132300, 44100, 2) // 3s

	var calls int32
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(firstArrived)
			<-releaseFirst
			_, _ = w.Write(short)
			return
		}
		_, _ = w.Write(long)
	}))
	defer ts.Close()

	e, _, _ := newTestEngine(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.LoadRemote(context.Background(), ts.URL+"/audio.wav", VariantOriginal)
		errCh <- err
	}()
	<-firstArrived

	// A newer load completes while the first is still in flight.
	d, err := e.LoadRemote(context.Background(), ts.URL+"/audio.wav", VariantModified)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if d != 3*time.Second {
		t.Fatalf("second load duration = %v, want 3s", d)
	}

	close(releaseFirst)
	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first load: got %v, want ErrSuperseded", err)
	}

	// The most recently requested load won, not the most recently completed.
	if e.Duration() != 3*time.Second {
		t.Errorf("buffer duration = %v, want 3s", e.Duration())
	}
	if e.Variant() != VariantModified {
		t.Errorf("variant = %q, want modified", e.Variant())
	}
}

func TestWAVRoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t)

	data := makeWAV(t, 22050, 44100, 2)
	if _, err := e.LoadBytes(data, VariantTest); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	wantSamples := e.NumSamples()
	wantChannels := e.Format().NumChannels

	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	if err := e.ExportWAV(path); err != nil {
		t.Fatalf("ExportWAV failed: %v", err)
	}

	encoded, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read exported wav: %v", err)
	}
	if _, err := e.LoadBytes(encoded, VariantTest); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}

	if got := e.NumSamples(); got != wantSamples {
		t.Errorf("sample count after round trip = %d, want %d", got, wantSamples)
	}
	if got := e.Format().NumChannels; got != wantChannels {
		t.Errorf("channel count after round trip = %d, want %d", got, wantChannels)
	}
}
