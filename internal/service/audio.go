package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
)

const errNoRecording = "Aucun enregistrement en cours"

var (
	ErrNotRecording      error = &apperr.ValidationError{Errors: []string{errNoRecording}}
	ErrAlreadyRecording  error = &apperr.ValidationError{Errors: []string{"Un enregistrement est déjà en cours"}}
	ErrRecordingTooShort error = &apperr.ValidationError{Errors: []string{"L'enregistrement est trop court"}}
	ErrMicrophone        error = &apperr.PermissionError{Msg: "Impossible d'accéder au microphone"}
)

// voiceMimeTypes in order of preference.
var voiceMimeTypes = []string{"audio/webm;codecs=opus", "audio/webm", "audio/mp4", "audio/mpeg"}

// Microphone is an exclusive audio capture device.
type Microphone interface {
	Supports(mimeType string) bool
	Start(mimeType string) error
	// Stop ends the capture and returns the encoded audio.
	Stop() ([]byte, error)
}

type VoiceRecording struct {
	Media model.Media
}

// Recorder drives one microphone. A recording that reaches the maximum
// duration is stopped and handed to OnAutoStop.
type Recorder struct {
	mic   Microphone
	clock Clock
	min   time.Duration
	max   time.Duration

	// OnAutoStop receives recordings stopped by the duration limit.
	OnAutoStop func(VoiceRecording, error)

	mu        sync.Mutex
	recording bool
	gen       int
	mime      string
	started   time.Time
	timer     *time.Timer
}

func NewRecorder(mic Microphone, cfg config.MediaConfig, clock Clock) *Recorder {
	return &Recorder{mic: mic, clock: clock, min: cfg.MinVoiceDuration, max: cfg.MaxVoiceDuration}
}

func (r *Recorder) mimeType() string {
	for _, t := range voiceMimeTypes {
		if r.mic.Supports(t) {
			return t
		}
	}
	return "audio/webm"
}

// Start begins capturing. A second Start while recording is rejected.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	mime := r.mimeType()
	if err := r.mic.Start(mime); err != nil {
		logger.Errorf("recorder: start: %v", err)
		return fmt.Errorf("%w: %v", ErrMicrophone, err)
	}
	r.recording = true
	r.gen++
	r.mime = mime
	r.started = r.clock.now().Time
	if r.max > 0 {
		gen := r.gen
		r.timer = time.AfterFunc(r.max, func() { r.autoStop(gen) })
	}
	return nil
}

func (r *Recorder) autoStop(gen int) {
	r.mu.Lock()
	if !r.recording || r.gen != gen {
		r.mu.Unlock()
		return
	}
	rec, err := r.stopLocked()
	r.mu.Unlock()
	logger.Infof("recorder: auto-stopped after %s", r.max)
	if r.OnAutoStop != nil {
		r.OnAutoStop(rec, err)
	}
}

// Stop ends the recording. Recordings shorter than the minimum duration are
// discarded with ErrRecordingTooShort.
func (r *Recorder) Stop() (VoiceRecording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return VoiceRecording{}, ErrNotRecording
	}
	return r.stopLocked()
}

func (r *Recorder) stopLocked() (VoiceRecording, error) {
	r.recording = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	data, err := r.mic.Stop()
	if err != nil {
		return VoiceRecording{}, fmt.Errorf("recorder: stop: %w", err)
	}
	elapsed := r.clock.now().Sub(r.started)
	if r.max > 0 && elapsed > r.max {
		elapsed = r.max
	}
	if elapsed < r.min {
		return VoiceRecording{}, ErrRecordingTooShort
	}
	return VoiceRecording{Media: model.Media{
		Content:  DataURL(r.mime, data),
		Duration: int(elapsed.Round(time.Second) / time.Second),
		MimeType: r.mime,
		Size:     int64(len(data)),
	}}, nil
}

// Cancel drops the current recording, if any.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.recording = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if _, err := r.mic.Stop(); err != nil {
		logger.Warnf("recorder: cancel: %v", err)
	}
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Elapsed is the running duration of the current recording.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return 0
	}
	return r.clock.now().Sub(r.started)
}
