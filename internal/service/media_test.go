package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/session"
)

func testMediaConfig() config.MediaConfig {
	return config.MediaConfig{
		MaxFileSize:      50 << 20,
		ResizeThreshold:  2 << 20,
		MaxImageWidth:    800,
		MaxImageHeight:   600,
		MaxAvatarSize:    5 << 20,
		MinVoiceDuration: time.Second,
		MaxVoiceDuration: 300 * time.Second,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURL(t *testing.T, url string) (string, []byte) {
	t.Helper()
	head, payload, ok := strings.Cut(url, ",")
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	return head, raw
}

// mp4Fixture builds ftyp + moov/mvhd (version 0) with the given timescale and duration.
func mp4Fixture(timescale, duration uint32, size int) []byte {
	box := func(typ string, payload []byte) []byte {
		b := make([]byte, 8, 8+len(payload))
		binary.BigEndian.PutUint32(b, uint32(8+len(payload)))
		copy(b[4:], typ)
		return append(b, payload...)
	}
	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[12:], timescale)
	binary.BigEndian.PutUint32(mvhd[16:], duration)
	data := append(box("ftyp", []byte("isom\x00\x00\x02\x00")), box("moov", box("mvhd", mvhd))...)
	if pad := size - len(data) - 8; pad > 0 {
		data = append(data, box("mdat", make([]byte, pad))...)
	}
	return data
}

func TestValidateMedia(t *testing.T) {
	svc := NewMediaService(testMediaConfig(), nil, nil)

	v := svc.Validate(nil)
	require.False(t, v.IsValid)
	require.Equal(t, []string{"Aucun fichier sélectionné"}, v.Errors)

	v = svc.Validate(&File{Name: "big.mp4", MimeType: "video/mp4", Data: make([]byte, 60<<20)})
	require.False(t, v.IsValid)
	require.Equal(t, []string{"Le fichier est trop volumineux (maximum 50MB)"}, v.Errors)

	v = svc.Validate(&File{Name: "clip.mp4", MimeType: "video/mp4", Data: make([]byte, 10<<20)})
	require.True(t, v.IsValid)
	require.Equal(t, model.MessageVideo, v.Type)

	v = svc.Validate(&File{Name: "doc.pdf", MimeType: "application/pdf", Data: []byte("%PDF-")})
	require.False(t, v.IsValid)
	require.Contains(t, v.Errors[0], "Format de fichier non supporté")

	v = svc.Validate(&File{Name: "a.PNG", MimeType: "IMAGE/PNG", Data: []byte{1}})
	require.True(t, v.IsValid)
	require.Equal(t, model.MessageImage, v.Type)
}

func TestPrepareVideoReadsDuration(t *testing.T) {
	svc := NewMediaService(testMediaConfig(), nil, func() time.Time { return time.UnixMilli(1700000000000) })
	f := &File{Name: "clip.mp4", MimeType: "video/mp4", Data: mp4Fixture(1000, 12400, 10<<20)}

	p, err := svc.Prepare(context.Background(), f, "5", "1")
	require.NoError(t, err)
	require.Equal(t, model.MessageVideo, p.Type)
	require.Equal(t, 12, p.Media.Duration)
	require.Equal(t, "video_5_1_1700000000000", p.Media.FileName)
	require.Equal(t, "clip.mp4", p.Media.OriginalName)
	require.Equal(t, int64(10<<20), p.Media.Size)
	require.Empty(t, p.Media.Thumbnail)
	require.True(t, strings.HasPrefix(p.Media.Content, "data:video/mp4;base64,"))
}

type frameProber struct{ frame image.Image }

func (p frameProber) Probe(context.Context, *File) (VideoInfo, error) {
	return VideoInfo{Duration: 2 * time.Second, Frame: p.frame}, nil
}

func TestPrepareVideoThumbnail(t *testing.T) {
	svc := NewMediaService(testMediaConfig(), frameProber{frame: image.NewRGBA(image.Rect(0, 0, 640, 360))}, nil)
	p, err := svc.Prepare(context.Background(), &File{Name: "c.mp4", MimeType: "video/mp4", Data: mp4Fixture(1, 1, 0)}, "1", "1")
	require.NoError(t, err)

	head, raw := decodeDataURL(t, p.Media.Thumbnail)
	require.Equal(t, "data:image/jpeg;base64", head)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 300, cfg.Width)
	require.Equal(t, 168, cfg.Height)
}

func TestPrepareResizesLargeImages(t *testing.T) {
	cfg := testMediaConfig()
	cfg.ResizeThreshold = 16
	svc := NewMediaService(cfg, nil, nil)

	p, err := svc.Prepare(context.Background(), &File{Name: "wide.png", MimeType: "image/png", Data: pngBytes(t, 1600, 400)}, "1", "2")
	require.NoError(t, err)
	require.Equal(t, model.MessageImage, p.Type)
	head, raw := decodeDataURL(t, p.Media.Content)
	require.Equal(t, "data:image/jpeg;base64", head)
	ic, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 800, ic.Width)
	require.Equal(t, 200, ic.Height)
	require.Equal(t, int64(len(raw)), p.Media.Size)

	p, err = svc.Prepare(context.Background(), &File{Name: "tall.png", MimeType: "image/png", Data: pngBytes(t, 300, 1200)}, "1", "2")
	require.NoError(t, err)
	_, raw = decodeDataURL(t, p.Media.Content)
	ic, _, err = image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 150, ic.Width)
	require.Equal(t, 600, ic.Height)
}

func TestPrepareKeepsSmallImagesAndRejectsSpoofed(t *testing.T) {
	svc := NewMediaService(testMediaConfig(), nil, nil)
	data := pngBytes(t, 10, 10)
	p, err := svc.Prepare(context.Background(), &File{Name: "s.png", MimeType: "image/png", Data: data}, "1", "2")
	require.NoError(t, err)
	require.Equal(t, DataURL("image/png", data), p.Media.Content)

	_, err = svc.Prepare(context.Background(), &File{Name: "s.jpg", MimeType: "image/jpeg", Data: data}, "1", "2")
	require.True(t, apperr.IsValidation(err))
}

func TestFitBox(t *testing.T) {
	w, h := fitBox(1000, 500, 800, 600)
	require.Equal(t, [2]int{800, 400}, [2]int{w, h})
	w, h = fitBox(500, 1000, 800, 600)
	require.Equal(t, [2]int{300, 600}, [2]int{w, h})
	w, h = fitBox(640, 480, 800, 600)
	require.Equal(t, [2]int{640, 480}, [2]int{w, h})
}

func TestFormatFileSizeAndDuration(t *testing.T) {
	for n, want := range map[int64]string{
		0:          "0 B",
		500:        "500 B",
		1024:       "1 KB",
		1536:       "1.5 KB",
		1 << 20:    "1 MB",
		2415919104: "2.25 GB",
	} {
		require.Equal(t, want, FormatFileSize(n), n)
	}
	require.Equal(t, "0:00", FormatDuration(0))
	require.Equal(t, "1:05", FormatDuration(65))
	require.Equal(t, "5:00", FormatDuration(300))
}

func TestMP4DurationMissingHeader(t *testing.T) {
	_, err := mp4Duration([]byte("not an mp4 file"))
	require.ErrorIs(t, err, errNoMovieHeader)
}

type fakeMic struct {
	mu       sync.Mutex
	fail     error
	active   bool
	started  string
	supports map[string]bool
}

func (m *fakeMic) Supports(t string) bool { return m.supports[t] }

func (m *fakeMic) Start(t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.active, m.started = true, t
	return nil
}

func (m *fakeMic) Stop() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	return []byte("opus-data"), nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRecorderMinDurationAndExclusivity(t *testing.T) {
	mic := &fakeMic{supports: map[string]bool{"audio/webm": true, "audio/mp4": true}}
	clk := &manualClock{now: time.Unix(1000, 0)}
	r := NewRecorder(mic, testMediaConfig(), clk.Now)

	_, err := r.Stop()
	require.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, r.Start())
	require.Equal(t, "audio/webm", mic.started)
	require.ErrorIs(t, r.Start(), ErrAlreadyRecording)

	clk.Advance(500 * time.Millisecond)
	_, err = r.Stop()
	require.ErrorIs(t, err, ErrRecordingTooShort)
	require.False(t, r.IsRecording())

	require.NoError(t, r.Start())
	clk.Advance(3 * time.Second)
	require.Equal(t, 3*time.Second, r.Elapsed())
	rec, err := r.Stop()
	require.NoError(t, err)
	require.Equal(t, 3, rec.Media.Duration)
	require.Equal(t, "audio/webm", rec.Media.MimeType)
	require.Equal(t, int64(len("opus-data")), rec.Media.Size)
	require.Equal(t, DataURL("audio/webm", []byte("opus-data")), rec.Media.Content)
}

func TestRecorderMicrophoneFailure(t *testing.T) {
	mic := &fakeMic{fail: errors.New("denied")}
	r := NewRecorder(mic, testMediaConfig(), nil)
	err := r.Start()
	require.ErrorIs(t, err, ErrMicrophone)
	require.Equal(t, "Impossible d'accéder au microphone", apperr.UserMessage(err))
	require.False(t, r.IsRecording())
}

func TestRecorderAutoStopsAtMax(t *testing.T) {
	cfg := testMediaConfig()
	cfg.MinVoiceDuration = 0
	cfg.MaxVoiceDuration = 20 * time.Millisecond
	mic := &fakeMic{}
	clk := &manualClock{now: time.Unix(1000, 0)}
	r := NewRecorder(mic, cfg, clk.Now)

	type result struct {
		rec VoiceRecording
		err error
	}
	done := make(chan result, 1)
	r.OnAutoStop = func(rec VoiceRecording, err error) {
		done <- result{rec, err}
	}
	require.NoError(t, r.Start())
	require.Equal(t, "audio/webm", mic.started)
	clk.Advance(10 * time.Minute)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Equal(t, 0, res.rec.Media.Duration)
	case <-time.After(2 * time.Second):
		t.Fatal("recording was not stopped")
	}
	require.False(t, r.IsRecording())

	r.Cancel()
	require.NoError(t, r.Start())
	r.Cancel()
	require.False(t, r.IsRecording())
}

func TestAvatarSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewAvatarService(session.NewMemory(), 5<<20)

	path, err := svc.Save(ctx, &File{Name: "me.png", MimeType: "image/png", Data: pngBytes(t, 300, 200)}, "7")
	require.NoError(t, err)
	require.Equal(t, "/avatars/7.jpg", path)

	head, raw := decodeDataURL(t, svc.Get(ctx, "7"))
	require.Equal(t, "data:image/jpeg;base64", head)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, AvatarSize, cfg.Width)
	require.Equal(t, AvatarSize, cfg.Height)

	require.NoError(t, svc.Delete(ctx, "7"))
	require.Equal(t, svc.Default(), svc.Get(ctx, "7"))
}

func TestAvatarValidateImage(t *testing.T) {
	svc := NewAvatarService(session.NewMemory(), 5<<20)
	v := svc.ValidateImage(&File{MimeType: "text/plain", Data: []byte("x")})
	require.False(t, v.IsValid)
	require.Equal(t, []string{"Le fichier doit être une image", "Format non supporté. Utilisez JPG, PNG, GIF ou WebP"}, v.Errors)

	v = svc.ValidateImage(&File{MimeType: "image/png", Data: make([]byte, 6<<20)})
	require.Equal(t, []string{"La taille du fichier ne doit pas dépasser 5MB"}, v.Errors)

	_, err := svc.Save(context.Background(), &File{MimeType: "image/bmp", Data: []byte("BM")}, "1")
	require.True(t, apperr.IsValidation(err))
}

func TestDefaultAvatar(t *testing.T) {
	head, raw := decodeDataURL(t, GenerateDefaultAvatar("ab", DefaultAvatarColor))
	require.Equal(t, "data:image/jpeg;base64", head)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, AvatarSize, img.Bounds().Dx())

	// угол остаётся цветом фона
	r, g, b, _ := img.At(2, 2).RGBA()
	require.InDelta(t, 0x25, r>>8, 12)
	require.InDelta(t, 0xD3, g>>8, 12)
	require.InDelta(t, 0x66, b>>8, 12)

	require.Equal(t, "AD", Initials("alice diop"))
	require.Equal(t, "B", Initials("bob"))
	require.Equal(t, "?", Initials("  "))
}
