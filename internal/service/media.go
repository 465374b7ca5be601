package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	errNoFile           = "Aucun fichier sélectionné"
	errUnsupportedMedia = "Format de fichier non supporté. Formats acceptés: JPG, PNG, GIF, WebP, MP4, WebM, OGG, AVI, MOV"

	imageQuality     = 80
	thumbnailQuality = 70
	thumbnailWidth   = 300
)

var (
	imageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}
	videoTypes = []string{"video/mp4", "video/webm", "video/ogg", "video/avi", "video/mov"}
)

// File is a user-picked file.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

func (f *File) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// mime returns the lower-cased type without parameters.
func (f *File) mime() string {
	t, _, _ := strings.Cut(f.MimeType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

type MediaValidation struct {
	IsValid bool
	Errors  []string
	Type    model.MessageType
}

func (v MediaValidation) Err() error {
	if v.IsValid {
		return nil
	}
	return apperr.Validation(v.Errors...)
}

// PreparedMedia is the payload of an image or video message.
type PreparedMedia struct {
	Type  model.MessageType
	Media model.Media
}

// VideoInfo is what a VideoProber extracts. Frame is the picture at about one
// second in and may be nil.
type VideoInfo struct {
	Duration time.Duration
	Frame    image.Image
}

type VideoProber interface {
	Probe(ctx context.Context, f *File) (VideoInfo, error)
}

type MediaService struct {
	cfg    config.MediaConfig
	prober VideoProber
	clock  Clock
}

// NewMediaService creates the service; a nil prober falls back to MP4Prober.
func NewMediaService(cfg config.MediaConfig, prober VideoProber, clock Clock) *MediaService {
	if prober == nil {
		prober = MP4Prober{}
	}
	return &MediaService{cfg: cfg, prober: prober, clock: clock}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Validate checks size and type. Type is image for image MIME types and
// video otherwise.
func (s *MediaService) Validate(f *File) MediaValidation {
	if f == nil {
		return MediaValidation{Errors: []string{errNoFile}}
	}
	var errs []string
	if f.Size() > s.cfg.MaxFileSize {
		errs = append(errs, fmt.Sprintf("Le fichier est trop volumineux (maximum %dMB)", s.cfg.MaxFileSize>>20))
	}
	mime := f.mime()
	isImage := contains(imageTypes, mime)
	if !isImage && !contains(videoTypes, mime) {
		errs = append(errs, errUnsupportedMedia)
	}
	typ := model.MessageVideo
	if isImage {
		typ = model.MessageImage
	}
	return MediaValidation{IsValid: len(errs) == 0, Errors: errs, Type: typ}
}

// Prepare validates f and turns it into a transport payload: large images
// are shrunk to fit the configured box and re-encoded as JPEG, videos get a
// duration and a thumbnail when the prober can provide them.
func (s *MediaService) Prepare(ctx context.Context, f *File, convID, senderID model.ID) (PreparedMedia, error) {
	defer logger.DeferLogDuration("media.Prepare", time.Now())()
	v := s.Validate(f)
	if err := v.Err(); err != nil {
		return PreparedMedia{}, err
	}
	if !matchesContent(f.mime(), f.Data) {
		return PreparedMedia{}, apperr.Validation(errUnsupportedMedia)
	}

	media := model.Media{
		FileName:     fmt.Sprintf("%s_%s_%s_%d", v.Type, convID, senderID, s.clock.now().UnixMilli()),
		OriginalName: f.Name,
		MimeType:     f.mime(),
	}
	data, mime := f.Data, f.mime()

	switch v.Type {
	case model.MessageImage:
		if f.Size() > s.cfg.ResizeThreshold {
			resized, err := s.resize(f.Data)
			if err != nil {
				return PreparedMedia{}, fmt.Errorf("media.Prepare: %w", err)
			}
			data, mime = resized, "image/jpeg"
		}
	case model.MessageVideo:
		info, err := s.prober.Probe(ctx, f)
		if err != nil {
			logger.Warnf("media.Prepare: probe %s: %v", f.Name, err)
		}
		media.Duration = int(math.Round(info.Duration.Seconds()))
		if info.Frame != nil {
			thumb, err := encodeJPEG(scaleToWidth(info.Frame, thumbnailWidth), thumbnailQuality)
			if err != nil {
				logger.Warnf("media.Prepare: thumbnail %s: %v", f.Name, err)
			} else {
				media.Thumbnail = DataURL("image/jpeg", thumb)
			}
		}
	}

	media.Content = DataURL(mime, data)
	media.Size = int64(len(data))
	return PreparedMedia{Type: v.Type, Media: media}, nil
}

// resize scales the image down so the longer side fits the configured box.
func (s *MediaService) resize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	w, h := fitBox(src.Bounds().Dx(), src.Bounds().Dy(), s.cfg.MaxImageWidth, s.cfg.MaxImageHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return encodeJPEG(dst, imageQuality)
}

// fitBox: landscape images are limited by width, the rest by height.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w > h {
		if w > maxW {
			h = max(1, h*maxW/w)
			w = maxW
		}
	} else if h > maxH {
		w = max(1, w*maxH/h)
		h = maxH
	}
	return w, h
}

func scaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() == 0 {
		return src
	}
	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// matchesContent checks the leading bytes against the declared type.
// Containers without a fixed signature are accepted.
func matchesContent(mime string, head []byte) bool {
	switch mime {
	case "image/jpeg", "image/jpg":
		return len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF
	case "image/png":
		return len(head) >= 8 && bytes.Equal(head[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	case "image/gif":
		return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
	case "image/webp":
		return len(head) >= 12 && bytes.Equal(head[8:12], []byte("WEBP"))
	case "video/mp4", "video/mov":
		return len(head) >= 8 && bytes.Equal(head[4:8], []byte("ftyp"))
	case "video/webm":
		return len(head) >= 4 && bytes.Equal(head[:4], []byte{0x1A, 0x45, 0xDF, 0xA3})
	case "video/ogg":
		return len(head) >= 4 && bytes.Equal(head[:4], []byte("OggS"))
	}
	return true
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with at most two decimals: 1536 -> "1.5 KB".
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
