package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/session"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	AvatarSize      = 150
	avatarKeyPrefix = "avatar_"
)

// DefaultAvatarColor is the background of generated avatars.
var DefaultAvatarColor = color.RGBA{R: 0x25, G: 0xD3, B: 0x66, A: 0xFF}

type AvatarService struct {
	store   session.Store
	maxSize int64
}

func NewAvatarService(store session.Store, maxSize int64) *AvatarService {
	return &AvatarService{store: store, maxSize: maxSize}
}

func avatarKey(id model.ID) string { return avatarKeyPrefix + id.String() }

// ValidateImage checks an avatar candidate. Type is left empty.
func (s *AvatarService) ValidateImage(f *File) MediaValidation {
	if f == nil {
		return MediaValidation{Errors: []string{errNoFile}}
	}
	var errs []string
	mime := f.mime()
	if !strings.HasPrefix(mime, "image/") {
		errs = append(errs, "Le fichier doit être une image")
	}
	if f.Size() > s.maxSize {
		errs = append(errs, fmt.Sprintf("La taille du fichier ne doit pas dépasser %dMB", s.maxSize>>20))
	}
	if !contains(imageTypes, mime) {
		errs = append(errs, "Format non supporté. Utilisez JPG, PNG, GIF ou WebP")
	}
	return MediaValidation{IsValid: len(errs) == 0, Errors: errs}
}

// Save center-crops the picture to a square, scales it to AvatarSize and
// keeps the JPEG under avatar_<id>. The returned path is what the contact
// record points at.
func (s *AvatarService) Save(ctx context.Context, f *File, id model.ID) (string, error) {
	if err := s.ValidateImage(f).Err(); err != nil {
		return "", err
	}
	src, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return "", fmt.Errorf("avatar.Save: Erreur lors du traitement de l'image: %w", err)
	}
	raw, err := encodeJPEG(CropSquare(src, AvatarSize), imageQuality)
	if err != nil {
		return "", fmt.Errorf("avatar.Save: %w", err)
	}
	if err := s.store.Set(ctx, avatarKey(id), []byte(DataURL("image/jpeg", raw))); err != nil {
		return "", fmt.Errorf("avatar.Save: %w", err)
	}
	return "/avatars/" + id.String() + ".jpg", nil
}

// Get returns the stored avatar data URL or the default one.
func (s *AvatarService) Get(ctx context.Context, id model.ID) string {
	raw, ok, err := s.store.Get(ctx, avatarKey(id))
	if err != nil || !ok {
		return s.Default()
	}
	return string(raw)
}

func (s *AvatarService) Default() string {
	return GenerateDefaultAvatar("?", DefaultAvatarColor)
}

func (s *AvatarService) Delete(ctx context.Context, id model.ID) error {
	return s.store.Delete(ctx, avatarKey(id))
}

// CropSquare takes the centered square of src and scales it to size×size.
func CropSquare(src image.Image, size int) *image.RGBA {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+side, y0+side), draw.Src, nil)
	return dst
}

// Initials returns up to two upper-case initials of name, "?" when empty.
func Initials(name string) string {
	var out []rune
	for _, w := range strings.Fields(name) {
		r := []rune(w)[0]
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

// GenerateDefaultAvatar draws white initials on bg and returns a JPEG data URL.
func GenerateDefaultAvatar(initials string, bg color.Color) string {
	text := strings.ToUpper(initials)
	face := basicfont.Face7x13

	// текст рисуется мелко и растягивается до ~60px
	small := image.NewRGBA(image.Rect(0, 0, 30, 30))
	draw.Draw(small, small.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	d := &font.Drawer{Dst: small, Src: image.White, Face: face}
	width := d.MeasureString(text).Ceil()
	d.Dot = fixed.P((30-width)/2, (30+face.Ascent-face.Descent)/2)
	d.DrawString(text)

	dst := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)
	raw, err := encodeJPEG(dst, imageQuality)
	if err != nil {
		return ""
	}
	return DataURL("image/jpeg", raw)
}
