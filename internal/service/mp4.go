package service

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

var errNoMovieHeader = errors.New("mp4: no mvhd box")

// MP4Prober reads the duration from the movie header of MP4/MOV files.
// It cannot decode frames, so VideoInfo.Frame stays nil.
type MP4Prober struct{}

func (MP4Prober) Probe(_ context.Context, f *File) (VideoInfo, error) {
	d, err := mp4Duration(f.Data)
	if err != nil {
		return VideoInfo{}, err
	}
	return VideoInfo{Duration: d}, nil
}

// mp4Duration walks moov/mvhd.
func mp4Duration(data []byte) (time.Duration, error) {
	moov, ok := findBox(data, "moov")
	if !ok {
		return 0, errNoMovieHeader
	}
	mvhd, ok := findBox(moov, "mvhd")
	if !ok || len(mvhd) < 4 {
		return 0, errNoMovieHeader
	}
	var timescale, duration uint64
	switch mvhd[0] {
	case 0:
		if len(mvhd) < 20 {
			return 0, errNoMovieHeader
		}
		timescale = uint64(binary.BigEndian.Uint32(mvhd[12:16]))
		duration = uint64(binary.BigEndian.Uint32(mvhd[16:20]))
	case 1:
		if len(mvhd) < 32 {
			return 0, errNoMovieHeader
		}
		timescale = uint64(binary.BigEndian.Uint32(mvhd[20:24]))
		duration = binary.BigEndian.Uint64(mvhd[24:32])
	default:
		return 0, errNoMovieHeader
	}
	if timescale == 0 {
		return 0, errNoMovieHeader
	}
	return time.Duration(float64(duration) / float64(timescale) * float64(time.Second)), nil
}

// findBox returns the payload of the first box of type typ at this level.
func findBox(data []byte, typ string) ([]byte, bool) {
	for len(data) >= 8 {
		size := uint64(binary.BigEndian.Uint32(data[:4]))
		name := string(data[4:8])
		header := uint64(8)
		switch size {
		case 0:
			size = uint64(len(data))
		case 1:
			if len(data) < 16 {
				return nil, false
			}
			size = binary.BigEndian.Uint64(data[8:16])
			header = 16
		}
		if size < header || size > uint64(len(data)) {
			return nil, false
		}
		if name == typ {
			return data[header:size], true
		}
		data = data[size:]
	}
	return nil, false
}
