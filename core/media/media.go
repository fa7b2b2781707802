package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Device-level failures surfaced by capture backends. Manager-level
// failures (switch re-entrancy, missing video) live with the session.
var (
	ErrPermissionDenied  = errors.New("media: device permission denied")
	ErrDeviceUnavailable = errors.New("media: device unavailable")
)

// FacingMode selects which camera to acquire.
type FacingMode string

const (
	FacingFront FacingMode = "front"
	FacingBack  FacingMode = "back"
)

// Opposite returns the other facing mode.
func (f FacingMode) Opposite() FacingMode {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// Frame is a point-in-time video frame snapshot in packed RGB.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}

// ToImage converts the packed RGB data into an image.Image.
func (f Frame) ToImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Data) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Data[i]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// EncodeJPEG renders the frame as a JPEG payload for classification.
func (f Frame) EncodeJPEG(quality int) ([]byte, error) {
	if f.Width == 0 || f.Height == 0 {
		return nil, fmt.Errorf("media: frame has no dimensions")
	}

	buffer := bytes.Buffer{}
	if err := jpeg.Encode(&buffer, f.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("media: failed to encode frame: %w", err)
	}
	return buffer.Bytes(), nil
}

// VideoSource opens a camera for a given facing mode.
type VideoSource interface {
	Open(ctx context.Context, facing FacingMode) (VideoTrack, error)
}

// VideoTrack is a running camera capture. Frame returns the latest
// decoded frame and fails while dimensions are not yet known.
type VideoTrack interface {
	Frame() (Frame, error)
	Stop() error
}

// AudioSource streams captured microphone audio to a callback.
type AudioSource interface {
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	StopStream() error
	EncodingInfo() EncodingInfo
	Close()
}
