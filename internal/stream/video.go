package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/sonroyaalmerol/feedplay/internal/utils"
)

// VideoDecoder demuxes and decodes the best video stream of an input into
// images, one frame per Next call.
type VideoDecoder struct {
	fc       *astiav.FormatContext
	st       *astiav.Stream
	codec    *astiav.Codec
	decCtx   *astiav.CodecContext
	packet   *astiav.Packet
	frame    *astiav.Frame
	rgba     *astiav.Frame
	ssc      *astiav.SoftwareScaleContext
	timeBase float64

	lastPts  time.Duration
	skipTo   time.Duration
	draining bool
}

// OpenVideo opens inputURL and prepares a decoder for its best video
// stream. Network inputs get reconnect options and browser-like headers.
func OpenVideo(ctx context.Context, inputURL string) (*VideoDecoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	if utils.IsNetworkURL(inputURL) {
		_ = dict.Set("reconnect", "1", 0)
		_ = dict.Set("reconnect_streamed", "1", 0)
		_ = dict.Set("reconnect_delay_max", "5", 0)
		_ = dict.Set("headers", utils.FFmpegHeaders(), 0)
	}

	if err := fc.OpenInput(inputURL, nil, dict); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := fc.FindBestStream(astiav.MediaTypeVideo, -1, -1)
	if err != nil || st == nil || codec == nil {
		fc.CloseInput()
		fc.Free()
		if err != nil {
			return nil, fmt.Errorf("find best video stream: %w", err)
		}
		return nil, errors.New("no video stream found")
	}

	v := &VideoDecoder{
		fc:       fc,
		st:       st,
		codec:    codec,
		packet:   astiav.AllocPacket(),
		frame:    astiav.AllocFrame(),
		timeBase: st.TimeBase().Float64(),
	}
	if err := v.openCodec(); err != nil {
		v.Close()
		return nil, err
	}

	slog.Debug("video input opened",
		"url", inputURL,
		"codec", codec.Name(),
		"width", st.CodecParameters().Width(),
		"height", st.CodecParameters().Height(),
	)
	return v, nil
}

func (v *VideoDecoder) openCodec() error {
	if v.decCtx != nil {
		v.decCtx.Free()
	}
	v.decCtx = astiav.AllocCodecContext(v.codec)
	if v.decCtx == nil {
		return errors.New("alloc codec context")
	}
	if err := v.decCtx.FromCodecParameters(v.st.CodecParameters()); err != nil {
		return fmt.Errorf("codec from params: %w", err)
	}
	v.decCtx.SetTimeBase(v.st.TimeBase())
	if err := v.decCtx.Open(v.codec, nil); err != nil {
		return fmt.Errorf("open decoder: %w", err)
	}
	v.draining = false
	return nil
}

// Next returns the next decoded frame and its presentation time. It
// returns io.EOF once the stream is exhausted.
func (v *VideoDecoder) Next(ctx context.Context) (image.Image, time.Duration, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		v.frame.Unref()
		err := v.decCtx.ReceiveFrame(v.frame)
		switch {
		case err == nil:
			pts := v.framePts()
			if pts < v.skipTo {
				continue
			}
			v.skipTo = 0
			img, err := v.toImage()
			if err != nil {
				return nil, 0, err
			}
			return img, pts, nil
		case errors.Is(err, astiav.ErrEof):
			return nil, 0, io.EOF
		case !errors.Is(err, astiav.ErrEagain):
			return nil, 0, fmt.Errorf("receive frame: %w", err)
		}

		if v.draining {
			return nil, 0, io.EOF
		}
		if err := v.feed(); err != nil {
			return nil, 0, err
		}
	}
}

// feed sends one packet of the video stream to the decoder, or starts
// draining it at the end of input.
func (v *VideoDecoder) feed() error {
	for {
		v.packet.Unref()
		if err := v.fc.ReadFrame(v.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				v.draining = true
				_ = v.decCtx.SendPacket(nil)
				return nil
			}
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if v.packet.StreamIndex() != v.st.Index() {
			continue
		}
		if err := v.decCtx.SendPacket(v.packet); err != nil && !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("send packet: %w", err)
		}
		return nil
	}
}

func (v *VideoDecoder) framePts() time.Duration {
	pts := v.frame.Pts()
	// AV_NOPTS_VALUE is negative
	if pts < 0 {
		return v.lastPts
	}
	d := time.Duration(float64(pts) * v.timeBase * float64(time.Second))
	v.lastPts = d
	return d
}

func (v *VideoDecoder) toImage() (image.Image, error) {
	src := v.frame
	if v.frame.PixelFormat() != astiav.PixelFormatYuv420P && v.frame.PixelFormat() != astiav.PixelFormatRgba {
		if err := v.scaleToRGBA(); err != nil {
			return nil, err
		}
		src = v.rgba
	}

	img, err := src.Data().GuessImageFormat()
	if err != nil {
		return nil, fmt.Errorf("guess image format: %w", err)
	}
	if err := src.Data().ToImage(img); err != nil {
		return nil, fmt.Errorf("frame to image: %w", err)
	}
	return img, nil
}

func (v *VideoDecoder) scaleToRGBA() error {
	w, h := v.frame.Width(), v.frame.Height()
	if v.ssc == nil {
		ssc, err := astiav.CreateSoftwareScaleContext(
			w, h, v.frame.PixelFormat(),
			w, h, astiav.PixelFormatRgba,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		)
		if err != nil {
			return fmt.Errorf("create scale context: %w", err)
		}
		v.ssc = ssc
		v.rgba = astiav.AllocFrame()
	}
	v.rgba.Unref()
	if err := v.ssc.ScaleFrame(v.frame, v.rgba); err != nil {
		return fmt.Errorf("scale frame: %w", err)
	}
	return nil
}

// Seek repositions to the keyframe at or before pos; frames before pos are
// decoded but not returned.
func (v *VideoDecoder) Seek(pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}
	ts := int64(pos.Seconds() / v.timeBase)
	if err := v.fc.SeekFrame(v.st.Index(), ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	if err := v.openCodec(); err != nil {
		return err
	}
	v.skipTo = pos
	v.lastPts = pos
	return nil
}

func (v *VideoDecoder) Close() {
	if v.ssc != nil {
		v.ssc.Free()
		v.ssc = nil
	}
	if v.rgba != nil {
		v.rgba.Free()
		v.rgba = nil
	}
	if v.frame != nil {
		v.frame.Free()
		v.frame = nil
	}
	if v.packet != nil {
		v.packet.Free()
		v.packet = nil
	}
	if v.decCtx != nil {
		v.decCtx.Free()
		v.decCtx = nil
	}
	if v.fc != nil {
		v.fc.CloseInput()
		v.fc.Free()
		v.fc = nil
	}
}
