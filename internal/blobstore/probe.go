package blobstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Prober measures the playback duration of a local media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFProbe shells out to ffprobe.
type FFProbe struct {
	Timeout time.Duration
}

func (p FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		var (
			out string
			err error
		)
		if p.Timeout > 0 {
			out, err = ffmpeg.ProbeWithTimeout(path, p.Timeout, ffmpeg.KwArgs{})
		} else {
			out, err = ffmpeg.Probe(path)
		}
		done <- result{out, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return 0, errors.WithMessage(ctx.Err(), "probe cancelled")
	case r = <-done:
	}
	if r.err != nil {
		return 0, errors.WithMessage(r.err, "ffprobe failed")
	}
	return parseDuration(r.out)
}

func parseDuration(probeJSON string) (float64, error) {
	d := gjson.Get(probeJSON, "format.duration")
	if !d.Exists() {
		return 0, errors.New("ffprobe output has no format.duration")
	}
	secs := d.Float()
	if secs <= 0 {
		return 0, errors.Errorf("ffprobe reported non-positive duration %q", d.String())
	}
	return secs, nil
}
