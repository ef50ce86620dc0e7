package health

import (
	"context"
	"errors"
)

// ProvidersConfigured returns a checker that fails until at least one
// transcription engine reports usable credentials.
func ProvidersConfigured(configured func() bool) Checker {
	return Checker{
		Name: "providers",
		Check: func(ctx context.Context) error {
			if !configured() {
				return errors.New("no transcription engine configured")
			}
			return nil
		},
	}
}

// FFmpeg returns a checker that fails when the ffmpeg binary is not on PATH.
// Conversion of non-native audio formats is unavailable without it.
func FFmpeg(available func() bool) Checker {
	return Checker{
		Name: "ffmpeg",
		Check: func(ctx context.Context) error {
			if !available() {
				return errors.New("ffmpeg not found on PATH")
			}
			return nil
		},
	}
}
