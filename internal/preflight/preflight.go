// Package preflight validates and prepares uploaded audio before it is
// submitted to a transcription provider.
//
// Validation (extension and size) happens synchronously so the API can reject
// bad uploads before a job is created. Preparation runs in the background
// worker: formats the target provider accepts natively pass through untouched,
// everything else is re-encoded with ffmpeg to 16 kHz mono PCM WAV. ASF-style
// video containers get their audio stream extracted without re-encoding
// first, which is much faster than a full transcode.
package preflight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// ErrUnsupportedFormat is returned when the uploaded file's extension is not
// in the accepted set.
var ErrUnsupportedFormat = errors.New("preflight: unsupported audio format")

// ErrPayloadTooLarge is returned when the file exceeds the provider's upload
// limit, before or after conversion.
var ErrPayloadTooLarge = errors.New("preflight: audio file exceeds upload limit")

// ErrFFmpegMissing is returned when a conversion is required but the ffmpeg
// binary is not on PATH.
var ErrFFmpegMissing = errors.New("preflight: ffmpeg not found on PATH")

// ConversionError describes a failed ffmpeg run. Stderr carries the tool's
// diagnostic output trimmed to a reasonable length.
type ConversionError struct {
	Stderr string
	Err    error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("preflight: audio conversion failed: %s", e.Stderr)
	}
	return fmt.Sprintf("preflight: audio conversion failed: %v", e.Err)
}

// Unwrap returns the underlying exec error.
func (e *ConversionError) Unwrap() error { return e.Err }

// accepted is the full set of extensions the service takes in. It is the
// union of every provider's native formats plus the containers ffmpeg can
// re-encode or extract from.
var accepted = map[string]bool{
	".wav": true, ".mp3": true, ".ogg": true, ".opus": true, ".flac": true,
	".wma": true, ".aac": true, ".webm": true, ".amr": true, ".speex": true,
	".mp4": true, ".m4a": true, ".mpeg": true, ".mpga": true,
	".asf": true, ".wmv": true,
}

// asfContainers are video containers whose audio stream (typically WMA) can
// be extracted without re-encoding.
var asfContainers = map[string]bool{
	".asf": true,
	".wmv": true,
}

// AcceptedFormats returns the accepted extensions sorted for display.
func AcceptedFormats() []string {
	out := make([]string, 0, len(accepted))
	for ext := range accepted {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Validate checks the declared filename and size against the accepted format
// set and the provider's upload limit. It never touches the filesystem, so
// the API layer can call it before persisting the upload.
//
// Errors: [ErrUnsupportedFormat], [ErrPayloadTooLarge].
func Validate(filename string, size int64, limits transcribe.Limits) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !accepted[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if limits.MaxUploadBytes > 0 && size > limits.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, size, limits.MaxUploadBytes)
	}
	return nil
}

// FFmpegAvailable reports whether the ffmpeg binary is on PATH. Used by the
// readiness check and the config endpoint.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// Preparer converts uploaded audio into a provider-acceptable format.
type Preparer struct {
	// ConvertTimeout bounds a single ffmpeg run. Zero means the caller's
	// context is the only limit.
	ConvertTimeout time.Duration
}

// Prepared is the outcome of Prepare. Path points at the file to upload;
// Cleanup removes any temporary artifact Prepare created (never the input)
// and is always non-nil.
type Prepared struct {
	Path      string
	Converted bool
	Cleanup   func()
}

// Prepare returns the path to submit for the given input file. Native formats
// pass through. ASF containers get their audio stream extracted with stream
// copy when the provider takes WMA natively; everything else is re-encoded to
// 16 kHz mono PCM WAV. The converted file lands next to the input and is
// re-checked against the upload limit.
//
// Errors: [ErrUnsupportedFormat], [ErrPayloadTooLarge], [ErrFFmpegMissing],
// *[ConversionError].
func (p *Preparer) Prepare(ctx context.Context, path string, limits transcribe.Limits) (Prepared, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !accepted[ext] {
		return Prepared{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if limits.Native(ext) {
		return Prepared{Path: path, Cleanup: func() {}}, nil
	}

	if !FFmpegAvailable() {
		return Prepared{}, ErrFFmpegMissing
	}

	if p.ConvertTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ConvertTimeout)
		defer cancel()
	}

	base := strings.TrimSuffix(path, ext)
	var out string
	var args []string
	if asfContainers[ext] && limits.Native(".wma") {
		// Pull the audio stream out of the container without re-encoding.
		out = base + "_audio.wma"
		args = []string{"-y", "-i", path, "-vn", "-c:a", "copy", out}
	} else {
		out = base + "_16k.wav"
		args = []string{"-y", "-i", path, "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", out}
	}

	slog.Debug("converting audio", "input", path, "output", out)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return Prepared{}, &ConversionError{Stderr: tail(stderr.String(), 512), Err: err}
	}

	info, err := os.Stat(out)
	if err != nil {
		return Prepared{}, fmt.Errorf("preflight: stat converted file: %w", err)
	}
	if limits.MaxUploadBytes > 0 && info.Size() > limits.MaxUploadBytes {
		os.Remove(out)
		return Prepared{}, fmt.Errorf("%w: %d bytes after conversion (limit %d)",
			ErrPayloadTooLarge, info.Size(), limits.MaxUploadBytes)
	}

	return Prepared{
		Path:      out,
		Converted: true,
		Cleanup:   func() { os.Remove(out) },
	}, nil
}

// Duration probes the audio duration in seconds with ffprobe. Returns 0 and
// an error when ffprobe is missing or the file cannot be parsed; callers
// treat the duration as best-effort.
func Duration(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0, fmt.Errorf("preflight: ffprobe not found: %w", err)
	}
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("preflight: probe duration: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("preflight: parse duration: %w", err)
	}
	return d, nil
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
