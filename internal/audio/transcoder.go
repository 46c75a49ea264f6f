// Package audio converts uploaded recordings into the canonical format the
// transcription gateway accepts.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// TranscodeError reports a failed conversion. Detail carries the last line of
// ffmpeg's stderr so the client sees a usable diagnostic.
type TranscodeError struct {
	Detail string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcode failed: %s: %v", e.Detail, e.Err)
	}
	return "transcode failed: " + e.Detail
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Transcoder converts arbitrary uploaded audio into mono MP3.
type Transcoder interface {
	Transcode(ctx context.Context, raw []byte, mimeHint string) ([]byte, error)
}

// FFmpeg shells out to an ffmpeg binary. Input is staged to a temp file and
// the output fully materialized before it is returned.
type FFmpeg struct {
	Path    string
	Timeout time.Duration
}

// NewFFmpeg builds a transcoder; an empty path means "ffmpeg" on PATH.
func NewFFmpeg(path string, timeout time.Duration) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, Timeout: timeout}
}

// Transcode converts raw into mono MP3 regardless of the source container.
func (f *FFmpeg) Transcode(ctx context.Context, raw []byte, mimeHint string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, &TranscodeError{Detail: "no audio data"}
	}

	dir, err := os.MkdirTemp("", "voicebot-transcode-")
	if err != nil {
		return nil, &TranscodeError{Detail: "staging upload", Err: err}
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+extForHint(mimeHint))
	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return nil, &TranscodeError{Detail: "staging upload", Err: err}
	}
	out := filepath.Join(dir, "output.mp3")

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.Path, "-y", "-i", in, "-vn", "-ac", "1", "-f", "mp3", out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &TranscodeError{Detail: lastLine(stderr.String()), Err: err}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, &TranscodeError{Detail: "reading converted audio", Err: err}
	}
	if len(data) == 0 {
		return nil, &TranscodeError{Detail: "conversion produced no audio"}
	}
	return data, nil
}

// extForHint maps a MIME type or filename extension to the staging file
// extension, helping ffmpeg pick the demuxer. Unknown hints are left to
// ffmpeg's own container sniffing.
func extForHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if i := strings.Index(hint, ";"); i >= 0 {
		hint = hint[:i]
	}

	switch {
	case strings.Contains(hint, "webm"):
		return ".webm"
	case strings.Contains(hint, "ogg"), strings.Contains(hint, "opus"):
		return ".ogg"
	case strings.Contains(hint, "wav"), strings.Contains(hint, "wave"):
		return ".wav"
	case strings.Contains(hint, "m4a"), strings.Contains(hint, "mp4"), strings.Contains(hint, "aac"):
		return ".m4a"
	case strings.Contains(hint, "mpeg"), strings.Contains(hint, "mp3"):
		return ".mp3"
	default:
		return ""
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return "unknown ffmpeg error"
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "unknown ffmpeg error"
	}
	return last
}
