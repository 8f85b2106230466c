package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var discard = slog.New(slog.DiscardHandler)

func TestHandle_WritesBodyVerbatim(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	dest := filepath.Join(t.TempDir(), "out.bin")

	n, err := Handle(t.Context(), bytes.NewReader(body), int64(len(body)), dest, discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != int64(len(body)) {
		t.Errorf("expected %d bytes written, got %d", len(body), n)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("file content differs from body")
	}
}

func TestHandle_TruncatesExistingFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(dest, []byte("a much longer previous content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Handle(t.Context(), strings.NewReader("short"), -1, dest, discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("short", string(got)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestHandle_Checksum(t *testing.T) {
	content := []byte("checksum me")
	sum := sha256.Sum256(content)
	good := hex.EncodeToString(sum[:])

	testCases := []struct {
		name     string
		expected string
		expErr   error
	}{
		{name: "match", expected: good},
		{name: "match upper case", expected: strings.ToUpper(good)},
		{name: "mismatch", expected: strings.Repeat("0", 64), expErr: ErrChecksumMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "sum.bin")

			_, err := Handle(t.Context(), bytes.NewReader(content), int64(len(content)), dest, discard,
				WithChecksum(sha256.New(), tc.expected),
			)
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("expected %v, got %v", tc.expErr, err)
			}

			var dlErr *Error
			if tc.expErr != nil && !errors.As(err, &dlErr) {
				t.Errorf("expected *Error, got %T", err)
			}
		})
	}
}

func TestHandle_ContentLengthMismatch(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "short.bin")

	n, err := Handle(t.Context(), strings.NewReader("abc"), 10, dest, discard)
	if !errors.Is(err, ErrContentLengthMismatch) {
		t.Fatalf("expected ErrContentLengthMismatch, got %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 bytes reported, got %d", n)
	}
}

func TestHandle_ReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	body := io.MultiReader(strings.NewReader("partial"), &failingReader{err: readErr})
	dest := filepath.Join(t.TempDir(), "broken.bin")

	_, err := Handle(t.Context(), body, -1, dest, discard)
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestHandle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dest := filepath.Join(t.TempDir(), "cancel.bin")
	_, err := Handle(ctx, strings.NewReader("data"), -1, dest, discard)
	if !errors.Is(err, ErrDownloadCancelled) {
		t.Fatalf("expected ErrDownloadCancelled, got %v", err)
	}
}

func TestHandle_BadDestination(t *testing.T) {
	testCases := []struct {
		name string
		dest string
	}{
		{name: "empty", dest: ""},
		{name: "missing directory", dest: filepath.Join(t.TempDir(), "nope", "file.bin")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Handle(t.Context(), strings.NewReader("x"), -1, tc.dest, discard); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestHandle_ProgressUnknownLength(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	dest := filepath.Join(t.TempDir(), "progress.bin")

	if _, err := Handle(t.Context(), strings.NewReader("progress"), -1, dest, logger, WithProgress()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(logs.String(), "progress=unknown") {
		t.Errorf("expected unknown progress in logs, got %q", logs.String())
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(WithChecksum(nil, "abc")); err == nil {
		t.Error("expected nil hash to be rejected")
	}
	if err := Validate(WithChecksum(sha256.New(), "")); err == nil {
		t.Error("expected empty checksum to be rejected")
	}
	if err := Validate(WithBufferSize(0)); err == nil {
		t.Error("expected zero buffer size to be rejected")
	}
	if err := Validate(WithProgress(), WithBufferSize(512)); err != nil {
		t.Errorf("expected valid options, got %v", err)
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
