package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestColorTextHandlerTintsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.Warn("service exited unexpectedly")
	out := buf.String()
	if !strings.Contains(out, "\033[33mWARN\033[0m") {
		t.Fatalf("warn not tinted yellow: %q", out)
	}
	if !strings.Contains(out, "service exited unexpectedly") {
		t.Fatalf("message missing: %q", out)
	}

	buf.Reset()
	l.Error("boom")
	if !strings.Contains(buf.String(), "\033[31mERROR\033[0m") {
		t.Fatalf("error not tinted red: %q", buf.String())
	}
}

func TestColorTextHandlerSurvivesWith(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewColorTextHandler(&buf, nil)).With("service", "lmStudio")

	l.Info("service spawned")
	out := buf.String()
	if !strings.Contains(out, "\033[32mINFO\033[0m") {
		t.Fatalf("derived logger lost coloring: %q", out)
	}
	if !strings.Contains(out, "service=lmStudio") {
		t.Fatalf("derived attrs missing: %q", out)
	}
}

func TestColorTextHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	l.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info emitted below handler level: %q", buf.String())
	}
}

func TestWritersNaming(t *testing.T) {
	dir := t.TempDir()
	outW, errW, err := Config{Dir: dir}.Writers("comfyUI")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatal("expected both writers when a dir is configured")
	}
	if _, err := outW.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = outW.Close()
	_ = errW.Close()
}

func TestWritersDisabledWithoutDestination(t *testing.T) {
	outW, errW, err := Config{}.Writers("comfyUI")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW != nil || errW != nil {
		t.Fatal("expected nil writers without a destination")
	}
}
