package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected no logger on a bare context")
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected the attached logger back")
	}

	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatal("expected a nil logger to leave the context untouched")
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept", "room_id", 7)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "kept" || record["room_id"] != float64(7) {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestScoped(t *testing.T) {
	var base, request bytes.Buffer
	baseLogger := New(&base, slog.LevelInfo)
	requestLogger := New(&request, slog.LevelInfo)

	Scoped(context.Background(), baseLogger, "service", "RoomService", "AddRoom", "room_id", 3).Info("added")
	var record map[string]any
	if err := json.Unmarshal(base.Bytes(), &record); err != nil {
		t.Fatalf("decode %q: %v", base.String(), err)
	}
	if record["service"] != "RoomService" || record["operation"] != "AddRoom" || record["room_id"] != float64(3) {
		t.Fatalf("unexpected record %v", record)
	}

	ctx := ContextWithLogger(context.Background(), requestLogger)
	Scoped(ctx, baseLogger, "handler", "RoomHandler", "").Info("listed")
	if !bytes.Contains(request.Bytes(), []byte(`"handler":"RoomHandler"`)) {
		t.Fatalf("expected the request logger to be used, got %q", request.String())
	}
	if bytes.Contains(request.Bytes(), []byte(`"operation"`)) {
		t.Fatalf("expected no operation attribute, got %q", request.String())
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) != slog.Default() {
		t.Fatal("expected slog.Default for nil")
	}
	logger := New(nil, slog.LevelInfo)
	if OrDefault(logger) != logger {
		t.Fatal("expected the given logger back")
	}
}
