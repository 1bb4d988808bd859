package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "")
	if root.TraceID == "" {
		t.Fatal("expected generated trace id")
	}
	_, parse := StartChildSpan(ctx, "parse")
	parse.SetAttr("tokens", 3)
	parse.End()
	_, eval := StartChildSpan(ctx, "evaluate")
	eval.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(root.Children))
	}
	if parse.TraceID != root.TraceID {
		t.Errorf("child trace id %q != root %q", parse.TraceID, root.TraceID)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if strings.Count(out, "msg=span") != 3 {
		t.Errorf("expected 3 span records, got:\n%s", out)
	}
	if !strings.Contains(out, "tokens=3") {
		t.Errorf("missing attr in log:\n%s", out)
	}
}

func TestChildWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if SpanFromContext(ctx) != span {
		t.Error("span not stored in context")
	}
	if span.TraceID != "" {
		t.Errorf("orphan trace id = %q", span.TraceID)
	}
}
