package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestConsole_StatusThenLine(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Status("Length: 00:00:01.000")
	c.Status("Length: 00:00:01.010")
	c.Println("Paused")

	want := "\rLength: 00:00:01.000\rLength: 00:00:01.010\nPaused\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n got %q\nwant %q", buf.String(), want)
	}
}

func TestConsole_StatusFuncSkipsWhenNotReady(t *testing.T) {
	var out bytes.Buffer
	c := New(&out)

	c.StatusFunc(func() (string, bool) { return "Length: 00:00:01.000", false })
	if out.Len() != 0 {
		t.Errorf("Expected no output, got %q", out.String())
	}

	c.StatusFunc(func() (string, bool) { return "Length: 00:00:02.000", true })
	if out.String() != "\rLength: 00:00:02.000" {
		t.Errorf("Unexpected status output %q", out.String())
	}
}

func TestConsole_EndStatusOnlyOnce(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Status("x")
	c.EndStatus()
	c.EndStatus()

	if buf.String() != "\rx\n" {
		t.Errorf("Expected a single newline after status, got %q", buf.String())
	}
}

func TestConsole_HintsPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Hints(Hint{Key: "P", Desc: "to pause"}, Hint{Key: "R", Desc: "to resume"})

	want := "Press [P] to pause\n      [R] to resume\n"
	if buf.String() != want {
		t.Errorf("Unexpected hints:\n got %q\nwant %q", buf.String(), want)
	}
	if c.IsTerminal() {
		t.Error("A bytes.Buffer must not be detected as a terminal")
	}
}

func TestConsole_WriterEndsStatus(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Status("Length")
	io.WriteString(c.Writer(), "level=INFO msg=hello\n")

	if buf.String() != "\rLength\nlevel=INFO msg=hello\n" {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestConsole_ClearIsNoopOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Clear()
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestInput_KeysAndLines(t *testing.T) {
	in := NewInput(strings.NewReader("o/mnt/captures\ny\n"))
	ctx := context.Background()

	key, err := in.ReadKey(ctx)
	if err != nil || key != 'o' {
		t.Fatalf("Expected 'o', got %q (%v)", key, err)
	}

	line, err := in.ReadLine(ctx)
	if err != nil || line != "/mnt/captures" {
		t.Fatalf("Expected '/mnt/captures', got %q (%v)", line, err)
	}

	key, _ = in.ReadKey(ctx)
	if key != 'y' {
		t.Errorf("Expected 'y', got %q", key)
	}

	key, _ = in.ReadKey(ctx)
	if key != KeyEnter {
		t.Errorf("Expected newline to read as KeyEnter, got %q", key)
	}

	if _, err := in.ReadKey(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF, got %v", err)
	}
}

func TestInput_LineWithoutTrailingNewline(t *testing.T) {
	in := NewInput(strings.NewReader("relative/dir"))

	line, err := in.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if line != "relative/dir" {
		t.Errorf("Expected 'relative/dir', got %q", line)
	}
}

func TestInput_CancelledReadIsHandedOver(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	in := NewInput(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := in.ReadKey(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}

	go io.WriteString(pw, "x")

	key, err := in.ReadKey(context.Background())
	if err != nil || key != 'x' {
		t.Errorf("Expected pending read to deliver 'x', got %q (%v)", key, err)
	}
}

func TestInput_PendingKeyFoldsIntoLine(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	in := NewInput(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	in.ReadKey(ctx)

	go io.WriteString(pw, "/tmp/out\n")

	line, err := in.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if line != "/tmp/out" {
		t.Errorf("Expected '/tmp/out', got %q", line)
	}
}

func TestInput_RestoreWithoutRawReadIsNoop(t *testing.T) {
	in := NewInput(strings.NewReader("x"))
	if err := in.Restore(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	key, err := in.ReadKey(context.Background())
	if err != nil || key != 'x' {
		t.Fatalf("ReadKey() = %q, %v", key, err)
	}
	if err := in.Restore(); err != nil {
		t.Errorf("Unexpected error after read: %v", err)
	}
}
