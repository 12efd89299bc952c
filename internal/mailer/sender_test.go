package mailer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	mail "github.com/wneessen/go-mail"
)

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage(Message{
		From:    "noreply@example.com",
		To:      "alice@example.com",
		Subject: "Hello",
		Body:    "line one\nline two\n",
	})
	if err != nil {
		t.Fatalf("buildMessage error: %v", err)
	}

	rcpts, err := m.GetRecipients()
	if err != nil {
		t.Fatalf("GetRecipients error: %v", err)
	}
	if len(rcpts) != 1 || rcpts[0] != "alice@example.com" {
		t.Errorf("recipients = %v", rcpts)
	}
	if got := m.GetGenHeader(mail.HeaderSubject); len(got) != 1 || got[0] != "Hello" {
		t.Errorf("subject = %v", got)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo error: %v", err)
	}
	for _, want := range []string{"Subject: Hello", "text/plain", "line one"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("message missing %q:\n%s", want, buf.String())
		}
	}
}

func TestBuildMessage_RejectsHeaderInjection(t *testing.T) {
	_, err := buildMessage(Message{From: "a@example.com", To: "b@example.com", Subject: "hi\r\nBcc: evil@example.com"})
	if !errors.Is(err, ErrHeaderInjection) {
		t.Fatalf("error = %v, want ErrHeaderInjection", err)
	}

	_, err = buildMessage(Message{From: "a@example.com", To: "b@example.com\r\nBcc: evil@example.com", Subject: "hi"})
	if err == nil {
		t.Fatal("expected recipient with line break to be rejected")
	}
}

func TestNewSMTPSender_InvalidPort(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 0}); err == nil {
		t.Fatal("expected error for port 0")
	}
}

func TestSMTPSender_Send(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "user", Password: "pass", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewSMTPSender error: %v", err)
	}

	var sent []*mail.Msg
	var hasDeadline bool
	s.send = func(ctx context.Context, msgs ...*mail.Msg) error {
		_, hasDeadline = ctx.Deadline()
		sent = append(sent, msgs...)
		return nil
	}

	err = s.Send(context.Background(), Message{From: "noreply@example.com", To: "alice@example.com", Subject: "Hi", Body: "x"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if !hasDeadline {
		t.Error("send context should carry the sender timeout")
	}
}

func TestSMTPSender_SendError(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 25})
	if err != nil {
		t.Fatalf("NewSMTPSender error: %v", err)
	}
	relayErr := errors.New("relay refused")
	s.send = func(ctx context.Context, msgs ...*mail.Msg) error {
		return relayErr
	}

	err = s.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com", Subject: "s", Body: "b"})
	if !errors.Is(err, relayErr) {
		t.Fatalf("error = %v, want wrapped relay error", err)
	}
}

// A relay that accepts connections but never sends a greeting must not
// hold a send past the configured timeout.
func TestSMTPSender_SilentRelayTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var mu sync.Mutex
	var accepted []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			accepted = append(accepted, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range accepted {
			conn.Close()
		}
	})

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	s, err := NewSMTPSender(SMTPConfig{Host: host, Port: port, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSMTPSender error: %v", err)
	}

	start := time.Now()
	err = s.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com", Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected error from silent relay")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Send took %v, want it bounded by the timeout", elapsed)
	}
}

func TestLogSender_OmitsBodyByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	msg := Message{To: "alice@example.com", Subject: "Confirm", Body: "token=secret"}
	if err := NewLogSender(logger, false).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Errorf("body leaked into log: %s", buf.String())
	}

	buf.Reset()
	if err := NewLogSender(logger, true).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !strings.Contains(buf.String(), "secret") {
		t.Errorf("body should be logged when enabled: %s", buf.String())
	}
}
