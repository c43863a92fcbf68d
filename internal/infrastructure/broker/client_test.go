package broker

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	domainbroker "github.com/ngoclaw/deskflow/internal/domain/broker"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(t.TempDir(), 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSendReceive_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	payload := domainbroker.ProtocolStatus{ProtocolID: "p1", Status: "success", ActionsCompleted: 1, ActionsTotal: 1}
	if err := c.Send(ctx, domainbroker.ChannelStatus, payload, "req-1"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	raw, ok, err := c.Receive(ctx, domainbroker.ChannelStatus, 500, "req-1")
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !ok {
		t.Fatal("expected a message")
	}
	var got domainbroker.ProtocolStatus
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, payload) {
		t.Fatalf("got %+v, want %+v", got, payload)
	}
}

func TestReceive_TimesOutWhenEmpty(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.Receive(ctx, domainbroker.ChannelStatus, 50, "anything")
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ok {
		t.Fatal("expected no message on empty channel")
	}
}

func TestReceive_AtMostOnce(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Send(ctx, domainbroker.ChannelStatus, domainbroker.ProtocolStatus{ProtocolID: "once"}, "req-2"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, ok, err := c.Receive(ctx, domainbroker.ChannelStatus, 200, "req-2")
	if err != nil || !ok {
		t.Fatalf("first receive: ok=%v err=%v", ok, err)
	}
	_, ok, err = c.Receive(ctx, domainbroker.ChannelStatus, 50, "req-2")
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if ok {
		t.Fatal("message should have been deleted after first read")
	}
}

func TestReceive_FIFOPerChannel(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i, id := range []string{"first", "second", "third"} {
		if err := c.Send(ctx, domainbroker.ChannelStatus, domainbroker.ProtocolStatus{ProtocolID: id, ActionsCompleted: i}, id); err != nil {
			t.Fatalf("Send(%s): %v", id, err)
		}
		time.Sleep(2 * time.Millisecond) // ensure distinct epoch-ms filename ordering
	}

	var order []string
	for i := 0; i < 3; i++ {
		raw, ok, err := c.Receive(ctx, domainbroker.ChannelStatus, 200, "")
		if err != nil || !ok {
			t.Fatalf("Receive #%d: ok=%v err=%v", i, ok, err)
		}
		var got domainbroker.ProtocolStatus
		_ = json.Unmarshal(raw, &got)
		order = append(order, got.ProtocolID)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Hello World!":  "hello_world",
		"a/b\\c:d":       "a_b_c_d",
		"already_clean": "already_clean",
		"":               "anon",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := Sanitize(long)
	if len(got) > 128 {
		t.Fatalf("len = %d, want <= 128", len(got))
	}
}
