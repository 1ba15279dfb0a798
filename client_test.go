package msgproto

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// replyOnce reads one datagram on peer and answers it with reply.
func replyOnce(t *testing.T, peer *net.UDPConn, reply []byte) <-chan []byte {
	t.Helper()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 2048)
		_ = peer.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, from, err := peer.ReadFrom(buf)
		if err != nil {
			close(got)
			return
		}
		got <- append([]byte(nil), buf[:n]...)
		_, _ = peer.WriteTo(reply, from)
	}()
	return got
}

func newTestClient(t *testing.T, server net.Addr, opt ...Option) *Client {
	t.Helper()

	opt = append([]Option{LoggerOption(DiscardLogger())}, opt...)
	client, err := Dial(context.Background(), server.String(), opt...)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDial_InvalidAddr(t *testing.T) {
	_, err := Dial(context.Background(), "not an address")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Op != "resolve" {
		t.Errorf("Op = %q, want resolve", te.Op)
	}
}

func TestClient_Greet(t *testing.T) {
	peer := dialTestPeer(t)
	reply, _ := Encode(NewMessage(TypeResponse, []byte(DefaultServerGreeting)), DefaultCapacity)
	got := replyOnce(t, peer, reply)

	client := newTestClient(t, peer.LocalAddr())
	if client.State() != StateReady {
		t.Errorf("State = %v, want ready", client.State())
	}

	resp, err := client.Greet(context.Background(), DefaultClientGreeting)
	if err != nil {
		t.Fatalf("Greet failed: %v", err)
	}
	if resp.Type != TypeResponse || string(resp.Payload) != DefaultServerGreeting {
		t.Errorf("unexpected response %v", resp)
	}
	if client.State() != StateDone {
		t.Errorf("State = %v, want done", client.State())
	}

	sent := <-got
	if len(sent) != HeaderSize+len(DefaultClientGreeting) {
		t.Errorf("request datagram is %d bytes, want %d", len(sent), HeaderSize+len(DefaultClientGreeting))
	}
	req, err := Decode(sent, DefaultCapacity)
	if err != nil || req.Type != TypeRequest || string(req.Payload) != DefaultClientGreeting {
		t.Errorf("server saw %v, %v", req, err)
	}
}

func TestClient_SingleShot(t *testing.T) {
	peer := dialTestPeer(t)
	reply, _ := Encode(NewMessage(TypeResponse, nil), DefaultCapacity)
	replyOnce(t, peer, reply)

	client := newTestClient(t, peer.LocalAddr())
	if _, err := client.Greet(context.Background(), "one"); err != nil {
		t.Fatalf("first exchange failed: %v", err)
	}
	if _, err := client.Greet(context.Background(), "two"); err != ErrExchangeDone {
		t.Errorf("expected ErrExchangeDone, got %v", err)
	}
}

func TestClient_MalformedReply(t *testing.T) {
	peer := dialTestPeer(t)
	replyOnce(t, peer, rawDatagram(2, DefaultCapacity, make([]byte, DefaultCapacity)))

	client := newTestClient(t, peer.LocalAddr())
	_, err := client.Greet(context.Background(), DefaultClientGreeting)
	if !errors.Is(err, ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
	if client.State() != StateDone {
		t.Errorf("State = %v, want done", client.State())
	}
}

func TestClient_TruncatedReply(t *testing.T) {
	peer := dialTestPeer(t)
	replyOnce(t, peer, rawDatagram(2, 17, []byte("Hello")))

	client := newTestClient(t, peer.LocalAddr())
	_, err := client.Greet(context.Background(), DefaultClientGreeting)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	peer := dialTestPeer(t) // never answers

	client := newTestClient(t, peer.LocalAddr(), ReadTimeoutOption(50*time.Millisecond))
	_, err := client.Greet(context.Background(), DefaultClientGreeting)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_Server_Exchange(t *testing.T) {
	server := newTestServer(t, GreetingHandler(DefaultServerGreeting))
	done := make(chan error, 1)
	go func() {
		done <- server.ServeOnce(context.Background())
	}()

	client := newTestClient(t, server.Addr())
	resp, err := client.Greet(context.Background(), DefaultClientGreeting)
	if err != nil {
		t.Fatalf("Greet failed: %v", err)
	}
	if got := Display(resp); got != "Type: 2, Length: 17, Payload: Hello from server" {
		t.Errorf("Display = %q", got)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeOnce failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for ServeOnce")
	}
}

// Replies are not matched to the server address.
func TestClient_AcceptsFirstDatagramFromAnySender(t *testing.T) {
	server := dialTestPeer(t)
	other := dialTestPeer(t)

	client := newTestClient(t, server.LocalAddr(), ReadTimeoutOption(2*time.Second))
	to := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: client.LocalAddr().(*net.UDPAddr).Port}

	reply, _ := Encode(NewMessage(TypeResponse, []byte("not the server")), DefaultCapacity)
	if _, err := other.WriteTo(reply, to); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	resp, err := client.Greet(context.Background(), DefaultClientGreeting)
	if err != nil {
		t.Fatalf("Greet failed: %v", err)
	}
	if string(resp.Payload) != "not the server" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestClientState_String(t *testing.T) {
	tests := map[ClientState]string{
		StateReady:            "ready",
		StateAwaitingResponse: "awaiting_response",
		StateDone:             "done",
		ClientState(42):       "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}
