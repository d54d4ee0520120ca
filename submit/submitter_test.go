// Copyright (c) 2023 BVK Chaitanya

package submit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bvk/volumebot/action"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
)

type testNetwork struct {
	sendErr error
	sent    int

	// statuses are returned in order; the last one repeats.
	statuses []*rpc.SignatureStatusesResult
	polls    int

	statusErr error
	height    uint64
	heightInc uint64
}

func (n *testNetwork) SendRaw(context.Context, []byte) (solana.Signature, error) {
	n.sent++
	if n.sendErr != nil {
		return solana.Signature{}, n.sendErr
	}
	return solana.Signature{7}, nil
}

func (n *testNetwork) SignatureStatus(context.Context, solana.Signature) (*rpc.SignatureStatusesResult, error) {
	if n.statusErr != nil {
		return nil, n.statusErr
	}
	if len(n.statuses) == 0 {
		return nil, nil
	}
	i := min(n.polls, len(n.statuses)-1)
	n.polls++
	return n.statuses[i], nil
}

func (n *testNetwork) BlockHeight(context.Context) (uint64, error) {
	n.height += n.heightInc
	return n.height, nil
}

var fastPoll = &Options{PollInterval: time.Millisecond}

func payload() *action.Payload {
	return &action.Payload{Raw: []byte{1, 2, 3}, LastValidBlockHeight: 100}
}

func TestSubmitConfirmed(t *testing.T) {
	net := &testNetwork{
		height: 10,
		statuses: []*rpc.SignatureStatusesResult{
			nil,
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
	}
	s := New(net, NewPoller(net, fastPoll))
	out := s.Submit(context.Background(), payload())
	if out.Status != action.Confirmed {
		t.Fatalf("want confirmed, got %v (%v)", out.Status, out.Err)
	}
	if net.sent != 1 {
		t.Fatalf("payload must be sent exactly once, got %d", net.sent)
	}
	if out.Signature != (solana.Signature{7}) {
		t.Fatalf("unexpected signature %s", out.Signature)
	}
}

func TestSubmitRejected(t *testing.T) {
	reason := map[string]any{"InstructionError": []any{2, map[string]any{"Custom": 6001}}}
	net := &testNetwork{
		statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed, Err: reason},
		},
	}
	out := New(net, NewPoller(net, fastPoll)).Submit(context.Background(), payload())
	if out.Status != action.Failed {
		t.Fatalf("want failed, got %v", out.Status)
	}
	var txErr *action.TxError
	if !errors.As(out.Err, &txErr) || !errors.Is(out.Err, action.ErrRejected) {
		t.Fatalf("want tx error with payload, got %v", out.Err)
	}
	if txErr.Payload == nil {
		t.Fatalf("error payload must be attached")
	}
}

func TestSubmitSendFailure(t *testing.T) {
	net := &testNetwork{sendErr: errors.New("connection reset by peer")}
	out := New(net, NewPoller(net, fastPoll)).Submit(context.Background(), payload())
	if out.Status != action.Indeterminate || !errors.Is(out.Err, action.ErrUnreachable) {
		t.Fatalf("want indeterminate unreachable, got %v %v", out.Status, out.Err)
	}
	if net.sent != 1 {
		t.Fatalf("submitter must not retry, sent %d times", net.sent)
	}
}

func TestSubmitExpired(t *testing.T) {
	net := &testNetwork{height: 90, heightInc: 5}
	out := New(net, NewPoller(net, fastPoll)).Submit(context.Background(), payload())
	if out.Status != action.Indeterminate || !errors.Is(out.Err, ErrExpired) {
		t.Fatalf("want indeterminate expiry, got %v %v", out.Status, out.Err)
	}
}

func TestSubmitPollFailures(t *testing.T) {
	net := &testNetwork{statusErr: errors.New("timeout")}
	out := New(net, NewPoller(net, &Options{PollInterval: time.Millisecond, MaxErrors: 3})).Submit(context.Background(), payload())
	if out.Status != action.Indeterminate || !errors.Is(out.Err, action.ErrUnreachable) {
		t.Fatalf("want indeterminate unreachable, got %v %v", out.Status, out.Err)
	}
}

func TestSubmitEmptyPayload(t *testing.T) {
	net := new(testNetwork)
	out := New(net, nil).Submit(context.Background(), &action.Payload{})
	if out.OK() || net.sent != 0 {
		t.Fatalf("empty payload must not be sent")
	}
}

func newPubsubServer(t *testing.T, notification string) *httptest.Server {
	var upgrader websocket.Upgrader
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("could not upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("could not read subscription: %v", err)
			return
		}
		if req.Method != "signatureSubscribe" {
			t.Errorf("unexpected method %q", req.Method)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":23784,"id":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(notification))
		// Keep the connection open till the client closes it.
		conn.ReadMessage()
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWebsocketConfirmed(t *testing.T) {
	s := newPubsubServer(t, `{"jsonrpc":"2.0","method":"signatureNotification","params":{"result":{"context":{"slot":5207624},"value":{"err":null}},"subscription":23784}}`)
	defer s.Close()

	net := &testNetwork{height: 10}
	sub := New(net, NewWebsocketConfirmer(wsURL(s), net, fastPoll))
	if out := sub.Submit(context.Background(), payload()); out.Status != action.Confirmed {
		t.Fatalf("want confirmed, got %v (%v)", out.Status, out.Err)
	}
}

func TestWebsocketRejected(t *testing.T) {
	s := newPubsubServer(t, `{"jsonrpc":"2.0","method":"signatureNotification","params":{"result":{"context":{"slot":5207624},"value":{"err":{"InstructionError":[0,"InvalidAccountData"]}}},"subscription":23784}}`)
	defer s.Close()

	net := &testNetwork{height: 10}
	sub := New(net, NewWebsocketConfirmer(wsURL(s), net, fastPoll))
	out := sub.Submit(context.Background(), payload())
	if out.Status != action.Failed || !errors.Is(out.Err, action.ErrRejected) {
		t.Fatalf("want failed, got %v (%v)", out.Status, out.Err)
	}
}

func TestWebsocketUnreachable(t *testing.T) {
	net := &testNetwork{height: 10}
	sub := New(net, NewWebsocketConfirmer("ws://127.0.0.1:1", net, fastPoll))
	if out := sub.Submit(context.Background(), payload()); out.Status != action.Indeterminate {
		t.Fatalf("want indeterminate, got %v (%v)", out.Status, out.Err)
	}
}
