package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// fakeClient is an in-memory Client.
type fakeClient struct {
	id         int
	connectErr error

	messages chan TimestampedMessage
	errs     chan error

	mu        sync.Mutex
	sent      [][]byte
	sendErr   error
	connected bool
	closed    bool
}

func newFakeClient(id int) *fakeClient {
	return &fakeClient{
		id:       id,
		messages: make(chan TimestampedMessage, 64),
		errs:     make(chan error, 1),
	}
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.connected {
		return ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeClient) Messages() <-chan TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                { return c.errs }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) setSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// requests decodes everything sent so far.
func (c *fakeClient) requests(t *testing.T) []protocol.Request {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]protocol.Request, 0, len(c.sent))
	for _, raw := range c.sent {
		req, err := protocol.DecodeRequest(raw)
		if err != nil {
			t.Fatalf("client %d sent undecodable frame %q: %v", c.id, raw, err)
		}
		out = append(out, req)
	}
	return out
}

// requestsOf returns sent requests of one type.
func (c *fakeClient) requestsOf(t *testing.T, typ string) []protocol.Request {
	t.Helper()
	var out []protocol.Request
	for _, req := range c.requests(t) {
		if req.Type == typ {
			out = append(out, req)
		}
	}
	return out
}

// listenedTopics flattens the topics of every LISTEN sent.
func (c *fakeClient) listenedTopics(t *testing.T) []protocol.Topic {
	t.Helper()
	var out []protocol.Topic
	for _, req := range c.requestsOf(t, protocol.TypeListen) {
		out = append(out, req.Data.Topics...)
	}
	return out
}

func (c *fakeClient) push(raw string) {
	c.messages <- TimestampedMessage{Data: []byte(raw), ReceivedAt: time.Now()}
}

func (c *fakeClient) fail(err error) {
	c.errs <- err
}

// fakeDialer hands out fakeClients and remembers them.
type fakeDialer struct {
	mu       sync.Mutex
	clients  []*fakeClient
	failNext int
	// prepare runs on each new client before the manager connects it.
	prepare func(*fakeClient)
}

func (d *fakeDialer) factory(id int) Client {
	c := newFakeClient(id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		c.connectErr = errors.New("dial refused")
		d.failNext--
	}
	if d.prepare != nil {
		d.prepare(c)
	}
	d.clients = append(d.clients, c)
	return c
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *fakeDialer) client(i int) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[i]
}

// recordingDispatcher collects dispatched messages.
type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []*protocol.Message
}

func (r *recordingDispatcher) Dispatch(msg *protocol.Message, receivedAt time.Time) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingDispatcher) messages() []*protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*protocol.Message(nil), r.msgs...)
}
