package vm

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Port is an addressable mailbox used by InvokeNativeYield natives to
// hand a suspended coroutine something to resume on, opaque except for
// its "locked" convention. A Port's payloads are encoded with CBOR
// (github.com/fxamacker/cbor/v2) so a resume value can cross a process
// or network boundary without the VM's own Value representation leaking
// out — Value is a raw tagged machine word and is meaningless outside
// this process's address space.
type Port struct {
	ID uuid.UUID

	mu     sync.Mutex
	locked bool
	queue  [][]byte

	conn *websocket.Conn // non-nil only for a network-backed port
}

// NewPort allocates a fresh, unlocked, local-only port.
func NewPort() *Port {
	return &Port{ID: uuid.New()}
}

// Lock marks a port locked — the convention a yielding native uses to
// claim a port for its own pending operation. The flag is advisory:
// PostValue and Poll do not check it. Returns false if already locked.
func (port *Port) Lock() bool {
	port.mu.Lock()
	defer port.mu.Unlock()
	if port.locked {
		return false
	}
	port.locked = true
	return true
}

// Unlock releases a previously locked port.
func (port *Port) Unlock() {
	port.mu.Lock()
	defer port.mu.Unlock()
	port.locked = false
}

// PostValue CBOR-encodes v's native representation and enqueues it,
// waking whatever resumes the parked coroutine on its next poll.
func (port *Port) PostValue(payload any) error {
	b, err := cbor.Marshal(payload)
	if err != nil {
		return err
	}
	port.mu.Lock()
	port.queue = append(port.queue, b)
	port.mu.Unlock()
	return nil
}

// Poll dequeues the next pending payload, decoding it into out. Reports
// false if nothing is pending yet.
func (port *Port) Poll(out any) (bool, error) {
	port.mu.Lock()
	defer port.mu.Unlock()
	if len(port.queue) == 0 {
		return false, nil
	}
	b := port.queue[0]
	port.queue = port.queue[1:]
	return true, cbor.Unmarshal(b, out)
}

// AttachWebSocket backs this port with a network connection, so a post
// from a remote peer feeds Poll the same way a local native's PostValue
// would. Used by the optional network-backed port variant; a purely
// in-process port never calls this.
func (port *Port) AttachWebSocket(conn *websocket.Conn) {
	port.conn = conn
}

// PumpWebSocket reads one CBOR-framed message off the attached
// connection and enqueues it, returning io.EOF-shaped errors from the
// underlying conn on close. The embedder's I/O loop is expected to call
// this from its own goroutine and feed results back via PostValue's
// locking convention, keeping the interpreter loop itself single
// threaded.
func (port *Port) PumpWebSocket() error {
	if port.conn == nil {
		return nil
	}
	_, msg, err := port.conn.ReadMessage()
	if err != nil {
		return err
	}
	port.mu.Lock()
	port.queue = append(port.queue, msg)
	port.mu.Unlock()
	return nil
}
