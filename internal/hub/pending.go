package hub

import "sync"

// PendingCardData is the last unprocessed play or compose payload of one connection.
type PendingCardData struct {
	Action  string
	Payload string
}

// pendingSlots holds at most one staged payload per connection. Readers stage
// on frame receipt; the dispatch loop takes the payload exactly once.
type pendingSlots struct {
	mu    sync.Mutex
	slots map[string]PendingCardData
}

func newPendingSlots() *pendingSlots {
	return &pendingSlots{slots: make(map[string]PendingCardData)}
}

// Put stages data for connID, replacing anything not yet dispatched.
func (p *pendingSlots) Put(connID string, data PendingCardData) {
	p.mu.Lock()
	p.slots[connID] = data
	p.mu.Unlock()
}

// Take removes and returns the staged payload if it was staged by a request
// of the given action. A slot overwritten by a different action is left for
// the request that staged it.
func (p *pendingSlots) Take(connID, action string) (PendingCardData, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.slots[connID]
	if !ok || data.Action != action {
		return PendingCardData{}, false
	}
	delete(p.slots, connID)
	return data, true
}

func (p *pendingSlots) Drop(connID string) {
	p.mu.Lock()
	delete(p.slots, connID)
	p.mu.Unlock()
}
