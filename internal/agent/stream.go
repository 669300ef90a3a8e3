package agent

import (
	"context"
)

// Stream event types
const (
	EventTypeItemDone  = "response.output_item.done"
	EventTypeTextDelta = "response.output_text.delta"
	EventTypeError     = "response.error"
)

// Event is one streaming observation of a running turn
type Event struct {
	Type    string   `json:"type"`
	Item    *Message `json:"item,omitempty"`
	Delta   string   `json:"delta,omitempty"`
	ItemID  string   `json:"item_id,omitempty"`
	Message string   `json:"message,omitempty"`
}

// channelEmitter feeds the two observation channels. Sends give up when the
// consumer's context ends so a cancelled consumer never wedges the loop.
type channelEmitter struct {
	ctx    context.Context
	items  chan Event
	deltas chan Event
}

func (e *channelEmitter) Item(msg Message) {
	m := msg
	select {
	case e.items <- Event{Type: EventTypeItemDone, Item: &m}:
	case <-e.ctx.Done():
	}
}

func (e *channelEmitter) Delta(itemID, delta string) {
	select {
	case e.deltas <- Event{Type: EventTypeTextDelta, Delta: delta, ItemID: itemID}:
	case <-e.ctx.Done():
	}
}

// Events runs the loop and returns its observations as a single ordered
// stream: discrete item-done events interleaved with text deltas for the
// in-progress assistant message. Cancelling ctx stops the loop, the model
// stream, and closes the output channel.
func (o *Orchestrator) Events(ctx context.Context, state *State) <-chan Event {
	items := make(chan Event, 16)
	deltas := make(chan Event, 64)
	out := make(chan Event)

	go func() {
		defer close(items)
		defer close(deltas)

		emitter := &channelEmitter{ctx: ctx, items: items, deltas: deltas}
		if err := o.Run(ctx, state, emitter); err != nil {
			select {
			case items <- Event{Type: EventTypeError, Message: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	// Multiplexing loop: forward from both channels in arrival order until
	// both are closed
	go func() {
		defer close(out)

		itemsCh, deltasCh := items, deltas
		for itemsCh != nil || deltasCh != nil {
			select {
			case ev, ok := <-itemsCh:
				if !ok {
					itemsCh = nil
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case ev, ok := <-deltasCh:
				if !ok {
					deltasCh = nil
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
