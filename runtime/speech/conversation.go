package speech

import "sync"

// Role is the author of a chat message.
type Role string

// Message roles.
const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is one rendered chat message.
type Message struct {
	ID   string
	Role Role
	Text string
}

// Conversation is the ordered set of messages currently rendered in the view.
type Conversation struct {
	mu       sync.RWMutex
	order    []string
	messages map[string]Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{messages: make(map[string]Message)}
}

// Add appends msg, or replaces the text and role of an existing message in
// place. It reports whether the message is new.
func (c *Conversation) Add(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.messages[msg.ID]
	c.messages[msg.ID] = msg
	if !exists {
		c.order = append(c.order, msg.ID)
	}
	return !exists
}

// Remove drops the message, reporting whether it existed.
func (c *Conversation) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.messages[id]; !ok {
		return false
	}
	delete(c.messages, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the message with id.
func (c *Conversation) Get(id string) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.messages[id]
	return msg, ok
}

// Has reports whether id is rendered.
func (c *Conversation) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.messages[id]
	return ok
}

// Assistant returns the assistant messages in document order.
func (c *Conversation) Assistant() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, 0, len(c.order))
	for _, id := range c.order {
		if msg := c.messages[id]; msg.Role == RoleAssistant {
			out = append(out, msg)
		}
	}
	return out
}

// LastAssistant returns the most recent assistant message.
func (c *Conversation) LastAssistant() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.order) - 1; i >= 0; i-- {
		if msg := c.messages[c.order[i]]; msg.Role == RoleAssistant {
			return msg, true
		}
	}
	return Message{}, false
}

// IDs returns every message ID in document order.
func (c *Conversation) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of rendered messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
