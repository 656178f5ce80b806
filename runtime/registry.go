package runtime

import (
	"nexus-mail/contract"
	"nexus-mail/domain/event"
	"sync"
)

type Set map[string]struct{}

// Registry maps topics (a chat session id, the mailbox) to live subscribers.
type Registry struct {
	mu           sync.RWMutex
	sinks        map[string]contract.EventSink // subscriber -> sink
	topicMembers map[string]Set                // topic -> subscribers
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:        make(map[string]contract.EventSink),
		topicMembers: make(map[string]Set),
	}
}

// GetSinks resolves the subscribers of topic, plus those listening to every topic.
// Returns nil when nobody listens.
func (r *Registry) GetSinks(topic string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []contract.EventSink
	seen := make(Set)
	for _, t := range []string{topic, event.AllTopics} {
		for subscriberID := range r.topicMembers[t] {
			if _, dup := seen[subscriberID]; dup {
				continue
			}
			if sink, ok := r.sinks[subscriberID]; ok {
				seen[subscriberID] = struct{}{}
				active = append(active, sink)
			}
		}
	}
	return active
}

// Subscribe registers the subscriber sink and adds it to topic.
// A subscriber id is one connection, so a user with two tabs holds two ids.
func (r *Registry) Subscribe(subscriberID, topic string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[subscriberID] = sink
	if _, ok := r.topicMembers[topic]; !ok {
		r.topicMembers[topic] = make(Set)
	}
	r.topicMembers[topic][subscriberID] = struct{}{}
}

// Unsubscribe drops the subscriber and removes empty topics.
func (r *Registry) Unsubscribe(subscriberID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, subscriberID)
	if members, ok := r.topicMembers[topic]; ok {
		delete(members, subscriberID)
		if len(members) == 0 {
			delete(r.topicMembers, topic)
		}
	}
}

func (r *Registry) topicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topicMembers)
}
