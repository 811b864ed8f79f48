package server

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/id"
)

func newWSSession(peer *wsPeer) *wsSession {
	return &wsSession{peer: peer}
}

func (s *wsSession) setIdentity(playerID, name string) {
	s.mu.Lock()
	s.playerID = playerID
	s.name = name
	s.mu.Unlock()
}

func (s *wsSession) identity() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID, s.name
}

func (s *wsSession) setRoom(next *campaignRoom) *campaignRoom {
	s.mu.Lock()
	previous := s.room
	s.room = next
	s.mu.Unlock()
	return previous
}

func (s *wsSession) currentRoom() *campaignRoom {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	return room
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// roomHub holds the rooms of the campaigns this process narrates.
type roomHub struct {
	mu        sync.Mutex
	campaigns map[string]struct{}
	rooms     map[string]*campaignRoom
}

func newRoomHub(campaignIDs ...string) *roomHub {
	hub := &roomHub{
		campaigns: make(map[string]struct{}, len(campaignIDs)),
		rooms:     make(map[string]*campaignRoom),
	}
	for _, campaignID := range campaignIDs {
		hub.campaigns[campaignID] = struct{}{}
	}
	return hub
}

func (h *roomHub) room(campaignID string) (*campaignRoom, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.campaigns[campaignID]; !ok {
		return nil, errUnknownCampaign
	}
	room, ok := h.rooms[campaignID]
	if ok {
		return room, nil
	}
	room = newCampaignRoom(campaignID)
	h.rooms[campaignID] = room
	return room, nil
}

type campaignRoom struct {
	mu               sync.Mutex
	campaignID       string
	nextSequence     int64
	messages         []chatMessage
	idempotencyBy    map[string]chatMessage
	idempotencyOrder []string
	subscribers      map[*wsPeer]struct{}
}

func newCampaignRoom(campaignID string) *campaignRoom {
	return &campaignRoom{
		campaignID:    campaignID,
		idempotencyBy: make(map[string]chatMessage),
		subscribers:   make(map[*wsPeer]struct{}),
	}
}

func (r *campaignRoom) join(peer *wsPeer) int64 {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	latest := r.nextSequence
	r.mu.Unlock()
	return latest
}

func (r *campaignRoom) leave(peer *wsPeer) {
	r.mu.Lock()
	delete(r.subscribers, peer)
	r.mu.Unlock()
}

// appendMessage records a message and returns the peers to notify. Messages
// carrying an already seen client id are reported as duplicates.
func (r *campaignRoom) appendMessage(actor messageActor, kind, body, clientMessageID string) (chatMessage, bool, []*wsPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if clientMessageID != "" {
		if existing, ok := r.idempotencyBy[clientMessageID]; ok {
			return existing, true, nil
		}
	}

	r.nextSequence++
	if strings.TrimSpace(actor.ParticipantID) == "" {
		actor.ParticipantID = "participant"
	}
	if strings.TrimSpace(actor.Name) == "" {
		actor.Name = actor.ParticipantID
	}
	msg := chatMessage{
		MessageID:       "msg_" + id.MustNewID(),
		CampaignID:      r.campaignID,
		SequenceID:      r.nextSequence,
		SentAt:          time.Now().UTC().Format(time.RFC3339),
		Kind:            kind,
		Actor:           actor,
		Body:            body,
		ClientMessageID: clientMessageID,
	}

	r.messages = append(r.messages, msg)
	if len(r.messages) > maxRoomMessages {
		r.messages = r.messages[len(r.messages)-maxRoomMessages:]
	}

	if clientMessageID != "" {
		r.idempotencyBy[clientMessageID] = msg
		r.idempotencyOrder = append(r.idempotencyOrder, clientMessageID)
		if len(r.idempotencyOrder) > maxIdempotencyRecord {
			evict := r.idempotencyOrder[0]
			r.idempotencyOrder = r.idempotencyOrder[1:]
			delete(r.idempotencyBy, evict)
		}
	}
	return msg, false, r.subscribersLocked()
}

func (r *campaignRoom) subscriberList() []*wsPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribersLocked()
}

func (r *campaignRoom) subscribersLocked() []*wsPeer {
	subscribers := make([]*wsPeer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return subscribers
}

// broadcast appends a message and fans it out to every subscriber.
func (r *campaignRoom) broadcast(actor messageActor, kind, body string) chatMessage {
	msg, _, subscribers := r.appendMessage(actor, kind, body, "")
	frame := wsFrame{Type: "chat.message", Payload: mustJSON(messageEnvelope{Message: msg})}
	for _, subscriber := range subscribers {
		_ = subscriber.writeFrame(frame)
	}
	return msg
}

// broadcastFrame sends a non-message frame, such as media, to every subscriber.
func (r *campaignRoom) broadcastFrame(frame wsFrame) {
	for _, subscriber := range r.subscriberList() {
		_ = subscriber.writeFrame(frame)
	}
}
