package server

import (
	"encoding/json"
	"errors"
	"sync"
)

const (
	defaultCampaignID = "default"

	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	maxMessageBodyRunes     = 2000
	maxClientMessageIDRunes = 128

	maxRoomMessages      = 1000
	maxIdempotencyRecord = 4000
)

var errUnknownCampaign = errors.New("unknown campaign")

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	CampaignID string `json:"campaign_id"`
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
}

type joinedPayload struct {
	CampaignID       string `json:"campaign_id"`
	PlayerID         string `json:"player_id"`
	LatestSequenceID int64  `json:"latest_sequence_id"`
	ServerTime       string `json:"server_time"`
}

type sendPayload struct {
	ClientMessageID string `json:"client_message_id"`
	Body            string `json:"body"`
}

type messageEnvelope struct {
	Message chatMessage `json:"message"`
}

// Message kinds.
const (
	kindText      = "text"
	kindSystem    = "system"
	kindNarration = "narration"
)

type chatMessage struct {
	MessageID       string       `json:"message_id"`
	CampaignID      string       `json:"campaign_id"`
	SequenceID      int64        `json:"sequence_id"`
	SentAt          string       `json:"sent_at"`
	Kind            string       `json:"kind"`
	Actor           messageActor `json:"actor"`
	Body            string       `json:"body"`
	ClientMessageID string       `json:"client_message_id,omitempty"`
}

type messageActor struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status     string `json:"status"`
	MessageID  string `json:"message_id,omitempty"`
	SequenceID int64  `json:"sequence_id,omitempty"`
}

type mediaPayload struct {
	CampaignID string `json:"campaign_id"`
	MIMEType   string `json:"mime_type"`
	// Data is base64 encoded by encoding/json.
	Data    []byte `json:"data"`
	Caption string `json:"caption,omitempty"`
}

type wsSession struct {
	mu       sync.Mutex
	playerID string
	name     string
	peer     *wsPeer
	room     *campaignRoom
}
