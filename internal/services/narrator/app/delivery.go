package server

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/audio"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/gemini"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/orchestrator"
)

// maxChunkRunes is the largest message the chat surface delivers.
const maxChunkRunes = maxMessageBodyRunes

var (
	narratorActor = messageActor{ParticipantID: "narrator", Name: orchestrator.NarratorSpeaker}
	systemActor   = messageActor{ParticipantID: "system", Name: "system"}
)

// delivery writes narrator output into one room.
type delivery struct {
	room *campaignRoom
}

func newDelivery(room *campaignRoom) *delivery {
	return &delivery{room: room}
}

func (d *delivery) narrate(text string) {
	for _, chunk := range chunkText(text, maxChunkRunes) {
		d.room.broadcast(narratorActor, kindNarration, chunk)
	}
}

func (d *delivery) system(text string) {
	for _, chunk := range chunkText(text, maxChunkRunes) {
		d.room.broadcast(systemActor, kindSystem, chunk)
	}
}

// DeliverImage sends a generated illustration to the room.
func (d *delivery) DeliverImage(_ context.Context, image gemini.Image, caption string) error {
	if len(image.Data) == 0 {
		return errors.New("image is empty")
	}
	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	d.room.broadcastFrame(wsFrame{
		Type: "chat.image",
		Payload: mustJSON(mediaPayload{
			CampaignID: d.room.campaignID,
			MIMEType:   mimeType,
			Data:       image.Data,
			Caption:    truncateRunes(caption, 200),
		}),
	})
	return nil
}

// deliverAudio sends a WAV clip to the room.
func (d *delivery) deliverAudio(wav []byte, caption string) error {
	if len(wav) == 0 {
		return errors.New("audio is empty")
	}
	d.room.broadcastFrame(wsFrame{
		Type: "chat.audio",
		Payload: mustJSON(mediaPayload{
			CampaignID: d.room.campaignID,
			MIMEType:   audio.MIMEType,
			Data:       wav,
			Caption:    caption,
		}),
	})
	return nil
}

// chunkText splits text into pieces of at most limit runes, cutting at a
// line break or space when one falls in the second half of the window.
func chunkText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	var chunks []string
	rest := text
	for utf8.RuneCountInString(rest) > limit {
		window := prefixRunes(rest, limit)
		cut := len(window)
		if i := strings.LastIndex(window, "\n"); i > 0 && utf8.RuneCountInString(window[:i]) >= limit/2 {
			cut = i
		} else if i := strings.LastIndex(window, " "); i > 0 && utf8.RuneCountInString(window[:i]) >= limit/2 {
			cut = i
		}
		if chunk := strings.TrimSpace(rest[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = strings.TrimLeft(rest[cut:], " \n")
	}
	if rest = strings.TrimSpace(rest); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return prefixRunes(s, n-3) + "..."
}
