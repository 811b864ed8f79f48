// Package promptcache assembles narration prompts and reuses a remote prompt
// cache for the turn-invariant instruction block when one is available.
package promptcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	stateHeader    = "=== CURRENT GAME STATE ==="
	historyHeader  = "=== CAMPAIGN HISTORY ==="
	responseMarker = "=== DM RESPONSE ==="
)

// fillerLine pads small instruction blocks up to the cache's minimum size.
const fillerLine = "(Reference padding. This line carries no instructions.)\n"

// Prompt is one turn's instruction content split by cacheability.
type Prompt struct {
	// Static is the persona and tool policy text, identical across turns.
	Static string
	// Dynamic is the game state, transcript window and response marker.
	Dynamic string
}

// Full returns the static and dynamic blocks as one input.
func (p Prompt) Full() string {
	if strings.TrimSpace(p.Static) == "" {
		return p.Dynamic
	}
	return p.Static + "\n\n" + p.Dynamic
}

// BuildDynamic renders the per-turn block.
func BuildDynamic(stateJSON string, transcript []string) string {
	var b strings.Builder
	b.WriteString(stateHeader)
	b.WriteString("\n")
	b.WriteString(stateJSON)
	b.WriteString("\n\n")
	b.WriteString(historyHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(transcript, "\n"))
	b.WriteString("\n\n")
	b.WriteString(responseMarker)
	return b.String()
}

// Fingerprint returns a short content hash of the static block.
func Fingerprint(static string) string {
	sum := sha256.Sum256([]byte(static))
	return hex.EncodeToString(sum[:])[:12]
}

// DisplayName is the remote cache name for a fingerprint.
func DisplayName(fingerprint string) string {
	return DisplayNamePrefix + "-" + fingerprint
}

// EstimateTokens approximates token count as one token per four runes.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Pad appends inert filler until text reaches minTokens estimated tokens.
func Pad(text string, minTokens int) string {
	missing := minTokens - EstimateTokens(text)
	if missing <= 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	perLine := utf8.RuneCountInString(fillerLine)
	lines := (missing*4)/perLine + 1
	for i := 0; i < lines; i++ {
		b.WriteString(fillerLine)
	}
	return b.String()
}
