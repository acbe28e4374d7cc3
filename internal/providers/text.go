package providers

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Narration pace used to estimate audio duration from word count.
const wordsPerMinute = 150

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+\s*`)
)

// StripHTML removes markup from editor-produced story content, leaving
// plain narration text with single-space word separation.
func StripHTML(s string) string {
	text := htmlTagPattern.ReplaceAllString(s, " ")
	text = html.UnescapeString(text)
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ContentPreview returns the first maxChars of the HTML-stripped
// content, cut at a word boundary where possible.
func ContentPreview(content string, maxChars int) string {
	text := StripHTML(content)
	if len(text) <= maxChars {
		return text
	}

	// Back up to a rune start so the cut never tears a multi-byte character.
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	preview := text[:cut]
	if idx := strings.LastIndex(preview, " "); idx > 0 {
		preview = preview[:idx]
	}
	return preview
}

// SplitIntoChunks breaks text into pieces no longer than maxChars,
// preferring sentence-boundary breaks. When the text has no sentence
// terminators at all, it falls back to raw fixed-size accumulation.
func SplitIntoChunks(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return splitRaw(text, maxChars)
	}

	// A trailing fragment without terminal punctuation is still content.
	consumed := 0
	for _, s := range sentences {
		consumed += len(s)
	}
	if consumed < len(text) {
		sentences = append(sentences, text[consumed:])
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		if len(sentence) > maxChars {
			// Oversized single sentence: flush and hard-split it.
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			chunks = append(chunks, splitRaw(sentence, maxChars)...)
			continue
		}

		if current.Len()+len(sentence) > maxChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

// splitRaw accumulates whole runes up to the byte ceiling, so chunks
// stay under provider limits without ever tearing a multi-byte
// character.
func splitRaw(text string, maxChars int) []string {
	var chunks []string
	var current strings.Builder
	for _, r := range text {
		if current.Len()+utf8.RuneLen(r) > maxChars {
			if t := strings.TrimSpace(current.String()); t != "" {
				chunks = append(chunks, t)
			}
			current.Reset()
		}
		current.WriteRune(r)
	}
	if t := strings.TrimSpace(current.String()); t != "" {
		chunks = append(chunks, t)
	}
	return chunks
}

// EstimateDurationSeconds estimates narration length from word count
// at the standard pace. Never returns less than one second for
// non-empty text.
func EstimateDurationSeconds(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	seconds := int(float64(words) / wordsPerMinute * 60)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// buildVideoPrompt combines the theme hint with a short content
// preview so the remote model gets scene context without the whole
// story text.
func buildVideoPrompt(title, theme, content string) string {
	preview := ContentPreview(content, 500)

	if theme == "" {
		theme = "cinematic, softly lit storybook illustration"
	}

	return fmt.Sprintf(`Create a short ambient video for a story titled %q.

Visual style: %s.

Story excerpt for scene context: %s

Generate gentle, natural motion that evokes the story's mood. Silent video only — no generated audio or dialogue.`, title, theme, preview)
}
