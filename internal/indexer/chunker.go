package indexer

import "strings"

// DefaultMaxChunkSize is the chunk size ceiling in characters.
const DefaultMaxChunkSize = 1000

// SplitIntoChunks splits text into chunks of at most maxSize characters on
// sentence boundaries. A chunk never splits a sentence; a single sentence
// longer than maxSize is emitted whole as one oversized chunk rather than
// dropped or truncated.
func SplitIntoChunks(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// sentence terminators. A terminator only ends a sentence when followed by
// whitespace or end of input, so "3.14" stays intact.
func isTerminator(b byte) bool { return b == '.' || b == '!' || b == '?' }

// splitSentences splits text into sentences, treating newlines as hard
// boundaries as well.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		b := text[i]
		atEnd := i == len(text)-1
		switch {
		case b == '\n':
			if s := strings.TrimSpace(text[start:i]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		case isTerminator(b) && (atEnd || text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n'):
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
