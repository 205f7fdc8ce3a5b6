// Package chunker splits study-note markdown into bounded, ordered chunks
// suitable for embedding.
package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTargetSize is a coarse proxy for ~250 tokens.
	DefaultTargetSize = 900
	// DefaultOverlap applies only to sliding windows over oversized paragraphs.
	DefaultOverlap = 120

	paragraphSeparator = "\n\n"
)

type Language string

const (
	LanguageZH    Language = "zh"
	LanguageEN    Language = "en"
	LanguageMixed Language = "mixed"
)

type Chunk struct {
	Position int      `json:"position"`
	Text     string   `json:"text"`
	Language Language `json:"language"`
}

type BilingualInput struct {
	ZH string `json:"zh"`
	EN string `json:"en"`
}

type options struct {
	targetSize int
	overlap    int
	language   Language
}

type Option func(*options)

// WithTargetSize sets the maximum chunk length in characters.
func WithTargetSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.targetSize = size
		}
	}
}

// WithOverlap sets how many characters consecutive windows of an oversized
// paragraph share.
func WithOverlap(overlap int) Option {
	return func(o *options) {
		if overlap >= 0 {
			o.overlap = overlap
		}
	}
}

// WithLanguage tags every produced chunk with lang.
func WithLanguage(lang Language) Option {
	return func(o *options) {
		if lang != "" {
			o.language = lang
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
		language:   LanguageMixed,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Split cuts text into chunks whose positions start at zero and are
// contiguous.
func Split(text string, opts ...Option) []Chunk {
	o := buildOptions(opts)
	counter := 0
	return chunkInto(text, o, &counter)
}

// ChunkBilingual chunks the zh and en versions of a note. Identical versions
// are chunked once as mixed content.
func ChunkBilingual(in BilingualInput, opts ...Option) []Chunk {
	zh := strings.TrimSpace(in.ZH)
	en := strings.TrimSpace(in.EN)
	if zh != "" && zh == en {
		return Split(zh, append(opts, WithLanguage(LanguageMixed))...)
	}

	counter := 0
	var out []Chunk
	if zh != "" {
		o := buildOptions(append(opts, WithLanguage(LanguageZH)))
		out = append(out, chunkInto(zh, o, &counter)...)
	}
	if en != "" {
		o := buildOptions(append(opts, WithLanguage(LanguageEN)))
		out = append(out, chunkInto(en, o, &counter)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "  ")
	return strings.TrimSpace(text)
}

func splitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		paragraphs = append(paragraphs, p)
	}
	return paragraphs
}

func chunkInto(text string, o options, counter *int) []Chunk {
	text = normalize(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	emit := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		chunks = append(chunks, Chunk{Position: *counter, Text: s, Language: o.language})
		*counter++
	}

	buffer := ""
	for _, para := range splitParagraphs(text) {
		candidate := para
		if buffer != "" {
			candidate = buffer + paragraphSeparator + para
		}
		if utf8.RuneCountInString(candidate) <= o.targetSize {
			buffer = candidate
			continue
		}
		emit(buffer)
		buffer = ""
		if utf8.RuneCountInString(para) > o.targetSize {
			for _, w := range slidingWindows(para, o.targetSize, o.overlap) {
				emit(w)
			}
			continue
		}
		buffer = para
	}
	emit(buffer)
	return chunks
}

func slidingWindows(para string, size, overlap int) []string {
	runes := []rune(para)
	step := size - overlap
	// overlap >= size must still advance
	if step < 1 {
		step = 1
	}
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}
