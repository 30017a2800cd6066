package report

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/talktivity/voicebridge/internal/transcript"
)

// WordFrequency is one vocabulary item and how often the learner used it.
type WordFrequency struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Report is a speaking analysis of the learner's latest conversation,
// with recent history folded in for context.
type Report struct {
	ID              int64           `json:"id,omitempty"`
	UserID          int64           `json:"user_id"`
	TurnCount       int             `json:"turn_count"`
	WordCount       int             `json:"word_count"`
	UniqueWordCount int             `json:"unique_word_count"`
	AvgWordsPerTurn float64         `json:"avg_words_per_turn"`
	TopWords        []WordFrequency `json:"top_words,omitempty"`
	RecentSessions  int             `json:"recent_sessions"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
}

const topWordLimit = 10

// Analyze computes the speaking aggregates over the learner's side of the
// transcript. Words are lowercased and stripped of surrounding punctuation
// before counting.
func Analyze(userID int64, t *transcript.Transcript) *Report {
	userTurns := t.UserTurns()

	freq := make(map[string]int)
	wordCount := 0
	for _, turn := range userTurns {
		for _, raw := range strings.Fields(turn.Content) {
			word := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsNumber(r)
			}))
			if word == "" {
				continue
			}
			wordCount++
			freq[word]++
		}
	}

	r := &Report{
		UserID:          userID,
		TurnCount:       len(userTurns),
		WordCount:       wordCount,
		UniqueWordCount: len(freq),
	}
	if r.TurnCount > 0 {
		r.AvgWordsPerTurn = float64(wordCount) / float64(r.TurnCount)
	}

	words := make([]WordFrequency, 0, len(freq))
	for w, c := range freq {
		words = append(words, WordFrequency{Word: w, Count: c})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if len(words) > topWordLimit {
		words = words[:topWordLimit]
	}
	r.TopWords = words

	return r
}
