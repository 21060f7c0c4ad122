package spam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"contact-intake-go/internal/model"
)

func TestIsSpam(t *testing.T) {
	tests := []struct {
		score    int
		expected bool
	}{
		{0, false},
		{29, false},
		{30, false},
		{31, true},
		{100, true},
	}

	for _, tt := range tests {
		if got := IsSpam(tt.score); got != tt.expected {
			t.Errorf("IsSpam(%d) = %v, want %v", tt.score, got, tt.expected)
		}
	}
}

func TestCalculateSpamScore_BenignMessage(t *testing.T) {
	sub := model.ContactSubmission{
		Name:    "Marie Curie",
		Email:   "test@example.com",
		Message: "Bonjour, je voudrais des informations sur l'adhésion.",
	}

	score := CalculateSpamScore(sub)
	assert.Equal(t, 0, score)
	assert.False(t, IsSpam(score))
}

func TestCalculateSpamScore_ObviousSpam(t *testing.T) {
	sub := model.ContactSubmission{
		Name:    "Winner",
		Email:   "promo@example.com",
		Message: "WIN FREE MONEY NOW, CLICK HERE http://x http://y http://z",
	}

	b := Analyze(sub)
	// "free money" and "click here"
	assert.Equal(t, 20, b.Keywords)
	// three links
	assert.Equal(t, 15, b.Links)
	// 24 uppercase letters out of 57 characters stays under the ratio
	assert.Equal(t, 0, b.Uppercase)
	assert.Equal(t, 0, b.Repetition)
	assert.Equal(t, 0, b.EmailShape)

	score := CalculateSpamScore(sub)
	assert.Equal(t, 35, score)
	assert.True(t, IsSpam(score))
}

func TestAnalyze_Heuristics(t *testing.T) {
	tests := []struct {
		name string
		sub  model.ContactSubmission
		want Breakdown
	}{
		{
			name: "keyword in subject",
			sub:  model.ContactSubmission{Email: "a@b.fr", Subject: "Casino bonus", Message: "hello there friends"},
			want: Breakdown{Keywords: 10},
		},
		{
			name: "keyword counted once",
			sub:  model.ContactSubmission{Email: "a@b.fr", Message: "bitcoin bitcoin BITCOIN"},
			want: Breakdown{Keywords: 10},
		},
		{
			name: "links capped",
			sub:  model.ContactSubmission{Email: "a@b.fr", Message: "https://a https://b http://c http://d http://e http://f"},
			want: Breakdown{Links: 20},
		},
		{
			name: "shouting",
			sub:  model.ContactSubmission{Email: "a@b.fr", Message: "PLEASE ANSWER ME"},
			want: Breakdown{Uppercase: 15},
		},
		{
			name: "repeated characters",
			sub:  model.ContactSubmission{Email: "a@b.fr", Message: "Hellooooo, any news?"},
			want: Breakdown{Repetition: 10},
		},
		{
			name: "four repeats is fine",
			sub:  model.ContactSubmission{Email: "a@b.fr", Message: "Hellllo, any news?"},
			want: Breakdown{},
		},
		{
			name: "plus addressing",
			sub:  model.ContactSubmission{Email: "jean+promo@example.com", Message: "Bonjour à tous"},
			want: Breakdown{EmailShape: 5},
		},
		{
			name: "digit run",
			sub:  model.ContactSubmission{Email: "user1234@example.com", Message: "Bonjour à tous"},
			want: Breakdown{EmailShape: 5},
		},
		{
			name: "two digits is fine",
			sub:  model.ContactSubmission{Email: "jean42@example.com", Message: "Bonjour à tous"},
			want: Breakdown{},
		},
		{
			name: "honeypot filled",
			sub:  model.ContactSubmission{Email: "a@b.fr", Message: "Bonjour à tous", Honeypot: "ACME"},
			want: Breakdown{Honeypot: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Analyze(tt.sub))
		})
	}
}

func TestCalculateSpamScore_ClampedAndDeterministic(t *testing.T) {
	sub := model.ContactSubmission{
		Email:   "win+123456@example.com",
		Subject: "VIAGRA CASINO LOTTERY",
		Message: strings.Repeat("BUY NOW!!!!! CLICK HERE http://spam.example ", 10) + "FREE MONEY BITCOIN FOREX",
	}

	first := CalculateSpamScore(sub)
	second := CalculateSpamScore(sub)

	assert.Equal(t, first, second)
	assert.Equal(t, MaxScore, first)
	assert.GreaterOrEqual(t, first, 0)
	assert.LessOrEqual(t, first, MaxScore)
}

func TestCalculateSpamScore_EmptyMessage(t *testing.T) {
	assert.Equal(t, 0, CalculateSpamScore(model.ContactSubmission{}))
}
