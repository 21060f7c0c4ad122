package spam

import (
	"strings"
	"unicode"

	"contact-intake-go/internal/model"
)

const (
	// Threshold is the highest score still accepted as legitimate
	Threshold = 30
	MaxScore  = 100

	keywordPoints    = 10
	linkPoints       = 5
	maxLinkPoints    = 20
	uppercasePoints  = 15
	uppercaseRatio   = 0.5
	repeatPoints     = 10
	repeatRun        = 5
	emailShapePoints = 5
	honeypotPoints   = 100
)

// Keywords are the phrases that usually show up in unsolicited submissions.
// Matching is case-insensitive on subject and message.
var Keywords = []string{
	"viagra",
	"cialis",
	"casino",
	"lottery",
	"free money",
	"click here",
	"buy now",
	"act now",
	"limited time offer",
	"make money fast",
	"work from home",
	"earn extra cash",
	"investment opportunity",
	"crypto trading",
	"bitcoin",
	"forex",
	"seo services",
	"backlinks",
	"payday loan",
	"nigerian prince",
	"congratulations you won",
	"100% free",
}

// Breakdown is the contribution of each heuristic to a score
type Breakdown struct {
	Keywords   int `json:"keywords"`
	Links      int `json:"links"`
	Uppercase  int `json:"uppercase"`
	Repetition int `json:"repetition"`
	EmailShape int `json:"email_shape"`
	Honeypot   int `json:"honeypot"`
}

// Total returns the clamped sum of all contributions
func (b Breakdown) Total() int {
	sum := b.Keywords + b.Links + b.Uppercase + b.Repetition + b.EmailShape + b.Honeypot
	if sum > MaxScore {
		return MaxScore
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// CalculateSpamScore returns the suspicion score of a submission, in [0, 100]
func CalculateSpamScore(sub model.ContactSubmission) int {
	return Analyze(sub).Total()
}

// IsSpam reports whether a score classifies the submission as spam
func IsSpam(score int) bool {
	return score > Threshold
}

// Analyze runs every heuristic against the submission
func Analyze(sub model.ContactSubmission) Breakdown {
	text := sub.Subject + " " + sub.Message

	var b Breakdown
	b.Keywords = keywordPoints * countKeywords(text)

	b.Links = linkPoints * countLinks(text)
	if b.Links > maxLinkPoints {
		b.Links = maxLinkPoints
	}

	if upperRatio(sub.Message) > uppercaseRatio {
		b.Uppercase = uppercasePoints
	}
	if hasRepeatedRun(sub.Message, repeatRun) {
		b.Repetition = repeatPoints
	}
	if suspiciousLocalPart(sub.Email) {
		b.EmailShape = emailShapePoints
	}
	if strings.TrimSpace(sub.Honeypot) != "" {
		b.Honeypot = honeypotPoints
	}
	return b
}

func countKeywords(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func countLinks(text string) int {
	lower := strings.ToLower(text)
	return strings.Count(lower, "http://") + strings.Count(lower, "https://")
}

// upperRatio is the share of uppercase letters among all characters of s
func upperRatio(s string) float64 {
	total, upper := 0, 0
	for _, r := range s {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}

func hasRepeatedRun(s string, run int) bool {
	var prev rune
	count := 0
	for _, r := range s {
		if count > 0 && r == prev {
			count++
		} else {
			count = 1
		}
		if count >= run {
			return true
		}
		prev = r
	}
	return false
}

func suspiciousLocalPart(email string) bool {
	local := email
	if at := strings.LastIndex(email, "@"); at >= 0 {
		local = email[:at]
	}
	if strings.Contains(local, "+") {
		return true
	}
	digits := 0
	for _, r := range local {
		if r >= '0' && r <= '9' {
			digits++
			if digits >= 3 {
				return true
			}
			continue
		}
		digits = 0
	}
	return false
}
