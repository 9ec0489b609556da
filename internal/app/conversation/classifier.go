package conversation

import (
	"regexp"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

type localeText struct {
	greetings       []string // stripped when a reply starts with one of them verbatim
	followUp        string
	recommendations string
	nameAck         string
	nameAckNoTopic  string
}

var texts = map[domain.Locale]localeText{
	domain.LocaleEN: {
		greetings:       []string{"Hi there!", "Hello there!", "Hello!", "Hello,", "Hi!", "Hi,", "Hey!", "Hey,"},
		followUp:        "What would you like to explore next?",
		recommendations: "final recommendations",
		nameAck:         "Nice to meet you, {name}. Let's talk about {topic}. What is on your mind right now?",
		nameAckNoTopic:  "Nice to meet you, {name}. What is on your mind right now?",
	},
	domain.LocaleFR: {
		greetings:       []string{"Bonjour !", "Bonjour,", "Bonjour.", "Bonsoir !", "Bonsoir,", "Salut !", "Salut,", "Coucou !"},
		followUp:        "Qu'aimeriez-vous approfondir maintenant ?",
		recommendations: "recommandations finales",
		nameAck:         "Enchanté, {name}. Parlons de « {topic} ». Qu'est-ce qui vous préoccupe le plus en ce moment ?",
		nameAckNoTopic:  "Enchanté, {name}. Qu'est-ce qui vous préoccupe le plus en ce moment ?",
	},
}

var bulletMarkers = []string{"- ", "* ", "• ", "– "}

var recommendationMarkers = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(texts))
	for _, t := range texts {
		out = append(out, regexp.MustCompile("(?i)"+regexp.QuoteMeta(t.recommendations)))
	}
	return out
}()

// Classifier holds the string heuristics applied to model replies.
// They are brittle by nature and depend on the prompts in adapters/llm.
type Classifier struct {
	text localeText
}

func NewClassifier(locale domain.Locale) *Classifier {
	text, ok := texts[locale]
	if !ok {
		text = texts[domain.LocaleFR]
	}
	return &Classifier{text: text}
}

// StripGreeting removes a known greeting prefix, unless nothing would remain.
func (c *Classifier) StripGreeting(reply string) string {
	reply = strings.TrimSpace(reply)
	for _, g := range c.text.greetings {
		if rest, ok := strings.CutPrefix(reply, g); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				return rest
			}
			return reply
		}
	}
	return reply
}

// CollapseWhitespace turns the reply into a single paragraph.
func CollapseWhitespace(reply string) string {
	return strings.Join(strings.Fields(reply), " ")
}

// HasBullets reports whether any line starts with a bullet marker.
func HasBullets(reply string) bool {
	for _, line := range strings.Split(reply, "\n") {
		if isBullet(line) {
			return true
		}
	}
	return false
}

func isBullet(line string) bool {
	line = strings.TrimSpace(line) + " "
	for _, m := range bulletMarkers {
		if strings.HasPrefix(line, m) && len(strings.TrimSpace(line)) > 1 {
			return true
		}
	}
	return false
}

// ContainsRecommendations looks for the closing marker of any supported locale.
func ContainsRecommendations(reply string) bool {
	return recommendationIndex(reply) >= 0
}

func recommendationIndex(reply string) int {
	best := -1
	for _, re := range recommendationMarkers {
		if loc := re.FindStringIndex(reply); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
		}
	}
	return best
}

// AsksForEmail reports whether the reply mentions email together with a question mark.
func AsksForEmail(reply string) bool {
	lower := strings.ToLower(reply)
	mentionsEmail := strings.Contains(lower, "email") || strings.Contains(lower, "e-mail")
	return mentionsEmail && strings.Contains(reply, "?")
}

// ExtractRecommendations returns the bullet lines following the closing marker,
// or the raw text after the marker when it has no bullets.
func ExtractRecommendations(reply string) string {
	i := recommendationIndex(reply)
	if i < 0 {
		return ""
	}
	section := reply[i:]

	var items []string
	for _, line := range strings.Split(section, "\n") {
		if isBullet(line) {
			items = append(items, strings.TrimSpace(line))
		}
	}
	if len(items) > 0 {
		return strings.Join(items, "\n")
	}
	return strings.TrimSpace(section)
}

// EnsureQuestion appends the locale follow-up question when the reply does not end with one.
func (c *Classifier) EnsureQuestion(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasSuffix(reply, "?") {
		return reply
	}
	if reply == "" {
		return c.text.followUp
	}
	return reply + " " + c.text.followUp
}

// NameAck is the canned reply once the user gave their name.
func (c *Classifier) NameAck(name, topic string) string {
	tmpl := c.text.nameAck
	if topic == "" || topic == domain.UnknownValue {
		tmpl = c.text.nameAckNoTopic
	}
	return fasttemplate.ExecuteString(tmpl, "{", "}", map[string]interface{}{
		"name":  name,
		"topic": topic,
	})
}
