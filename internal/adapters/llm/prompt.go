package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// Placeholders use single braces: {state}, {mood}, {location}, {topic}, {name}.
const (
	tagStart = "{"
	tagEnd   = "}"
)

type promptSet struct {
	system       string
	nameRequest  string
	opening      string
	closing      string
	suggestions  string
	summary      string
	contextInput string
	historyLine  map[domain.Role]string
}

var promptSets = map[domain.Locale]promptSet{
	domain.LocaleEN: {
		system: `
You are Coopleo, an AI assistant trained by professional couples therapists to support people who want to improve their relationship.

Core principles:
- Empathy: validate the feelings and perspectives of both partners.
- Neutrality: never take sides.
- Safety: if abuse or a crisis appears, strongly recommend immediate professional help.
- You are not a licensed therapist; say so when the situation calls for it.

Style:
- Answer in English, short and simple, in a warm tone.
- Reflect back what you understood before suggesting anything.
- End with exactly one open question.
- Do not greet the user again; the conversation is already underway.

Session context:
- Relationship climate: {state}
- Mood: {mood}
- Where the user is: {location}
- Topic to work on: {topic}
- User's name: {name}
`,
		nameRequest: `
You are Coopleo, an AI assistant for couples. The user just opened a session about "{topic}".
Your only goal in this reply is to welcome the user in one sentence and ask for their first name.
Do not give any advice, analysis or question about the relationship yet.
`,
		opening: "Start the conversation about {topic} with one warm sentence and one open question.",
		closing: `
The conversation is coming to an end. In this reply:
1. Summarize in two sentences what the user shared.
2. Write the words "Final recommendations:" followed by at most 3 concrete action items, one per line, each starting with "- ".
3. Ask the user whether they would like to receive these recommendations by email.
`,
		suggestions: `
You write reply options for the user of a couples coaching chat.
Given the assistant's last message, propose exactly {count} short replies the USER could send next, written from the user's perspective.
Each reply must contain between {min_words} and {max_words} words.
Answer with a numbered list only, one reply per line, no commentary.
`,
		summary: `
Please provide a brief summary of the following conversation, highlighting the main topics discussed and any key insights or recommendations.
`,
		contextInput: "Session context: relationship climate {state}, mood {mood}, location {location}, topic {topic}.",
		historyLine: map[domain.Role]string{
			domain.RoleUser:      "User",
			domain.RoleAssistant: "Coopleo",
		},
	},
	domain.LocaleFR: {
		system: `
Tu es Coopleo, un assistant IA formé par des thérapeutes de couple professionnels pour accompagner les personnes qui veulent améliorer leur relation.

Principes :
- Empathie : valide les ressentis et les points de vue des deux partenaires.
- Neutralité : ne prends jamais parti.
- Sécurité : en cas de violence ou de crise, recommande fortement une aide professionnelle immédiate.
- Tu n'es pas un thérapeute agréé ; dis-le quand la situation l'exige.

Style :
- Réponds en français, de façon courte et simple, avec bienveillance, en vouvoyant l'utilisateur.
- Reformule ce que tu as compris avant de proposer quoi que ce soit.
- Termine par une seule question ouverte.
- Ne salue pas à nouveau l'utilisateur : la conversation est déjà engagée.

Contexte de la séance :
- Climat de la relation : {state}
- Humeur : {mood}
- Lieu : {location}
- Sujet à travailler : {topic}
- Prénom de l'utilisateur : {name}
`,
		nameRequest: `
Tu es Coopleo, un assistant IA pour les couples. L'utilisateur vient d'ouvrir une séance sur le sujet « {topic} ».
Ton seul objectif dans cette réponse : accueillir l'utilisateur en une phrase et lui demander son prénom.
Ne donne encore aucun conseil, aucune analyse et ne pose aucune question sur la relation.
`,
		opening: "Commence la conversation sur le sujet « {topic} » avec une phrase chaleureuse et une question ouverte.",
		closing: `
La conversation touche à sa fin. Dans cette réponse :
1. Résume en deux phrases ce que l'utilisateur a partagé.
2. Écris les mots « Recommandations finales : » suivis d'au plus 3 actions concrètes, une par ligne, chacune commençant par « - ».
3. Demande à l'utilisateur s'il souhaite recevoir ces recommandations par email.
`,
		suggestions: `
Tu rédiges des propositions de réponse pour l'utilisateur d'un chat d'accompagnement de couple.
À partir du dernier message de l'assistant, propose exactement {count} réponses courtes que l'UTILISATEUR pourrait envoyer, écrites de son point de vue.
Chaque réponse doit contenir entre {min_words} et {max_words} mots.
Réponds uniquement par une liste numérotée, une réponse par ligne, sans commentaire.
`,
		summary: `
Fais un bref résumé de la conversation suivante en mettant en avant les principaux sujets abordés ainsi que les idées clés ou recommandations.
`,
		contextInput: "Contexte de la séance : climat {state}, humeur {mood}, lieu {location}, sujet {topic}.",
		historyLine: map[domain.Role]string{
			domain.RoleUser:      "Utilisateur",
			domain.RoleAssistant: "Coopleo",
		},
	},
}

// ComposerConfig is fixed for the lifetime of a deployment.
type ComposerConfig struct {
	Locale           domain.Locale
	ClosingThreshold int
	HistoryWindow    int // last N turns sent to the model, 0 = all
}

// Composer builds every prompt sent to the model.
type Composer struct {
	cfg ComposerConfig

	system       *fasttemplate.Template
	nameRequest  *fasttemplate.Template
	opening      *fasttemplate.Template
	suggestions  *fasttemplate.Template
	contextInput *fasttemplate.Template
	set          promptSet
}

func NewComposer(cfg ComposerConfig) *Composer {
	set, ok := promptSets[cfg.Locale]
	if !ok {
		cfg.Locale = domain.LocaleFR
		set = promptSets[domain.LocaleFR]
	}

	return &Composer{
		cfg:          cfg,
		set:          set,
		system:       fasttemplate.New(set.system, tagStart, tagEnd),
		nameRequest:  fasttemplate.New(set.nameRequest, tagStart, tagEnd),
		opening:      fasttemplate.New(set.opening, tagStart, tagEnd),
		suggestions:  fasttemplate.New(set.suggestions, tagStart, tagEnd),
		contextInput: fasttemplate.New(set.contextInput, tagStart, tagEnd),
	}
}

func (c *Composer) Locale() domain.Locale { return c.cfg.Locale }

// IsClosing reports whether the next turn of s must carry the closing instruction.
func (c *Composer) IsClosing(s *domain.Session) bool {
	return c.cfg.ClosingThreshold > 0 && s.MessageCount() >= c.cfg.ClosingThreshold
}

// Compose builds the prompt for a normal turn: template with the session
// variables, the ordered history and the new user input.
func (c *Composer) Compose(s *domain.Session, input string) domain.Prompt {
	system := c.system.ExecuteString(sessionVars(s))
	if c.IsClosing(s) {
		system += c.set.closing
	}

	return domain.Prompt{
		System:   strings.TrimSpace(system),
		Messages: c.messages(s.History(), input),
	}
}

// ComposeNameRequest builds the prompt whose only goal is asking the user's name.
func (c *Composer) ComposeNameRequest(s *domain.Session) domain.Prompt {
	vars := sessionVars(s)
	return domain.Prompt{
		System: strings.TrimSpace(c.nameRequest.ExecuteString(vars)),
		Messages: []domain.Message{
			{Role: domain.RoleUser, Text: c.contextInput.ExecuteString(vars)},
		},
	}
}

// ComposeOpening builds the first turn when name capture is disabled.
func (c *Composer) ComposeOpening(s *domain.Session) domain.Prompt {
	vars := sessionVars(s)
	input := c.contextInput.ExecuteString(vars) + "\n" + c.opening.ExecuteString(vars)
	return c.Compose(s, input)
}

// ContextInput renders the session context as the text of the first user turn.
func (c *Composer) ContextInput(s *domain.Session) string {
	return c.contextInput.ExecuteString(sessionVars(s))
}

// ComposeSuggestions asks for count short replies from the user's perspective.
func (c *Composer) ComposeSuggestions(lastReply string, recent []domain.Turn, count, minWords, maxWords int) domain.Prompt {
	system := c.suggestions.ExecuteString(map[string]interface{}{
		"count":     strconv.Itoa(count),
		"min_words": strconv.Itoa(minWords),
		"max_words": strconv.Itoa(maxWords),
	})

	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString(c.transcript(recent))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "%s: %s", c.set.historyLine[domain.RoleAssistant], lastReply)

	return domain.Prompt{
		System:   strings.TrimSpace(system),
		Messages: []domain.Message{{Role: domain.RoleUser, Text: b.String()}},
	}
}

// ComposeSummary asks for a summary of persisted exchanges.
func (c *Composer) ComposeSummary(exchanges []*domain.Exchange) domain.Prompt {
	turns := make([]domain.Turn, 0, len(exchanges)*2)
	for _, e := range exchanges {
		turns = append(turns,
			domain.Turn{Role: domain.RoleUser, Text: e.UserMessage},
			domain.Turn{Role: domain.RoleAssistant, Text: e.AIResponse},
		)
	}

	return domain.Prompt{
		System:   strings.TrimSpace(c.set.summary),
		Messages: []domain.Message{{Role: domain.RoleUser, Text: c.transcript(turns)}},
	}
}

func (c *Composer) messages(history []domain.Turn, input string) []domain.Message {
	if w := c.cfg.HistoryWindow; w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}
	// Providers expect the conversation to open with a user message.
	for len(history) > 0 && history[0].Role != domain.RoleUser {
		history = history[1:]
	}

	out := make([]domain.Message, 0, len(history)+1)
	for _, t := range history {
		out = append(out, domain.Message{Role: t.Role, Text: t.Text})
	}
	return append(out, domain.Message{Role: domain.RoleUser, Text: input})
}

func (c *Composer) transcript(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, c.set.historyLine[t.Role]+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

func sessionVars(s *domain.Session) map[string]interface{} {
	ctx := s.Context().Normalized()
	name := domain.UnknownValue
	if s.NameProvided() && s.Name() != "" {
		name = s.Name()
	}
	return map[string]interface{}{
		"state":    ctx.State,
		"mood":     ctx.Mood,
		"location": ctx.Location,
		"topic":    ctx.Topic,
		"name":     name,
	}
}
