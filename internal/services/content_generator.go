package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RequiredContentKeys fixes the payload shape per activity kind. Both the
// LLM-backed path and the fallback path must produce every listed key.
var RequiredContentKeys = map[models.ActivityKind][]string{
	models.KindIntro:         {"welcome_message", "explanation", "motivation"},
	models.KindPromptBuilder: {"instruction", "example", "tips"},
	models.KindQuiz:          {"question", "options", "correct_answer", "explanation", "fun_fact"},
	models.KindChat:          {"greeting", "suggestions"},
	models.KindCreative:      {"challenge", "inspiration", "success_criteria"},
}

// JSON schemas used to validate LLM-generated content before accepting it
const (
	introContentSchema = `{
		"type": "object",
		"properties": {
			"welcome_message": {"type": "string", "minLength": 1},
			"explanation": {"type": "string", "minLength": 1},
			"motivation": {"type": "string", "minLength": 1}
		},
		"required": ["welcome_message", "explanation", "motivation"]
	}`

	promptBuilderContentSchema = `{
		"type": "object",
		"properties": {
			"instruction": {"type": "string", "minLength": 1},
			"example": {"type": "string", "minLength": 1},
			"tips": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		},
		"required": ["instruction", "example", "tips"]
	}`

	quizContentSchema = `{
		"type": "object",
		"properties": {
			"question": {"type": "string", "minLength": 1},
			"options": {"type": "array", "items": {"type": "string"}, "minItems": 2},
			"correct_answer": {"type": "string", "minLength": 1},
			"explanation": {"type": "string", "minLength": 1},
			"fun_fact": {"type": "string", "minLength": 1}
		},
		"required": ["question", "options", "correct_answer", "explanation", "fun_fact"]
	}`

	chatContentSchema = `{
		"type": "object",
		"properties": {
			"greeting": {"type": "string", "minLength": 1},
			"suggestions": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		},
		"required": ["greeting", "suggestions"]
	}`

	creativeContentSchema = `{
		"type": "object",
		"properties": {
			"challenge": {"type": "string", "minLength": 1},
			"inspiration": {"type": "string", "minLength": 1},
			"success_criteria": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		},
		"required": ["challenge", "inspiration", "success_criteria"]
	}`
)

// contentSchemaFor returns the validation schema for an activity kind.
// The switch is exhaustive over the closed kind set.
func contentSchemaFor(kind models.ActivityKind) string {
	switch kind {
	case models.KindIntro:
		return introContentSchema
	case models.KindPromptBuilder:
		return promptBuilderContentSchema
	case models.KindQuiz:
		return quizContentSchema
	case models.KindChat:
		return chatContentSchema
	case models.KindCreative:
		return creativeContentSchema
	default:
		return ""
	}
}

// ContentGeneratorInterface produces themed activity content. Generation is
// stateless; failures never surface as errors, only as fallback payloads.
type ContentGeneratorInterface interface {
	Generate(ctx context.Context, kind models.ActivityKind, theme models.ThemeProfile, difficulty int) models.GeneratedContent
	GenerateStepContent(ctx context.Context, kind models.ActivityKind, step int, theme models.ThemeProfile) models.GeneratedContent
	GenerateHint(ctx context.Context, kind models.ActivityKind, theme models.ThemeProfile, attempt int) string
	ChatReply(ctx context.Context, theme models.ThemeProfile, history []models.ChatMessage, userMessage string) string
}

// ContentGenerator renders per-kind activity content from the LLM with
// hardcoded Danish fallbacks
type ContentGenerator struct {
	ai     AIServiceInterface
	logger *observability.Logger
}

// Ensure ContentGenerator implements the interface
var _ ContentGeneratorInterface = (*ContentGenerator)(nil)

// NewContentGenerator creates a content generator on top of the AI service
func NewContentGenerator(ai AIServiceInterface, logger *observability.Logger) *ContentGenerator {
	return &ContentGenerator{ai: ai, logger: logger}
}

// systemPrompt composes the base instruction with the theme's vocabulary
func systemPrompt(theme models.ThemeProfile) string {
	var b strings.Builder
	b.WriteString("Du er ")
	b.WriteString(theme.MentorName)
	b.WriteString(", en venlig AI-mentor der lærer børn på 8-12 år om ChatGPT og prompts. ")
	b.WriteString("Du taler dansk, bruger korte sætninger og er altid opmuntrende. ")
	if len(theme.ToneWords) > 0 {
		b.WriteString("Din tone er ")
		b.WriteString(strings.Join(theme.ToneWords, ", "))
		b.WriteString(". ")
	}
	if len(theme.NarrativeMetaphors) > 0 {
		b.WriteString("Husk: ")
		b.WriteString(theme.NarrativeMetaphors[0])
		b.WriteString(".")
	}
	return b.String()
}

// Generate builds themed content for an activity kind. Any LLM, parse or
// schema failure falls back to a fixed payload of the same shape; the
// first failure falls back immediately, no retry.
func (g *ContentGenerator) Generate(ctx context.Context, kind models.ActivityKind, theme models.ThemeProfile, difficulty int) models.GeneratedContent {
	ctx, span := observability.TraceContentFunction(ctx, "Generate",
		observability.AttributeActivityKind(kind),
		observability.AttributeTheme(theme.ID),
		attribute.Int("difficulty", difficulty),
	)
	defer span.End()

	userPrompt, ok := contentPromptFor(kind, theme, difficulty)
	if !ok {
		span.SetAttributes(attribute.Bool("content.fallback", true))
		return fallbackContent(kind, theme)
	}

	reply, err := g.ai.Complete(ctx, systemPrompt(theme), userPrompt, config.ContentMaxTokens, config.ContentTemperature)
	if err != nil {
		g.logger.Warn(ctx, "Content generation failed, using fallback", map[string]interface{}{
			"kind":  kind.String(),
			"theme": theme.ID,
			"error": err.Error(),
		})
		span.SetAttributes(attribute.Bool("content.fallback", true))
		return fallbackContent(kind, theme)
	}

	content, err := g.parseAndValidate(kind, reply)
	if err != nil {
		g.logger.Warn(ctx, "Generated content rejected, using fallback", map[string]interface{}{
			"kind":  kind.String(),
			"theme": theme.ID,
			"error": err.Error(),
		})
		span.SetAttributes(attribute.Bool("content.fallback", true))
		return fallbackContent(kind, theme)
	}

	return content
}

// contentPromptFor builds the per-kind user prompt with a strict JSON directive
func contentPromptFor(kind models.ActivityKind, theme models.ThemeProfile, difficulty int) (string, bool) {
	topics := strings.Join(theme.ExampleTopics, ", ")

	switch kind {
	case models.KindIntro:
		return fmt.Sprintf(
			"Skriv en introduktion til hvad ChatGPT er, med eksempler fra %s. "+
				"Svar KUN med JSON med præcis disse nøgler: "+
				`{"welcome_message": "...", "explanation": "...", "motivation": "..."}`, topics), true
	case models.KindPromptBuilder:
		return fmt.Sprintf(
			"Forklar hvordan man bygger et godt prompt med rolle, opgave, kontekst og tone. Brug et eksempel om %s. "+
				"Svar KUN med JSON med præcis disse nøgler: "+
				`{"instruction": "...", "example": "...", "tips": ["...", "..."]}`, topics), true
	case models.KindQuiz:
		return fmt.Sprintf(
			"Lav et quizspørgsmål (sværhedsgrad %d af 5) om forskellen på klare og uklare prompts, med tema om %s. "+
				"Svar KUN med JSON med præcis disse nøgler: "+
				`{"question": "...", "options": ["...", "...", "..."], "correct_answer": "...", "explanation": "...", "fun_fact": "..."}`,
			difficulty, topics), true
	case models.KindChat:
		return fmt.Sprintf(
			"Skriv en hilsen fra %s der inviterer barnet til at chatte, og foreslå tre samtaleemner om %s. "+
				"Svar KUN med JSON med præcis disse nøgler: "+
				`{"greeting": "...", "suggestions": ["...", "...", "..."]}`, theme.MentorName, topics), true
	case models.KindCreative:
		challenge := ""
		if len(theme.CreativeChallenges) > 0 {
			challenge = theme.CreativeChallenges[0]
		}
		return fmt.Sprintf(
			"Lav en kreativ prompt-udfordring i stil med: %q. "+
				"Svar KUN med JSON med præcis disse nøgler: "+
				`{"challenge": "...", "inspiration": "...", "success_criteria": ["...", "..."]}`, challenge), true
	default:
		return "", false
	}
}

// parseAndValidate decodes the LLM reply as JSON and checks it against the
// kind's schema
func (g *ContentGenerator) parseAndValidate(kind models.ActivityKind, reply string) (models.GeneratedContent, error) {
	raw := extractJSON(reply)

	var content models.GeneratedContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("invalid JSON in AI reply: %w", err)
	}

	schema := contentSchemaFor(kind)
	if schema == "" {
		return nil, fmt.Errorf("no content schema for kind %q", kind)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(map[string]interface{}(content)),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("content failed schema validation: %s", strings.Join(issues, "; "))
	}

	return content, nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// its JSON reply
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		if idx := strings.LastIndex(reply, "```"); idx >= 0 {
			reply = reply[:idx]
		}
		return strings.TrimSpace(reply)
	}

	// Some models prepend prose; cut to the outermost braces
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		return reply[start : end+1]
	}
	return reply
}

// fallbackContent returns the fixed Danish payload for a kind, themed by
// the active profile. The shape matches RequiredContentKeys exactly.
func fallbackContent(kind models.ActivityKind, theme models.ThemeProfile) models.GeneratedContent {
	encouragement := "Godt gået!"
	if len(theme.Encouragements) > 0 {
		encouragement = theme.Encouragements[0]
	}

	switch kind {
	case models.KindIntro:
		return models.GeneratedContent{
			"welcome_message": fmt.Sprintf("Hej! Jeg er %s, din AI-mentor. Velkommen!", theme.MentorName),
			"explanation":     "ChatGPT er en computer, der kan forstå og skrive tekst. Den har læst rigtig mange bøger og hjemmesider, så den kan hjælpe dig med at svare på spørgsmål.",
			"motivation":      fmt.Sprintf("Når du lærer at stille gode spørgsmål, kan du få ChatGPT til at hjælpe dig med næsten alt. %s", encouragement),
		}
	case models.KindPromptBuilder:
		return models.GeneratedContent{
			"instruction": "Et godt prompt fortæller hvem AI'en skal være, hvad den skal gøre, og hvordan den skal svare. Prøv at udfylde felterne!",
			"example":     fmt.Sprintf("Du er %s. Jeg vil gerne have dig til at fortælle en kort historie. Svar i en sjov tone.", theme.MentorName),
			"tips": []interface{}{
				"Vær specifik - jo mere præcis du er, jo bedre bliver svaret",
				"Fortæl hvilken rolle AI'en skal have",
				"Husk at sige hvilken tone du gerne vil have",
			},
		}
	case models.KindQuiz:
		return models.GeneratedContent{
			"question":       "Hvilket prompt er mest klart?",
			"options":        []interface{}{"Fortæl noget", "Fortæl en kort historie om en modig ridder for børn", "Historie tak"},
			"correct_answer": "Fortæl en kort historie om en modig ridder for børn",
			"explanation":    "Det midterste prompt er klart, fordi det fortæller præcis hvad historien skal handle om, og hvem den er til.",
			"fun_fact":       "ChatGPT kan skrive historier på mange forskellige sprog!",
		}
	case models.KindChat:
		suggestions := []interface{}{"Fortæl mig om dyr", "Hjælp mig med en historie", "Forklar hvordan regnbuer opstår"}
		for i, topic := range theme.ExampleTopics {
			if i >= len(suggestions) {
				break
			}
			suggestions[i] = "Fortæl mig om " + topic
		}
		return models.GeneratedContent{
			"greeting":    fmt.Sprintf("Hej! Det er mig, %s %s. Hvad vil du gerne snakke om i dag?", theme.MentorName, theme.MentorAvatar),
			"suggestions": suggestions,
		}
	case models.KindCreative:
		challenge := "Find på dit helt eget prompt og se hvad der sker!"
		if len(theme.CreativeChallenges) > 0 {
			challenge = theme.CreativeChallenges[0]
		}
		return models.GeneratedContent{
			"challenge":   challenge,
			"inspiration": fmt.Sprintf("Tænk på %s - hvad kunne du godt tænke dig at vide mere om?", strings.Join(theme.ExampleTopics, " eller ")),
			"success_criteria": []interface{}{
				"Dit prompt er kreativt og detaljeret",
				"Dit prompt fortæller hvad AI'en skal gøre",
			},
		}
	default:
		return models.GeneratedContent{
			"welcome_message": fmt.Sprintf("Hej! Jeg er %s.", theme.MentorName),
			"explanation":     "Lad os lære om prompts sammen.",
			"motivation":      encouragement,
		}
	}
}

// stepSection names the three parts of a multi-step content payload
var stepSections = []string{"body", "example", "task"}

// GenerateStepContent renders one step of a multi-step activity. The three
// sections are independent prompts, issued in parallel; any failing
// section falls back individually so the step always renders complete.
func (g *ContentGenerator) GenerateStepContent(ctx context.Context, kind models.ActivityKind, step int, theme models.ThemeProfile) models.GeneratedContent {
	ctx, span := observability.TraceContentFunction(ctx, "GenerateStepContent",
		observability.AttributeActivityKind(kind),
		observability.AttributeTheme(theme.ID),
		observability.AttributeStep(step),
	)
	defer span.End()

	fallback := fallbackStepContent(kind, step, theme)
	results := make([]string, len(stepSections))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, section := range stepSections {
		eg.Go(func() error {
			prompt := stepSectionPrompt(kind, step, section, theme)
			reply, err := g.ai.Complete(egCtx, systemPrompt(theme), prompt, config.ContentMaxTokens, config.ContentTemperature)
			if err != nil || strings.TrimSpace(reply) == "" {
				results[i] = fallback[section].(string)
				return nil
			}
			results[i] = strings.TrimSpace(reply)
			return nil
		})
	}
	// Section goroutines never return errors; they fall back instead
	_ = eg.Wait()

	content := models.GeneratedContent{
		"title": stepTitle(kind, step),
		"step":  step,
	}
	for i, section := range stepSections {
		content[section] = results[i]
	}
	return content
}

// stepTitle returns the fixed Danish title for a (kind, step) pair
func stepTitle(kind models.ActivityKind, step int) string {
	if kind == models.KindPromptBuilder {
		switch step {
		case 1:
			return "Hvad er et prompt?"
		case 2:
			return "Byg dit prompt"
		default:
			return "Test dit prompt"
		}
	}
	switch step {
	case 1:
		return "Mød din AI-mentor"
	case 2:
		return "Hvordan virker ChatGPT?"
	default:
		return "Hvad har du lært?"
	}
}

// stepSectionPrompt builds the instruction for one section of a step
func stepSectionPrompt(kind models.ActivityKind, step int, section string, theme models.ThemeProfile) string {
	title := stepTitle(kind, step)
	switch section {
	case "body":
		return fmt.Sprintf("Skriv 2-3 korte sætninger til et barn om emnet %q. Svar kun med teksten, ikke JSON.", title)
	case "example":
		return fmt.Sprintf("Giv ét kort eksempel der passer til emnet %q, med tema om %s. Svar kun med teksten.", title, strings.Join(theme.ExampleTopics, ", "))
	default:
		return fmt.Sprintf("Skriv en lille opgave barnet skal løse om emnet %q. Svar kun med teksten.", title)
	}
}

// fallbackStepContent returns fixed section texts for a (kind, step) pair
func fallbackStepContent(kind models.ActivityKind, step int, theme models.ThemeProfile) models.GeneratedContent {
	if kind == models.KindPromptBuilder {
		switch step {
		case 1:
			return models.GeneratedContent{
				"body":    "Et prompt er en besked, du skriver til ChatGPT. Jo bedre din besked er, jo bedre bliver svaret.",
				"example": fmt.Sprintf("Du er %s. Fortæl en kort historie om %s.", theme.MentorName, theme.ExampleTopics[0]),
				"task":    "Skriv dit første prompt: bed om en historie om noget, du godt kan lide.",
			}
		case 2:
			return models.GeneratedContent{
				"body":    "Et godt prompt har fire dele: en rolle, en opgave, en kontekst og en tone. Du behøver ikke bruge dem alle hver gang.",
				"example": "Du er en venlig lærer. Jeg vil gerne have dig til at forklare regnbuer. Konteksten er: det er for børn. Svar i en sjov tone.",
				"task":    "Udfyld felterne rolle, opgave, kontekst og tone, og se dit prompt blive bygget.",
			}
		default:
			return models.GeneratedContent{
				"body":    "Nu skal du prøve dit prompt af! Send det til din mentor og se, hvad der sker.",
				"example": "Prøv at ændre tonen i dit prompt og se, hvordan svaret ændrer sig.",
				"task":    "Send dit prompt og læs svaret. Er det, som du forventede?",
			}
		}
	}

	switch step {
	case 1:
		return models.GeneratedContent{
			"body":    fmt.Sprintf("Hej! Jeg er %s %s. Jeg er en AI - en computer, der kan snakke med dig.", theme.MentorName, theme.MentorAvatar),
			"example": fmt.Sprintf("Du kan spørge mig om alt - for eksempel om %s!", theme.ExampleTopics[0]),
			"task":    "Sig hej til din mentor og stil dit første spørgsmål.",
		}
	case 2:
		return models.GeneratedContent{
			"body":    "ChatGPT har læst millioner af tekster og har lært mønstre i sproget. Den gætter på, hvilket ord der kommer næst - rigtig mange gange i træk.",
			"example": "Når du skriver 'Der var engang...', ved ChatGPT, at der nok kommer et eventyr.",
			"task":    "Prøv at starte en sætning og lad din mentor gøre den færdig.",
		}
	default:
		return models.GeneratedContent{
			"body":    "Du har lært, hvad ChatGPT er, og hvordan den virker. Nu er du klar til at bygge dine egne prompts!",
			"example": "Husk: ChatGPT er en hjælper, ikke et menneske. Den kan tage fejl, så tjek altid vigtige svar.",
			"task":    "Fortæl med dine egne ord, hvad ChatGPT er.",
		}
	}
}

// Hint fallbacks keyed by attempt bucket
var fallbackHints = []string{
	"Prøv at gøre dit prompt lidt mere detaljeret.",
	"Husk at fortælle, hvem AI'en skal være, og hvad den skal gøre.",
	"Prøv fx: 'Du er en venlig lærer. Forklar ... for et barn på 10 år.'",
}

// GenerateHint returns a progressive hint; specificity grows with the
// attempt number. Falls back to fixed hints on any failure.
func (g *ContentGenerator) GenerateHint(ctx context.Context, kind models.ActivityKind, theme models.ThemeProfile, attempt int) string {
	ctx, span := observability.TraceContentFunction(ctx, "GenerateHint",
		observability.AttributeActivityKind(kind),
		observability.AttributeAttempt(attempt),
	)
	defer span.End()

	if attempt < 1 {
		attempt = 1
	}

	level := "et blidt hint uden at afsløre svaret"
	switch {
	case attempt == 2:
		level = "et mere konkret hint"
	case attempt >= 3:
		level = "et meget konkret hint med et halvt eksempel"
	}

	prompt := fmt.Sprintf("Barnet er i gang med en %s-aktivitet og har brugt %d forsøg. Giv %s. Svar kun med hintet, maks to sætninger.",
		kind.String(), attempt, level)

	reply, err := g.ai.Complete(ctx, systemPrompt(theme), prompt, config.ChatMaxTokens, config.ChatTemperature)
	if err != nil || strings.TrimSpace(reply) == "" {
		idx := attempt - 1
		if idx >= len(fallbackHints) {
			idx = len(fallbackHints) - 1
		}
		return fallbackHints[idx]
	}
	return strings.TrimSpace(reply)
}

// ChatReply produces the mentor's next message in a conversation. Falls
// back to a themed encouraging reply on any failure.
func (g *ContentGenerator) ChatReply(ctx context.Context, theme models.ThemeProfile, history []models.ChatMessage, userMessage string) string {
	ctx, span := observability.TraceContentFunction(ctx, "ChatReply",
		observability.AttributeTheme(theme.ID),
		attribute.Int("chat.history_length", len(history)),
	)
	defer span.End()

	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(userMessage)
	b.WriteString("\nSvar som mentoren med maks tre sætninger, og stil gerne et opfølgende spørgsmål.")

	reply, err := g.ai.Complete(ctx, systemPrompt(theme), b.String(), config.ChatMaxTokens, config.ChatTemperature)
	if err != nil || strings.TrimSpace(reply) == "" {
		encouragement := "Det lyder spændende!"
		if len(theme.Encouragements) > 0 {
			encouragement = theme.Encouragements[0]
		}
		return fmt.Sprintf("%s Fortæl mig mere - hvad vil du gerne vide?", encouragement)
	}
	return strings.TrimSpace(reply)
}
