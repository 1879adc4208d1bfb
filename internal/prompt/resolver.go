// Package prompt assembles system/user prompt pairs from stored templates.
// The resolver's job is assembly, not verification: structural constraints
// ("no title repetition", "no H1 tags") live as instructions inside the
// prompt text, and any downstream verification is a separate concern.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

// Resolver looks up a template by feature key and substitutes variables.
// A missing custom template degrades to the built-in default for that key —
// resolution never fails outright, it only warns.
type Resolver struct {
	templates storage.TemplateRepository
	logger    *zap.Logger
}

// NewResolver creates a Resolver backed by the template store.
func NewResolver(templates storage.TemplateRepository, logger *zap.Logger) *Resolver {
	return &Resolver{templates: templates, logger: logger}
}

// Resolve returns the system and user prompts for featureKey with variables
// substituted. Substitution is literal placeholder replacement: each declared
// variable's `{name}` token is replaced with the supplied value, or with the
// empty string when the bag omits it. Undeclared placeholders are left
// verbatim so malformed templates stay visible in output.
func (r *Resolver) Resolve(ctx context.Context, featureKey string, vars map[string]string) (systemPrompt, userPrompt string) {
	template := r.lookup(ctx, featureKey)

	pairs := make([]string, 0, len(template.Variables)*2)
	for _, name := range template.Variables {
		pairs = append(pairs, "{"+name+"}", vars[name])
	}
	replacer := strings.NewReplacer(pairs...)

	return replacer.Replace(template.SystemPrompt), replacer.Replace(template.UserPrompt)
}

func (r *Resolver) lookup(ctx context.Context, featureKey string) *model.PromptTemplate {
	template, err := r.templates.GetActiveByKey(ctx, featureKey)
	if err == nil {
		return template
	}

	// Missing or unreadable custom template degrades to default behavior.
	// Surfaced at warn level rather than swallowed — a silent fallback can
	// mask configuration errors.
	r.logger.Warn("no custom prompt template, using built-in default",
		zap.String("feature_key", featureKey),
		zap.Error(err),
	)

	if def, ok := defaultTemplates[featureKey]; ok {
		return def
	}
	return defaultTemplates[FeatureArticle]
}

// Variables builds the variable bag for article generation from one keyword
// and the job's settings. Option flags become prompt instructions here —
// the single place where settings turn into text.
func Variables(keyword string, settings model.GenerationSettings) map[string]string {
	vars := map[string]string{
		"keyword":  keyword,
		"language": settings.Language,
		"tone":     settings.Tone,
		"length":   lengthInstruction(settings.Length),
	}

	if settings.OutlineOption == model.OutlineCustom && settings.CustomOutline != "" {
		vars["outline_instructions"] = "Follow this outline exactly:\n" + settings.CustomOutline
	} else {
		vars["outline_instructions"] = "Structure the article with a logical outline of your own design."
	}

	if settings.AutoInsertImages {
		vars["image_instructions"] = fmt.Sprintf(
			"Insert up to %d image placeholders as <img> tags with descriptive alt text where illustrations would help.",
			settings.MaxImages)
	} else {
		vars["image_instructions"] = "Do not include any images."
	}

	if settings.UseGoogleSearch {
		vars["search_instructions"] = "Ground factual claims in current, verifiable information."
	} else {
		vars["search_instructions"] = ""
	}

	return vars
}

func lengthInstruction(length model.LengthClass) string {
	switch length {
	case model.LengthShort:
		return "around 600 words"
	case model.LengthLong:
		return "around 2500 words"
	default:
		return "around 1200 words"
	}
}
