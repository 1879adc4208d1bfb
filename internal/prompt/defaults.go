package prompt

import "github.com/fleveque/article-service/internal/model"

// Feature keys known to the pipeline.
const (
	FeatureArticle = "article_generation"
)

// defaultTemplates are the compiled-in fallbacks used when the template
// store has no active row for a feature key.
var defaultTemplates = map[string]*model.PromptTemplate{
	FeatureArticle: {
		FeatureKey: FeatureArticle,
		SystemPrompt: `You are a professional content writer producing publication-ready articles in HTML.

Rules:
- Output valid HTML body content only: <h2>, <h3>, <p>, <ul>, <ol>, <li> tags.
- Never use <h1> tags — the title is rendered separately.
- Do not repeat the article title inside the body.
- No markdown, no code fences, no commentary about the task.`,
		UserPrompt: `Write an article about "{keyword}".

Language: {language}
Tone: {tone}
Target length: {length}

{outline_instructions}
{image_instructions}
{search_instructions}`,
		Variables: model.StringList{
			"keyword", "language", "tone", "length",
			"outline_instructions", "image_instructions", "search_instructions",
		},
		Active: true,
	},
}
