package assistant

import "pdpl_assistant/generator"

var scopeSchema = generator.MustSchema("scope_decision",
	"Whether the question concerns the Personal Data Protection Law.",
	[]byte(`{
  "type": "object",
  "properties": {
    "value": {"type": "boolean"}
  },
  "required": ["value"],
  "additionalProperties": false
}`))

var extractionSchema = generator.MustSchema("extraction_result",
	"Articles each with a list of paragraphs (integers) and matched sectors. Arrays may be empty.",
	[]byte(`{
  "type": "object",
  "properties": {
    "articles": {
      "type": "array",
      "description": "Article objects; each has 'article' (int) and 'paragraphs' (array of ints).",
      "items": {
        "type": "object",
        "properties": {
          "article": {"type": "integer", "minimum": 1},
          "paragraphs": {
            "type": "array",
            "items": {"type": "integer", "minimum": 1}
          }
        },
        "required": ["article", "paragraphs"],
        "additionalProperties": false
      }
    },
    "sectors": {
      "type": "array",
      "items": {
        "type": "string",
        "enum": [
          "Government & Public Sector",
          "Health & Medical Services",
          "Finance & Banking",
          "Telecommunications & Digital Infrastructure",
          "Cybersecurity & National Security",
          "Research, Education & Statistics"
        ]
      }
    }
  },
  "required": ["articles", "sectors"],
  "additionalProperties": false
}`))

var summarySchema = generator.MustSchema("question_summary",
	"A single self-contained question that folds in the relevant conversation history.",
	[]byte(`{
  "type": "object",
  "properties": {
    "summary": {"type": "string"}
  },
  "required": ["summary"],
  "additionalProperties": false
}`))

var translationSchema = generator.MustSchema("translation_only",
	"The translated text only.",
	[]byte(`{
  "type": "object",
  "properties": {
    "translation": {"type": "string"}
  },
  "required": ["translation"],
  "additionalProperties": false
}`))

var answerSchema = generator.MustSchema("response_with_citations",
	"An answer grounded in the supplied law passages with the passages it cites.",
	[]byte(`{
  "type": "object",
  "properties": {
    "answer": {"type": "string"},
    "citations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "article": {"type": "integer", "minimum": 1},
          "paragraph": {"type": "integer", "minimum": 1},
          "text": {"type": "string"}
        },
        "required": ["article", "paragraph", "text"],
        "additionalProperties": false
      }
    }
  },
  "required": ["answer", "citations"],
  "additionalProperties": false
}`))

// Schema names, for scripting generator.MockLLM in tests and tools.
var (
	ScopeSchemaName       = scopeSchema.Name
	ExtractionSchemaName  = extractionSchema.Name
	SummarySchemaName     = summarySchema.Name
	TranslationSchemaName = translationSchema.Name
	AnswerSchemaName      = answerSchema.Name
)
