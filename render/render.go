// Package render formats answers and their citations for people.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"pdpl_assistant/assistant"
)

// Reference formats one citation as "Article N, Paragraph M: text".
func Reference(c assistant.Citation) string {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return fmt.Sprintf("Article %d, Paragraph %d", c.Article, c.Paragraph)
	}
	return fmt.Sprintf("Article %d, Paragraph %d: %s", c.Article, c.Paragraph, text)
}

// References formats citations in order.
func References(citations []assistant.Citation) []string {
	out := make([]string, len(citations))
	for i, c := range citations {
		out[i] = Reference(c)
	}
	return out
}

var referencesHeading = map[assistant.Language]string{
	assistant.English: "References",
	assistant.Arabic:  "المراجع",
}

// Markdown renders the answer followed by a references list when there are citations.
func Markdown(res assistant.AnswerResult, lang assistant.Language) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(res.Answer))
	if len(res.Citations) == 0 {
		b.WriteString("\n")
		return b.String()
	}
	heading, ok := referencesHeading[lang]
	if !ok {
		heading = referencesHeading[assistant.English]
	}
	b.WriteString("\n\n**")
	b.WriteString(heading)
	b.WriteString("**\n\n")
	for _, ref := range References(res.Citations) {
		b.WriteString("- ")
		b.WriteString(ref)
		b.WriteString("\n")
	}
	return b.String()
}

// HTML converts Markdown to HTML. Raw HTML in the input is not passed through.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// AnswerHTML renders res as an HTML fragment, right-to-left for Arabic.
func AnswerHTML(res assistant.AnswerResult, lang assistant.Language) (string, error) {
	html, err := HTML(Markdown(res, lang))
	if err != nil {
		return "", err
	}
	if lang == assistant.Arabic {
		return `<div dir="rtl">` + "\n" + html + "</div>\n", nil
	}
	return html, nil
}
