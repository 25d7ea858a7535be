package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Document is a schema-flexible record as stored in the question collections.
type Document map[string]any

// NormalizeMultipleChoice converts a stored multiple-choice document into the fixed item shape.
// Any string field whose key starts with "option" (case-insensitive) becomes a choice labeled
// by the key's last space- or underscore-separated token, so "option A", "option_b" and
// "Option C" yield A, B and C. Choices are ordered by label.
func NormalizeMultipleChoice(doc Document) MultipleChoiceItem {
	item := MultipleChoiceItem{
		ID:           documentID(doc),
		Prompt:       doc.str("question"),
		SourceText:   doc.str("source_text"),
		CorrectLabel: strings.ToUpper(strings.TrimSpace(doc.str("correct_option"))),
	}
	for key, value := range doc {
		text, ok := value.(string)
		if !ok || !strings.HasPrefix(strings.ToLower(key), "option") {
			continue
		}
		label := choiceLabel(key)
		if label == "" {
			continue
		}
		item.Choices = append(item.Choices, Choice{Label: label, Text: text})
	}
	sort.Slice(item.Choices, func(i, j int) bool {
		return item.Choices[i].Label < item.Choices[j].Label
	})
	return item
}

// NormalizeFreeText converts a stored free-text document.
func NormalizeFreeText(doc Document) FreeTextItem {
	return FreeTextItem{
		ID:       documentID(doc),
		Question: doc.str("question"),
		Passage:  doc.str("input_text"),
	}
}

// NormalizeAudio converts a stored audio-reading document.
func NormalizeAudio(doc Document) AudioItem {
	return AudioItem{
		ID:         documentID(doc),
		Passage:    doc.str("texte"),
		Level:      doc.str("niveau"),
		Difficulty: doc.str("difficulty"),
	}
}

func choiceLabel(key string) string {
	fields := strings.FieldsFunc(key, func(r rune) bool { return r == ' ' || r == '_' })
	if len(fields) < 2 {
		return ""
	}
	return strings.ToUpper(fields[len(fields)-1])
}

func documentID(doc Document) string {
	for _, key := range []string{"_id", "id"} {
		switch v := doc[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func (d Document) str(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}
