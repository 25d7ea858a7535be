package postgres

import (
	"os"
	"path/filepath"
	"testing"

	"reading-quiz-service/internal/domain"
)

const bankYAML = `
qcm_questions:
  - _id: mc-1
    question: What colour is the sky?
    option A: Green
    option_B: Blue
    correct_option: b
input_questions:
  - question: Who wrote the letter?
    input_text: Anna wrote a letter to her aunt.
audio_questions:
  - texte: The quick brown fox.
    niveau: A1
`

func TestLoadBank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(bankYAML), 0o600); err != nil {
		t.Fatalf("write bank: %v", err)
	}

	bank, err := LoadBank(path)
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	if len(bank.MultipleChoice) != 1 || len(bank.FreeText) != 1 || len(bank.Audio) != 1 {
		t.Fatalf("unexpected bank sizes: %+v", bank)
	}

	item := domain.NormalizeMultipleChoice(bank.MultipleChoice[0])
	if item.ID != "mc-1" || item.CorrectLabel != "B" || len(item.Choices) != 2 {
		t.Fatalf("unexpected normalized item: %+v", item)
	}
	if got := domain.NormalizeAudio(bank.Audio[0]); got.Passage != "The quick brown fox." || got.Level != "A1" {
		t.Fatalf("unexpected audio item: %+v", got)
	}
}

func TestSeedID(t *testing.T) {
	if got := seedID(domain.Document{"_id": "x"}, MultipleChoiceTable, 0); got != "x" {
		t.Fatalf("expected explicit id, got %q", got)
	}
	if got := seedID(domain.Document{"id": 7}, FreeTextTable, 0); got != "7" {
		t.Fatalf("expected numeric id, got %q", got)
	}
	if got := seedID(domain.Document{}, AudioTable, 2); got != "audio_questions-3" {
		t.Fatalf("expected generated id, got %q", got)
	}
}

func TestLoadBankMissingFile(t *testing.T) {
	if _, err := LoadBank(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing bank")
	}
}
