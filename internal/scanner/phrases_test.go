package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePhrases(t *testing.T) {
	t.Run("both_categories", func(t *testing.T) {
		list, err := ParsePhrases([]byte("pressure:\n  - Wire The Money\n  - gift  cards\njargon:\n  - Escrow\n"))
		if err != nil {
			t.Fatalf("ParsePhrases: %v", err)
		}
		if len(list.Pressure) != 2 || list.Pressure[0] != "wire the money" || list.Pressure[1] != "gift cards" {
			t.Errorf("Pressure = %v", list.Pressure)
		}
		if len(list.Jargon) != 1 || list.Jargon[0] != "escrow" {
			t.Errorf("Jargon = %v", list.Jargon)
		}
	})

	t.Run("missing_category_uses_default", func(t *testing.T) {
		list, err := ParsePhrases([]byte("pressure: [\"pay today\"]\n"))
		if err != nil {
			t.Fatalf("ParsePhrases: %v", err)
		}
		if len(list.Jargon) != len(DefaultJargonPhrases) {
			t.Errorf("Jargon len = %d, want default %d", len(list.Jargon), len(DefaultJargonPhrases))
		}
	})

	t.Run("empty_file_is_defaults", func(t *testing.T) {
		list, err := ParsePhrases(nil)
		if err != nil {
			t.Fatalf("ParsePhrases: %v", err)
		}
		if len(list.Pressure) != len(DefaultPressurePhrases) {
			t.Errorf("Pressure len = %d, want %d", len(list.Pressure), len(DefaultPressurePhrases))
		}
	})

	t.Run("duplicates_dropped", func(t *testing.T) {
		list, err := ParsePhrases([]byte("pressure: [\"act now\", \"ACT NOW\"]\n"))
		if err != nil {
			t.Fatalf("ParsePhrases: %v", err)
		}
		if len(list.Pressure) != 1 {
			t.Errorf("Pressure = %v, want one entry", list.Pressure)
		}
	})

	t.Run("blank_entry_rejected", func(t *testing.T) {
		if _, err := ParsePhrases([]byte("pressure: [\"act now\", \"  \"]\n")); err == nil {
			t.Error("expected error for blank phrase")
		}
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		if _, err := ParsePhrases([]byte("pressure: [unterminated")); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

func TestLoadPhrasesMissingFile(t *testing.T) {
	if _, err := LoadPhrases(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultPhrasesCopy(t *testing.T) {
	list := DefaultPhrases()
	list.Pressure[0] = "changed"
	if DefaultPressurePhrases[0] != "act now" {
		t.Error("DefaultPhrases must not alias the package lists")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
