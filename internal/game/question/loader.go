package question

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlBank is the top-level YAML structure of a question file.
type yamlBank struct {
	Questions []yamlQuestion `yaml:"questions"`
}

// yamlQuestion is the YAML representation of a question. Answer is 1-based in
// files so authors can count options naturally.
type yamlQuestion struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Answer  int32    `yaml:"answer"`
}

// LoadFile reads and validates a YAML question file.
//
// Precondition: path must point to a YAML file with a top-level "questions" list.
// Postcondition: Returns every question, each validated, or the first error.
func LoadFile(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question file %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates questions from YAML bytes.
//
// Postcondition: Returns every question, each validated, or the first error.
func LoadBytes(data []byte) ([]Question, error) {
	var file yamlBank
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing question YAML: %w", err)
	}

	out := make([]Question, 0, len(file.Questions))
	for i, yq := range file.Questions {
		if len(yq.Options) != OptionCount {
			return nil, fmt.Errorf("question %d: want %d options, got %d", i+1, OptionCount, len(yq.Options))
		}
		q := Question{Prompt: yq.Prompt, Answer: yq.Answer - 1}
		copy(q.Options[:], yq.Options)
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}
