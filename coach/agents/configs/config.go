package configs

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"essaycoach/coach/utils/logging"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed tutor.yaml
var defaultProfile []byte

// ModelParams are the sampling options sent with every completion.
type ModelParams struct {
	Name             string  `yaml:"name"`
	Temperature      float32 `yaml:"temperature"`
	PresencePenalty  float32 `yaml:"presence_penalty"`
	FrequencyPenalty float32 `yaml:"frequency_penalty"`
	MaxTokens        int     `yaml:"max_tokens"`
}

// TutorProfile is the fixed pedagogy a session runs under: the hidden system
// instruction, the opening greeting and the model parameters.
type TutorProfile struct {
	Name         string      `yaml:"name"`
	SystemPrompt string      `yaml:"system_prompt"`
	Greeting     string      `yaml:"greeting"`
	Model        ModelParams `yaml:"model"`
}

// LoadProfile reads the profile at path, or the embedded essay-tutor profile
// when path is empty.
func LoadProfile(path string) (*TutorProfile, error) {
	data := defaultProfile
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			logging.AppLogger.Error("Profile load error", zap.String("path", path), zap.Error(err))
			return nil, fmt.Errorf("read tutor profile: %w", err)
		}
		data = b
	}
	return ParseProfile(data)
}

func ParseProfile(data []byte) (*TutorProfile, error) {
	var p TutorProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse tutor profile: %w", err)
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	p.Greeting = strings.TrimSpace(p.Greeting)
	if p.SystemPrompt == "" || p.Greeting == "" {
		return nil, errors.New("tutor profile needs system_prompt and greeting")
	}
	if p.Model.Name == "" {
		p.Model.Name = "gpt-4o-mini"
	}
	if p.Model.MaxTokens <= 0 {
		p.Model.MaxTokens = 150
	}
	return &p, nil
}
