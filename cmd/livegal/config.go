package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type config struct {
	TranscriptionURL string `env:"LIVEGAL_ASR_URL" envDefault:"ws://localhost:8000/ws_asr"`
	NarrativeURL     string `env:"LIVEGAL_GPT_URL" envDefault:"http://localhost:8000/gpt"`
	ClassifierURL    string `env:"LIVEGAL_CLASSIFIER_URL" envDefault:"http://localhost:8000/yolo_gender"`

	FrontCameraDevice string `env:"LIVEGAL_FRONT_CAMERA" envDefault:"/dev/video0"`
	BackCameraDevice  string `env:"LIVEGAL_BACK_CAMERA" envDefault:"/dev/video1"`

	GuardianTarget    string        `env:"LIVEGAL_GUARDIAN_TARGET" envDefault:"female"`
	GuardianThreshold float64       `env:"LIVEGAL_GUARDIAN_THRESHOLD" envDefault:"0.7"`
	GuardianPeriod    time.Duration `env:"LIVEGAL_GUARDIAN_PERIOD" envDefault:"3s"`

	RevealInterval time.Duration `env:"LIVEGAL_REVEAL_INTERVAL" envDefault:"32ms"`
}

func loadConfig() (config, error) {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
