package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	session "github.com/livegal/livegal-core/core"
	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/media/gstreamer"
	"github.com/livegal/livegal-core/core/media/miniaudio"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
	"github.com/livegal/livegal-core/core/transcription/livegal"
	"github.com/livegal/livegal-core/core/vision"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "livegal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	audioSource, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to initialize audio capture: %w", err)
	}
	defer audioSource.Close()

	camera, err := gstreamer.NewCamera(map[media.FacingMode]string{
		media.FacingFront: cfg.FrontCameraDevice,
		media.FacingBack:  cfg.BackCameraDevice,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize camera: %w", err)
	}

	s := session.New(
		session.WithVideoSource(camera),
		session.WithAudioSource(audioSource),
		session.WithTranscriptionClient(livegal.NewClient(cfg.TranscriptionURL)),
		session.WithNarrativeClient(narrative.NewClient(cfg.NarrativeURL)),
		session.WithClassifierClient(vision.NewClient(cfg.ClassifierURL)),
		session.WithGuardianPolicy(session.GuardianPolicy{
			TargetClass: cfg.GuardianTarget,
			Threshold:   cfg.GuardianThreshold,
			Period:      cfg.GuardianPeriod,
		}),
		session.WithRevealInterval(cfg.RevealInterval),
	)

	program := tea.NewProgram(newModel(s, media.FacingFront), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		s.Run(ctx,
			session.WithStateChangedCallback(func(state session.State) {
				program.Send(stateChangedMsg{state})
			}),
			session.WithDialogueCallback(func(visible string) {
				program.Send(dialogueMsg{visible})
			}),
			session.WithSpeakerChangedCallback(func(speaker string) {
				program.Send(speakerChangedMsg{speaker})
			}),
			session.WithOptionsChangedCallback(func(options []narrative.Option) {
				program.Send(optionsChangedMsg{options})
			}),
			session.WithAlertCallback(func(result vision.Result) {
				program.Send(alertMsg{result})
			}),
			session.WithAlertDismissedCallback(func() {
				program.Send(alertClearedMsg{})
			}),
			session.WithChannelStatusCallback(func(status transcription.Status) {
				program.Send(channelStatusMsg{status})
			}),
			session.WithDeviceErrorCallback(func(err error) {
				program.Send(deviceErrorMsg{err})
			}),
			session.WithFacingChangedCallback(func(facing media.FacingMode) {
				program.Send(facingChangedMsg{facing})
			}),
		)
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run interface: %w", err)
	}

	cancel()
	s.Close()
	return nil
}
