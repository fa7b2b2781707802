package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/vision"
)

const (
	defaultGuardianPeriod    = 3 * time.Second
	defaultGuardianTarget    = "female"
	defaultGuardianThreshold = 0.7
	guardianJPEGQuality      = 80
)

// GuardianPolicy decides when a classification becomes an alert.
type GuardianPolicy struct {
	// TargetClass is the expected classification; anything else can
	// alert.
	TargetClass string
	// Threshold is the confidence a deviation must exceed to alert.
	// Zero is a valid policy: any reported deviation alerts.
	Threshold float64
	// Period is the polling interval.
	Period time.Duration
}

func defaultGuardianPolicy() GuardianPolicy {
	return GuardianPolicy{
		TargetClass: defaultGuardianTarget,
		Threshold:   defaultGuardianThreshold,
		Period:      defaultGuardianPeriod,
	}
}

// guardian polls the current video frame on a fixed period and raises
// at most one visible alert at a time. It runs independently of the
// session state machine and never blocks it.
type guardian struct {
	classifier ClassifierClient
	frame      func() (media.Frame, error)
	policy     GuardianPolicy

	mu             sync.Mutex
	warningVisible bool
	lastAlertAt    time.Time

	onAlert func(result vision.Result)
}

func newGuardian(classifier ClassifierClient, frame func() (media.Frame, error), policy GuardianPolicy) *guardian {
	if policy.Period <= 0 {
		policy.Period = defaultGuardianPeriod
	}
	if policy.TargetClass == "" {
		policy.TargetClass = defaultGuardianTarget
	}

	return &guardian{
		classifier: classifier,
		frame:      frame,
		policy:     policy,
		onAlert:    func(vision.Result) {},
	}
}

func (g *guardian) SetAlertCallback(onAlert func(result vision.Result)) {
	if g != nil && onAlert != nil {
		g.onAlert = onAlert
	}
}

func (g *guardian) isConfigured() bool {
	return g != nil && g.classifier != nil && g.frame != nil
}

// Run polls until the context is cancelled. Tick failures are logged
// and swallowed; the next tick simply tries again.
func (g *guardian) Run(ctx context.Context) {
	if !g.isConfigured() {
		return
	}

	ticker := time.NewTicker(g.policy.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *guardian) tick(ctx context.Context) {
	frame, err := g.frame()
	if err != nil {
		if !errors.Is(err, ErrNoActiveVideo) {
			logger.Debug("guardian skipping tick", "error", err)
		}
		return
	}

	payload, err := frame.EncodeJPEG(guardianJPEGQuality)
	if err != nil {
		logger.Warn("guardian failed to encode frame", "error", err)
		return
	}

	result, err := g.classifier.Classify(ctx, payload)
	if err != nil {
		logger.Warn("guardian classification failed", "error", err)
		return
	}

	g.apply(*result)
}

// apply implements the alert policy: alert iff the class deviates from
// the target with enough confidence and no warning is already visible.
func (g *guardian) apply(result vision.Result) {
	g.mu.Lock()
	shouldAlert := result.Class != g.policy.TargetClass &&
		result.Confidence > g.policy.Threshold &&
		!g.warningVisible
	if shouldAlert {
		g.warningVisible = true
		g.lastAlertAt = time.Now()
	}
	g.mu.Unlock()

	if shouldAlert {
		logger.Info("guardian alert raised",
			"class", result.Class,
			"confidence", result.Confidence,
		)
		g.onAlert(result)
	}
}

// Dismiss clears the visible warning; subsequent ticks may alert again.
func (g *guardian) Dismiss() {
	g.mu.Lock()
	g.warningVisible = false
	g.mu.Unlock()
}

// WarningVisible reports whether an alert is currently showing.
func (g *guardian) WarningVisible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.warningVisible
}
