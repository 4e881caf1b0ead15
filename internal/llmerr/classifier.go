package llmerr

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// historyCap bounds the classifier's FIFO error history (spec.md §4.11).
const historyCap = 1000

// SuggestedAction is the classifier's deterministic recommendation for
// how a caller should respond to an error of a given kind.
type SuggestedAction struct {
	Action        string
	RetryDelay    time.Duration
	RetryAttempts int
	Details       string
}

var noAction = SuggestedAction{Action: "no_action"}

// Pattern tracks the observed behaviour of one error Kind over time.
type Pattern struct {
	Count                 int
	FirstOccurrence       time.Time
	LastOccurrence        time.Time
	FrequencyPerMinute    float64
	RecoveryAttempts      int
	SuccessfulRecoveries  int
	SuggestedAction       SuggestedAction
}

// HistoryEntry is one record in the classifier's bounded ring buffer.
type HistoryEntry struct {
	Kind    Kind
	Message string
	At      time.Time
}

// RecoveryStrategy attempts to recover from an error of a kind it
// registered for. CanRecover is consulted before Recover is invoked.
type RecoveryStrategy interface {
	CanRecover(err error) bool
	Recover(ctx context.Context, err error) error
}

// Classifier implements C11: it classifies errors into a Kind, tracks
// per-kind patterns, derives a SuggestedAction, and delegates to a
// registered RecoveryStrategy when one exists and reports it can recover.
type Classifier struct {
	mu         sync.Mutex
	patterns   map[Kind]*Pattern
	history    []HistoryEntry
	historyPos int
	strategies map[Kind]RecoveryStrategy
	logger     *slog.Logger
	now        func() time.Time
}

// NewClassifier constructs a Classifier. logger defaults to
// slog.Default() when nil.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		patterns:   make(map[Kind]*Pattern),
		strategies: make(map[Kind]RecoveryStrategy),
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterStrategy installs a recovery strategy for a given Kind,
// replacing any previously registered strategy for that Kind.
func (c *Classifier) RegisterStrategy(kind Kind, strategy RecoveryStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.strategies[kind] = strategy
}

// Classify maps err to a Kind. Errors produced by this package's
// constructors carry their Kind directly; anything else classifies as
// KindUnknown.
func Classify(err error) Kind {
	return KindOf(err)
}

// HandleError classifies err, records it in the bounded history, updates
// the kind's Pattern, and attempts recovery via a registered strategy.
// It returns the (possibly nil, on successful recovery) error the caller
// should propagate.
func (c *Classifier) HandleError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	kind := Classify(err)

	c.mu.Lock()
	c.record(kind, err)
	pattern := c.patterns[kind]
	strategy := c.strategies[kind]
	c.mu.Unlock()

	if strategy != nil && strategy.CanRecover(err) {
		c.mu.Lock()
		pattern.RecoveryAttempts++
		c.mu.Unlock()

		if recErr := strategy.Recover(ctx, err); recErr == nil {
			c.mu.Lock()
			pattern.SuccessfulRecoveries++
			c.mu.Unlock()

			c.logger.Info("recovered from error", "kind", kind.String())

			return nil
		}
	}

	return err
}

// record appends to the history ring buffer and updates the pattern for
// kind. Caller must hold c.mu.
func (c *Classifier) record(kind Kind, err error) {
	now := c.now()

	entry := HistoryEntry{Kind: kind, Message: err.Error(), At: now}
	if len(c.history) < historyCap {
		c.history = append(c.history, entry)
	} else {
		c.history[c.historyPos] = entry
		c.historyPos = (c.historyPos + 1) % historyCap
	}

	p, ok := c.patterns[kind]
	if !ok {
		p = &Pattern{FirstOccurrence: now}
		c.patterns[kind] = p
	}

	p.Count++
	p.LastOccurrence = now

	elapsedMin := now.Sub(p.FirstOccurrence).Minutes()
	if elapsedMin > 0 {
		p.FrequencyPerMinute = float64(p.Count) / elapsedMin
	} else {
		p.FrequencyPerMinute = float64(p.Count)
	}

	p.SuggestedAction = suggestedActionFor(kind, p.FrequencyPerMinute)
}

// Pattern returns a copy of the tracked pattern for kind, or the zero
// value if no error of that kind has been observed.
func (c *Classifier) Pattern(kind Kind) Pattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.patterns[kind]; ok {
		return *p
	}

	return Pattern{}
}

// History returns a snapshot of the recorded error history, oldest
// first.
func (c *Classifier) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) < historyCap {
		out := make([]HistoryEntry, len(c.history))
		copy(out, c.history)

		return out
	}

	out := make([]HistoryEntry, historyCap)
	copy(out, c.history[c.historyPos:])
	copy(out[historyCap-c.historyPos:], c.history[:c.historyPos])

	return out
}

// suggestedActionFor implements the deterministic policy table of
// spec.md §4.11.
func suggestedActionFor(kind Kind, frequencyPerMinute float64) SuggestedAction {
	switch kind {
	case KindRateLimitExceeded:
		if frequencyPerMinute > 10 {
			return SuggestedAction{Action: "switch_provider", Details: "rate limit errors exceed 10/min"}
		}

		return SuggestedAction{Action: "retry", RetryDelay: 60 * time.Second, RetryAttempts: 3}
	case KindNetwork:
		return SuggestedAction{Action: "retry", RetryDelay: 2 * time.Second, RetryAttempts: 5}
	case KindAuthentication:
		return SuggestedAction{Action: "check_credentials"}
	case KindProvider:
		return SuggestedAction{Action: "switch_provider", Details: "try an alternative provider"}
	case KindTimeout:
		return SuggestedAction{Action: "retry", RetryDelay: 5 * time.Second, RetryAttempts: 3}
	case KindContextLengthExceeded:
		return SuggestedAction{Action: "reduce_request_size", Details: "cap request around 1000 fewer tokens"}
	case KindModelNotFound:
		return SuggestedAction{Action: "contact_support"}
	default:
		return noAction
	}
}
