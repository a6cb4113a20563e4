// Package spam implements a Naive Bayes junk-mail filter. The
// classifier learns from explicit user feedback (junk / not junk) and
// scores freshly fetched messages so the sync engine can route
// detected junk to the Junk folder before persisting it.
package spam

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// alpha is the Laplace smoothing constant; it keeps unseen tokens from
// zeroing out a class probability.
const alpha = 1.0

// modelVersion identifies the on-disk model format.
const modelVersion = 1

// Stats describes the classifier's training state.
type Stats struct {
	SpamCount  int
	HamCount   int
	TokenCount int
}

// tokenCounts tracks how often one token was seen per class.
type tokenCounts struct {
	Spam int `json:"spam"`
	Ham  int `json:"ham"`
}

// modelFile is the JSON layout of a persisted model.
type modelFile struct {
	Version   int                     `json:"version"`
	SpamCount int                     `json:"spam_count"`
	HamCount  int                     `json:"ham_count"`
	Tokens    map[string]*tokenCounts `json:"tokens"`
}

// Classifier is a Naive Bayes model over tokenized message content.
// It is safe for concurrent use; sync runs for several accounts may
// score against one shared instance while the user trains it.
type Classifier struct {
	tokenizer *Tokenizer
	modelPath string
	logger    *logrus.Logger

	mu        sync.RWMutex
	spamCount int
	hamCount  int
	tokens    map[string]*tokenCounts
}

// NewClassifier creates an untrained classifier persisting its model
// at modelPath. A nil logger falls back to the standard logger.
func NewClassifier(modelPath string, logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Classifier{
		tokenizer: NewTokenizer(),
		modelPath: modelPath,
		logger:    logger,
		tokens:    make(map[string]*tokenCounts),
	}
}

// Stats returns the current training counters.
func (c *Classifier) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		SpamCount:  c.spamCount,
		HamCount:   c.hamCount,
		TokenCount: len(c.tokens),
	}
}

// IsTrained reports whether the classifier has seen at least one
// message of each class. Scores are meaningless before that.
func (c *Classifier) IsTrained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained()
}

func (c *Classifier) trained() bool {
	return c.spamCount > 0 && c.hamCount > 0
}

// Classify scores a message between 0 (ham) and 1 (spam). An untrained
// classifier, or a message yielding no tokens, scores a neutral 0.5.
func (c *Classifier) Classify(msg *model.Message) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained() {
		return 0.5
	}

	tokens := c.messageTokens(msg)
	if len(tokens) == 0 {
		return 0.5
	}

	logSpam := c.logProbability(tokens, true)
	logHam := c.logProbability(tokens, false)

	// Softmax with the max subtracted, which keeps the exponents in
	// representable range.
	maxLog := math.Max(logSpam, logHam)
	probSpam := math.Exp(logSpam - maxLog)
	probHam := math.Exp(logHam - maxLog)

	total := probSpam + probHam
	if total == 0 {
		return 0.5
	}
	return probSpam / total
}

// Train records a message as a spam or ham example. Each distinct
// token counts once per message.
func (c *Classifier) Train(msg *model.Message, isSpam bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isSpam {
		c.spamCount++
	} else {
		c.hamCount++
	}

	for _, tok := range uniqueTokens(c.messageTokens(msg)) {
		counts, ok := c.tokens[tok]
		if !ok {
			counts = &tokenCounts{}
			c.tokens[tok] = counts
		}
		if isSpam {
			counts.Spam++
		} else {
			counts.Ham++
		}
	}
}

// Untrain removes a previous training example, clamping every counter
// at zero. Used when the user reverses a junk / not-junk decision.
func (c *Classifier) Untrain(msg *model.Message, wasSpam bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wasSpam {
		c.spamCount = max(0, c.spamCount-1)
	} else {
		c.hamCount = max(0, c.hamCount-1)
	}

	for _, tok := range uniqueTokens(c.messageTokens(msg)) {
		counts, ok := c.tokens[tok]
		if !ok {
			continue
		}
		if wasSpam {
			counts.Spam = max(0, counts.Spam-1)
		} else {
			counts.Ham = max(0, counts.Ham-1)
		}
	}
}

// Reset discards all training data.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spamCount = 0
	c.hamCount = 0
	c.tokens = make(map[string]*tokenCounts)
}

// Save writes the model as JSON to the classifier's model path,
// creating parent directories as needed.
func (c *Classifier) Save() error {
	c.mu.RLock()
	data, err := json.Marshal(modelFile{
		Version:   modelVersion,
		SpamCount: c.spamCount,
		HamCount:  c.hamCount,
		Tokens:    c.tokens,
	})
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding spam model: %w", err)
	}

	dir := filepath.Dir(c.modelPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory %s: %w", dir, err)
	}
	if err := os.WriteFile(c.modelPath, data, 0o644); err != nil {
		return fmt.Errorf("writing spam model to %s: %w", c.modelPath, err)
	}
	return nil
}

// Load reads a previously saved model and reports whether one was
// loaded. A missing or unreadable file leaves the classifier
// untrained rather than failing.
func (c *Classifier) Load() bool {
	data, err := os.ReadFile(c.modelPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithError(err).Warn("could not read spam model")
		}
		return false
	}

	var m modelFile
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.WithError(err).Warn("spam model is corrupt, starting untrained")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.spamCount = m.SpamCount
	c.hamCount = m.HamCount
	c.tokens = m.Tokens
	if c.tokens == nil {
		c.tokens = make(map[string]*tokenCounts)
	}
	return true
}

// logProbability returns log P(class) + sum of log P(token|class) with
// Laplace smoothing. Caller holds at least a read lock.
func (c *Classifier) logProbability(tokens []string, isSpam bool) float64 {
	total := float64(c.spamCount + c.hamCount)

	classCount := float64(c.hamCount)
	if isSpam {
		classCount = float64(c.spamCount)
	}

	logProb := math.Log((classCount + alpha) / (total + 2*alpha))

	vocabSize := float64(len(c.tokens))
	for _, tok := range tokens {
		var count float64
		if counts, ok := c.tokens[tok]; ok {
			if isSpam {
				count = float64(counts.Spam)
			} else {
				count = float64(counts.Ham)
			}
		}
		logProb += math.Log((count + alpha) / (classCount + alpha*vocabSize))
	}

	return logProb
}

// messageTokens extracts the classification features of a message,
// preferring the plain-text body over HTML.
func (c *Classifier) messageTokens(msg *model.Message) []string {
	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}
	return c.tokenizer.Tokenize(msg.Subject, body, msg.Sender, nil)
}

// uniqueTokens deduplicates while preserving first-seen order.
func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
