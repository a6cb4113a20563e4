package spam

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

func testMessage(subject, body, sender string) *model.Message {
	return &model.Message{
		Subject:  subject,
		BodyText: body,
		Sender:   sender,
	}
}

// trainedClassifier returns a classifier trained on three spam and
// three ham examples.
func trainedClassifier(t *testing.T, path string) *Classifier {
	t.Helper()

	c := NewClassifier(path, nil)

	c.Train(testMessage("Free money now", "click here to claim free cash prize", "scam@spam.example.com"), true)
	c.Train(testMessage("You won the lottery", "claim your free prize now, click here", "win@lotto.example.net"), true)
	c.Train(testMessage("Cheap meds free shipping", "click here for free meds", "meds@pills.example.org"), true)

	c.Train(testMessage("Team meeting notes", "please review the attached meeting notes before friday", "boss@work.example.com"), false)
	c.Train(testMessage("Quarterly report", "the quarterly report numbers look good, see attachment", "cfo@work.example.com"), false)
	c.Train(testMessage("Lunch on friday", "are we still on for lunch friday at noon", "pal@work.example.com"), false)

	return c
}

func TestClassifyUntrained(t *testing.T) {
	c := NewClassifier(filepath.Join(t.TempDir(), "model.json"), nil)

	if got := c.Classify(testMessage("anything", "at all", "a@b.example.com")); got != 0.5 {
		t.Errorf("Classify() = %v for untrained classifier, want 0.5", got)
	}

	// One class alone is not enough to score against.
	c.Train(testMessage("Free money", "click here", "x@spam.example.com"), true)
	if c.IsTrained() {
		t.Error("IsTrained() = true with only spam examples")
	}
	if got := c.Classify(testMessage("Free money", "click here", "x@spam.example.com")); got != 0.5 {
		t.Errorf("Classify() = %v with only spam examples, want 0.5", got)
	}
}

func TestClassifyNoTokens(t *testing.T) {
	c := trainedClassifier(t, filepath.Join(t.TempDir(), "model.json"))

	if got := c.Classify(testMessage("", "", "")); got != 0.5 {
		t.Errorf("Classify() = %v for empty message, want 0.5", got)
	}
}

func TestClassifySeparatesSpamFromHam(t *testing.T) {
	c := trainedClassifier(t, filepath.Join(t.TempDir(), "model.json"))

	spamScore := c.Classify(testMessage(
		"Free prize", "click here to claim your free prize", "deals@spam.example.com",
	))
	hamScore := c.Classify(testMessage(
		"Meeting notes", "review the meeting notes", "boss@work.example.com",
	))

	if spamScore <= 0.7 {
		t.Errorf("Classify(spam) = %v, want > 0.7", spamScore)
	}
	if hamScore >= 0.3 {
		t.Errorf("Classify(ham) = %v, want < 0.3", hamScore)
	}
	if spamScore <= hamScore {
		t.Errorf("Classify(spam) = %v not above Classify(ham) = %v", spamScore, hamScore)
	}
}

func TestUntrainReversesTraining(t *testing.T) {
	c := NewClassifier(filepath.Join(t.TempDir(), "model.json"), nil)
	msg := testMessage("Free money", "click here now", "x@spam.example.com")

	c.Train(msg, true)
	if got := c.Stats(); got.SpamCount != 1 || got.TokenCount == 0 {
		t.Fatalf("Stats() after train = %+v, want SpamCount 1 and tokens", got)
	}

	c.Untrain(msg, true)
	if got := c.Stats(); got.SpamCount != 0 {
		t.Errorf("Stats().SpamCount after untrain = %d, want 0", got.SpamCount)
	}
	if c.IsTrained() {
		t.Error("IsTrained() = true after reversing the only example")
	}

	// Counters clamp at zero on repeated untrain.
	c.Untrain(msg, true)
	if got := c.Stats(); got.SpamCount != 0 || got.HamCount != 0 {
		t.Errorf("Stats() after repeated untrain = %+v, want zero counts", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model.json")
	c := trainedClassifier(t, path)

	probe := testMessage("Free prize", "click here to claim your free prize", "deals@spam.example.com")
	want := c.Classify(probe)

	if err := c.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewClassifier(path, nil)
	if !loaded.Load() {
		t.Fatal("Load() = false, want true")
	}

	if got, wantStats := loaded.Stats(), c.Stats(); got != wantStats {
		t.Errorf("Stats() after load = %+v, want %+v", got, wantStats)
	}
	if got := loaded.Classify(probe); math.Abs(got-want) > 1e-12 {
		t.Errorf("Classify() after load = %v, want %v", got, want)
	}
}

func TestLoadMissingModel(t *testing.T) {
	c := NewClassifier(filepath.Join(t.TempDir(), "missing.json"), nil)

	if c.Load() {
		t.Error("Load() = true for missing model file")
	}
	if c.IsTrained() {
		t.Error("IsTrained() = true after failed load")
	}
}

func TestLoadCorruptModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("not a model {"), 0o644); err != nil {
		t.Fatalf("writing corrupt model: %v", err)
	}

	c := NewClassifier(path, nil)
	if c.Load() {
		t.Error("Load() = true for corrupt model file")
	}
}

func TestReset(t *testing.T) {
	c := trainedClassifier(t, filepath.Join(t.TempDir(), "model.json"))

	c.Reset()

	if c.IsTrained() {
		t.Error("IsTrained() = true after Reset()")
	}
	if got := c.Stats(); got != (Stats{}) {
		t.Errorf("Stats() after Reset() = %+v, want zero", got)
	}
}
