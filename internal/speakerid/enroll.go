package speakerid

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/banddude/voiceid/internal/vectorindex"
)

const (
	duplicateCheckTopK = 5

	// Manual enrollment uses a stricter near-duplicate bar than auto-update:
	// an operator deliberately adding a sample should only be stopped by a
	// near-exact copy.
	manualDuplicateThreshold = 0.98
)

// Enroller is the auto-update gatekeeper: the only component that writes new
// reference vectors outside explicit manual enrollment. The duplicate
// check-then-insert runs under a per-speaker lock so two conversations cannot
// slip near-identical vectors past the guard concurrently.
type Enroller struct {
	index vectorindex.Index
	log   *logrus.Logger

	mu sync.Mutex
	// locks holds one mutex per speaker name ever enrolled and is never
	// pruned; entries are a few dozen bytes each.
	locks map[string]*sync.Mutex
}

func NewEnroller(index vectorindex.Index, log *logrus.Logger) *Enroller {
	if log == nil {
		log = logrus.New()
	}
	return &Enroller{index: index, log: log, locks: make(map[string]*sync.Mutex)}
}

func (e *Enroller) speakerLock(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[name]
	if !ok {
		l = &sync.Mutex{}
		e.locks[name] = l
	}
	return l
}

// MaybeEnroll adds a confidently-matched embedding to the reference set.
// Returns false without error when the confidence is below the threshold or
// the embedding is a near-duplicate of an existing reference; both are normal
// outcomes, not failures.
func (e *Enroller) MaybeEnroll(ctx context.Context, embedding []float32, speakerName, sourceFile string, confidence, threshold float64) (bool, error) {
	log := e.log.WithFields(logrus.Fields{
		"speaker":    speakerName,
		"confidence": confidence,
	})

	if confidence < threshold {
		log.WithField("threshold", threshold).Debug("auto-update: confidence below threshold, skipping")
		return false, nil
	}

	l := e.speakerLock(speakerName)
	l.Lock()
	defer l.Unlock()

	dup, dupID, err := e.isDuplicate(ctx, embedding, DuplicateSimilarityThreshold)
	if err != nil {
		return false, err
	}
	if dup {
		log.WithField("existing_id", dupID).Debug("auto-update: near-duplicate embedding, skipping")
		return false, nil
	}

	id := NewReferenceID(speakerName)
	err = e.index.Upsert(ctx, vectorindex.Record{
		ID:     id,
		Vector: embedding,
		Metadata: vectorindex.Metadata{
			SpeakerName: speakerName,
			SourceFile:  sourceFile,
			AutoUpdated: true,
			Confidence:  confidence,
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	log.WithField("reference_id", id).Info("auto-update: enrolled new reference embedding")
	return true, nil
}

// Enroll adds a reference embedding on an operator's behalf. Only near-exact
// copies are rejected.
func (e *Enroller) Enroll(ctx context.Context, embedding []float32, speakerName, sourceFile string, isShort bool) (string, bool, error) {
	l := e.speakerLock(speakerName)
	l.Lock()
	defer l.Unlock()

	dup, dupID, err := e.isDuplicate(ctx, embedding, manualDuplicateThreshold)
	if err != nil {
		return "", false, err
	}
	if dup {
		return dupID, false, nil
	}

	id := NewReferenceID(speakerName)
	err = e.index.Upsert(ctx, vectorindex.Record{
		ID:     id,
		Vector: embedding,
		Metadata: vectorindex.Metadata{
			SpeakerName:   speakerName,
			SourceFile:    sourceFile,
			IsShortSample: isShort,
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (e *Enroller) isDuplicate(ctx context.Context, embedding []float32, threshold float64) (bool, string, error) {
	matches, err := e.index.Query(ctx, embedding, duplicateCheckTopK, nil)
	if err != nil {
		return false, "", err
	}
	if len(matches) > 0 && matches[0].Score >= threshold {
		return true, matches[0].ID, nil
	}
	return false, "", nil
}
