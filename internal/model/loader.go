package model

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

var errLoaderClosed = errors.New("loader closed")

// Classifier is a loaded, read-only model handle.
type Classifier interface {
	Predict(input []float32) (*Prediction, error)
	Contract() Contract
	Close()
}

// OpenFunc opens a classifier. Loader calls it at most once.
type OpenFunc func() (Classifier, error)

// ONNXOpener returns an OpenFunc backed by NewServer.
func ONNXOpener(opts Options) OpenFunc {
	return func() (Classifier, error) {
		return NewServer(opts)
	}
}

// Loader holds the process-wide model handle. The first call to Get opens
// the model; the handle, or the failure, is kept for the process lifetime.
type Loader struct {
	open OpenFunc

	once sync.Once

	mu         sync.RWMutex
	classifier Classifier
	err        error
}

func NewLoader(open OpenFunc) *Loader {
	return &Loader{open: open}
}

// Get returns the classifier, opening it on first use. After a failed load
// every call returns an error wrapping ErrModelUnavailable and the cause.
func (l *Loader) Get() (Classifier, error) {
	l.once.Do(l.load)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, l.err)
	}
	return l.classifier, nil
}

func (l *Loader) load() {
	c, err := l.safeOpen()
	if err == nil && c == nil {
		err = errors.New("model opener returned no classifier")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = err
		return
	}
	l.classifier = c
	log.Printf("Model loaded, input contract: %s", c.Contract())
}

func (l *Loader) safeOpen() (c Classifier, err error) {
	defer func() {
		if p := recover(); p != nil {
			c, err = nil, fmt.Errorf("panic while loading model: %v", p)
		}
	}()
	return l.open()
}

// Predict is shorthand for Get followed by Classifier.Predict.
func (l *Loader) Predict(input []float32) (*Prediction, error) {
	c, err := l.Get()
	if err != nil {
		return nil, err
	}
	return c.Predict(input)
}

// Close releases the classifier if one was loaded. A loader closed before
// first use never opens the model.
func (l *Loader) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.err = errLoaderClosed
		l.mu.Unlock()
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.classifier != nil {
		l.classifier.Close()
		l.classifier = nil
		l.err = errLoaderClosed
	}
}
