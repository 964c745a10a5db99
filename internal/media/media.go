// Package media talks to the image host. Uploads return a durable URL plus an
// opaque handle; the handle is what Remove needs later.
package media

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Asset is a hosted image
type Asset struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Store uploads and removes hosted images
type Store interface {
	Upload(ctx context.Context, payload string) (*Asset, error)
	Remove(ctx context.Context, id string) error
}

var (
	// ErrEmptyPayload is returned when Upload gets nothing to upload
	ErrEmptyPayload = errors.New("empty image payload")

	// ErrRejected is returned when the host answers a call with an error body
	ErrRejected = errors.New("media host rejected request")
)

// Recorder receives per-operation outcomes
type Recorder interface {
	RecordMediaOp(ctx context.Context, op string, err error, duration time.Duration)
}

type instrumented struct {
	next     Store
	recorder Recorder
	logger   *zap.SugaredLogger
}

// Instrument wraps s so every call is timed, counted and logged
func Instrument(s Store, recorder Recorder, logger *zap.SugaredLogger) Store {
	return &instrumented{next: s, recorder: recorder, logger: logger}
}

func (i *instrumented) Upload(ctx context.Context, payload string) (*Asset, error) {
	start := time.Now()
	asset, err := i.next.Upload(ctx, payload)
	i.observe(ctx, "upload", err, time.Since(start))
	if err == nil {
		i.logger.Debugw("Image uploaded", "public_id", asset.ID, "url", asset.URL)
	}
	return asset, err
}

func (i *instrumented) Remove(ctx context.Context, id string) error {
	start := time.Now()
	err := i.next.Remove(ctx, id)
	i.observe(ctx, "remove", err, time.Since(start))
	if err == nil {
		i.logger.Debugw("Image removed", "public_id", id)
	}
	return err
}

func (i *instrumented) observe(ctx context.Context, op string, err error, d time.Duration) {
	if i.recorder != nil {
		i.recorder.RecordMediaOp(ctx, op, err, d)
	}
	if err != nil {
		i.logger.Errorw("Media operation failed", "op", op, "duration", d, "error", err)
	}
}
