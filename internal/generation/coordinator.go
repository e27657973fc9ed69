package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/remote"
)

// ErrAlreadyInFlight is returned when a generation for the same session is
// still pending. Duplicate submissions (double taps on the kiosk screen)
// must fail fast here instead of racing on the remote side.
var ErrAlreadyInFlight = errors.New("generation already in flight for session")

// Coordinator issues photo-generation requests with at-most-one in-flight
// generation per session. It never retries on its own: a failed call
// surfaces verbatim and retry is a user-initiated regenerate action.
type Coordinator struct {
	remote remote.Service
	log    zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewCoordinator(svc remote.Service, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		remote:   svc,
		log:      log.With().Str("component", "generation").Logger(),
		inFlight: make(map[string]struct{}),
	}
}

func (c *Coordinator) begin(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inFlight[sessionID]; ok {
		return ErrAlreadyInFlight
	}
	c.inFlight[sessionID] = struct{}{}
	return nil
}

func (c *Coordinator) end(sessionID string) {
	c.mu.Lock()
	delete(c.inFlight, sessionID)
	c.mu.Unlock()
}

// InFlight reports whether a generation is currently pending for the session.
func (c *Coordinator) InFlight(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[sessionID]
	return ok
}

// Generate runs one generation attempt and returns the updated session. On
// success the returned session always carries a non-empty generated photo;
// on failure the caller's prior session state is untouched. Regeneration is
// the same call with the previously stored photo and style id.
func (c *Coordinator) Generate(ctx context.Context, sessionID, photoBase64, styleID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if photoBase64 == "" {
		return nil, fmt.Errorf("photo payload is required")
	}

	if err := c.begin(sessionID); err != nil {
		return nil, err
	}
	defer c.end(sessionID)

	c.log.Info().Str("session_id", sessionID).Str("style_id", styleID).Msg("generation started")

	session, err := c.remote.GeneratePhoto(ctx, sessionID, photoBase64, styleID)
	if err != nil {
		c.log.Warn().Err(err).Str("session_id", sessionID).Msg("generation failed")
		return nil, err
	}

	if session.GeneratedPhoto == "" {
		return nil, fmt.Errorf("generation returned session %s without a generated photo", sessionID)
	}

	c.log.Info().Str("session_id", sessionID).Int("photo_len", len(session.GeneratedPhoto)).Msg("generation completed")
	return session, nil
}
