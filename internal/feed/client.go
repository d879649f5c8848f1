// Package feed drives the avatar from a remote Server-Sent Events trigger feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/normanking/streamavatar/internal/bus"
)

// Target is what the feed drives.
type Target interface {
	PlayGesture(ctx context.Context, name string) error
	TriggerEmote(ctx context.Context, name string) error
	SetSpeaking(speaking bool)
}

// Config configures the feed client
type Config struct {
	URL               string
	TriggersPerSecond float64
	Burst             int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// Client connects to the trigger feed and forwards events to a Target.
type Client struct {
	cfg     Config
	target  Target
	bus     *bus.EventBus
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter

	mu        sync.RWMutex
	connected bool

	inflight sync.WaitGroup
}

// NewClient creates a new feed client. eventBus may be nil.
func NewClient(cfg Config, target Target, eventBus *bus.EventBus, logger zerolog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	limit := rate.Inf
	if cfg.TriggersPerSecond > 0 {
		limit = rate.Limit(cfg.TriggersPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		target:  target,
		bus:     eventBus,
		logger:  logger.With().Str("component", "trigger-feed").Logger(),
		client:  &http.Client{Timeout: 0}, // No timeout for SSE
		limiter: rate.NewLimiter(limit, burst),
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	c.mu.Unlock()

	if !changed || c.bus == nil {
		return
	}
	if connected {
		c.bus.Publish(bus.Event{Type: bus.EventTypeFeedConnected, Data: map[string]any{"url": c.cfg.URL}})
	} else {
		c.bus.Publish(bus.Event{Type: bus.EventTypeFeedDisconnected, Data: map[string]any{"url": c.cfg.URL}})
	}
}

// Run maintains the SSE connection with reconnection until ctx is done. It
// returns after every trigger it started has finished.
func (c *Client) Run(ctx context.Context) {
	defer c.inflight.Wait()

	backoff := c.cfg.ReconnectDelay
	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.connect(ctx)
		c.setConnected(false)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			// Server closed the stream cleanly; reconnect promptly.
			backoff = c.cfg.ReconnectDelay
			consecutiveFailures = 0
		} else {
			consecutiveFailures++
			// If we've failed many times, the endpoint probably doesn't exist
			if consecutiveFailures >= 3 {
				if consecutiveFailures == 3 {
					c.logger.Warn().
						Err(err).
						Int("failures", consecutiveFailures).
						Msg("Trigger feed not available, will retry less frequently")
				} else {
					c.logger.Debug().
						Int("failures", consecutiveFailures).
						Msg("Trigger feed still unavailable")
				}
				backoff = c.cfg.MaxReconnectDelay
			} else {
				c.logger.Warn().Err(err).Msg("Trigger feed connection failed, reconnecting...")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err != nil && backoff < c.cfg.MaxReconnectDelay {
			backoff *= 2
			if backoff > c.cfg.MaxReconnectDelay {
				backoff = c.cfg.MaxReconnectDelay
			}
		}
	}
}

// connect streams one SSE session. It returns nil when the server ends the
// stream.
func (c *Client) connect(ctx context.Context) error {
	c.logger.Info().Str("url", c.cfg.URL).Msg("Connecting to trigger feed")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/event-stream") {
		return fmt.Errorf("unexpected content-type: %s (expected text/event-stream)", contentType)
	}

	c.setConnected(true)
	c.logger.Info().Msg("Connected to trigger feed")

	reader := NewSSEReader(resp.Body)
	for {
		ev, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		c.handleEvent(ctx, ev)
	}
}

// handleEvent processes an SSE event
func (c *Client) handleEvent(ctx context.Context, ev *SSEEvent) {
	if !gjson.Valid(ev.Data) {
		c.logger.Warn().Str("type", ev.Event).Msg("Ignoring event with invalid JSON")
		return
	}
	payload := gjson.Parse(ev.Data)

	switch ev.Event {
	case "gesture":
		name := payload.Get("name").String()
		if name == "" || !c.allow(ev.Event, name) {
			return
		}
		// Fetching may take a while; keep reading the stream meanwhile.
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			if err := c.target.PlayGesture(ctx, name); err != nil {
				c.logger.Warn().Err(err).Str("gesture", name).Msg("Gesture trigger failed")
			}
		}()

	case "emote":
		name := payload.Get("name").String()
		if name == "" || !c.allow(ev.Event, name) {
			return
		}
		if err := c.target.TriggerEmote(ctx, name); err != nil {
			c.logger.Debug().Err(err).Str("emote", name).Msg("Emote trigger not applied")
		}

	case "speaking":
		speaking := payload.Get("speaking")
		if speaking.Type != gjson.True && speaking.Type != gjson.False {
			c.logger.Warn().Msg("Speaking event without boolean field")
			return
		}
		c.target.SetSpeaking(speaking.Bool())
		if c.bus != nil {
			t := bus.EventTypeSpeakingStopped
			if speaking.Bool() {
				t = bus.EventTypeSpeakingStarted
			}
			c.bus.Publish(bus.Event{Type: t})
		}

	default:
		c.logger.Debug().Str("type", ev.Event).Msg("Unknown event type")
	}
}

func (c *Client) allow(kind, name string) bool {
	if c.limiter.Allow() {
		return true
	}
	c.logger.Debug().Str("type", kind).Str("name", name).Msg("Trigger dropped by rate limit")
	return false
}
