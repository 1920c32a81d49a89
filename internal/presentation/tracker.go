package presentation

import (
	"sync"

	"launchmeme-terminal/internal/domain"
)

// Direction is the change of a live value since its previous observation.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionSame Direction = "same"
)

// Pulse metric names reported by MetricTracker.
const (
	MetricActiveTokens     = "activeTokens"
	MetricTotalValueLocked = "totalValueLocked"
	MetricParticipants     = "participants"
	MetricAveragePrice     = "averagePrice"
	MetricTotalVolume      = "totalVolume"
)

// MetricTracker reports per-metric change direction between consecutive pulse
// observations. The first observation of a metric is "same".
type MetricTracker struct {
	mu   sync.Mutex
	last map[string]float64
}

// NewMetricTracker creates an empty tracker.
func NewMetricTracker() *MetricTracker {
	return &MetricTracker{last: make(map[string]float64)}
}

// Observe records p and returns the direction of each metric. A nil pulse
// resets the tracker.
func (t *MetricTracker) Observe(p *domain.MarketPulse) map[string]Direction {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p == nil {
		clear(t.last)
		return nil
	}

	current := map[string]float64{
		MetricActiveTokens:     float64(p.ActiveTokenCount),
		MetricTotalValueLocked: p.TotalValueLocked,
		MetricParticipants:     float64(p.ParticipantCount),
		MetricAveragePrice:     p.AveragePrice,
		MetricTotalVolume:      p.TotalVolume,
	}

	out := make(map[string]Direction, len(current))
	for name, v := range current {
		prev, ok := t.last[name]
		switch {
		case !ok || v == prev:
			out[name] = DirectionSame
		case v > prev:
			out[name] = DirectionUp
		default:
			out[name] = DirectionDown
		}
		t.last[name] = v
	}
	return out
}
