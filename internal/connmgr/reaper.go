package connmgr

import (
	"time"
)

// failedErrorReapThreshold matches spec §4.7's "connections in Failed with
// >5 errors in history" reap criterion.
const failedErrorReapThreshold = 5

// StartReaper launches a background goroutine that, every cfg.ReapInterval,
// removes connections idle past ConnectionTimeout or Failed with more than
// 5 recorded errors, then opens the breaker if the healthy fraction drops
// below 50% while it is still Closed (spec §4.7). Call the returned stop
// function to terminate the goroutine.
func (m *Manager) StartReaper() (stop func()) {
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(m.cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.reapOnce()
			case <-stopCh:
				return
			}
		}
	}()
	return func() { close(stopCh) }
}

func (m *Manager) reapOnce() {
	now := time.Now()

	m.mu.Lock()
	var toRemove []string
	healthy := 0
	for id, info := range m.connections {
		idle := now.Sub(info.LastActivity)
		if idle > m.cfg.ConnectionTimeout {
			toRemove = append(toRemove, id)
			continue
		}
		if info.State == StateFailed && len(info.ErrorHistory) > failedErrorReapThreshold {
			toRemove = append(toRemove, id)
			continue
		}
		healthy++
	}
	total := len(m.connections)
	m.mu.Unlock()

	for _, id := range toRemove {
		m.Remove(id, "reaped")
	}

	if total > 0 {
		healthyFraction := float64(healthy) / float64(total)
		if healthyFraction < 0.5 && m.breaker != nil {
			snap := m.breaker.Snapshot()
			if snap.State.String() == "closed" {
				m.breaker.ForceOpen()
				m.log.Warn().Float64("healthy_fraction", healthyFraction).Msg("health sweep opened circuit breaker")
			}
		}
	}
}
