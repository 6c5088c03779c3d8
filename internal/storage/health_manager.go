package storage

import (
	"sync"
	"time"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthData is the result of one health check
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager manages component health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]*HealthData
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]*HealthData),
	}
}

// UpdateHealth records the health of a component
func (hm *HealthManager) UpdateHealth(component string, health *HealthData) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	healthCopy := *health
	hm.health[component] = &healthCopy
}

// GetHealth retrieves the health status for a component
func (hm *HealthManager) GetHealth(component string) (*HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	health, exists := hm.health[component]
	if !exists {
		return nil, false
	}
	healthCopy := *health
	return &healthCopy, true
}

// GetAllHealth retrieves every recorded status
func (hm *HealthManager) GetAllHealth() map[string]*HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]*HealthData, len(hm.health))
	for k, v := range hm.health {
		healthCopy := *v
		result[k] = &healthCopy
	}
	return result
}

// IsHealthy checks if a component was healthy at its last check, and that the
// check is no older than maxAge
func (hm *HealthManager) IsHealthy(component string, maxAge time.Duration) bool {
	health, exists := hm.GetHealth(component)
	if !exists {
		return false
	}

	if time.Since(health.LastCheck) > maxAge {
		return false
	}

	return health.Status == StatusHealthy
}
