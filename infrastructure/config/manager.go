package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Errors for config management
var (
	ErrDuplicateKey   = errors.New("key already exists")
	ErrInvalidMaxSpan = errors.New("max span must be a positive number of seconds")
	ErrDefaultPlan    = errors.New("cannot remove the default plan")
)

// ConfigManager provides CRUD operations for plan tiers
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// Plan represents a plan tier entry
type Plan struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	MaxSpanSeconds float64 `json:"maxSpanSeconds"`
	Default        bool    `json:"default"`
}

// AddPlan adds a new plan tier to config
func (m *ConfigManager) AddPlan(key, name string, maxSpan float64) error {
	key = normalizeKey(key)
	name = strings.TrimSpace(name)

	if key == "" {
		return fmt.Errorf("plan key is required")
	}
	if name == "" {
		return fmt.Errorf("plan name is required")
	}
	if !validSpan(maxSpan) {
		return fmt.Errorf("%w: got %v", ErrInvalidMaxSpan, maxSpan)
	}

	if m.config.Plans == nil {
		m.config.Plans = make(map[string]PlanConfig)
	}

	if _, exists := m.config.Plans[key]; exists {
		return fmt.Errorf("%w: plan %q", ErrDuplicateKey, key)
	}

	m.config.Plans[key] = PlanConfig{Name: name, MaxSpanSeconds: maxSpan}
	return Save(m.config, m.configPath)
}

// ListPlans returns all plans ordered by span cap
func (m *ConfigManager) ListPlans() []Plan {
	keys := m.config.PlanKeys()
	result := make([]Plan, 0, len(keys))
	for _, key := range keys {
		pc := m.config.Plans[key]
		result = append(result, Plan{
			Key:            key,
			Name:           pc.Name,
			MaxSpanSeconds: pc.MaxSpanSeconds,
			Default:        key == m.config.Selection.DefaultPlan,
		})
	}
	return result
}

// GetPlan gets a plan by key (case-insensitive)
func (m *ConfigManager) GetPlan(key string) (Plan, error) {
	key = normalizeKey(key)
	if pc, exists := m.config.Plans[key]; exists {
		return Plan{
			Key:            key,
			Name:           pc.Name,
			MaxSpanSeconds: pc.MaxSpanSeconds,
			Default:        key == m.config.Selection.DefaultPlan,
		}, nil
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, key)
}

// RemovePlan removes a plan by key. The default plan cannot be removed
func (m *ConfigManager) RemovePlan(key string) error {
	key = normalizeKey(key)
	if _, exists := m.config.Plans[key]; !exists {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, key)
	}
	if key == m.config.Selection.DefaultPlan {
		return fmt.Errorf("%w: %q", ErrDefaultPlan, key)
	}

	delete(m.config.Plans, key)
	return Save(m.config, m.configPath)
}

// UpdatePlan updates a plan's name and/or span cap.
// Empty name or zero maxSpan leave the current value
func (m *ConfigManager) UpdatePlan(key, name string, maxSpan float64) error {
	key = normalizeKey(key)

	pc, exists := m.config.Plans[key]
	if !exists {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, key)
	}

	// Update only provided values
	if name = strings.TrimSpace(name); name != "" {
		pc.Name = name
	}
	if maxSpan != 0 {
		if !validSpan(maxSpan) {
			return fmt.Errorf("%w: got %v", ErrInvalidMaxSpan, maxSpan)
		}
		pc.MaxSpanSeconds = maxSpan
	}

	m.config.Plans[key] = pc
	return Save(m.config, m.configPath)
}

// SetDefaultPlan makes key the plan used when none is requested
func (m *ConfigManager) SetDefaultPlan(key string) error {
	key = normalizeKey(key)
	if _, exists := m.config.Plans[key]; !exists {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, key)
	}

	m.config.Selection.DefaultPlan = key
	return Save(m.config, m.configPath)
}

// SuggestAddPlanCommand returns the command to add a missing plan
func SuggestAddPlanCommand(key string) string {
	return fmt.Sprintf(`segment-selector config add plan --key %s --name "Plan Name" --max-span 600`, key)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func validSpan(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
