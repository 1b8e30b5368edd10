package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Report key builders. Filters are hashed so keys stay short and free of PII.
func (kb *KeyBuilder) KeyReportAdStats(filter string) string {
	return kb.BuildKey(fmt.Sprintf(KeyReportAdStats, shortHash(filter)))
}

func (kb *KeyBuilder) KeyReportAdRevenue(dateRange string) string {
	return kb.BuildKey(fmt.Sprintf(KeyReportAdRevenue, shortHash(dateRange)))
}

func (kb *KeyBuilder) KeyReportSessionTotals(dateRange string) string {
	return kb.BuildKey(fmt.Sprintf(KeyReportSessionTotals, shortHash(dateRange)))
}

// KeyReportPrefix covers every cached report
func (kb *KeyBuilder) KeyReportPrefix() string {
	return kb.BuildKey(KeyReportPrefix)
}

func (kb *KeyBuilder) KeyTrackingRateLimit(ip string) string {
	return kb.BuildKey(fmt.Sprintf(KeyTrackingRateLimit, shortHash(ip)))
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
