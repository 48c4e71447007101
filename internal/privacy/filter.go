// Package privacy gates what may be cached and protects what is: it blocks
// sensitive payloads from persistence, encrypts user-identifying payloads
// with the installation key, anonymizes exports, approximates location data,
// enforces retention windows, and checks consent flags.
//
// The filter never persists anything itself; it approves or transforms data
// before the cache router or sync engine writes it.
package privacy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/crypto"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/models"
)

// Field-name patterns that block caching entirely: credentials, tokens,
// personal identifiers, financial identifiers. Matched case-insensitively
// and recursively through nested structures.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^pass(word|phrase)?$`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)api[_-]?key`),
	regexp.MustCompile(`(?i)^ssn$|social[_-]?security`),
	regexp.MustCompile(`(?i)credit[_-]?card|card[_-]?number`),
	regexp.MustCompile(`(?i)^cvv$|^cvc$`),
	regexp.MustCompile(`(?i)^pin$`),
}

// Field-name patterns that permit caching but require encryption before
// persistence: the payload identifies the user without being a credential.
var identifyingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)name$`),
	regexp.MustCompile(`(?i)e[_-]?mail`),
	regexp.MustCompile(`(?i)phone`),
	regexp.MustCompile(`(?i)address`),
	regexp.MustCompile(`(?i)^driver`),
}

// Filter is the privacy policy engine.
type Filter struct {
	keychain crypto.KeyChain
	consents store.ConsentRepository
	logger   *logger.Logger

	level models.PrivacyLevel
	key   []byte
}

// NewFilter wires the privacy filter with the installation key and the
// consent store. The level is the explicit location precision setting.
func NewFilter(cfg config.Privacy, keychain crypto.KeyChain, key []byte, consents store.ConsentRepository, log *logger.Logger) *Filter {
	return &Filter{
		keychain: keychain,
		consents: consents,
		logger:   log,
		level:    cfg.Level,
		key:      key,
	}
}

// ShouldCache reports whether payload may be persisted at all. Any field
// name matching a sensitive pattern, at any nesting depth, blocks caching.
func (f *Filter) ShouldCache(payload any) bool {
	return !containsField(payload, sensitivePatterns)
}

// NeedsEncryption reports whether a cacheable payload must be encrypted
// before persistence because it carries user-identifying fields.
func (f *Filter) NeedsEncryption(payload any) bool {
	return containsField(payload, identifyingPatterns)
}

// EncryptPayload seals payload with the installation key. The returned
// string is safe to persist.
func (f *Filter) EncryptPayload(payload any) (string, error) {
	if len(f.key) == 0 {
		return "", fmt.Errorf("encrypt payload: installation key missing")
	}
	blob, err := f.keychain.Encrypt(payload, f.key)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	return blob, nil
}

// DecryptPayload is the exact inverse of EncryptPayload. It fails loudly if
// the key is missing or the ciphertext is corrupt.
func (f *Filter) DecryptPayload(blob string, target any) error {
	if len(f.key) == 0 {
		return fmt.Errorf("decrypt payload: installation key missing")
	}
	if err := f.keychain.Decrypt(blob, f.key, target); err != nil {
		return fmt.Errorf("decrypt payload: %w", err)
	}
	return nil
}

// Level returns the configured privacy level.
func (f *Filter) Level() models.PrivacyLevel {
	return f.level
}

// ConsentGranted reports whether data collection for category is permitted.
// Absence of a recorded flag reads as false: default-deny.
func (f *Filter) ConsentGranted(ctx context.Context, category models.DataCategory) (bool, error) {
	granted, err := f.consents.Get(ctx, category)
	if err != nil {
		return false, fmt.Errorf("check consent (category=%s): %w", category, err)
	}
	return granted, nil
}

// containsField walks v recursively looking for a map key matching any of
// patterns. Non-map values are serialized through JSON first so structs and
// maps are inspected uniformly.
func containsField(v any, patterns []*regexp.Regexp) bool {
	m, ok := v.(map[string]any)
	if !ok {
		raw, err := json.Marshal(v)
		if err != nil {
			// Cannot inspect what cannot be serialized: treat as sensitive.
			return true
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return true
		}
		return walkDecoded(decoded, patterns)
	}
	return walkDecoded(m, patterns)
}

func walkDecoded(v any, patterns []*regexp.Regexp) bool {
	switch val := v.(type) {
	case map[string]any:
		for key, nested := range val {
			for _, p := range patterns {
				if p.MatchString(key) {
					return true
				}
			}
			if walkDecoded(nested, patterns) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if walkDecoded(item, patterns) {
				return true
			}
		}
	}
	return false
}
