package burrow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/burrowkit/burrow/adapters"
)

// DefaultIdempotencyTTL is how long records stay valid unless the
// config says otherwise.
const DefaultIdempotencyTTL = 24 * time.Hour

// Aliases so callers need only the root package.
type (
	// IdempotencyStore tracks processed commands for deduplication.
	IdempotencyStore = adapters.IdempotencyStore

	// IdempotencyRecord is the stored outcome of a processed command.
	IdempotencyRecord = adapters.IdempotencyRecord
)

// IdempotencyReplayError reports that a command with this key was
// already processed and failed.
type IdempotencyReplayError struct {
	Key     string
	Message string
}

func (e *IdempotencyReplayError) Error() string {
	msg := "burrow: command already processed with key " + e.Key
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *IdempotencyReplayError) Is(target error) bool { return target == ErrCommandAlreadyProcessed }

func (e *IdempotencyReplayError) Unwrap() error { return ErrCommandAlreadyProcessed }

// NewIdempotencyRecord captures a CommandResult as a record valid for ttl.
func NewIdempotencyRecord(key, cmdType string, result CommandResult, ttl time.Duration) *IdempotencyRecord {
	now := time.Now()
	rec := &IdempotencyRecord{
		Key: key, CommandType: cmdType,
		AggregateID: result.AggregateID, Version: result.Version,
		Success:     result.IsSuccess(),
		ProcessedAt: now, ExpiresAt: now.Add(ttl),
	}
	if result.Error != nil {
		rec.Error = result.Error.Error()
	}
	return rec
}

// IdempotencyRecordToResult rebuilds the CommandResult a replayed
// command should see.
func IdempotencyRecordToResult(r *IdempotencyRecord) CommandResult {
	if r.Success {
		return NewSuccessResult(r.AggregateID, r.Version)
	}
	msg := r.Error
	if msg == "" {
		msg = "unknown error"
	}
	return NewErrorResult(&IdempotencyReplayError{Key: r.Key, Message: msg})
}

// GenerateIdempotencyKey derives a key from the command type and its
// JSON content, so identical commands dedupe without an explicit key.
// An unserializable command is keyed on its type alone.
func GenerateIdempotencyKey(cmd Command) string {
	payload, err := json.Marshal(cmd)
	if err != nil {
		sum := sha256.Sum256([]byte(cmd.CommandType()))
		return cmd.CommandType() + ":type-only:" + hex.EncodeToString(sum[:16])
	}
	sum := sha256.Sum256(payload)
	return cmd.CommandType() + ":" + hex.EncodeToString(sum[:16])
}

// GetIdempotencyKey prefers the command's own IdempotencyKey and falls
// back to a content-derived one.
func GetIdempotencyKey(cmd Command) string {
	if ic, ok := cmd.(IdempotentCommand); ok {
		return ic.IdempotencyKey()
	}
	return GenerateIdempotencyKey(cmd)
}

// IdempotencyConfig configures IdempotencyMiddleware. StoreErrors also
// records failed commands, so a replay returns the same error instead
// of re-executing; SkipCommands lists command types exempt from
// deduplication.
type IdempotencyConfig struct {
	Store        IdempotencyStore
	TTL          time.Duration
	KeyGenerator func(Command) string
	StoreErrors  bool
	SkipCommands []string
}

func (c *IdempotencyConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultIdempotencyTTL
	}
	if c.KeyGenerator == nil {
		c.KeyGenerator = GetIdempotencyKey
	}
}

// DefaultIdempotencyConfig returns the standard configuration.
func DefaultIdempotencyConfig(store IdempotencyStore) IdempotencyConfig {
	cfg := IdempotencyConfig{Store: store}
	cfg.applyDefaults()
	return cfg
}

// IdempotencyMiddleware short-circuits commands already processed under
// the same key, replaying the recorded result. A failed store lookup
// degrades to at-least-once rather than blocking the dispatch.
func IdempotencyMiddleware(config IdempotencyConfig) Middleware {
	config.applyDefaults()

	skip := make(map[string]bool, len(config.SkipCommands))
	for _, ct := range config.SkipCommands {
		skip[ct] = true
	}

	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		if skip[cmd.CommandType()] {
			return next(ctx, cmd)
		}

		key := config.KeyGenerator(cmd)
		if record, err := config.Store.Get(ctx, key); err == nil && record != nil && !record.IsExpired() {
			return IdempotencyRecordToResult(record), nil
		}

		result, cmdErr := next(ctx, cmd)

		if result.IsSuccess() || (config.StoreErrors && cmdErr != nil) {
			// Best effort: a failed store must not fail the command.
			_ = config.Store.Store(ctx, NewIdempotencyRecord(key, cmd.CommandType(), result, config.TTL))
		}

		return result, cmdErr
	})
}
