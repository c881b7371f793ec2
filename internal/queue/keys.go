package queue

import (
	"fmt"

	"github.com/google/uuid"
)

const keyPrefix = "af:queue"

func waitingKey() string   { return keyPrefix + ":waiting" }
func delayedKey() string   { return keyPrefix + ":delayed" }
func activeKey() string    { return keyPrefix + ":active" }
func completedKey() string { return keyPrefix + ":completed" }
func failedKey() string    { return keyPrefix + ":failed" }
func seqKey() string       { return keyPrefix + ":seq" }

func jobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("%s:job:%s", keyPrefix, jobID)
}

// RateLimitKey is the counter key for one API credential's sliding window.
func RateLimitKey(id string) string {
	return fmt.Sprintf("af:ratelimit:%s", id)
}
