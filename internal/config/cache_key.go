package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamLiveEventChannel returns the Redis PubSub channel carrying every live
// event appended to an exam, global and student-scoped alike.
func (r *CacheKeyStruct) ExamLiveEventChannel(examID string) string {
	return fmt.Sprintf("exam:%s:live_events", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// ExamIntegrityFlagsKey returns the hash of integrity alert counts per student exam
func (r *CacheKeyStruct) ExamIntegrityFlagsKey(examID string) string {
	return fmt.Sprintf("exam:%s:integrity_flags", examID)
}

// RateLimitKey returns the fixed-window counter of a rate limit subject
func (r *CacheKeyStruct) RateLimitKey(limit, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", limit, subject)
}

var CacheKey = NewCacheKeyStruct()
