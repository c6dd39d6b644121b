package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// NoteDocumentKey returns the cache key for a note's rendered document
func (r *CacheKeyStruct) NoteDocumentKey(noteID string) string {
	return fmt.Sprintf("note:%s:document", noteID)
}

// SubmissionAnswersKey returns the cache key for a submission's latest answers
func (r *CacheKeyStruct) SubmissionAnswersKey(submissionID string) string {
	return fmt.Sprintf("submission:%s:answers", submissionID)
}

// TestMonitorChannel returns the Redis PubSub channel name for a test's live monitor
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

var CacheKey = NewCacheKeyStruct()
