package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RoomKey returns the hash key holding a multiplayer room record
func (r *CacheKeyStruct) RoomKey(code string) string {
	return fmt.Sprintf("room:%s", code)
}

// RoomMessagesKey returns the stream key of a room's event log
func (r *CacheKeyStruct) RoomMessagesKey(code string) string {
	return fmt.Sprintf("room:%s:messages", code)
}

// RoomEventsChannel returns the Redis PubSub channel for room state changes
func (r *CacheKeyStruct) RoomEventsChannel(code string) string {
	return fmt.Sprintf("room:%s:events", code)
}

// RoomExpiryKey returns the sorted set of room codes scored by deadline
func (r *CacheKeyStruct) RoomExpiryKey() string {
	return "rooms:expiring"
}

// LeaderboardKey returns the cache key for the top-n leaderboard payload
func (r *CacheKeyStruct) LeaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:top:%d", limit)
}

var CacheKey = NewCacheKeyStruct()
