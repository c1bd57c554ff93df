package sharding

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// ShardCount is the fixed number of partitions for the activity stream.
const ShardCount = 256

// GetShardID calculates the deterministic shard ID for a given entity ID.
func GetShardID(entityID string) int {
	checksum := crc32.ChecksumIEEE([]byte(entityID))
	return int(checksum % ShardCount)
}

// ActivitySubject returns the NATS subject for a user's activity events.
// Format: app.activity.{shard_id}.user.{user_id}
func ActivitySubject(userID string) string {
	return fmt.Sprintf("app.activity.%d.user.%s", GetShardID(userID), userID)
}

// ShardFromSubject extracts the shard ID embedded in an activity subject,
// falling back to recomputing it from the entity ID.
func ShardFromSubject(entityID, subject string) int {
	parts := strings.Split(subject, ".")
	if len(parts) > 2 {
		if shard, err := strconv.Atoi(parts[2]); err == nil {
			return shard
		}
	}
	return GetShardID(entityID)
}
