package redis

const (
	// appendSliceScript adds a slice to the global and per-domain indexes.
	// Members are prefixed with a zero-padded append sequence so slices
	// sharing a millisecond sort in insertion order.
	appendSliceScript = `
local all_key = KEYS[1]       -- tabtime:slices
local domain_key = KEYS[2]    -- tabtime:slices:domain:{domain}
local seq_key = KEYS[3]       -- tabtime:slices:seq

local score = ARGV[1]         -- unix milliseconds
local json = ARGV[2]          -- JSON encoded slice

local seq = tostring(redis.call('INCR', seq_key))
local member = string.rep('0', 20 - #seq) .. seq .. '|' .. json

redis.call('ZADD', all_key, score, member)
redis.call('ZADD', domain_key, score, member)

return 'OK'
`

	// upsertLimitScript creates a limit or updates minutes in place,
	// keeping the original id and created_at
	upsertLimitScript = `
local limit_key = KEYS[1]     -- tabtime:limit:{type}:{website}
local index_key = KEYS[2]     -- tabtime:limits:{type}

local id = ARGV[1]
local website = ARGV[2]
local minutes = ARGV[3]
local limit_type = ARGV[4]
local now = ARGV[5]

local created_at = now
local existing_id = redis.call('HGET', limit_key, 'id')
if existing_id then
  id = existing_id
  created_at = redis.call('HGET', limit_key, 'created_at')
end

redis.call('HSET', limit_key,
  'id', id,
  'website', website,
  'minutes', minutes,
  'type', limit_type,
  'created_at', created_at,
  'updated_at', now
)
redis.call('SADD', index_key, website)

return id
`

	// incrementUsageScript atomically increments or creates a daily counter
	incrementUsageScript = `
local usage_key = KEYS[1]     -- tabtime:usage:{date}:{website}
local index_key = KEYS[2]     -- tabtime:usage:index:{date}

local website = ARGV[1]
local date = ARGV[2]
local seconds = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('HSETNX', usage_key, 'website', website)
redis.call('HSETNX', usage_key, 'date', date)
local total = redis.call('HINCRBY', usage_key, 'seconds', seconds)
redis.call('EXPIRE', usage_key, ttl)

redis.call('SADD', index_key, website)
redis.call('EXPIRE', index_key, ttl)

return total
`
)
