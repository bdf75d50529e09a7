package redisstore

import "github.com/redis/go-redis/v9"

// KEYS for every script: data hash, version hash, revision counter.

// ARGV: id, document, channel.
var createScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return {0, 0}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], 1)
local rev = redis.call('INCR', KEYS[3])
redis.call('PUBLISH', ARGV[3], rev)
return {1, rev}
`)

// ARGV: id, expected version, document, channel.
// Returns {version, revision}; version -1 means missing, -2 means stale.
var swapScript = redis.NewScript(`
local ver = redis.call('HGET', KEYS[2], ARGV[1])
if not ver then
	return {-1, 0}
end
if tonumber(ver) ~= tonumber(ARGV[2]) then
	return {-2, 0}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
local version = redis.call('HINCRBY', KEYS[2], ARGV[1], 1)
local rev = redis.call('INCR', KEYS[3])
redis.call('PUBLISH', ARGV[4], rev)
return {version, rev}
`)

// ARGV: id, field, n, fields to set (JSON object), channel.
// Returns {version, revision, document}; {-1} means missing, {-2, current}
// means the guard rejected, {-3} means the field is not an integer. cjson
// re-encodes the whole document, so documents must not hold arrays.
var decrementScript = redis.NewScript(`
local doc = redis.call('HGET', KEYS[1], ARGV[1])
if not doc then
	return {-1}
end
local obj = cjson.decode(doc)
local field = ARGV[2]
local n = tonumber(ARGV[3])
local current = obj[field]
if current == nil or current == cjson.null then
	current = 0
end
if type(current) ~= 'number' or math.floor(current) ~= current then
	return {-3}
end
if current < n then
	return {-2, current}
end
obj[field] = current - n
for k, v in pairs(cjson.decode(ARGV[4])) do
	obj[k] = v
end
local data = cjson.encode(obj)
redis.call('HSET', KEYS[1], ARGV[1], data)
local version = redis.call('HINCRBY', KEYS[2], ARGV[1], 1)
local rev = redis.call('INCR', KEYS[3])
redis.call('PUBLISH', ARGV[5], rev)
return {version, rev, data}
`)

// ARGV: id, channel. Returns {} when missing.
var deleteScript = redis.NewScript(`
local doc = redis.call('HGET', KEYS[1], ARGV[1])
if not doc then
	return {}
end
local ver = redis.call('HGET', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
local rev = redis.call('INCR', KEYS[3])
redis.call('PUBLISH', ARGV[2], rev)
return {doc, tonumber(ver), rev}
`)

// ARGV: id. Returns {} when missing.
var getScript = redis.NewScript(`
local doc = redis.call('HGET', KEYS[1], ARGV[1])
if not doc then
	return {}
end
return {doc, tonumber(redis.call('HGET', KEYS[2], ARGV[1]))}
`)

var readScript = redis.NewScript(`
local rev = tonumber(redis.call('GET', KEYS[3]) or '0')
return {rev, redis.call('HGETALL', KEYS[1]), redis.call('HGETALL', KEYS[2])}
`)
