// package cache provides byte-oriented TTL stores for catalog responses.
//
// [MemoryStore] keeps entries in a bounded, expiring LRU local to the process.
// [RedisStore] shares entries between server instances.
package cache
