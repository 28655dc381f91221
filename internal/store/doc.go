// Package store keeps the latest published state of every entity.
//
// This package is internal to podbridge. It backs the REST API and the
// Server-Sent Events stream with a publish-subscribe pattern.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [EntityState]: Storage representation of one sensor's value
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the poll cycle).
package store
