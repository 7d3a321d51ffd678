// Package hierarchy answers structural queries over an area.Store and plans
// mutations that keep the parent graph acyclic.
//
// Every function takes the store as an argument and never retains it. Plans are
// plain values; persisting them is left to the caller.
package hierarchy
