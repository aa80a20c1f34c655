// Package demo implements the demo command: a small world whose entities move
// on every update and survive restarts through the configured store.
package demo
