// Package workspace manages scratch directories used while publishing.
//
// TempProvider hands out one uniquely named directory per publish call
// (e.g., localpublish-20251214-122336-1234567) and removes it on release, on
// every exit path of the caller.
//
// Manager keeps the ephemeral/persistent split: watch mode reuses a persistent
// directory across republishes, one-shot installs use ephemeral ones.
package workspace
