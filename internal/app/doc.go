// Package app is the composition root of the setlog client.
//
// Open turns a loaded config.Config into a ready Client:
//
//  1. open the local SQLite file, or fall back to a no-op queue when storage is
//     disabled or cannot be opened (one warning, nothing fails)
//  2. build the HTTP client with the stored access token
//  3. build the health-check prober that feeds the sync engine and the badge
//  4. build the sync engine, the status projector and the today cache
//
// Client.Run keeps the prober, the engine and the projector going until the
// context is cancelled. The short-lived CLI commands use the pieces directly.
package app
