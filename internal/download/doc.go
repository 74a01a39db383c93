// Package download resolves WrapIDs to game info and fetches the installer
// segments of each game.
//
// # Manager
//
// The Manager coordinates the whole process:
//
//  1. Resolve WrapIDs to game info, skipping the ones that fail
//  2. Either write a download list for an external tool
//  3. Or download every segment, resuming partial files
//
// # Basic Usage
//
//	client := bfghttp.NewClient(bfghttp.DefaultOptions())
//	resolver := bigfish.NewGameInfoClient(client, bigfish.GameInfoOptions{})
//	manager := download.NewManager(client, resolver, download.Options{
//	    OutputDir: ".",
//	    Jobs:      8,
//	}, log, func(event model.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	if err := manager.Initialize(ctx, ids); err != nil {
//	    return err
//	}
//	if err := manager.StartDownloads(ctx); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// Three limits apply:
//   - Options.Jobs: game info lookups in Initialize
//   - Options.Jobs: segments of one game downloading at once
//   - Options.MaxConcurrentGames: games downloading at once
//
// # Resume
//
// A segment whose file already exists is continued with a ranged request
// starting at the file's length. Segments are attempted once; a failed
// segment is reported and the others carry on.
package download
