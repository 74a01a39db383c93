// Package model defines the core data structures used throughout
// bfg-downloader.
//
// # WrapID
//
// WrapID is the normalized identifier of one catalog item:
//
//	id, err := model.ParseWrapID("F1234T1L1")
//	if errors.Is(err, model.ErrInvalidFormat) {
//	    // not a WrapID
//	}
//	fmt.Println(id.Label()) // L1
//
// ExtractWrapIDs finds WrapIDs embedded in free text such as URL slugs.
//
// # GameInfo and Segment
//
// GameInfo is the resolved description of a game; Segment is one installer
// part with its download URL:
//
//	seg := model.NewSegment("game.bin", "f1234t1l1/game.bin", "http://host/downloads")
//	fmt.Println(seg.URL()) // http://host/downloads/f1234t1l1/game.bin
//
// # Platform and Language
//
// Platform and Language hold the catalog filter ids and the partition labels
// used to name export files.
package model
