package bigfish

import (
	"os"
	"regexp"

	"github.com/bfgdl/bfg-downloader/internal/model"
)

// installerPattern matches the WrapID embedded in installer file names such
// as "setup_l1_gF1234T1L1_x.exe". The leading "F" is part of the match
// prefix and is added back before parsing.
var installerPattern = regexp.MustCompile(`(?i)l1_gF([^_]+)_`)

// ScanInstallers returns the WrapIDs embedded in the names of files in dir.
//
// The directory is created if missing. Files whose embedded id does not
// parse are ignored. Duplicates are removed, keeping directory order.
func ScanInstallers(dir string) ([]model.WrapID, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ids []model.WrapID
	seen := make(map[model.WrapID]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := installerPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := model.ParseWrapID("F" + m[1])
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
