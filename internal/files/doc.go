// Package files discovers registration and attendance exports on disk.
//
// Zoom names its participant reports after the meeting, so a folder of
// exports usually looks like "session1.csv", "Week 2.xlsx" and so on.
// Discovery scans such a folder and keys each export by the session number
// in its name:
//
//	exports, err := files.NewDiscovery("").FindSessionExports("zoom")
//	for _, key := range exports.Keys() {
//	    path := exports.Files[key].Path
//	    ...
//	}
package files
