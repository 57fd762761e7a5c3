package catalog

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var versionPattern = regexp.MustCompile(`(?i)^(.+)v(\d+)`)

// ShotName returns the shot a file belongs to: everything before the last
// "v<digits>" marker, or the bare stem when there is none.
//
//	sc_001_v20.nk      -> sc_001
//	sc001V1_no_bg.jpg  -> sc001
//	suv2005_v2_m.jpg   -> suv2005
func ShotName(name string) string {
	base := filepath.Base(name)
	m := versionPattern.FindStringSubmatch(base)
	if m == nil {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.Trim(m[1], "_")
}

// Version returns the version number in name.
func Version(name string) (int, bool) {
	m := versionPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return v, true
}

// Candidate is a file considered for a sheet.
type Candidate struct {
	Path    string
	ModTime time.Time
}

// FilterNewest keeps the newest version of each shot (case-insensitive),
// breaking version ties with the most recent modification time. The result
// is sorted by path.
func FilterNewest(files []Candidate) []Candidate {
	type best struct {
		candidate  Candidate
		version    int
		hasVersion bool
	}
	shots := make(map[string]*best, len(files))
	for _, f := range files {
		shot := strings.ToLower(ShotName(f.Path))
		version, hasVersion := Version(f.Path)
		cur, ok := shots[shot]
		switch {
		case !ok:
			shots[shot] = &best{candidate: f, version: version, hasVersion: hasVersion}
		case newer(version, hasVersion, cur.version, cur.hasVersion):
			*cur = best{candidate: f, version: version, hasVersion: hasVersion}
		case version == cur.version && hasVersion == cur.hasVersion && f.ModTime.After(cur.candidate.ModTime):
			cur.candidate = f
		}
	}
	out := make([]Candidate, 0, len(shots))
	for _, b := range shots {
		out = append(out, b.candidate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func newer(v int, has bool, curV int, curHas bool) bool {
	if has != curHas {
		return has
	}
	return has && v > curV
}
