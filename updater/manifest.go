package updater

import (
	"time"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// Manifest is the update document fetched from the configured location.
// Version entries are expected to be listed newest-first, but the scan does
// not re-verify the ordering.
type Manifest struct {
	Application *ApplicationInfo `json:"application,omitempty"`
	Versions    []VersionEntry   `json:"versions,omitempty"`
}

// ApplicationInfo carries application-level update metadata.
type ApplicationInfo struct {
	// Location is the canonical manifest location. When it differs from the
	// location the manifest was fetched from, future checks must move there.
	Location             string `json:"location,omitempty"`
	DownloadPage         string `json:"downloadPage,omitempty"`
	InstallerURL         string `json:"installerUrl,omitempty"`
	HistoryURL           string `json:"historyUrl,omitempty"`
	CheckIntervalSeconds int64  `json:"checkIntervalSeconds,omitempty"`
}

// VersionEntry is a single published version.
type VersionEntry struct {
	Number string `json:"number"`
}

// Result is the interpreted outcome of a single manifest fetch. At most one
// of RedirectLocation and AvailableVersion is set: a relocation abandons the
// old manifest, so its version list is never evaluated.
type Result struct {
	RedirectLocation  string
	DownloadPage      string
	InstallerURL      string
	HistoryURL        string
	SuggestedInterval time.Duration
	AvailableVersion  string
}

// Interpret evaluates a fetched manifest against the running version.
// The first version entry in document order that compares strictly greater
// than the running version wins; malformed entries are skipped.
func Interpret(m *Manifest, currentLocation string, runningVersion string) Result {
	var res Result

	if app := m.Application; app != nil {
		if app.Location != "" && app.Location != currentLocation {
			res.RedirectLocation = app.Location
			return res
		}

		res.DownloadPage = app.DownloadPage
		res.InstallerURL = app.InstallerURL
		res.HistoryURL = app.HistoryURL
		if app.CheckIntervalSeconds > 0 {
			res.SuggestedInterval = time.Duration(app.CheckIntervalSeconds) * time.Second
		}
	}

	current, err := goversion.NewVersion(runningVersion)
	if err != nil {
		log.Warnf("can't compare manifest versions, running version %q is not parsable: %v", runningVersion, err)
		return res
	}

	for _, entry := range m.Versions {
		candidate, err := goversion.NewVersion(entry.Number)
		if err != nil {
			log.Debugf("skipping malformed version entry %q: %v", entry.Number, err)
			continue
		}
		if candidate.GreaterThan(current) {
			res.AvailableVersion = entry.Number
			break
		}
	}

	return res
}
