package updater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterpret_FirstGreaterVersionWins(t *testing.T) {
	// manifests are expected newest-first but the scan takes the first
	// strictly greater entry without re-verifying the ordering
	m := &Manifest{
		Versions: []VersionEntry{
			{Number: "1.1.0.0"},
			{Number: "1.3.5.0"},
			{Number: "1.2.0.1"},
		},
	}

	res := Interpret(m, "https://updates.example.com/manifest.json", "1.2.0.0")
	assert.Equal(t, "1.3.5.0", res.AvailableVersion)
}

func TestInterpret_VersionScan(t *testing.T) {
	testMatrix := []struct {
		name           string
		runningVersion string
		versions       []VersionEntry
		expected       string
	}{
		{
			name:           "no versions published",
			runningVersion: "1.0.0",
			versions:       nil,
			expected:       "",
		},
		{
			name:           "running version is the newest",
			runningVersion: "2.0.0",
			versions:       []VersionEntry{{Number: "2.0.0"}, {Number: "1.9.0"}},
			expected:       "",
		},
		{
			name:           "malformed entries are skipped",
			runningVersion: "1.0.0",
			versions:       []VersionEntry{{Number: "not-a-version"}, {Number: ""}, {Number: "1.0.1"}},
			expected:       "1.0.1",
		},
		{
			name:           "equal version is not an update",
			runningVersion: "1.0.0",
			versions:       []VersionEntry{{Number: "1.0.0"}},
			expected:       "",
		},
		{
			name:           "four segment comparison",
			runningVersion: "1.2.0.0",
			versions:       []VersionEntry{{Number: "1.2.0.1"}},
			expected:       "1.2.0.1",
		},
	}

	for _, c := range testMatrix {
		t.Run(c.name, func(t *testing.T) {
			res := Interpret(&Manifest{Versions: c.versions}, "", c.runningVersion)
			assert.Equal(t, c.expected, res.AvailableVersion)
		})
	}
}

func TestInterpret_RelocationShortCircuitsVersions(t *testing.T) {
	m := &Manifest{
		Application: &ApplicationInfo{
			Location: "https://updates.example.com/v2/manifest.json",
		},
		Versions: []VersionEntry{{Number: "9.9.9"}},
	}

	res := Interpret(m, "https://updates.example.com/manifest.json", "1.0.0")
	assert.Equal(t, "https://updates.example.com/v2/manifest.json", res.RedirectLocation)
	// the old manifest is abandoned, its version list must not be trusted
	assert.Empty(t, res.AvailableVersion)
}

func TestInterpret_SameLocationIsNotARelocation(t *testing.T) {
	location := "https://updates.example.com/manifest.json"
	m := &Manifest{
		Application: &ApplicationInfo{
			Location:             location,
			DownloadPage:         "https://example.com/download",
			InstallerURL:         "https://example.com/installer.exe",
			HistoryURL:           "https://example.com/changelog",
			CheckIntervalSeconds: 3600,
		},
		Versions: []VersionEntry{{Number: "2.0.0"}},
	}

	res := Interpret(m, location, "1.0.0")
	assert.Empty(t, res.RedirectLocation)
	assert.Equal(t, "https://example.com/download", res.DownloadPage)
	assert.Equal(t, "https://example.com/installer.exe", res.InstallerURL)
	assert.Equal(t, "https://example.com/changelog", res.HistoryURL)
	assert.Equal(t, time.Hour, res.SuggestedInterval)
	assert.Equal(t, "2.0.0", res.AvailableVersion)
}

func TestInterpret_UnparsableRunningVersion(t *testing.T) {
	m := &Manifest{Versions: []VersionEntry{{Number: "1.0.0"}}}
	res := Interpret(m, "", "development")
	assert.Empty(t, res.AvailableVersion)
}
