package version

// Flag marks builds that are not releases. It is empty on tagged versions.
const Flag = "develop"

var (
	// Version is the full version string, also sent as the user agent of
	// snapshot downloads.
	Version = "0.2.0"

	// GitCommit is set with --ldflags "-X github.com/mosaicnetworks/chainboot/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if len(GitCommit) >= 8 {
		Version += "-" + GitCommit[:8]
	}
}
