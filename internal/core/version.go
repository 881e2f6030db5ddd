package core

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"k8s.io/apimachinery/pkg/version"
)

// ServerVersionSupported reports whether the cluster version meets
// the configured minimum. Build metadata suffixes in GitVersion
// (e.g. "+k3s1") are tolerated.
func ServerVersionSupported(info *version.Info, minVersion string) (bool, error) {
	if minVersion == "" {
		return true, nil
	}

	minimum, err := semver.NewVersion(strings.TrimPrefix(minVersion, "v"))
	if err != nil {
		return false, fmt.Errorf("parse minimum version %q: %w", minVersion, err)
	}
	server, err := semver.NewVersion(strings.TrimPrefix(info.GitVersion, "v"))
	if err != nil {
		return false, fmt.Errorf("parse server version %q: %w", info.GitVersion, err)
	}
	return server.Compare(minimum) >= 0, nil
}
