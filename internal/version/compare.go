package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// CheckConfigVersion reports whether a config file pinned to configVersion
// can be read by a binary at binaryVersion.
//
// Rules:
//   - an empty pin or a "main" build on either side skips the check
//   - major versions must match
//   - the config may not need a newer minor than the binary provides
//   - patch versions are ignored
func CheckConfigVersion(binaryVersion, configVersion string) error {
	binaryVersion = strings.TrimPrefix(binaryVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if configVersion == "" || binaryVersion == "main" || configVersion == "main" {
		return nil
	}

	binary, err := semver.NewVersion(binaryVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid binary version '%s'", binaryVersion)
	}

	pinned, err := semver.NewVersion(configVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid config version '%s'", configVersion)
	}

	if binary.Major() != pinned.Major() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"major version mismatch: binary is %d.x.x but config requires %d.x.x",
			binary.Major(), pinned.Major())
	}

	if pinned.Minor() > binary.Minor() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"config requires %d.%d.x but binary is %d.%d.x",
			pinned.Major(), pinned.Minor(), binary.Major(), binary.Minor())
	}

	return nil
}
