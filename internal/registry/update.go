package registry

import (
	"context"
	"log"

	"github.com/Masterminds/semver/v3"
)

// UpdateInfo reports the outcome of an update check for one character.
type UpdateInfo struct {
	CharacterID      string `json:"characterId"`
	CurrentVersion   string `json:"currentVersion"`
	AvailableVersion string `json:"availableVersion"`
	PackURL          string `json:"packUrl"`
	UpdateAvailable  bool   `json:"updateAvailable"`
}

// CheckUpdate compares the installed version of a character against the
// registry index. Versions are compared as semantic versions, so "0.10.0"
// is newer than "0.9.0".
//
// The check is best-effort: a missing registry, an unreachable endpoint, or
// an unparseable version yields (nil, nil) rather than an error, because an
// update check must never block normal operation.
func (c *Client) CheckUpdate(ctx context.Context, characterID, currentVersion string) (*UpdateInfo, error) {
	entries, err := c.index(ctx, "check_update")
	if err != nil {
		log.Printf("update check for %s skipped: %v", characterID, err)
		return nil, nil
	}

	for _, e := range entries {
		if e.CharacterID != characterID {
			continue
		}
		current, err := semver.NewVersion(currentVersion)
		if err != nil {
			log.Printf("update check for %s skipped: bad installed version %q: %v", characterID, currentVersion, err)
			return nil, nil
		}
		available, err := semver.NewVersion(e.Version)
		if err != nil {
			log.Printf("update check for %s skipped: bad registry version %q: %v", characterID, e.Version, err)
			return nil, nil
		}
		return &UpdateInfo{
			CharacterID:      characterID,
			CurrentVersion:   currentVersion,
			AvailableVersion: e.Version,
			PackURL:          e.PackURL,
			UpdateAvailable:  available.GreaterThan(current),
		}, nil
	}
	return nil, nil
}
