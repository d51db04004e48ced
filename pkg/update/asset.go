package update

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/azagal258/objektdl/internal/model"
)

const (
	packagePrefix = "package"
	packageSuffix = ".zip"
)

// ErrAssetNotFound is returned when no release asset matches the naming rule.
var ErrAssetNotFound = errors.New("no matching package asset in release")

// PackageName returns the asset name a normal update looks for.
func PackageName(tag string) string {
	return packagePrefix + "-" + tag + packageSuffix
}

// SelectAsset picks the package asset to download.
//
// Normal mode requires an asset named exactly PackageName(rel.TagName).
// Forced mode takes the first asset, in release order, whose name starts with
// "package" and ends with ".zip", ignoring the version.
func SelectAsset(rel model.Release, forced bool) (model.Asset, error) {
	if len(rel.Assets) == 0 {
		return model.Asset{}, ErrAssetNotFound
	}

	var match func(model.Asset) bool
	if forced {
		match = func(a model.Asset) bool {
			return strings.HasPrefix(a.Name, packagePrefix) && strings.HasSuffix(a.Name, packageSuffix)
		}
	} else {
		if strings.TrimSpace(rel.TagName) == "" {
			return model.Asset{}, ErrAssetNotFound
		}
		want := PackageName(rel.TagName)
		match = func(a model.Asset) bool { return a.Name == want }
	}

	asset, ok := lo.Find(rel.Assets, match)
	if !ok {
		return model.Asset{}, ErrAssetNotFound
	}
	return asset, nil
}
