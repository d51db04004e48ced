package verify

import (
	"fmt"

	"github.com/azagal258/objektdl/internal/model"
)

// FindSignatureAsset returns the detached minisign signature published next to
// packageName, or nil.
func FindSignatureAsset(rel *model.Release, packageName string) *model.Asset {
	return rel.FindAsset(packageName + SignatureSuffix)
}

// FormatSize formats bytes as human-readable size.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
