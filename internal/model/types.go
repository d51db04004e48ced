package model

// Release is the subset of the GitHub release payload that the updater uses.
// TagName may be empty when the remote did not publish a usable version tag.
type Release struct {
	TagName   string  `json:"tag_name"`
	Immutable bool    `json:"immutable"`
	Assets    []Asset `json:"assets"`
}

// Asset is the subset of the GitHub release asset payload that the updater uses.
// Digest is formatted "<algorithm>:<hex>", e.g. "sha256:9f86d0...".
type Asset struct {
	Name               string `json:"name"`
	Digest             string `json:"digest"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// AssetNames lists asset names in release order.
func (r *Release) AssetNames() []string {
	names := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		names = append(names, a.Name)
	}
	return names
}

// FindAsset returns the asset with the exact name, or nil.
func (r *Release) FindAsset(name string) *Asset {
	for i := range r.Assets {
		if r.Assets[i].Name == name {
			return &r.Assets[i]
		}
	}
	return nil
}
