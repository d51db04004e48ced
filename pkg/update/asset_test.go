package update

import (
	"errors"
	"testing"

	"github.com/azagal258/objektdl/internal/model"
)

func assets(names ...string) []model.Asset {
	out := make([]model.Asset, 0, len(names))
	for _, n := range names {
		out = append(out, model.Asset{Name: n, BrowserDownloadURL: "https://example.invalid/" + n})
	}
	return out
}

func TestSelectAsset(t *testing.T) {
	tests := []struct {
		name    string
		rel     model.Release
		forced  bool
		want    string
		wantErr bool
	}{
		{
			name: "exact name among other packages",
			rel:  model.Release{TagName: "v.0.2.0", Assets: assets("package-v.0.1.0.zip", "package-latest.zip", "package-v.0.2.0.zip")},
			want: "package-v.0.2.0.zip",
		},
		{
			name:    "normal mode is case sensitive",
			rel:     model.Release{TagName: "v.0.2.0", Assets: assets("Package-v.0.2.0.zip", "package-v.0.2.0.ZIP")},
			wantErr: true,
		},
		{
			name:    "normal mode without match",
			rel:     model.Release{TagName: "v.0.2.0", Assets: assets("package-v.0.1.0.zip")},
			wantErr: true,
		},
		{
			name:    "normal mode without tag",
			rel:     model.Release{Assets: assets("package-.zip")},
			wantErr: true,
		},
		{
			name:    "no assets",
			rel:     model.Release{TagName: "v.0.2.0"},
			wantErr: true,
		},
		{
			name:   "forced picks first loose match in release order",
			rel:    model.Release{TagName: "v.0.2.0", Assets: assets("notes.txt", "package-nightly.zip", "package-v.0.2.0.zip")},
			forced: true,
			want:   "package-nightly.zip",
		},
		{
			name:   "forced ignores version",
			rel:    model.Release{Assets: assets("package.zip")},
			forced: true,
			want:   "package.zip",
		},
		{
			name:    "forced without loose match",
			rel:     model.Release{TagName: "v.0.2.0", Assets: assets("pkg-v.0.2.0.zip", "package-v.0.2.0.tar.gz")},
			forced:  true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectAsset(tt.rel, tt.forced)
			if tt.wantErr {
				if !errors.Is(err, ErrAssetNotFound) {
					t.Fatalf("SelectAsset error = %v, want ErrAssetNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectAsset: %v", err)
			}
			if got.Name != tt.want {
				t.Fatalf("asset: got %q want %q", got.Name, tt.want)
			}
		})
	}
}

func TestPackageName(t *testing.T) {
	if got := PackageName("v.0.2.0"); got != "package-v.0.2.0.zip" {
		t.Fatalf("PackageName: got %q", got)
	}
}
