package extension

import (
	"context"
	"testing"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

func TestParseVersions_SortsByMajorDescending(t *testing.T) {
	vf, err := ParseVersions([]byte(`[
		{"api_version":"^1.0.0","commit":"python2"},
		{"required_api_version":"^2.0.0","commit":"master"}
	]`))
	if err != nil {
		t.Fatalf("ParseVersions() error: %v", err)
	}

	want := []CompatibleVersion{
		{APIVersion: "2", Commit: "master"},
		{APIVersion: "1", Commit: "python2"},
	}
	if len(vf.Versions) != len(want) {
		t.Fatalf("got %d versions, want %d", len(vf.Versions), len(want))
	}
	for i := range want {
		if vf.Versions[i] != want[i] {
			t.Errorf("Versions[%d] = %+v, want %+v", i, vf.Versions[i], want[i])
		}
	}
	if vf.LatestSupported != "2" {
		t.Errorf("LatestSupported = %q, want 2", vf.LatestSupported)
	}
	if vf.CommitOrBranch != "master" {
		t.Errorf("CommitOrBranch = %q, want master", vf.CommitOrBranch)
	}
}

func TestParseVersions_NumericOrderAndStableTies(t *testing.T) {
	vf, err := ParseVersions([]byte(`[
		{"api_version":"9","commit":"a"},
		{"api_version":"10","commit":"b"},
		{"api_version":"^9.1","commit":"c"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	got := []string{vf.Versions[0].Commit, vf.Versions[1].Commit, vf.Versions[2].Commit}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestParseVersions_APIVersionPreferred(t *testing.T) {
	vf, err := ParseVersions([]byte(`[{"api_version":"3","required_api_version":"^2.0.0","commit":"main"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if vf.LatestSupported != "3" {
		t.Errorf("LatestSupported = %q, want 3", vf.LatestSupported)
	}
}

func TestParseVersions_SkipsInvalidEntries(t *testing.T) {
	vf, err := ParseVersions([]byte(`[
		{"api_version":"2"},
		{"api_version":"x","commit":"a"},
		{"commit":"b"},
		"not an object",
		{"api_version":"2","commit":""},
		{"api_version":2,"commit":"numeric"}
	]`))
	if err != nil {
		t.Fatalf("ParseVersions() error: %v", err)
	}
	if len(vf.Versions) != 1 || vf.Versions[0].Commit != "numeric" {
		t.Errorf("Versions = %+v, want only the numeric entry", vf.Versions)
	}
}

func TestParseVersions_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"mapping", `{"api_version":"2","commit":"master"}`},
		{"string", `"2"`},
		{"empty list", `[]`},
		{"no valid entries", `[{"api_version":"abc","commit":"master"},{"api_version":"2"}]`},
		{"malformed json", `[{"api_version":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVersions([]byte(tt.raw))
			if !apperrors.Is(err, apperrors.CodeInvalidVersions) {
				t.Errorf("ParseVersions(%s) error = %v, want %s", tt.raw, err, apperrors.CodeInvalidVersions)
			}
		})
	}
}

func TestResolver_Versions(t *testing.T) {
	src := newFakeSource()
	src.repos["owner/repo"] = &RepoInfo{StargazersCount: 5, DefaultBranch: "main"}
	src.files["owner/repo@main/versions"] = `[{"api_version":"2","commit":"v2-branch"}]`

	r := NewResolver(src, nil)

	vf, err := r.Versions(context.Background(), "owner/repo", nil)
	if err != nil {
		t.Fatalf("Versions() error: %v", err)
	}
	if vf.CommitOrBranch != "v2-branch" {
		t.Errorf("CommitOrBranch = %q", vf.CommitOrBranch)
	}
	if src.repoCalls != 1 {
		t.Errorf("repo info should be fetched when not supplied, calls = %d", src.repoCalls)
	}

	_, err = r.Versions(context.Background(), "owner/other", &RepoInfo{DefaultBranch: "master"})
	if !apperrors.Is(err, apperrors.CodeJSONFileNotFound) {
		t.Errorf("missing versions.json error = %v, want %s", err, apperrors.CodeJSONFileNotFound)
	}
	if src.repoCalls != 1 {
		t.Errorf("supplied repo info should be used, calls = %d", src.repoCalls)
	}
}
