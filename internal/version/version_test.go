package version

import "testing"

// withBuildInfo подменяет значения, которые при сборке проставляются через -ldflags.
func withBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()

	prevVersion, prevCommit, prevDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() {
		version, commit, date = prevVersion, prevCommit, prevDate
	})
}

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	if v != "dev" || c != "unknown" || d != "unknown" {
		t.Fatalf("unexpected defaults: %q %q %q", v, c, d)
	}
}

func TestLinkerValues(t *testing.T) {
	withBuildInfo(t, "v1.4.0", "3f2a9c1", "2024-05-10T12:00:00Z")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "GetVersion", got: GetVersion(), want: "v1.4.0"},
		{name: "GetCommit", got: GetCommit(), want: "3f2a9c1"},
		{name: "GetDate", got: GetDate(), want: "2024-05-10T12:00:00Z"},
		{name: "String", got: String(), want: "version=v1.4.0 commit=3f2a9c1 date=2024-05-10T12:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}

	v, c, d := Info()
	if v != GetVersion() || c != GetCommit() || d != GetDate() {
		t.Fatalf("Info() = %q %q %q disagrees with getters", v, c, d)
	}
}
