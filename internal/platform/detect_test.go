package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.Arch != normalizeArch(runtime.GOARCH) {
		t.Errorf("Arch = %v, want %v", info.Arch, normalizeArch(runtime.GOARCH))
	}

	// Distro detection may fall back to empty fields, but a detected
	// platform always carries a family.
	if info.Platform != "" && info.Family == "" {
		t.Error("Family should be set when Platform is set")
	}
	if runtime.GOOS != "linux" && info.GetDistro() != nil {
		t.Errorf("GetDistro() = %+v on non-Linux, want nil", info.GetDistro())
	}
}

func TestRealDetector_CancelledContext(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("distro detection only runs on Linux")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// gopsutil may answer from the file before checking ctx; either outcome
	// is fine as long as a returned Info is usable.
	info, err := NewDetector().Detect(ctx)
	if err == nil && info == nil {
		t.Fatal("Detect() returned nil info and nil error")
	}
}

func TestStaticDetector(t *testing.T) {
	want := Info{OS: "linux", Arch: "arm64", Platform: "alpine", Family: FamilyAlpine, Version: "3.20"}
	d := StaticDetector{Info: want}

	got, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if *got != want {
		t.Errorf("Detect() = %+v, want %+v", *got, want)
	}

	// Mutating the result must not leak into the detector.
	got.OS = "windows"
	again, _ := d.Detect(context.Background())
	if again.OS != "linux" {
		t.Errorf("second Detect() OS = %q, want linux", again.OS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx); err == nil {
		t.Error("Detect() with cancelled context: expected error")
	}
}

func TestInfoHelpers(t *testing.T) {
	tests := []struct {
		name       string
		info       Info
		wantDistro bool
		wantDebian bool
		wantAlpine bool
	}{
		{"debian", Info{OS: "linux", Arch: "amd64", Platform: "debian", Family: FamilyDebian}, true, true, false},
		{"alpine", Info{OS: "linux", Arch: "arm64", Platform: "alpine", Family: FamilyAlpine}, true, false, true},
		{"linux without distro", Info{OS: "linux", Arch: "amd64"}, false, false, false},
		{"darwin", Info{OS: "darwin", Arch: "arm64", Family: FamilyDebian}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.GetDistro() != nil; got != tt.wantDistro {
				t.Errorf("GetDistro() != nil = %v, want %v", got, tt.wantDistro)
			}
			if got := tt.info.IsDebianFamily(); got != tt.wantDebian {
				t.Errorf("IsDebianFamily() = %v, want %v", got, tt.wantDebian)
			}
			if got := tt.info.IsAlpine(); got != tt.wantAlpine {
				t.Errorf("IsAlpine() = %v, want %v", got, tt.wantAlpine)
			}
		})
	}
}

func TestDetectDistro(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		family  string
		version string
		err     error
		want    Info
	}{
		{"debian", "Debian", "debian", "12", nil, Info{Platform: "debian", Family: FamilyDebian, Version: "12"}},
		{"empty family falls back to id", "alpine", "", "3.20.3", nil, Info{Platform: "alpine", Family: FamilyAlpine, Version: "3.20.3"}},
		{"unknown distro", "nixos", "", "24.05", nil, Info{Platform: "nixos", Family: FamilyUnknown, Version: "24.05"}},
		{"no os-release", "", "", "", nil, Info{}},
		{"read failure", "", "", "", errors.New("open /etc/os-release: no such file"), Info{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := platformInformation
			platformInformation = func(context.Context) (string, string, string, error) {
				return tt.id, tt.family, tt.version, tt.err
			}
			defer func() { platformInformation = orig }()

			var got Info
			if err := detectDistro(context.Background(), &got); err != nil {
				t.Fatalf("detectDistro() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("detectDistro() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDetectDistro_Cancelled(t *testing.T) {
	orig := platformInformation
	platformInformation = func(ctx context.Context) (string, string, string, error) {
		return "", "", "", ctx.Err()
	}
	defer func() { platformInformation = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var info Info
	if err := detectDistro(ctx, &info); !errors.Is(err, context.Canceled) {
		t.Errorf("detectDistro() error = %v, want context.Canceled", err)
	}
}
