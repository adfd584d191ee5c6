package doctor

import "testing"

func TestParseMajorMinor(t *testing.T) {
	tests := []struct {
		ver          string
		major, minor int
		wantErr      bool
	}{
		{"1.23", 1, 23, false},
		{"1.22.0", 1, 22, false},
		{"v1.20.1", 1, 20, false},
		{"1.19rc1", 1, 19, false},
		{" 1.18.0\n", 1, 18, false},
		{"1", 0, 0, true},
		{"", 0, 0, true},
		{"abc.11", 0, 0, true},
		{"1.xyz", 0, 0, true},
	}

	for _, tt := range tests {
		major, minor, err := parseMajorMinor(tt.ver)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMajorMinor(%q) error = %v, wantErr %v", tt.ver, err, tt.wantErr)
			continue
		}

		if major != tt.major || minor != tt.minor {
			t.Errorf("parseMajorMinor(%q) = %d.%d; want %d.%d", tt.ver, major, minor, tt.major, tt.minor)
		}
	}
}

func TestCheckORTVersion(t *testing.T) {
	tests := []struct {
		ver     string
		api     uint32
		wantErr bool
	}{
		{"1.23.0", 23, false},
		{"1.24.1", 23, false},
		{"1.22.0", 23, true},
		{"1.16.3", 0, false},
		{"2.0.0", 23, true},
		{"abc", 23, true},
	}

	for _, tt := range tests {
		if err := checkORTVersion(tt.ver, tt.api); (err != nil) != tt.wantErr {
			t.Errorf("checkORTVersion(%q, %d) = %v; wantErr %v", tt.ver, tt.api, err, tt.wantErr)
		}
	}
}
