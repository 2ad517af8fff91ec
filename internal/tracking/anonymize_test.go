package tracking

import "testing"

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"203.0.113.42", "203.0.113.0"},
		{"1.2.3.4", "1.2.3.0"},
		{"10.0.0.1", "10.0.0.0"},
		{"255.255.255.255", "255.255.255.0"},
		{"2001:db8:85a3:8d3:1319:8a2e:370:7348", "2001:db8:85a3::"},
		{"fe80:0:0:0:0:0:0:1", "fe80:0:0::"},
		{"", "unknown"},
		{"not-an-ip", "unknown"},
		{"1.2.3", "unknown"},
		{"1.2.3.999", "unknown"},
		{"1.2.3.x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := AnonymizeIP(tt.ip); got != tt.want {
				t.Errorf("AnonymizeIP(%q) = %q, want %q", tt.ip, got, tt.want)
			}
		})
	}
}

func TestAnonymizeIPKeepsThreeGroups(t *testing.T) {
	addrs := []string{
		"2001:db8:1:2:3:4:5:6",
		"fd00:abcd:ef01:2345:6789:abc:def0:1",
	}
	for _, ip := range addrs {
		got := AnonymizeIP(ip)
		if len(got) < 4 || got[len(got)-2:] != "::" {
			t.Errorf("AnonymizeIP(%q) = %q, want trailing ::", ip, got)
		}
	}
}
