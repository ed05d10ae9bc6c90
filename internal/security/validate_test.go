package security

import "testing"

func TestValidateName(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "valid simple", input: "web-app", expectErr: false},
		{name: "valid with underscore", input: "web_app_2", expectErr: false},
		{name: "empty", input: "", expectErr: true},
		{name: "leading dash", input: "-web", expectErr: true},
		{name: "leading dot", input: ".web", expectErr: true},
		{name: "spaces", input: "web app", expectErr: true},
		{name: "shell metachars", input: "web;rm", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName("service", tc.input)
			if (err != nil) != tc.expectErr {
				t.Errorf("ValidateName(%q) error = %v, expectErr = %v", tc.input, err, tc.expectErr)
			}
		})
	}
}

func TestValidateGitURL(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "https github", input: "https://github.com/acme/app", expectErr: false},
		{name: "https self-hosted", input: "https://git.example.com/acme/app.git", expectErr: false},
		{name: "ssh scheme", input: "git@github.com:acme/app.git", expectErr: true},
		{name: "http scheme", input: "http://github.com/acme/app", expectErr: true},
		{name: "no host", input: "https:///acme/app", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGitURL(tc.input)
			if (err != nil) != tc.expectErr {
				t.Errorf("ValidateGitURL(%q) error = %v, expectErr = %v", tc.input, err, tc.expectErr)
			}
		})
	}
}

func TestValidateServerIP(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "ipv4", input: "10.0.0.1", expectErr: false},
		{name: "ipv6", input: "2001:db8::1", expectErr: false},
		{name: "hostname", input: "server.example.com", expectErr: true},
		{name: "empty", input: "", expectErr: true},
		{name: "garbage", input: "1.2.3", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateServerIP(tc.input)
			if (err != nil) != tc.expectErr {
				t.Errorf("ValidateServerIP(%q) error = %v, expectErr = %v", tc.input, err, tc.expectErr)
			}
		})
	}
}

func TestSanitizeArchivePath(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  string
		expectErr bool
	}{
		{name: "plain file", input: "main.go", expected: "main.go"},
		{name: "nested", input: "src/app/main.go", expected: "src/app/main.go"},
		{name: "dot segments cleaned", input: "./src/./main.go", expected: "src/main.go"},
		{name: "backslashes normalized", input: "src\\main.go", expected: "src/main.go"},
		{name: "traversal", input: "../etc/passwd", expectErr: true},
		{name: "nested traversal", input: "a/../../etc", expectErr: true},
		{name: "absolute", input: "/etc/passwd", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SanitizeArchivePath(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("SanitizeArchivePath(%q) = %q, expected error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeArchivePath(%q) error: %v", tc.input, err)
			}
			if got != tc.expected {
				t.Errorf("SanitizeArchivePath(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
