package templates

import (
	"strings"
	"testing"
)

func TestRenderDockerfile(t *testing.T) {
	testCases := []struct {
		name         string
		spec         DescriptorSpec
		wantContains []string
		expectErr    bool
	}{
		{
			name: "node with default command",
			spec: DescriptorSpec{Runtime: RuntimeNode, Port: 3000},
			wantContains: []string{
				"FROM node:20-alpine",
				"EXPOSE 3000",
				`CMD ["npm", "start"]`,
			},
		},
		{
			name: "custom start command with quoting",
			spec: DescriptorSpec{Runtime: RuntimeNode, Port: 8080, StartCommand: `node server.js --name "my app"`},
			wantContains: []string{
				`CMD ["node", "server.js", "--name", "my app"]`,
			},
		},
		{
			name: "python runtime",
			spec: DescriptorSpec{Runtime: RuntimePython, Port: 5000},
			wantContains: []string{
				"FROM python:3.12-slim",
				`CMD ["python", "main.py"]`,
			},
		},
		{
			name: "static has no command",
			spec: DescriptorSpec{Runtime: RuntimeStatic, Port: 80},
			wantContains: []string{
				"FROM nginx:alpine",
			},
		},
		{
			name:      "unknown runtime",
			spec:      DescriptorSpec{Runtime: "cobol", Port: 80},
			expectErr: true,
		},
		{
			name:      "unterminated quote in command",
			spec:      DescriptorSpec{Runtime: RuntimeGo, Port: 80, StartCommand: `/bin/app "unterminated`},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rendered, err := RenderDockerfile(tc.spec)
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected error, got dockerfile:\n%s", rendered)
				}
				return
			}
			if err != nil {
				t.Fatalf("RenderDockerfile error: %v", err)
			}
			for _, want := range tc.wantContains {
				if !strings.Contains(rendered, want) {
					t.Errorf("dockerfile missing %q:\n%s", want, rendered)
				}
			}
		})
	}
}

func TestValidRuntime(t *testing.T) {
	for _, runtime := range ListRuntimes() {
		if !ValidRuntime(runtime) {
			t.Errorf("listed runtime %q not valid", runtime)
		}
	}
	if ValidRuntime("java8") {
		t.Error("unknown runtime reported as valid")
	}
}
