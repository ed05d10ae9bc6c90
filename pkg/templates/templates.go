// Package templates renders the build descriptors (Dockerfiles) that
// the archive builder inserts into packaged code uploads.
package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/kballard/go-shellquote"
)

// Built-in descriptor templates by runtime.
const (
	RuntimeNode   = "node"
	RuntimePython = "python"
	RuntimeGo     = "go"
	RuntimeStatic = "static"
)

// dockerfileTemplates are exec-form Dockerfiles; CMD arguments are
// rendered as a JSON array so shell quoting in the start command is
// preserved exactly.
var dockerfileTemplates = map[string]string{
	RuntimeNode: `FROM node:20-alpine
WORKDIR /app
COPY package*.json ./
RUN npm install --omit=dev
COPY . .
EXPOSE {{.Port}}
CMD [{{.CommandArgs}}]
`,
	RuntimePython: `FROM python:3.12-slim
WORKDIR /app
COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE {{.Port}}
CMD [{{.CommandArgs}}]
`,
	RuntimeGo: `FROM golang:1.25-alpine AS build
WORKDIR /src
COPY . .
RUN go build -o /bin/app .
FROM alpine:3.21
COPY --from=build /bin/app /bin/app
EXPOSE {{.Port}}
CMD [{{.CommandArgs}}]
`,
	RuntimeStatic: `FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE {{.Port}}
`,
}

// defaultStartCommands are used when the caller does not supply a
// start command.
var defaultStartCommands = map[string]string{
	RuntimeNode:   "npm start",
	RuntimePython: "python main.py",
	RuntimeGo:     "/bin/app",
}

// DescriptorSpec describes one generated Dockerfile.
type DescriptorSpec struct {
	Runtime      string
	Port         int
	StartCommand string // shell-style string, parsed into argv
}

// ListRuntimes returns the supported runtime names.
func ListRuntimes() []string {
	return []string{RuntimeNode, RuntimePython, RuntimeGo, RuntimeStatic}
}

// ValidRuntime checks if a runtime name has a built-in template.
func ValidRuntime(name string) bool {
	_, ok := dockerfileTemplates[name]
	return ok
}

// RenderDockerfile renders the Dockerfile for a descriptor spec. The
// start command is split with shell quoting rules, so a command like
// `node server.js --port "8080"` becomes a three-element exec-form CMD.
func RenderDockerfile(spec DescriptorSpec) (string, error) {
	tmplContent, ok := dockerfileTemplates[spec.Runtime]
	if !ok {
		return "", fmt.Errorf("unknown runtime %q (supported: %s)", spec.Runtime, strings.Join(ListRuntimes(), ", "))
	}

	command := spec.StartCommand
	if command == "" {
		command = defaultStartCommands[spec.Runtime]
	}

	var commandArgs string
	if command != "" {
		argv, err := shellquote.Split(command)
		if err != nil {
			return "", fmt.Errorf("parsing start command %q: %w", command, err)
		}
		quoted := make([]string, len(argv))
		for i, arg := range argv {
			quoted[i] = fmt.Sprintf("%q", arg)
		}
		commandArgs = strings.Join(quoted, ", ")
	}

	tmpl, err := template.New(spec.Runtime).Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("parsing dockerfile template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Port        int
		CommandArgs string
	}{Port: spec.Port, CommandArgs: commandArgs})
	if err != nil {
		return "", fmt.Errorf("rendering dockerfile template: %w", err)
	}

	return buf.String(), nil
}
