package deploy

import (
	"encoding/json"
	"fmt"
	"reflect"

	"shipdeck/internal/api"
	"shipdeck/internal/archive"
	"shipdeck/internal/security"
)

// Source type tags sent to the backend.
const (
	SourceCode      = "code"
	SourceGit       = "git"
	SourceImage     = "image"
	SourceImageFile = "image_file"
)

// EnvVar is one environment variable. Order is preserved through to
// the backend, so variables may reference earlier ones.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CodeSource deploys local build folders packaged into one archive.
// Runtime and StartCommand drive descriptor generation; Descriptor,
// when set, is a user-edited Dockerfile used verbatim instead.
type CodeSource struct {
	Folders      []archive.Folder
	Runtime      string
	StartCommand string
	Descriptor   string
}

// GitSource deploys from a repository the backend clones itself.
type GitSource struct {
	URL     string
	Branch  string
	Folders []string
	Token   string
}

// ImageSource deploys a registry image reference.
type ImageSource struct {
	Reference string
}

// ImageFileSource deploys a locally exported image tarball.
type ImageFileSource struct {
	Path        string
	ImageName   string
	PortMapping string
}

// ProvisionSpec describes servers to create from a snapshot as part of
// the deploy.
type ProvisionSpec struct {
	SnapshotID string
	Region     string
	Size       string
	Count      int
}

// Request is one deploy request. Exactly one of Code, Git, Image, and
// ImageFile must be set; the target set (explicit IPs plus provisioned
// count) must be non-empty.
type Request struct {
	Identity api.ServiceIdentity
	Name     string
	Port     int

	Code      *CodeSource
	Git       *GitSource
	Image     *ImageSource
	ImageFile *ImageFileSource

	Env       []EnvVar
	Tags      []string
	ServerIPs []string
	Provision *ProvisionSpec
	Excludes  []string

	SetupDomain bool
	Domain      string
}

// ValidationError is a pre-flight rejection. It is always raised
// before any network call, so a validation failure has no side effects.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deploy request: %s: %s", e.Field, e.Message)
}

// SourceType returns the tag of the populated source descriptor, or an
// empty string if none or several are set.
func (r *Request) SourceType() string {
	var found string
	count := 0
	if r.Code != nil {
		found = SourceCode
		count++
	}
	if r.Git != nil {
		found = SourceGit
		count++
	}
	if r.Image != nil {
		found = SourceImage
		count++
	}
	if r.ImageFile != nil {
		found = SourceImageFile
		count++
	}
	if count != 1 {
		return ""
	}
	return found
}

// ContainerName is the name the backend gives the service container,
// used for orphan cleanup requests.
func (r *Request) ContainerName() string {
	return fmt.Sprintf("%s-%s-%s", r.Identity.Project, r.Identity.Environment, r.Name)
}

// Validate enforces the pre-flight gate. The first failure is
// returned; nothing has touched the network at that point.
func (r *Request) Validate() error {
	if err := security.ValidateName("project", r.Identity.Project); err != nil {
		return &ValidationError{Field: "project", Message: err.Error()}
	}
	if err := security.ValidateName("environment", r.Identity.Environment); err != nil {
		return &ValidationError{Field: "environment", Message: err.Error()}
	}
	if err := security.ValidateName("service", r.Name); err != nil {
		return &ValidationError{Field: "name", Message: err.Error()}
	}
	if r.Port <= 0 || r.Port > 65535 {
		return &ValidationError{Field: "port", Message: fmt.Sprintf("port %d out of range", r.Port)}
	}

	switch r.SourceType() {
	case SourceCode:
		if len(r.Code.Folders) == 0 {
			return &ValidationError{Field: "code", Message: "no build folders selected"}
		}
	case SourceGit:
		if r.Git.URL == "" {
			return &ValidationError{Field: "git", Message: "repository URL is required"}
		}
		if err := security.ValidateGitURL(r.Git.URL); err != nil {
			return &ValidationError{Field: "git", Message: err.Error()}
		}
		if r.Git.Branch != "" {
			if err := security.ValidateBranchName(r.Git.Branch); err != nil {
				return &ValidationError{Field: "git", Message: err.Error()}
			}
		}
	case SourceImage:
		if r.Image.Reference == "" {
			return &ValidationError{Field: "image", Message: "image reference is required"}
		}
	case SourceImageFile:
		if r.ImageFile.Path == "" {
			return &ValidationError{Field: "image_file", Message: "image tarball path is required"}
		}
		if r.ImageFile.ImageName == "" {
			return &ValidationError{Field: "image_file", Message: "image name is required"}
		}
	default:
		return &ValidationError{Field: "source", Message: "exactly one source (code, git, image, image_file) must be set"}
	}

	provisionCount := 0
	if r.Provision != nil {
		provisionCount = r.Provision.Count
		if provisionCount > 0 && r.Provision.SnapshotID == "" {
			return &ValidationError{Field: "provision", Message: "snapshot id is required to provision new servers"}
		}
	}
	if len(r.ServerIPs) == 0 && provisionCount == 0 {
		return &ValidationError{Field: "servers", Message: "no target servers selected"}
	}
	for _, ip := range r.ServerIPs {
		if err := security.ValidateServerIP(ip); err != nil {
			return &ValidationError{Field: "servers", Message: err.Error()}
		}
	}

	return nil
}

// encodeJSONField marshals a value for a multipart form field. The
// fields are declared as JSON arrays, so a nil slice (legal on a
// provision-only deploy, which targets no existing servers) encodes as
// "[]" rather than "null". Values here are small slices; a marshal
// failure indicates a programming error, so it panics rather than
// returning an error.
func encodeJSONField(v any) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.IsNil() {
		return "[]"
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encoding form field: %v", err))
	}
	return string(encoded)
}
