package deploy

import (
	"errors"
	"testing"

	"shipdeck/internal/api"
	"shipdeck/internal/archive"
)

func validRequest() *Request {
	return &Request{
		Identity:  api.ServiceIdentity{Project: "shop", Environment: "prod", Service: "web"},
		Name:      "web",
		Port:      3000,
		Image:     &ImageSource{Reference: "registry.example.com/shop/web:1.2.3"},
		ServerIPs: []string{"10.0.0.1"},
	}
}

func TestRequest_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(r *Request)
		wantField string
	}{
		{
			name:   "valid image request",
			mutate: func(r *Request) {},
		},
		{
			name: "no source descriptor",
			mutate: func(r *Request) {
				r.Image = nil
			},
			wantField: "source",
		},
		{
			name: "two source descriptors",
			mutate: func(r *Request) {
				r.Git = &GitSource{URL: "https://github.com/acme/app"}
			},
			wantField: "source",
		},
		{
			name: "git without url",
			mutate: func(r *Request) {
				r.Image = nil
				r.Git = &GitSource{Branch: "main"}
			},
			wantField: "git",
		},
		{
			name: "image without reference",
			mutate: func(r *Request) {
				r.Image = &ImageSource{}
			},
			wantField: "image",
		},
		{
			name: "code without folders",
			mutate: func(r *Request) {
				r.Image = nil
				r.Code = &CodeSource{}
			},
			wantField: "code",
		},
		{
			name: "image file without name",
			mutate: func(r *Request) {
				r.Image = nil
				r.ImageFile = &ImageFileSource{Path: "/tmp/image.tar"}
			},
			wantField: "image_file",
		},
		{
			name: "no target servers",
			mutate: func(r *Request) {
				r.ServerIPs = nil
			},
			wantField: "servers",
		},
		{
			name: "provisioned count counts as target",
			mutate: func(r *Request) {
				r.ServerIPs = nil
				r.Provision = &ProvisionSpec{SnapshotID: "snap-1", Count: 2}
			},
		},
		{
			name: "provision without snapshot",
			mutate: func(r *Request) {
				r.Provision = &ProvisionSpec{Count: 2}
			},
			wantField: "provision",
		},
		{
			name: "invalid target ip",
			mutate: func(r *Request) {
				r.ServerIPs = []string{"not-an-ip"}
			},
			wantField: "servers",
		},
		{
			name: "port out of range",
			mutate: func(r *Request) {
				r.Port = 0
			},
			wantField: "port",
		},
		{
			name: "bad service name",
			mutate: func(r *Request) {
				r.Name = "web app"
			},
			wantField: "name",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)

			err := req.Validate()
			if tc.wantField == "" {
				if err != nil {
					t.Errorf("Validate() = %v, expected nil", err)
				}
				return
			}

			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Validate() = %v, expected *ValidationError", err)
			}
			if valErr.Field != tc.wantField {
				t.Errorf("field = %q, expected %q", valErr.Field, tc.wantField)
			}
		})
	}
}

func TestRequest_SourceType(t *testing.T) {
	req := validRequest()
	if got := req.SourceType(); got != SourceImage {
		t.Errorf("SourceType() = %q, expected image", got)
	}

	req.Code = &CodeSource{Folders: []archive.Folder{{Name: "app", Path: "."}}}
	if got := req.SourceType(); got != "" {
		t.Errorf("SourceType() with two sources = %q, expected empty", got)
	}
}

func TestRequest_ContainerName(t *testing.T) {
	req := validRequest()
	if got := req.ContainerName(); got != "shop-prod-web" {
		t.Errorf("ContainerName() = %q", got)
	}
}
