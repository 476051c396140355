package emu

import (
	"context"
	"fmt"
	"strings"

	"github.com/testcontainers/testcontainers-go"
)

// BuildImage builds image (repo:tag) from the Dockerfile in dir and keeps it for later runs
func BuildImage(ctx context.Context, dir, dockerfile, image string) error {
	repo, tag, ok := strings.Cut(image, ":")
	if !ok {
		tag = "latest"
	}
	req := testcontainers.ContainerRequest{
		FromDockerfile: testcontainers.FromDockerfile{
			Context:    dir,
			Dockerfile: dockerfile,
			KeepImage:  true,
			Repo:       repo,
			Tag:        tag,
		},
	}
	// creating the container triggers the build
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          false,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", image, err)
	}
	return c.Terminate(ctx)
}
