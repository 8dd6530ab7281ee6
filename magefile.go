//go:build mage

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Build builds Folio for Linux with Green Tea GC
func Build() error {
	fmt.Println("Building Folio for Linux with Go 1.25 + Green Tea GC...")
	env := map[string]string{
		"GOOS":         "linux",
		"GOARCH":       "amd64",
		"GOEXPERIMENT": "greenteagc",
	}
	return sh.RunWith(env, "go", "build", "-o", "folio-linux-amd64", "./cmd/folio")
}

// BuildDocker builds the container flavour, without self-upgrade and with
// proxy trust limited to private networks.
func BuildDocker() error {
	fmt.Println("Building Folio for Docker...")
	env := map[string]string{
		"GOOS":        "linux",
		"CGO_ENABLED": "0",
	}
	return sh.RunWith(env, "go", "build", "-tags", "docker", "-o", "folio-docker", "./cmd/folio")
}

// BuildLocal builds Folio for current platform
func BuildLocal() error {
	fmt.Printf("Building Folio for %s/%s...\n", runtime.GOOS, runtime.GOARCH)
	return sh.Run("go", "build", "-o", "folio", "./cmd/folio")
}

// Test runs tests
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-v", "./...")
}

// TestDocker runs tests with the docker build tag
func TestDocker() error {
	fmt.Println("Running tests (docker tag)...")
	return sh.Run("go", "test", "-tags", "docker", "./...")
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning build artifacts...")
	for _, f := range []string{"folio", "folio-linux-amd64", "folio-docker"} {
		_ = os.Remove(f)
	}
	return nil
}

// Update upgrades all Go dependencies
func Update() error {
	fmt.Println("Updating dependencies...")
	if err := sh.Run("go", "get", "-u", "./..."); err != nil {
		return err
	}
	return sh.Run("go", "mod", "tidy")
}

// Fmt runs gofmt on all Go files
func Fmt() error {
	fmt.Println("Formatting code...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet on all Go files
func Vet() error {
	fmt.Println("Vetting code...")
	return sh.Run("go", "vet", "./...")
}

// Bench runs benchmarks
func Bench() error {
	fmt.Println("Running benchmarks...")
	return sh.Run("go", "test", "-bench=.", "./...")
}

// Deps downloads dependencies
func Deps() error {
	fmt.Println("Downloading dependencies...")
	return sh.Run("go", "mod", "download")
}

// Tidy tidies go.mod
func Tidy() error {
	fmt.Println("Tidying go.mod...")
	return sh.Run("go", "mod", "tidy")
}

// CI runs all checks for continuous integration
func CI() {
	mg.SerialDeps(Deps, Fmt, Vet, Test, TestDocker)
	fmt.Println("All CI checks passed!")
}
