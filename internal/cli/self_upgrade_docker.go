//go:build docker

package cli

// Container images are upgraded by pulling a new image.
func setupSelfUpgrade() {}
