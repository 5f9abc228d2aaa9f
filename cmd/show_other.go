//go:build !linux

package cmd

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func runShow(cmd *cobra.Command, opts *ShowOptions) error {
	return errors.Errorf("vkshow show is only supported on linux, not %s", runtime.GOOS)
}
