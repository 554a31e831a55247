package main

import (
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "pv [archive]",
		Short:        "Paged viewer for image archives",
		Long:         "pv shows the JPEG and PNG pages of a zip, rar, 7z or tar archive one or two at a time and remembers where you stopped reading.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}

func run(args []string) error {
	status := loadConfig()
	config := status.Config
	setupLogging(config.Debug)

	progress := NewProgressStore(afero.NewOsFs(), realClock{}, config.SaveDelay())
	session, err := NewSession(config, progress)
	if err != nil {
		return err
	}

	viewer, err := NewViewer(session, progress, status)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		viewer.Open(args[0])
	} else {
		viewer.ShowOverlayMessage(dropHint)
	}

	ebiten.SetWindowTitle("pv")
	ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)

	return ebiten.RunGame(viewer)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
