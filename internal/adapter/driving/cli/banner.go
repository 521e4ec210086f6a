package cli

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/jnywong/jupyterhub-cost-monitoring/pkg/version"
)

// displayWelcomeBanner prints the welcome banner with version information.
func displayWelcomeBanner() {
	banner := `
     __            _             _           _
  _ / /_ __  _  _| |_ ___ _ _  | |_ _  _ | |__
 | | | | '_ \| || |  _/ -_) '_| | ' \ || || '_ \
 | | | | .__/ \_, |\__\___|_|   |_||_\_,_||_.__/
 |_/_/ |_|    |__/       cost monitoring
`
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	blue := color.New(color.FgBlue, color.Bold).SprintFunc()

	fmt.Println(cyan(banner))
	fmt.Println(blue(fmt.Sprintf("jupyterhub-cost-monitoring (v%s)", version.FormatVersion())))
}
