package banner

import (
	"github.com/charmbracelet/lipgloss"

	"breachbench/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    __                          __    __                    __  
   / /_  ________  ____ ______/ /_  / /_  ___  ____  _____/ /_ 
  / __ \/ ___/ _ \/ __ '/ ___/ __ \/ __ \/ _ \/ __ \/ ___/ __ \
 / /_/ / /  /  __/ /_/ / /__/ / / / /_/ /  __/ / / / /__/ / / /
/_.___/_/   \___/\__,_/\___/_/ /_/_.___/\___/_/ /_/\___/_/ /_/ `

	return "\n" + style.Render(ascii) + "\n"
}
