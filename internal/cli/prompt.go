package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// PromptForInstruction prompts the user interactively for an editing
// instruction. Returns the empty string if the user enters nothing.
func PromptForInstruction() string {
	fmt.Print("Instruction: ")

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read instruction input")
		return ""
	}

	return strings.TrimSpace(input)
}

// ReadLine reads one trimmed line from stdin. Returns false on EOF.
func ReadLine(prompt string) (string, bool) {
	fmt.Print(prompt)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return strings.TrimSpace(input), false
	}
	return strings.TrimSpace(input), true
}

// PickImageFiles opens a native multi-file picker filtered to image types.
// Returns an empty slice (no error) when the user cancels.
func PickImageFiles() ([]string, error) {
	selected, err := zenity.SelectFileMultiple(
		zenity.Title("Select images to edit"),
		zenity.FileFilters{
			{
				Name: "Image files",
				Patterns: []string{
					"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp",
					"*.heic", "*.heif",
				},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, nil
		}
		return nil, fmt.Errorf("file picker failed: %w", err)
	}
	return selected, nil
}
