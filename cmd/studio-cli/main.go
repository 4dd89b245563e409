package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-photo-studio/internal/cli"
	"github.com/fpang/gemini-photo-studio/internal/download"
	"github.com/fpang/gemini-photo-studio/internal/gemini"
	"github.com/fpang/gemini-photo-studio/internal/ingest"
	"github.com/fpang/gemini-photo-studio/internal/logging"
	"github.com/fpang/gemini-photo-studio/internal/workflow"
)

// CLI flags
var (
	filesFlag  []string
	promptFlag string
	modelFlag  string
	outputFlag string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "studio-cli",
	Short: "AI-powered photo editing from the terminal",
	Long: `Studio CLI edits photos with the Gemini image model. Choose one or
more images, type an editing instruction, and each successful edit is added
to a gallery you can select from and download.

All chosen images go to the model in a single request, so instructions that
combine them (collages, composites) work as expected.

Examples:
  studio-cli --files a.jpg --files b.png --prompt "watercolor style"
  studio-cli -f photo.jpg -o ~/Pictures/edits
  studio-cli --model gemini-3-pro-image-preview
  studio-cli  # Interactive mode - native file picker, then an edit loop`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringSliceVarP(&filesFlag, "files", "f", nil, "Image files to edit (repeatable)")
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Editing instruction for the first edit")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", gemini.GetModelName(), "Gemini image model to use")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory for downloaded results (default: current directory)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	ctx, apiKey := cli.InitAPIKey()

	outputDir := outputFlag
	if outputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to determine working directory")
		}
		outputDir = cwd
	}
	outputDir = cli.ValidateAndResolveDirectory(outputDir)

	wf := workflow.New(gemini.NewClient(apiKey, modelFlag), nil)

	paths := filesFlag
	if len(paths) == 0 {
		picked, err := cli.PickImageFiles()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to pick files")
		}
		paths = picked
	}
	if len(paths) == 0 {
		log.Fatal().Msg("No images chosen")
	}

	if err := loadBatch(ctx, wf, paths); err != nil {
		log.Fatal().Err(err).Msg("Failed to load images")
	}

	if promptFlag != "" {
		runEdit(ctx, wf, promptFlag)
	}

	runLoop(ctx, wf, outputDir)
}

// loadBatch reads the files and replaces the workflow's upload batch.
func loadBatch(ctx context.Context, wf *workflow.Controller, paths []string) error {
	images, err := ingest.LoadFiles(paths)
	if err != nil {
		return err
	}
	if err := wf.SetBatch(ctx, images); err != nil {
		return err
	}

	snap := wf.Snapshot()
	fmt.Printf("\nLoaded %d image(s):\n", len(snap.Uploads))
	for i, up := range snap.Uploads {
		fmt.Printf("  %d. %s (%s, %d bytes)\n", i+1, up.Name, up.MIMEType, len(up.Data))
	}
	return nil
}

// runEdit submits one instruction and prints the outcome.
func runEdit(ctx context.Context, wf *workflow.Controller, instruction string) {
	fmt.Println("Editing...")
	res, err := wf.SubmitEdit(ctx, instruction)
	if err != nil {
		if errors.Is(err, workflow.ErrBatchSuperseded) {
			return
		}
		fmt.Printf("Edit failed: %s\n", err.Error())
		return
	}

	fmt.Printf("Done: result %s (%s, %d bytes)\n", res.ID, res.MIMEType, len(res.Data))
	if res.Note != "" {
		fmt.Printf("Model note: %s\n", res.Note)
	}
	printGallery(wf)
}

// printGallery lists the results newest first with selection markers.
func printGallery(wf *workflow.Controller) {
	results := wf.Results()
	if len(results) == 0 {
		fmt.Println("Gallery is empty.")
		return
	}
	fmt.Println("\nGallery (newest first):")
	for i, res := range results {
		marker := " "
		if wf.IsSelected(res.ID) {
			marker = "*"
		}
		fmt.Printf(" %s %d. %s (%s, %d bytes)\n", marker, i+1, res.ID, res.MIMEType, len(res.Data))
	}
}

const loopHelp = `Type an instruction to edit the current images, or a command:
  /gallery           list edited results
  /select <n>        toggle selection of gallery entry n
  /clear             clear the selection
  /download          save selected results to the output directory
  /files             choose a new set of images (resets the gallery)
  /quit              exit`

// runLoop is the interactive edit loop: plain input is an instruction,
// /commands manage the gallery and selection.
func runLoop(ctx context.Context, wf *workflow.Controller, outputDir string) {
	fmt.Println()
	fmt.Println(loopHelp)

	for {
		line, ok := cli.ReadLine("\n> ")
		if !ok {
			return
		}
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			runEdit(ctx, wf, line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/gallery":
			printGallery(wf)

		case "/select":
			if len(fields) < 2 {
				fmt.Println("Usage: /select <n>")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			results := wf.Results()
			if err != nil || n < 1 || n > len(results) {
				fmt.Println("No such gallery entry.")
				continue
			}
			id := results[n-1].ID
			if wf.ToggleSelect(id) {
				fmt.Printf("Selected %s\n", id)
			} else {
				fmt.Printf("Unselected %s\n", id)
			}

		case "/clear":
			wf.ClearSelection()
			fmt.Println("Selection cleared.")

		case "/download":
			paths, err := download.SaveSelection(outputDir, wf.SelectedResults())
			if err != nil {
				fmt.Printf("Download failed: %s\n", err.Error())
				continue
			}
			fmt.Printf("Saved %d file(s):\n", len(paths))
			for _, p := range paths {
				fmt.Printf("  %s\n", p)
			}

		case "/files":
			picked, err := cli.PickImageFiles()
			if err != nil {
				fmt.Printf("File picker failed: %s\n", err.Error())
				continue
			}
			if len(picked) == 0 {
				fmt.Println("Canceled.")
				continue
			}
			if err := loadBatch(ctx, wf, picked); err != nil {
				fmt.Printf("Failed to load images: %s\n", err.Error())
			}

		case "/quit", "/exit":
			return

		default:
			fmt.Println(loopHelp)
		}
	}
}
