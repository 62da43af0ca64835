package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nicayne/internal/logger"
	"nicayne/internal/ocr"
	"nicayne/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage supplier prompt profiles",
	Long: `Manage the supplier-specific instructions added to the extraction prompt.

Profiles live in PROMPT_STORE: a JSON file (default supplier_prompts.json),
a YAML file (.yaml/.yml) or a SQLite database (sqlite://path). Supplier names
are normalized to keys: lowercase with spaces and hyphens replaced by "_".
The "default" profile is used for unknown or inactive suppliers and cannot be
removed.`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supplier profiles",
	Args:  cobra.NoArgs,
	RunE:  runPromptsList,
}

var promptsShowCmd = &cobra.Command{
	Use:   "show [supplier]",
	Short: "Show the prompt a supplier resolves to",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsShow,
}

var promptsAddCmd = &cobra.Command{
	Use:     "add [supplier]",
	Short:   "Add a supplier profile",
	Example: `  nicayne prompts add "Steel Dynamics" --prompt "Coil tags start with SD-. Weight is in the NET column."`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPromptsAdd,
}

var promptsUpdateCmd = &cobra.Command{
	Use:   "update [supplier]",
	Short: "Replace a supplier's prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsUpdate,
}

var promptsDeactivateCmd = &cobra.Command{
	Use:   "deactivate [supplier]",
	Short: "Stop using a supplier profile without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
			if err := store.Deactivate(ctx, args[0]); err != nil {
				return handlePromptError(err, args[0])
			}
			fmt.Printf("Deactivated %s\n", prompts.NormalizeKey(args[0]))
			return nil
		})
	},
}

var promptsActivateCmd = &cobra.Command{
	Use:   "activate [supplier]",
	Short: "Re-enable a deactivated supplier profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
			if err := store.Activate(ctx, args[0]); err != nil {
				return handlePromptError(err, args[0])
			}
			fmt.Printf("Activated %s\n", prompts.NormalizeKey(args[0]))
			return nil
		})
	},
}

var promptsRemoveCmd = &cobra.Command{
	Use:   "remove [supplier]",
	Short: "Delete a supplier profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
			if err := store.Remove(ctx, args[0]); err != nil {
				return handlePromptError(err, args[0])
			}
			fmt.Printf("Removed %s\n", prompts.NormalizeKey(args[0]))
			return nil
		})
	},
}

var promptsPreviewCmd = &cobra.Command{
	Use:   "preview [supplier]",
	Short: "Print the full extraction prompt for a supplier",
	Long: `Print the prompt that would be sent to the LLM, built from the supplier's
profile and either --text or the text of --pdf.`,
	Example: `  nicayne prompts preview nucor --pdf bol.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPromptsPreview,
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd, promptsAddCmd, promptsUpdateCmd,
		promptsDeactivateCmd, promptsActivateCmd, promptsRemoveCmd, promptsPreviewCmd)

	promptsListCmd.Flags().BoolP("all", "a", false, "Include inactive profiles")
	promptsListCmd.Flags().Bool("json", false, "Output as JSON")

	promptsAddCmd.Flags().StringP("prompt", "p", "", "Prompt text")
	promptsAddCmd.Flags().StringP("file", "f", "", "Read the prompt text from a file")
	promptsAddCmd.Flags().String("name", "", "Display name (default: the supplier argument)")

	promptsUpdateCmd.Flags().StringP("prompt", "p", "", "Prompt text")
	promptsUpdateCmd.Flags().StringP("file", "f", "", "Read the prompt text from a file")

	promptsPreviewCmd.Flags().String("text", "", "Document text to embed")
	promptsPreviewCmd.Flags().String("pdf", "", "PDF whose text layer to embed")
}

// withPromptStore opens PROMPT_STORE for one command.
func withPromptStore(fn func(ctx context.Context, store *prompts.Store) error) error {
	log := logger.WithComponent("prompts")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(60, log)
	defer cancel()

	var closers cleanup
	defer closers.run(log)

	store, err := openPromptStore(ctx, cfg, &closers)
	if err != nil {
		return err
	}
	return fn(ctx, store)
}

// promptText returns --prompt, or the contents of --file.
func promptText(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("prompt")
	file, _ := cmd.Flags().GetString("file")

	if file != "" {
		if text != "" {
			return "", fmt.Errorf("use either --prompt or --file, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("a prompt is required (--prompt or --file)")
	}
	return text, nil
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
		profiles, err := store.List(ctx, all)
		if err != nil {
			return err
		}

		if jsonOutput {
			log := logger.WithComponent("prompts")
			data, err := marshalJSON(profiles, log)
			if err != nil {
				return err
			}
			return writeOutput(data, "", log)
		}

		fmt.Printf("%-24s %-28s %-7s %s\n", "KEY", "NAME", "ACTIVE", "LAST MODIFIED")
		for _, p := range profiles {
			fmt.Printf("%-24s %-28s %-7t %s\n", p.Key, p.Name, p.Active, p.LastModified)
		}
		return nil
	})
}

func runPromptsShow(cmd *cobra.Command, args []string) error {
	return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
		if p, err := store.Get(ctx, args[0]); err == nil {
			fmt.Printf("Key:      %s\nName:     %s\nActive:   %t\nCreated:  %s\nModified: %s\n\n",
				p.Key, p.Name, p.Active, p.Created, p.LastModified)
		} else {
			fmt.Printf("No profile for %s, resolving to the default prompt.\n\n", prompts.NormalizeKey(args[0]))
		}

		text, err := store.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	})
}

func runPromptsAdd(cmd *cobra.Command, args []string) error {
	text, err := promptText(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")

	return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
		p, err := store.Add(ctx, args[0], text, name)
		if err != nil {
			return handlePromptError(err, args[0])
		}
		fmt.Printf("Added %s (%s)\n", p.Key, p.Name)
		return nil
	})
}

func runPromptsUpdate(cmd *cobra.Command, args []string) error {
	text, err := promptText(cmd)
	if err != nil {
		return err
	}

	return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
		if err := store.Update(ctx, args[0], text); err != nil {
			return handlePromptError(err, args[0])
		}
		fmt.Printf("Updated %s\n", prompts.NormalizeKey(args[0]))
		return nil
	})
}

func runPromptsPreview(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	pdfPath, _ := cmd.Flags().GetString("pdf")

	if pdfPath != "" {
		res, err := ocr.NewExtractor(nil).ExtractDocument(context.Background(), pdfPath)
		if err != nil {
			return handleExtractError(err, logger.WithComponent("prompts"))
		}
		text = ocr.Preprocess(res.Text)
	}

	return withPromptStore(func(ctx context.Context, store *prompts.Store) error {
		prompt, err := store.BuildExtractionPrompt(ctx, text, args[0])
		if err != nil {
			return err
		}
		fmt.Println(prompt)
		return nil
	})
}
