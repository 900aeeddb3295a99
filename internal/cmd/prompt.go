package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adrianaguero/chatgate/internal/ailink/prompt"
	"github.com/adrianaguero/chatgate/internal/core"
)

var (
	promptMessages     []string
	promptKnowledge    string
	promptSectionsDir  string
	promptListSections bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the composed system prompt",
	Long: `Print the system prompt the chat endpoint sends with every request.

Each --message adds a conversation turn, alternating user and assistant and
starting with user; the history is appended in a conversation block.
--knowledge and --sections replace the embedded knowledge base and sections
so edits can be previewed before they are built in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		assembler, err := buildAssembler()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if promptListSections {
			writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(writer, "ORDER\tSLUG\tTAG\tSOURCE") // nolint:errcheck // tabwriter buffers; errors surface at Flush
			for _, section := range assembler.Sections {
				_, _ = fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", section.Config.Order, section.Config.Slug, section.TagName(), section.Source) // nolint:errcheck // tabwriter buffers
			}
			return writer.Flush()
		}

		composed := assembler.Assemble(conversation(promptMessages))
		_, err = fmt.Fprintln(out, composed.Render())
		return err
	},
}

func buildAssembler() (*prompt.Assembler, error) {
	assembler, err := prompt.DefaultAssembler()
	if err != nil {
		return nil, err
	}

	if promptSectionsDir != "" {
		sections, err := prompt.LoadFromDir(promptSectionsDir)
		if err != nil {
			return nil, err
		}
		reg, err := prompt.NewRegistry(sections)
		if err != nil {
			return nil, err
		}
		assembler.Sections = reg.List()
	}

	if promptKnowledge != "" {
		data, err := os.ReadFile(promptKnowledge) // #nosec G304 -- knowledge path is user-provided
		if err != nil {
			return nil, fmt.Errorf("read knowledge base: %w", err)
		}
		knowledge, err := prompt.ParseKnowledge(data)
		if err != nil {
			return nil, err
		}
		assembler.Knowledge = knowledge
	}

	return assembler, nil
}

// conversation turns flag values into alternating user and assistant messages.
func conversation(turns []string) []core.ChatMessage {
	messages := make([]core.ChatMessage, 0, len(turns))
	for i, text := range turns {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		messages = append(messages, core.ChatMessage{Role: role, Content: text})
	}
	return messages
}

func init() {
	rootCmd.AddCommand(promptCmd)

	promptCmd.Flags().StringArrayVarP(&promptMessages, "message", "m", nil, "Conversation turn (repeatable; alternates user/assistant)")
	promptCmd.Flags().StringVar(&promptKnowledge, "knowledge", "", "Knowledge base YAML replacing the embedded one")
	promptCmd.Flags().StringVar(&promptSectionsDir, "sections", "", "Directory of section .md files replacing the embedded ones")
	promptCmd.Flags().BoolVar(&promptListSections, "list", false, "List sections in prompt order instead of printing the prompt")
}
