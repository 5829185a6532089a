package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/message"
)

var messageFlags struct {
	file   string
	legacy bool
}

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Create and inspect sign-in messages",
}

var messageCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Render a sign-in input as the message a wallet signs",
	Long:  "Reads a JSON sign-in input from --file or stdin and prints the message text.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}

		var input core.SignInInput
		if err := json.Unmarshal(data, &input); err != nil {
			return fmt.Errorf("invalid sign-in input: %w", err)
		}

		text := message.Create(input)
		if messageFlags.legacy {
			text = message.CreateLegacy(input)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	},
}

var messageParseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a sign-in message into its fields",
	Long:  "Reads a message from --file or stdin and prints the parsed input as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}

		switch r := message.Parse(strings.TrimRight(string(data), "\n")).(type) {
		case core.Valid:
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r.Data)
		case core.Invalid:
			return fmt.Errorf("%w: %s", core.ErrVerificationFailed, r.Error())
		default:
			return core.ErrVerificationFailed
		}
	},
}

var messageSigningCmd = &cobra.Command{
	Use:   "signing",
	Short: "Print the domain separated bytes a wallet signs, hex encoded",
	Long:  "Reads a message from --file or stdin and prints its signing bytes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(message.SigningMessage(strings.TrimRight(string(data), "\n"))))
		return err
	},
}

func init() {
	messageCmd.PersistentFlags().StringVarP(&messageFlags.file, "file", "f", "", "read from file instead of stdin")
	messageCreateCmd.Flags().BoolVar(&messageFlags.legacy, "legacy", false, "render the legacy signMessage form")

	messageCmd.AddCommand(messageCreateCmd)
	messageCmd.AddCommand(messageParseCmd)
	messageCmd.AddCommand(messageSigningCmd)
}

func readInput(cmd *cobra.Command) ([]byte, error) {
	if messageFlags.file != "" {
		return os.ReadFile(messageFlags.file)
	}
	return io.ReadAll(cmd.InOrStdin())
}
