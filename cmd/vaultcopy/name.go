package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Work with obfuscated names",
}

var nameShortCmd = &cobra.Command{
	Use:   "short <name>",
	Short: "Print the short directory name used for name",
	Args:  cobra.ExactArgs(1),
	RunE:  runNameShort,
}

var nameEncodeCmd = &cobra.Command{
	Use:   "encode <name>",
	Short: "Encrypt a single name",
	Args:  cobra.ExactArgs(1),
	RunE:  runNameEncode,
}

var nameDecodeCmd = &cobra.Command{
	Use:   "decode <encoded>",
	Short: "Decrypt a name produced by encode",
	Args:  cobra.ExactArgs(1),
	RunE:  runNameDecode,
}

var (
	namePassword      string
	nameLength        int
	nameDeterministic bool
)

func init() {
	rootCmd.AddCommand(nameCmd)
	nameCmd.AddCommand(nameShortCmd, nameEncodeCmd, nameDecodeCmd)

	nameCmd.PersistentFlags().StringVarP(&namePassword, "password", "p", "",
		"Password (will prompt if not provided)")
	nameShortCmd.Flags().IntVar(&nameLength, "length", 0,
		"Characters to keep (default from config)")
	nameEncodeCmd.Flags().BoolVar(&nameDeterministic, "deterministic", false,
		"Same input always gives the same output")
}

func runNameShort(cmd *cobra.Command, args []string) error {
	password, err := readPassword(namePassword, false)
	if err != nil {
		return err
	}

	length := nameLength
	if length <= 0 {
		length = cfg.Transfer.ShortNameLength
	}
	if length > models.MaxShortNameLength {
		return errors.Errorf("--length must be at most %d", models.MaxShortNameLength)
	}

	return printName(args[0], crypto.ShortDirName(args[0], password, length))
}

func runNameEncode(cmd *cobra.Command, args []string) error {
	password, err := readPassword(namePassword, namePassword == "")
	if err != nil {
		return err
	}

	var encoded string
	if nameDeterministic {
		encoded, err = crypto.EncryptNameDeterministic(args[0], password)
	} else {
		encoded, err = crypto.DefaultCodec().EncryptName(args[0], password)
	}
	if err != nil {
		printError("Encode failed: %s", models.Describe(err))
		return err
	}

	return printName(args[0], encoded)
}

func runNameDecode(cmd *cobra.Command, args []string) error {
	password, err := readPassword(namePassword, false)
	if err != nil {
		return err
	}

	plain, err := crypto.DefaultCodec().DecryptName(args[0], password)
	if err != nil {
		printError("Decode failed: %s", models.Describe(err))
		return err
	}

	return printName(args[0], plain)
}

func printName(input, output string) error {
	if jsonOutput {
		printJSON(map[string]string{
			"input":  input,
			"output": output,
		})
		return nil
	}
	fmt.Println(output)
	return nil
}
