package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/application"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an argon2id hash for RESERVATIONS_ADMIN_PASSWORD_HASH",
		Long:  "Hashes the given password, or the first line of stdin when no argument is passed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					password = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			password = strings.TrimRight(password, "\r\n")
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
